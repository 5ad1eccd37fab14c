package InputParameters

import (
	"fmt"
	"sort"

	"github.com/ghodss/yaml"
)

// Time integration scheme selectors. The scheme determines the number of
// sub-stages run by each smoothing pass.
const (
	EulerExplicit   = "EulerExplicit"
	EulerImplicit   = "EulerImplicit"
	RungeKutta      = "RungeKutta"
	ClassicalRK4    = "ClassicalRK4"
	ADERDG          = "ADER"
)

// Multigrid cycle selectors
const (
	VCycle      = "V"
	WCycle      = "W"
	FullMGCycle = "FullMG"
)

// Parameters obtained from the YAML input file
type SolverParameters struct {
	Title             string                                `yaml:"Title"`
	CFL               float64                               `yaml:"CFL"`
	FinalTime         float64                               `yaml:"FinalTime"`
	MaxIterations     int                                   `yaml:"MaxIterations"`
	ConvergenceTol    float64                               `yaml:"ConvergenceTol"`
	Minf              float64                               `yaml:"Minf"`
	Gamma             float64                               `yaml:"Gamma"`
	Alpha             float64                               `yaml:"Alpha"`
	LocalTimeStepping bool                                  `json:"LocalTimeStep" yaml:"LocalTimeStep"`
	TimeScheme        string                                `yaml:"TimeScheme"`
	RKCoefficients    []float64                             `yaml:"RKCoefficients"`
	TimeStep          float64                               `yaml:"TimeStep"` // Sync step for unsteady DG runs
	UnsteadyCFL       float64                               `yaml:"UnsteadyCFL"`
	GridMovement      bool                                  `yaml:"GridMovement"`
	Restart           bool                                  `yaml:"Restart"`
	Turbulent         bool                                  `yaml:"Turbulent"`
	NParallel         int                                   `yaml:"NParallel"` // 0 selects NumCPU
	BCs               map[string]map[int]map[string]float64 `yaml:"BCs"`       // First key is BC name/type, second is parameter name

	// Multigrid controls. MGLevels counts the coarse levels, so the
	// hierarchy has MGLevels+1 meshes with level 0 the finest.
	MGLevels          int       `yaml:"MGLevels"`
	MGCycle           string    `yaml:"MGCycle"` // V, W or FullMG
	MGPreSmooth       []int     `yaml:"MGPreSmooth"`
	MGPostSmooth      []int     `yaml:"MGPostSmooth"`
	MGCorrecSmooth    []int     `yaml:"MGCorrecSmooth"`
	DampCorrecProlong float64   `yaml:"DampCorrecProlong"`
	DampResRestric    float64   `yaml:"DampResRestric"`
	SmoothCoeff       float64   `yaml:"SmoothCoeff"`
}

func (sp *SolverParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, sp); err != nil {
		return err
	}
	sp.SetDefaults()
	return nil
}

// SetDefaults fills every zero-valued control with its working default.
func (sp *SolverParameters) SetDefaults() {
	if sp.CFL == 0 {
		sp.CFL = 1.0
	}
	if sp.MaxIterations == 0 {
		sp.MaxIterations = 1000
	}
	if sp.ConvergenceTol == 0 {
		sp.ConvergenceTol = 1.e-8
	}
	if sp.Gamma == 0 {
		sp.Gamma = 1.4
	}
	if len(sp.TimeScheme) == 0 {
		sp.TimeScheme = RungeKutta
	}
	if len(sp.RKCoefficients) == 0 {
		sp.RKCoefficients = []float64{0.66667, 0.66667, 1.0}
	}
	if len(sp.MGCycle) == 0 {
		sp.MGCycle = VCycle
	}
	if len(sp.MGPreSmooth) == 0 {
		sp.MGPreSmooth = []int{1}
	}
	if len(sp.MGPostSmooth) == 0 {
		sp.MGPostSmooth = []int{0}
	}
	if len(sp.MGCorrecSmooth) == 0 {
		sp.MGCorrecSmooth = []int{0}
	}
	if sp.DampCorrecProlong == 0 {
		sp.DampCorrecProlong = 0.75
	}
	if sp.DampResRestric == 0 {
		sp.DampResRestric = 0.75
	}
	if sp.SmoothCoeff == 0 {
		sp.SmoothCoeff = 1.25
	}
}

// RecursiveParam maps the configured cycle type to the recursion
// multiplicity of the FAS cycle: 0 repeats a V shape, 1 a W shape. The
// full-multigrid start-up runs V-shaped cycles.
func (sp *SolverParameters) RecursiveParam() int {
	if sp.MGCycle == WCycle {
		return 1
	}
	return 0
}

func levelEntry(counts []int, iMesh int) int {
	if len(counts) == 0 {
		return 0
	}
	if iMesh >= len(counts) {
		return counts[len(counts)-1]
	}
	return counts[iMesh]
}

// PreSmooth returns the presmoothing repeat count for a mesh level; the last
// configured entry extends to all deeper levels.
func (sp *SolverParameters) PreSmooth(iMesh int) int { return levelEntry(sp.MGPreSmooth, iMesh) }

func (sp *SolverParameters) PostSmooth(iMesh int) int { return levelEntry(sp.MGPostSmooth, iMesh) }

func (sp *SolverParameters) CorrecSmooth(iMesh int) int { return levelEntry(sp.MGCorrecSmooth, iMesh) }

// RKLimit gives the sub-stage count of one smoothing pass under the
// configured time scheme.
func (sp *SolverParameters) RKLimit() int {
	switch sp.TimeScheme {
	case RungeKutta:
		return len(sp.RKCoefficients)
	case ClassicalRK4:
		return 4
	default: // EulerExplicit, EulerImplicit, ADER
		return 1
	}
}

func (sp *SolverParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("%8.5f\t\t= CFL\n", sp.CFL)
	fmt.Printf("%8.5f\t\t= FinalTime\n", sp.FinalTime)
	fmt.Printf("[%s]\t\t\t= Time Scheme\n", sp.TimeScheme)
	fmt.Printf("[%s]\t\t\t= MG Cycle\n", sp.MGCycle)
	fmt.Printf("[%d]\t\t\t\t= MG Levels\n", sp.MGLevels)
	fmt.Printf("%v\t\t\t= MG PreSmooth\n", sp.MGPreSmooth)
	fmt.Printf("%v\t\t\t= MG PostSmooth\n", sp.MGPostSmooth)
	keys := make([]string, len(sp.BCs))
	i := 0
	for k := range sp.BCs {
		keys[i] = k
		i++
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, sp.BCs[key])
	}
}
