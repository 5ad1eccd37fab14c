package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAndDefaults(t *testing.T) {
	data := []byte(`
Title: "Transonic airfoil"
CFL: 3.
Minf: 0.8
Alpha: 1.25
TimeScheme: RungeKutta
MGLevels: 3
MGCycle: W
MGPreSmooth: [1, 2]
LocalTimeStep: true
BCs:
  Isothermal:
    0:
      Temperature: 1.5
`)
	sp := &SolverParameters{}
	assert.NoError(t, sp.Parse(data))

	assert.Equal(t, 3.0, sp.CFL)
	assert.Equal(t, 3, sp.MGLevels)
	assert.Equal(t, WCycle, sp.MGCycle)
	assert.True(t, sp.LocalTimeStepping)
	assert.Equal(t, 1.5, sp.BCs["Isothermal"][0]["Temperature"])

	// Defaults fill in the controls the file omits
	assert.Equal(t, []float64{0.66667, 0.66667, 1.0}, sp.RKCoefficients)
	assert.Equal(t, 0.75, sp.DampCorrecProlong)
	assert.Equal(t, 0.75, sp.DampResRestric)
	assert.Equal(t, 1.25, sp.SmoothCoeff)
	assert.Equal(t, 1000, sp.MaxIterations)
}

func TestRecursiveParam(t *testing.T) {
	sp := &SolverParameters{MGCycle: VCycle}
	assert.Equal(t, 0, sp.RecursiveParam())
	sp.MGCycle = WCycle
	assert.Equal(t, 1, sp.RecursiveParam())
	// Full multigrid runs V-shaped cycles during start-up
	sp.MGCycle = FullMGCycle
	assert.Equal(t, 0, sp.RecursiveParam())
}

// The last configured smoothing count extends to all deeper levels.
func TestLevelSmoothingCounts(t *testing.T) {
	sp := &SolverParameters{MGPreSmooth: []int{1, 2, 3}}
	assert.Equal(t, 1, sp.PreSmooth(0))
	assert.Equal(t, 3, sp.PreSmooth(2))
	assert.Equal(t, 3, sp.PreSmooth(7))

	empty := &SolverParameters{}
	assert.Equal(t, 0, empty.PostSmooth(4))
}

func TestRKLimit(t *testing.T) {
	sp := &SolverParameters{TimeScheme: RungeKutta, RKCoefficients: []float64{0.5, 1.0}}
	assert.Equal(t, 2, sp.RKLimit())
	sp.TimeScheme = ClassicalRK4
	assert.Equal(t, 4, sp.RKLimit())
	sp.TimeScheme = EulerImplicit
	assert.Equal(t, 1, sp.RKLimit())
}
