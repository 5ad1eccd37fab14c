package integration

import (
	"fmt"
	"math"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/solver"
)

// EqSystem selects which equation set an integration pass advances. The
// multigrid and single-grid drivers are shared between systems; the tag
// picks the solver container and the system-specific transfer rules.
type EqSystem int

const (
	RuntimeFlowSys EqSystem = iota
	RuntimeTurbSys
	RuntimeAdjFlowSys
	RuntimeFEASys
	RuntimeHeatSys
)

func (sys EqSystem) String() string {
	switch sys {
	case RuntimeFlowSys:
		return "Flow"
	case RuntimeTurbSys:
		return "Turb"
	case RuntimeAdjFlowSys:
		return "AdjFlow"
	case RuntimeFEASys:
		return "FEA"
	case RuntimeHeatSys:
		return "Heat"
	}
	return "Unknown"
}

/*
	Hierarchy owns one solver instance per equation system per mesh level.
	Systems that never leave the finest level (the structural one) carry a
	single-entry slice.
*/
type Hierarchy struct {
	Geom    *geometry.MultigridGeometry
	Solvers map[EqSystem][]solver.Solver
}

func NewHierarchy(geom *geometry.MultigridGeometry, sp *InputParameters.SolverParameters) (h *Hierarchy) {
	h = &Hierarchy{
		Geom:    geom,
		Solvers: make(map[EqSystem][]solver.Solver),
	}
	flows := make([]solver.Solver, geom.NumLevels())
	for iMesh := 0; iMesh < geom.NumLevels(); iMesh++ {
		flows[iMesh] = solver.NewFlowSolver(geom.At(iMesh), sp)
	}
	h.Solvers[RuntimeFlowSys] = flows
	if sp.Turbulent {
		h.AddTurbulence(sp)
	}
	return
}

func (h *Hierarchy) Solver(sys EqSystem, iMesh int) solver.Solver {
	sols, ok := h.Solvers[sys]
	if !ok {
		panic(fmt.Sprintf("no solver registered for system %v", sys))
	}
	if iMesh >= len(sols) {
		panic(fmt.Sprintf("system %v has no level %d solver", sys, iMesh))
	}
	return sols[iMesh]
}

func (h *Hierarchy) Has(sys EqSystem) bool { return len(h.Solvers[sys]) > 0 }

func (h *Hierarchy) flowAt(iMesh int) *solver.FlowSolver {
	return h.Solver(RuntimeFlowSys, iMesh).(*solver.FlowSolver)
}

func (h *Hierarchy) AddTurbulence(sp *InputParameters.SolverParameters) {
	turbs := make([]solver.Solver, h.Geom.NumLevels())
	for iMesh := 0; iMesh < h.Geom.NumLevels(); iMesh++ {
		turbs[iMesh] = solver.NewTurbSolver(h.Geom.At(iMesh), sp, h.flowAt(iMesh))
	}
	h.Solvers[RuntimeTurbSys] = turbs
}

func (h *Hierarchy) AddAdjoint(sp *InputParameters.SolverParameters) {
	adjs := make([]solver.Solver, h.Geom.NumLevels())
	for iMesh := 0; iMesh < h.Geom.NumLevels(); iMesh++ {
		adjs[iMesh] = solver.NewAdjointSolver(h.Geom.At(iMesh), sp, h.flowAt(iMesh))
	}
	h.Solvers[RuntimeAdjFlowSys] = adjs
}

func (h *Hierarchy) AddHeat(sp *InputParameters.SolverParameters) {
	heats := make([]solver.Solver, h.Geom.NumLevels())
	for iMesh := 0; iMesh < h.Geom.NumLevels(); iMesh++ {
		heats[iMesh] = solver.NewHeatSolver(h.Geom.At(iMesh), sp)
	}
	h.Solvers[RuntimeHeatSys] = heats
}

func (h *Hierarchy) AddStructural(sp *InputParameters.SolverParameters) {
	h.Solvers[RuntimeFEASys] = []solver.Solver{
		solver.NewStructuralSolver(h.Geom.At(0), sp),
	}
}

/*
	RunState carries the mutable outer-loop state shared between the
	integration drivers: the stop flag, the convergence flags and, during a
	full-multigrid start-up, the index of the level currently acting as the
	finest one.
*/
type RunState struct {
	StopCalc          bool
	Convergence       bool
	ConvergenceFullMG bool
	FinestMesh        int
	IterCount         int
}

func NewRunState(sp *InputParameters.SolverParameters, nLevels int) (rs *RunState) {
	rs = &RunState{}
	if sp.MGCycle == InputParameters.FullMGCycle {
		rs.FinestMesh = nLevels - 1
	}
	return
}

/*
	Integration is the base of the three drivers. It owns the convergence
	monitor; the drivers share its space/time dispatch so a smoothing pass
	looks identical on every level of the hierarchy.
*/
type Integration struct {
	State *RunState

	initialRes float64
	haveInit   bool
}

func NewIntegration(state *RunState) *Integration {
	return &Integration{State: state}
}

/*
	SpaceIntegration evaluates the spatial residual of one system on one
	level: halo exchange followed by edge-flux assembly. Callers impose the
	boundary state with Preprocessing first, ahead of any stage snapshots
	that must capture the constrained solution.
*/
func (in *Integration) SpaceIntegration(ml *geometry.MeshLevel, sol solver.Solver,
	sp *InputParameters.SolverParameters, iMesh int) {
	sol.InitiateComms(ml, sp, solver.CommSolution)
	sol.CompleteComms(ml, sp, solver.CommSolution)
	sol.AssembleResidual(ml, sp, iMesh)
}

// TimeIntegration advances one sub-stage under the configured scheme.
func (in *Integration) TimeIntegration(ml *geometry.MeshLevel, sol solver.Solver,
	sp *InputParameters.SolverParameters, iRKStep int) {
	switch sp.TimeScheme {
	case InputParameters.RungeKutta:
		sol.ExplicitRKIteration(ml, sp, iRKStep)
	case InputParameters.ClassicalRK4:
		sol.ClassicalRK4Iteration(ml, sp, iRKStep)
	case InputParameters.EulerImplicit:
		sol.ImplicitEulerIteration(ml, sp)
	default:
		sol.ExplicitEulerIteration(ml, sp)
	}
}

/*
	ConvergenceMonitoring updates the convergence flag from the density
	residual history: converged when the RMS residual drops below the
	absolute tolerance or falls eight orders below its initial value.
*/
func (in *Integration) ConvergenceMonitoring(sol solver.Solver,
	sp *InputParameters.SolverParameters, iteration int) {
	rms := sol.ResidualRMS()[0]
	if math.IsNaN(rms) {
		in.State.StopCalc = true
		return
	}
	if !in.haveInit && rms > 0 {
		in.initialRes = rms
		in.haveInit = true
	}
	if rms < sp.ConvergenceTol || (in.haveInit && rms < in.initialRes*1.e-8) {
		in.State.Convergence = true
	}
	if iteration+1 >= sp.MaxIterations {
		in.State.StopCalc = true
	}
}

/*
	NonDimensionalParameters refreshes the aggregate monitors of the finest
	level after a cycle: forces for the flow, surface sensitivities for the
	adjoint, integrated fluxes for the heat system. Solvers advertise the
	monitors they support through the reporter interfaces.
*/
func (in *Integration) NonDimensionalParameters(ml *geometry.MeshLevel, sol solver.Solver,
	sp *InputParameters.SolverParameters) {
	if fr, ok := sol.(solver.ForceReporter); ok {
		fr.PressureForces(ml, sp)
		fr.MomentumForces(ml, sp)
		fr.FrictionForces(ml, sp)
		fr.BuffetMonitoring(ml, sp)
	}
	if sr, ok := sol.(solver.SensitivityReporter); ok {
		sr.InviscidSensitivity(ml, sp)
		sr.ViscousSensitivity(ml, sp)
		sr.SmoothSensitivity(ml, sp)
	}
	if hr, ok := sol.(solver.HeatReporter); ok {
		hr.HeatFluxes(ml, sp)
	}
}

// PrintMonitorLine writes one row of the iteration table.
func (in *Integration) PrintMonitorLine(sys EqSystem, iteration int, sol solver.Solver) {
	rms := sol.ResidualRMS()
	fmt.Printf("%-8s iter %6d  dt %10.3e  log10(res)", sys, iteration, sol.TimeStep())
	for _, r := range rms {
		fmt.Printf(" %8.4f", math.Log10(r+1.e-30))
	}
	fmt.Printf("\n")
}
