package integration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/solver"
)

func testParams() (sp *InputParameters.SolverParameters) {
	sp = &InputParameters.SolverParameters{
		Minf:       0.3,
		CFL:        0.5,
		TimeScheme: InputParameters.EulerExplicit,
	}
	sp.SetDefaults()
	return
}

func farfieldHierarchy(n, nLevels, nParallel int, sp *InputParameters.SolverParameters) *Hierarchy {
	fine := geometry.NewCartesianLevel(n, n, [4]geometry.BCKind{
		geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield})
	return NewHierarchy(geometry.NewMultigridGeometry(fine, nLevels, nParallel), sp)
}

// Restriction must conserve the volume integral of every variable.
func TestRestrictionConservation(t *testing.T) {
	var (
		sp  = testParams()
		h   = farfieldHierarchy(9, 3, 2, sp)
		mgi = NewMultiGridIntegration(NewRunState(sp, h.Geom.NumLevels()))
	)
	require.True(t, h.Geom.NumLevels() >= 2)
	var (
		fineSol    = h.Solver(RuntimeFlowSys, 0)
		coarseSol  = h.Solver(RuntimeFlowSys, 1)
		fineMesh   = h.Geom.At(0)
		coarseMesh = h.Geom.At(1)
	)
	for p := 0; p < fineMesh.NPoint; p++ {
		q := fineSol.Nodes().Solution.Block(p)
		for n := range q {
			q[n] *= 1 + 0.05*math.Cos(float64(p+n))
		}
	}
	mgi.SetRestrictedSolution(fineSol, coarseSol, fineMesh, coarseMesh, sp)

	for n := 0; n < fineSol.NVar(); n++ {
		var fineInt, coarseInt float64
		for p := 0; p < fineMesh.NPoint; p++ {
			fineInt += fineSol.Nodes().Solution.Block(p)[n] * fineMesh.Volume[p]
		}
		for p := 0; p < coarseMesh.NPoint; p++ {
			coarseInt += coarseSol.Nodes().Solution.Block(p)[n] * coarseMesh.Volume[p]
		}
		assert.InDelta(t, fineInt, coarseInt, 1.e-10)
	}
}

// A steady state of the fine problem must pass through a full FAS cycle
// unchanged: the forcing cancels the coarse residual exactly, so the
// prolongated correction vanishes.
func TestCycleInvariantAtSteadyState(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(9, 9, [4]geometry.BCKind{
			geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal})
		h = NewHierarchy(geometry.NewMultigridGeometry(fine, 3, 1), sp)
	)
	h.AddHeat(sp)
	var (
		mgi = NewMultiGridIntegration(NewRunState(sp, h.Geom.NumLevels()))
		hs  = h.Solver(RuntimeHeatSys, 0).(*solver.HeatSolver)
	)
	for p := 0; p < h.Geom.At(0).NPoint; p++ {
		hs.Nodes().Solution.Data[p] = hs.WallTemp
	}
	mgi.Iteration(h, sp, RuntimeHeatSys, 0)

	for p := 0; p < h.Geom.At(0).NPoint; p++ {
		assert.InDelta(t, hs.WallTemp, hs.Nodes().Solution.Data[p], 1.e-10)
	}
}

// Restricted solutions at no-slip wall points carry zero momentum.
func TestRestrictionWallOverwrite(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(9, 9, [4]geometry.BCKind{
			geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield})
		h   = NewHierarchy(geometry.NewMultigridGeometry(fine, 2, 1), sp)
		mgi = NewMultiGridIntegration(NewRunState(sp, h.Geom.NumLevels()))
	)
	require.True(t, h.Geom.NumLevels() >= 2)
	mgi.SetRestrictedSolution(h.Solver(RuntimeFlowSys, 0), h.Solver(RuntimeFlowSys, 1),
		h.Geom.At(0), h.Geom.At(1), sp)

	coarse := h.Geom.At(1)
	noSlip := coarse.NoSlipPoints()
	require.NotEmpty(t, noSlip)
	for p := range noSlip {
		q := h.Solver(RuntimeFlowSys, 1).Nodes().Solution.Block(p)
		assert.Equal(t, 0.0, q[1])
		assert.Equal(t, 0.0, q[2])
	}
}

// A non-finite component in the prolongated correction must be dropped,
// not applied, NaN and infinities alike.
func TestCorrectionNonFiniteContainment(t *testing.T) {
	var (
		sp  = testParams()
		h   = farfieldHierarchy(5, 1, 1, sp)
		mgi = NewMultiGridIntegration(NewRunState(sp, 1))
		ml  = h.Geom.At(0)
		fs  = h.Solver(RuntimeFlowSys, 0)
	)
	before := make([]float64, len(fs.Nodes().Solution.Data))
	copy(before, fs.Nodes().Solution.Data)

	fs.LinSysRes().SetZero()
	fs.LinSysRes().SetBlock(3, []float64{math.NaN(), 1, math.Inf(1), math.Inf(-1)})
	mgi.SetProlongatedCorrection(fs, ml, sp)

	for i, v := range fs.Nodes().Solution.Data {
		assert.False(t, math.IsNaN(v), "NaN leaked into solution index %d", i)
		assert.False(t, math.IsInf(v, 0), "Inf leaked into solution index %d", i)
	}
	// The finite component still applied with the damping factor
	assert.InDelta(t, before[3*4+1]+sp.DampCorrecProlong, fs.Nodes().Solution.Block(3)[1], 1.e-14)
	assert.Equal(t, before[3*4], fs.Nodes().Solution.Block(3)[0])
	assert.Equal(t, before[3*4+2], fs.Nodes().Solution.Block(3)[2])
	assert.Equal(t, before[3*4+3], fs.Nodes().Solution.Block(3)[3])
}

/*
	countingSolver records how often each level is visited. Every cycle
	entry runs exactly one presmoothing pass here (PostSmooth is zero), and
	each pass calls SetTimeStep once.
*/
type countingSolver struct {
	solver.Solver
	visits *[]int
	level  int
}

func (cs *countingSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	(*cs.visits)[cs.level]++
	cs.Solver.SetTimeStep(ml, sp, iMesh, timeIter)
}

// W-shaped recursion on four levels: the level above the coarsest always
// descends V-shaped, so the visit counts are 1, 2, 4, 4.
func TestWCycleRecursionDepth(t *testing.T) {
	var (
		sp = testParams()
		h  = farfieldHierarchy(17, 4, 1, sp)
	)
	require.Equal(t, 4, h.Geom.NumLevels())
	sp.MGCycle = InputParameters.WCycle
	sp.MGPreSmooth = []int{1}
	sp.MGPostSmooth = []int{0}

	visits := make([]int, 4)
	for iMesh := 0; iMesh < 4; iMesh++ {
		h.Solvers[RuntimeFlowSys][iMesh] = &countingSolver{
			Solver: h.Solvers[RuntimeFlowSys][iMesh],
			visits: &visits,
			level:  iMesh,
		}
	}
	mgi := NewMultiGridIntegration(NewRunState(sp, 4))
	mgi.Cycle(h, sp, RuntimeFlowSys, 0, sp.RecursiveParam(), 0)

	assert.Equal(t, []int{1, 2, 4, 4}, visits)
}

/*
	Two-level transfer arithmetic on a four-point chain with unit volumes:
	restricting [1,3,5,7] gives [2,6]; after the coarse solution moves to
	[2.5,5.5] the correction is [+0.5,-0.5], scattered to the children and
	applied with the prolongation damping.
*/
func TestTwoLevelCorrectionArithmetic(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(geometry.NewChainLevel(4), 2, 1)
		h  = NewHierarchy(mg, sp)
	)
	require.Equal(t, 2, mg.NumLevels())
	h.AddHeat(sp)
	var (
		mgi       = NewMultiGridIntegration(NewRunState(sp, 2))
		fineSol   = h.Solver(RuntimeHeatSys, 0)
		coarseSol = h.Solver(RuntimeHeatSys, 1)
	)
	copy(fineSol.Nodes().Solution.Data, []float64{1, 3, 5, 7})

	mgi.SetRestrictedSolution(fineSol, coarseSol, mg.At(0), mg.At(1), sp)
	assert.Equal(t, []float64{2, 6}, coarseSol.Nodes().Solution.Data)

	copy(coarseSol.Nodes().Solution.Data, []float64{2.5, 5.5})
	mgi.GetProlongatedCorrection(fineSol, coarseSol, mg.At(0), mg.At(1), sp)
	assert.Equal(t, []float64{0.5, -0.5}, coarseSol.Nodes().SolutionOld.Data)
	assert.Equal(t, []float64{0.5, 0.5, -0.5, -0.5}, fineSol.LinSysRes().Data)

	mgi.SetProlongatedCorrection(fineSol, mg.At(0), sp)
	for i, want := range []float64{1.375, 3.375, 4.625, 6.625} {
		assert.InDelta(t, want, fineSol.Nodes().Solution.Data[i], 1.e-14)
	}
}

// Full multigrid start-up moves the working level one step finer once the
// coarse solution has settled.
func TestFullMGStartupAdvancesFinestMesh(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(9, 9, [4]geometry.BCKind{
			geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal})
		h = NewHierarchy(geometry.NewMultigridGeometry(fine, 3, 1), sp)
	)
	sp.MGCycle = InputParameters.FullMGCycle
	h.AddHeat(sp)
	var (
		state = NewRunState(sp, h.Geom.NumLevels())
		mgi   = NewMultiGridIntegration(state)
		hs    = h.Solver(RuntimeHeatSys, 0).(*solver.HeatSolver)
	)
	require.Equal(t, h.Geom.NumLevels()-1, state.FinestMesh)
	for iMesh := 0; iMesh < h.Geom.NumLevels(); iMesh++ {
		hsl := h.Solver(RuntimeHeatSys, iMesh)
		for p := range hsl.Nodes().Solution.Data {
			hsl.Nodes().Solution.Data[p] = hs.WallTemp
		}
	}
	state.ConvergenceFullMG = true
	before := state.FinestMesh
	mgi.Iteration(h, sp, RuntimeHeatSys, 1)

	assert.Equal(t, before-1, state.FinestMesh)
	// The uniform state reconverges immediately on the finer level
	assert.True(t, state.ConvergenceFullMG)
}

// The synchronized time-accurate path must terminate with exactly the
// configured interval evolved.
func TestDGTimeSynchronization(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(5, 5, [4]geometry.BCKind{
			geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield})
		mg = geometry.NewMultigridGeometry(fine, 1, 1)
		h  = NewHierarchy(mg, sp)
	)
	ds := solver.NewDGFlowSolver(mg.At(0), sp)
	h.Solvers[RuntimeFlowSys] = []solver.Solver{ds}
	sp.TimeStep = 0.05
	sp.LocalTimeStepping = false

	dgi := NewFEMDGIntegration(NewRunState(sp, 1))
	dgi.Iteration(h, sp, RuntimeFlowSys, 0)

	for _, v := range ds.Nodes().Solution.Data {
		assert.False(t, math.IsNaN(v))
	}
}

// The Jacobian-only branch assembles without touching the solution.
func TestDGJacobianOnly(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(geometry.NewCartesianLevel(4, 4, [4]geometry.BCKind{
			geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}), 1, 1)
		h  = NewHierarchy(mg, sp)
		ds = solver.NewDGFlowSolver(mg.At(0), sp)
	)
	h.Solvers[RuntimeFlowSys] = []solver.Solver{ds}
	before := make([]float64, len(ds.Nodes().Solution.Data))
	copy(before, ds.Nodes().Solution.Data)

	dgi := NewFEMDGIntegration(NewRunState(sp, 1))
	dgi.JacobianOnly = true
	dgi.Iteration(h, sp, RuntimeFlowSys, 0)

	assert.NotNil(t, ds.SpatialJacobian)
	assert.Equal(t, before, ds.Nodes().Solution.Data)
}

/*
	stageOrderSolver records the order of the calls a smoothing sub-stage
	makes on its solver.
*/
type stageOrderSolver struct {
	solver.Solver
	calls *[]string
}

func (s *stageOrderSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	*s.calls = append(*s.calls, "Preprocessing")
	s.Solver.Preprocessing(ml, sp, iMesh, iRKStep, fullOutput)
}

func (s *stageOrderSolver) SetOldSolution() {
	*s.calls = append(*s.calls, "SetOldSolution")
	s.Solver.SetOldSolution()
}

func (s *stageOrderSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	*s.calls = append(*s.calls, "SetTimeStep")
	s.Solver.SetTimeStep(ml, sp, iMesh, timeIter)
}

// The boundary state goes in before the first sub-stage snapshots the
// solution and evaluates the time step, so both see the constrained state.
func TestSmoothingStageOrder(t *testing.T) {
	var (
		sp = testParams()
		h  = farfieldHierarchy(5, 1, 1, sp)
	)
	sp.MGPreSmooth = []int{1}
	sp.MGPostSmooth = []int{0}

	var calls []string
	h.Solvers[RuntimeFlowSys][0] = &stageOrderSolver{
		Solver: h.Solvers[RuntimeFlowSys][0],
		calls:  &calls,
	}
	mgi := NewMultiGridIntegration(NewRunState(sp, 1))
	mgi.Cycle(h, sp, RuntimeFlowSys, 0, sp.RecursiveParam(), 0)

	require.True(t, len(calls) >= 3)
	assert.Equal(t, []string{"Preprocessing", "SetOldSolution", "SetTimeStep"}, calls[:3])
}

// stagePostSolver counts postprocessing passes on the time-accurate path.
type stagePostSolver struct {
	*solver.DGFlowSolver
	posts int
}

func (s *stagePostSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	s.posts++
	s.DGFlowSolver.Postprocessing(ml, sp, iMesh)
}

// Every stage of a time-accurate advance ends with a postprocessing pass,
// on the free-running path as much as on the synchronized one.
func TestDGStagePostprocessing(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(geometry.NewCartesianLevel(5, 5, [4]geometry.BCKind{
			geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}), 1, 1)
		h  = NewHierarchy(mg, sp)
		ds = &stagePostSolver{DGFlowSolver: solver.NewDGFlowSolver(mg.At(0), sp)}
	)
	sp.TimeScheme = InputParameters.RungeKutta
	sp.TimeStep = 0
	h.Solvers[RuntimeFlowSys] = []solver.Solver{ds}

	dgi := NewFEMDGIntegration(NewRunState(sp, 1))
	dgi.Iteration(h, sp, RuntimeFlowSys, 0)

	assert.Equal(t, sp.RKLimit(), ds.posts)
}

// No-slip wall points carry zero net forcing on their constrained
// components, the coarse-residual contribution included.
func TestForcingWallZero(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(9, 9, [4]geometry.BCKind{
			geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield})
		h   = NewHierarchy(geometry.NewMultigridGeometry(fine, 2, 1), sp)
		mgi = NewMultiGridIntegration(NewRunState(sp, h.Geom.NumLevels()))
	)
	require.True(t, h.Geom.NumLevels() >= 2)
	var (
		fineSol   = h.Solver(RuntimeFlowSys, 0)
		coarseSol = h.Solver(RuntimeFlowSys, 1)
	)
	for i := range fineSol.LinSysRes().Data {
		fineSol.LinSysRes().Data[i] = 0.3 * float64(i%7)
	}
	for i := range coarseSol.LinSysRes().Data {
		coarseSol.LinSysRes().Data[i] = -0.2 * float64(i%5)
	}
	mgi.SetForcingTerm(fineSol, coarseSol, h.Geom.At(0), h.Geom.At(1), sp)

	noSlip := h.Geom.At(1).NoSlipPoints()
	require.NotEmpty(t, noSlip)
	for p := range noSlip {
		forcing := coarseSol.Nodes().ResTruncError.Block(p)
		assert.Equal(t, 0.0, forcing[1])
		assert.Equal(t, 0.0, forcing[2])
	}
}

// Single-grid push-down keeps coarse levels consistent with the advanced
// finest state, eddy viscosity included.
func TestSingleGridPushDown(t *testing.T) {
	var (
		sp   = testParams()
		fine = geometry.NewCartesianLevel(9, 9, [4]geometry.BCKind{
			geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield})
	)
	sp.Turbulent = true
	h := NewHierarchy(geometry.NewMultigridGeometry(fine, 2, 1), sp)
	require.True(t, h.Geom.NumLevels() >= 2)

	sgi := NewSingleGridIntegration(NewRunState(sp, h.Geom.NumLevels()))
	sgi.Iteration(h, sp, RuntimeTurbSys, 0)

	coarseTurb := h.Solver(RuntimeTurbSys, 1).(*solver.TurbSolver)
	for p := range h.Geom.At(1).NoSlipPoints() {
		assert.Equal(t, 0.0, coarseTurb.GetMuT(p))
	}
}
