package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

func testParams() (sp *InputParameters.SolverParameters) {
	sp = &InputParameters.SolverParameters{
		Minf:  0.5,
		Alpha: 2.0,
	}
	sp.SetDefaults()
	return
}

func perturb(fs *FlowSolver, nPoint int) {
	for p := 0; p < nPoint; p++ {
		q := fs.Nodes().Solution.Block(p)
		s := 1 + 0.01*math.Sin(float64(3*p+1))
		for n := range q {
			q[n] *= s
		}
	}
}

// Interior edge fluxes are antisymmetric, so the residual summed over all
// points must vanish identically regardless of the state.
func TestResidualConservation(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(8, 8, [4]geometry.BCKind{
				geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}),
			1, 3)
		ml = mg.At(0)
		fs = NewFlowSolver(ml, sp)
	)
	perturb(fs, ml.NPoint)
	fs.AssembleResidual(ml, sp, 0)

	var sum [NFlowVars]float64
	for p := 0; p < ml.NPoint; p++ {
		res := fs.LinSysRes().Block(p)
		for n := 0; n < NFlowVars; n++ {
			sum[n] += res[n]
		}
	}
	for n := 0; n < NFlowVars; n++ {
		assert.InDelta(t, 0, sum[n], 1.e-10)
	}
}

// The sharded assembly must reproduce the serial result bit-for-bit up to
// floating point accumulation order.
func TestParallelAssemblyMatchesSerial(t *testing.T) {
	var (
		sp   = testParams()
		kind = [4]geometry.BCKind{
			geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}
		mg1 = geometry.NewMultigridGeometry(geometry.NewCartesianLevel(7, 7, kind), 1, 1)
		mg4 = geometry.NewMultigridGeometry(geometry.NewCartesianLevel(7, 7, kind), 1, 4)
		fs1 = NewFlowSolver(mg1.At(0), sp)
		fs4 = NewFlowSolver(mg4.At(0), sp)
	)
	perturb(fs1, mg1.At(0).NPoint)
	perturb(fs4, mg4.At(0).NPoint)
	fs1.AssembleResidual(mg1.At(0), sp, 0)
	fs4.AssembleResidual(mg4.At(0), sp, 0)

	for i, r := range fs1.LinSysRes().Data {
		assert.InDelta(t, r, fs4.LinSysRes().Data[i], 1.e-12)
	}
}

func TestExplicitEulerUpdate(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(geometry.NewChainLevel(4), 1, 1)
		ml = mg.At(0)
		fs = NewFlowSolver(ml, sp)
	)
	fs.SetOldSolution()
	for p := 0; p < ml.NPoint; p++ {
		fs.DT[p] = 0.1
		fs.LinSysRes().SetBlock(p, []float64{1, 2, 3, 4})
		fs.Nodes().ResTruncError.SetBlock(p, []float64{0.5, 0, 0, -0.5})
	}
	fs.ExplicitEulerIteration(ml, sp)

	// u = uOld - (dt/vol) * (R + forcing), vol = 1
	uOld := fs.Nodes().SolutionOld.Block(0)
	u := fs.Nodes().Solution.Block(0)
	assert.InDelta(t, uOld[0]-0.1*1.5, u[0], 1.e-14)
	assert.InDelta(t, uOld[1]-0.1*2.0, u[1], 1.e-14)
	assert.InDelta(t, uOld[3]-0.1*3.5, u[3], 1.e-14)
}

func TestNoSlipWallOverwrite(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(5, 5, [4]geometry.BCKind{
				geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}),
			1, 1)
		ml = mg.At(0)
		fs = NewFlowSolver(ml, sp)
	)
	fs.SetWallSolution(ml, sp, 0)
	q := fs.Nodes().Solution.Block(0)
	assert.Equal(t, 0.0, q[1])
	assert.Equal(t, 0.0, q[2])
	assert.True(t, q[0] > 0)

	// Moving grid pins momentum to rho * gridVel
	ml.GridVel = make([][2]float64, ml.NPoint)
	ml.GridVel[0] = [2]float64{2, 3}
	sp.GridMovement = true
	fs.SetWallSolution(ml, sp, 0)
	q = fs.Nodes().Solution.Block(0)
	assert.InDelta(t, 2*q[0], q[1], 1.e-14)
	assert.InDelta(t, 3*q[0], q[2], 1.e-14)
}

// A uniform temperature field at the wall temperature is a steady state of
// the conduction operator.
func TestHeatUniformSteady(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(6, 6, [4]geometry.BCKind{
				geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal}),
			1, 2)
		ml = mg.At(0)
		hs = NewHeatSolver(ml, sp)
	)
	for p := 0; p < ml.NPoint; p++ {
		hs.Nodes().Solution.Data[p] = hs.WallTemp
	}
	hs.Preprocessing(ml, sp, 0, 0, false)
	hs.AssembleResidual(ml, sp, 0)
	for p := 0; p < ml.NPoint; p++ {
		assert.InDelta(t, 0, hs.LinSysRes().Data[p], 1.e-12)
	}
}

// The eddy viscosity must vanish at the wall and be mirrored into the
// companion flow solver.
func TestTurbEddyViscosityCoupling(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(5, 5, [4]geometry.BCKind{
				geometry.BCWall, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}),
			1, 1)
		ml = mg.At(0)
	)
	sp.Turbulent = true
	fs := NewFlowSolver(ml, sp)
	ts := NewTurbSolver(ml, sp, fs)

	ts.Preprocessing(ml, sp, 0, 0, false)
	ts.Postprocessing(ml, sp, 0)

	for p := range ml.NoSlipPoints() {
		assert.Equal(t, 0.0, ts.GetMuT(p))
	}
	interiorMuT := false
	for p := 0; p < ml.NPoint; p++ {
		assert.Equal(t, ts.GetMuT(p), fs.GetMuT(p))
		if ts.GetMuT(p) > 0 {
			interiorMuT = true
		}
	}
	assert.True(t, interiorMuT)
}

// Implicit relaxation of the conduction system must pull an interior
// perturbation toward the boundary temperature.
func TestHeatImplicitRelaxation(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(6, 6, [4]geometry.BCKind{
				geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal, geometry.BCIsothermal}),
			1, 1)
		ml = mg.At(0)
		hs = NewHeatSolver(ml, sp)
	)
	for p := 0; p < ml.NPoint; p++ {
		hs.Nodes().Solution.Data[p] = hs.WallTemp
	}
	const hot = 14 // interior point on the 6x6 grid
	hs.Nodes().Solution.Data[hot] = hs.WallTemp + 1

	before := hs.Nodes().Solution.Data[hot]
	hs.Preprocessing(ml, sp, 0, 0, false)
	hs.SetTimeStep(ml, sp, 0, 0)
	hs.AssembleResidual(ml, sp, 0)
	hs.SetOldSolution()
	hs.ImplicitEulerIteration(ml, sp)
	after := hs.Nodes().Solution.Data[hot]

	assert.Less(t, after, before)
	assert.Greater(t, after, hs.WallTemp-1.e-12)
}

/*
	Directional stiffness on a unit square with a center point: the four
	diagonal edges sit at 45 degrees, so their axial blocks couple the
	displacement components, while the axis-aligned boundary edges do not.
	With E = 1 each diagonal spring has k = sqrt(2) and block entries k/2.
*/
func TestStructuralStiffnessCoupling(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(geometry.NewDelaunayLevel([][2]float64{
			{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0.5, 0.5},
		}), 1, 1)
		ss   = NewStructuralSolver(mg.At(0), sp)
		half = math.Sqrt2 / 2
	)
	// Center-corner coupling through the 45-degree edge
	assert.InDelta(t, -half, ss.kxy.At(0, 4), 1.e-14)
	assert.InDelta(t, -half, ss.kxy.At(4, 0), 1.e-14)
	// Axis-aligned boundary edge carries no cross coupling
	assert.InDelta(t, 0, ss.kxy.At(0, 1), 1.e-14)
	// Center diagonal accumulates all four springs
	assert.InDelta(t, 2*math.Sqrt2, ss.kxx.At(4, 4), 1.e-14)
	assert.InDelta(t, 2*math.Sqrt2, ss.kyy.At(4, 4), 1.e-14)
}

func TestStructuralClampAndSag(t *testing.T) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(5, 5, [4]geometry.BCKind{
				geometry.BCDirichlet, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}),
			1, 1)
		ml = mg.At(0)
		ss = NewStructuralSolver(ml, sp)
	)
	for i := 0; i < 20; i++ {
		ss.TimeIntegrationFEM(ml, sp)
	}
	// Clamped points stay put, the far edge sags under the downward load
	for _, p := range ml.Markers[0].Points {
		u := ss.Nodes().Solution.Block(p)
		assert.Equal(t, 0.0, u[0])
		assert.Equal(t, 0.0, u[1])
	}
	topCenter := ml.Markers[2].Points[2]
	assert.Less(t, ss.Nodes().Solution.Block(topCenter)[1], 0.0)
}
