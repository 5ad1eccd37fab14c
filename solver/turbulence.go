package solver

import (
	"math"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	TurbSolver transports a single Spalart-Allmaras style working variable
	nuTilde on the frozen velocity field of its companion flow solver. The
	eddy viscosity is recovered in Postprocessing through the fv1 damping
	function and mirrored into the flow solver so the coupled system sees
	one consistent muT field.
*/
type TurbSolver struct {
	*BaseSolver

	flow *FlowSolver

	NuLaminar float64
}

const (
	saCb1 = 0.1355
	saCw1 = 3.239
	saCv1 = 7.1
)

func NewTurbSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, flow *FlowSolver) (ts *TurbSolver) {
	ts = &TurbSolver{
		BaseSolver: newBaseSolver("Turb", ml, 1),
		flow:       flow,
		NuLaminar:  1.e-3,
	}
	ts.nodes.MuT = NewBlockVector(ml.NPoint, 1)
	// Freestream nuTilde at three times the laminar viscosity
	for p := 0; p < ml.NPoint; p++ {
		ts.nodes.Solution.Data[p] = 3 * ts.NuLaminar
	}
	ts.SetOldSolution()
	return
}

func (ts *TurbSolver) velocity(iPoint int) (u, v float64) {
	q := ts.flow.Nodes().Solution.Block(iPoint)
	return q[1] / q[0], q[2] / q[0]
}

func (ts *TurbSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	ts.linSysRes.SetZero()
	for _, marker := range ml.Markers {
		switch {
		case marker.Kind == geometry.BCFarfield || marker.Kind == geometry.BCInflow:
			for _, p := range marker.Points {
				ts.nodes.Solution.Data[p] = 3 * ts.NuLaminar
			}
		case marker.Kind.IsNoSlip():
			for _, p := range marker.Points {
				ts.nodes.Solution.Data[p] = 0
			}
		}
	}
}

func (ts *TurbSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	ts.setTimeStepFromSpectralRadius(ml, sp, func(ie int) float64 {
		var (
			e      = ml.Edges[ie]
			n      = ml.EdgeNormal[ie]
			ui, vi = ts.velocity(e[0])
			uj, vj = ts.velocity(e[1])
		)
		return math.Abs(0.5 * ((ui+uj)*n[0] + (vi+vj)*n[1]))
	})
}

func (ts *TurbSolver) AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	// Upwinded scalar advection along the frozen velocity field
	ts.accumulateEdgeFluxes(ml, func(ie int, f []float64) {
		var (
			e      = ml.Edges[ie]
			n      = ml.EdgeNormal[ie]
			ui, vi = ts.velocity(e[0])
			uj, vj = ts.velocity(e[1])
			un     = 0.5 * ((ui+uj)*n[0] + (vi+vj)*n[1])
		)
		if un >= 0 {
			f[0] = un * ts.nodes.Solution.Data[e[0]]
		} else {
			f[0] = un * ts.nodes.Solution.Data[e[1]]
		}
	})
	// Production and destruction source terms, volume-scaled
	for p := 0; p < ml.NPoint; p++ {
		var (
			nu   = ts.nodes.Solution.Data[p]
			u, v = ts.velocity(p)
			s    = math.Hypot(u, v) // strain surrogate on the dual mesh
		)
		ts.linSysRes.Data[p] -= ml.Volume[p] * (saCb1*s*nu - saCw1*nu*nu)
	}
}

func (ts *TurbSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	for p := 0; p < ml.NPoint; p++ {
		nu := ts.nodes.Solution.Data[p]
		if nu < 0 {
			nu = 0
			ts.nodes.Solution.Data[p] = 0
		}
		var (
			chi  = nu / ts.NuLaminar
			chi3 = chi * chi * chi
			fv1  = chi3 / (chi3 + saCv1*saCv1*saCv1)
			rho  = ts.flow.Nodes().Solution.Block(p)[0]
			muT  = rho * nu * fv1
		)
		ts.nodes.MuT.Data[p] = muT
		ts.flow.SetMuT(p, muT)
	}
}

func (ts *TurbSolver) SetWallSolution(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iPoint int) {
	ts.nodes.Solution.Data[iPoint] = 0
}

func (ts *TurbSolver) SetWallCorrectionZero(iPoint int) { ts.nodes.SolutionOld.Data[iPoint] = 0 }
func (ts *TurbSolver) SetWallForcingZero(iPoint int)    { ts.nodes.ResTruncError.Data[iPoint] = 0 }

func (ts *TurbSolver) GetMuT(iPoint int) float64 { return ts.nodes.MuT.Data[iPoint] }
func (ts *TurbSolver) SetMuT(iPoint int, muT float64) { ts.nodes.MuT.Data[iPoint] = muT }

func (ts *TurbSolver) ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	implicitEulerUpdate(ts.BaseSolver, ml, func(ie int) float64 {
		var (
			e      = ml.Edges[ie]
			n      = ml.EdgeNormal[ie]
			ui, vi = ts.velocity(e[0])
			uj, vj = ts.velocity(e[1])
		)
		return math.Abs(0.5 * ((ui+uj)*n[0] + (vi+vj)*n[1]))
	})
	ts.computeResidualRMS(ml)
}
