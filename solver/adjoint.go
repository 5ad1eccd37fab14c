package solver

import (
	"math"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	AdjointSolver advances the continuous adjoint of the Euler equations on
	the frozen state of its companion flow solver. The adjoint characteristics
	run against the flow, so the edge flux advects with the reversed velocity;
	the dissipation scaling reuses the direct spectral radius.

	The no-slip wall rule differs from the direct problem: the adjoint
	velocity components are zeroed while the adjoint density and energy stay
	free. The same rule applies to restricted solutions, corrections and
	forcing terms during multigrid transfer.
*/
type AdjointSolver struct {
	*BaseSolver

	flow *FlowSolver

	// Surface sensitivity per point, no-slip markers only
	Sensitivity []float64
	TotalSens   float64
}

func NewAdjointSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, flow *FlowSolver) (as *AdjointSolver) {
	as = &AdjointSolver{
		BaseSolver:  newBaseSolver("AdjFlow", ml, NFlowVars),
		flow:        flow,
		Sensitivity: make([]float64, ml.NPoint),
	}
	// Lift-objective seed: unit adjoint energy
	for p := 0; p < ml.NPoint; p++ {
		as.nodes.Solution.Block(p)[3] = 1
	}
	as.SetOldSolution()
	return
}

func (as *AdjointSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	as.linSysRes.SetZero()
	for _, marker := range ml.Markers {
		switch {
		case marker.Kind == geometry.BCFarfield:
			for _, p := range marker.Points {
				as.nodes.Solution.SetBlockZero(p)
			}
		case marker.Kind.IsNoSlip():
			for _, p := range marker.Points {
				as.SetWallSolution(ml, sp, p)
			}
		}
	}
}

func (as *AdjointSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	var qAvg [NFlowVars]float64
	as.setTimeStepFromSpectralRadius(ml, sp, func(ie int) float64 {
		var (
			qi = as.flow.Nodes().Solution.Block(ml.Edges[ie][0])
			qj = as.flow.Nodes().Solution.Block(ml.Edges[ie][1])
		)
		for n := 0; n < NFlowVars; n++ {
			qAvg[n] = 0.5 * (qi[n] + qj[n])
		}
		return as.flow.edgeSpectralRadius(qAvg[:], ml.EdgeNormal[ie])
	})
}

func (as *AdjointSolver) AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	as.accumulateEdgeFluxes(ml, func(ie int, f []float64) {
		var (
			e      = ml.Edges[ie]
			n      = ml.EdgeNormal[ie]
			qi     = as.flow.Nodes().Solution.Block(e[0])
			qj     = as.flow.Nodes().Solution.Block(e[1])
			pi     = as.nodes.Solution.Block(e[0])
			pj     = as.nodes.Solution.Block(e[1])
			un     = -0.25 * ((qi[1]/qi[0]+qj[1]/qj[0])*n[0] + (qi[2]/qi[0]+qj[2]/qj[0])*n[1])
			lMax   float64
		)
		lMax = math.Max(as.flow.edgeSpectralRadius(qi, n), as.flow.edgeSpectralRadius(qj, n))
		for k := 0; k < NFlowVars; k++ {
			f[k] = 0.5*un*(pi[k]+pj[k]) - 0.5*lMax*(pj[k]-pi[k])
		}
	})
}

func (as *AdjointSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
}

func (as *AdjointSolver) SetWallSolution(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iPoint int) {
	b := as.nodes.Solution.Block(iPoint)
	b[1], b[2] = 0, 0
}

func (as *AdjointSolver) SetWallCorrectionZero(iPoint int) {
	b := as.nodes.SolutionOld.Block(iPoint)
	b[1], b[2] = 0, 0
}

func (as *AdjointSolver) SetWallForcingZero(iPoint int) {
	b := as.nodes.ResTruncError.Block(iPoint)
	b[1], b[2] = 0, 0
}

func (as *AdjointSolver) ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	implicitEulerUpdate(as.BaseSolver, ml, func(ie int) float64 {
		var (
			qi = as.flow.Nodes().Solution.Block(ml.Edges[ie][0])
			qj = as.flow.Nodes().Solution.Block(ml.Edges[ie][1])
			n  = ml.EdgeNormal[ie]
		)
		return 0.5 * (as.flow.edgeSpectralRadius(qi, n) + as.flow.edgeSpectralRadius(qj, n))
	})
	as.computeResidualRMS(ml)
}

/*
	Sensitivity monitors. The surface sensitivity at a wall point is the
	adjoint pressure weighted by the local boundary area; the total is its
	integral over all no-slip markers.
*/
func (as *AdjointSolver) InviscidSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	as.TotalSens = 0
	for p := range ml.NoSlipPoints() {
		var (
			nx, ny = as.flow.wallNormal(ml, p)
			area   = math.Hypot(nx, ny)
			psi    = as.nodes.Solution.Block(p)
		)
		as.Sensitivity[p] = psi[3] * area
		as.TotalSens += as.Sensitivity[p]
	}
}

func (as *AdjointSolver) ViscousSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	// Inviscid adjoint carries no viscous surface contribution
}

// SmoothSensitivity applies one Jacobi pass over each no-slip marker to
// remove point-to-point oscillation in the surface map.
func (as *AdjointSolver) SmoothSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	smoothed := make(map[int]float64)
	noSlip := ml.NoSlipPoints()
	for p := range noSlip {
		var (
			sum   = as.Sensitivity[p]
			count = 1
		)
		for _, nb := range ml.AdjPoints[p] {
			if noSlip[nb] {
				sum += as.Sensitivity[nb]
				count++
			}
		}
		smoothed[p] = sum / float64(count)
	}
	for p, s := range smoothed {
		as.Sensitivity[p] = s
	}
}
