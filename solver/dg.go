package solver

import (
	"github.com/james-bowman/sparse"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	DGFlowSolver extends the flow solver with the entry points of the
	time-accurate integration path: task-list processing for one explicit
	stage, spatial Jacobian assembly for implicit runs, an ADER
	predictor-corrector step and the time-synchronization bookkeeping that
	clips the last step of a sync interval.
*/
type DGFlowSolver struct {
	*FlowSolver

	SpatialJacobian *sparse.CSR
}

func NewDGFlowSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) *DGFlowSolver {
	return &DGFlowSolver{FlowSolver: NewFlowSolver(ml, sp)}
}

// ProcessTaskList runs the task sequence of one explicit stage: boundary
// state, halo exchange, residual assembly.
func (ds *DGFlowSolver) ProcessTaskList(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int) {
	ds.Preprocessing(ml, sp, iMesh, 0, false)
	ds.InitiateComms(ml, sp, CommSolution)
	ds.CompleteComms(ml, sp, CommSolution)
	ds.AssembleResidual(ml, sp, iMesh)
}

// ComputeSpatialJacobian assembles and stores the first-order approximate
// Jacobian of the spatial residual without advancing the solution.
func (ds *DGFlowSolver) ComputeSpatialJacobian(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int) {
	nP := ml.NPoint
	dok := sparse.NewDOK(nP, nP)
	for ie, e := range ml.Edges {
		var (
			qi = ds.nodes.Solution.Block(e[0])
			qj = ds.nodes.Solution.Block(e[1])
			n  = ml.EdgeNormal[ie]
			l  = 0.25 * (ds.edgeSpectralRadius(qi, n) + ds.edgeSpectralRadius(qj, n))
		)
		dok.Set(e[0], e[1], dok.At(e[0], e[1])-l)
		dok.Set(e[1], e[0], dok.At(e[1], e[0])-l)
		dok.Set(e[0], e[0], dok.At(e[0], e[0])+l)
		dok.Set(e[1], e[1], dok.At(e[1], e[1])+l)
	}
	ds.SpatialJacobian = dok.ToCSR()
}

/*
	ADERSpaceTimeIntegration takes one predictor-corrector step: a half-step
	predictor evaluates the residual at the midpoint state, the corrector
	advances the full step from the old solution with the midpoint residual.
*/
func (ds *DGFlowSolver) ADERSpaceTimeIntegration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int) {
	ds.SetOldSolution()

	// Predictor to the half step
	ds.ProcessTaskList(ml, sp, iMesh)
	for p := 0; p < ml.NPoint; p++ {
		var (
			u    = ds.nodes.Solution.Block(p)
			uOld = ds.nodes.SolutionOld.Block(p)
			res  = ds.linSysRes.Block(p)
			dtV  = 0.5 * ds.DT[p] / ml.Volume[p]
		)
		for n := 0; n < NFlowVars; n++ {
			u[n] = uOld[n] - dtV*res[n]
		}
	}

	// Corrector with the midpoint residual
	ds.ProcessTaskList(ml, sp, iMesh)
	for p := 0; p < ml.NPoint; p++ {
		var (
			u    = ds.nodes.Solution.Block(p)
			uOld = ds.nodes.SolutionOld.Block(p)
			res  = ds.linSysRes.Block(p)
			dtV  = ds.DT[p] / ml.Volume[p]
		)
		for n := 0; n < NFlowVars; n++ {
			u[n] = uOld[n] - dtV*res[n]
		}
	}
	ds.computeResidualRMS(ml)
}

/*
	CheckTimeSynchronization clips the global step so the evolved time never
	overshoots the synchronization interval and reports whether this step
	reaches it. Local steps collapse to the clipped global step since a
	synchronized advance must be time accurate.
*/
func (ds *DGFlowSolver) CheckTimeSynchronization(sp *InputParameters.SolverParameters,
	timeSync float64, timeEvolved *float64) (syncReached bool) {
	remaining := timeSync - *timeEvolved
	if ds.GlobalDT >= remaining {
		ds.GlobalDT = remaining
		syncReached = true
	}
	for p := range ds.DT {
		ds.DT[p] = ds.GlobalDT
	}
	*timeEvolved += ds.GlobalDT
	return
}
