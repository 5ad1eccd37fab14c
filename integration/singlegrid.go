package integration

import (
	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/solver"
)

/*
	SingleGridIntegration advances one system on the finest level only and
	pushes its state down the hierarchy afterwards, so systems that do not
	multigrid (the turbulence transport in a coupled RANS run, the heat
	system) stay consistent with a flow field that does.
*/
type SingleGridIntegration struct {
	*Integration
}

func NewSingleGridIntegration(state *RunState) *SingleGridIntegration {
	return &SingleGridIntegration{Integration: NewIntegration(state)}
}

func (sgi *SingleGridIntegration) Iteration(h *Hierarchy, sp *InputParameters.SolverParameters,
	sys EqSystem, timeIter int) {
	var (
		ml  = h.Geom.At(0)
		sol = h.Solver(sys, 0)
	)
	for iRK := 0; iRK < sp.RKLimit(); iRK++ {
		sol.Preprocessing(ml, sp, 0, iRK, false)
		if iRK == 0 {
			sol.SetOldSolution()
			if sp.TimeScheme == InputParameters.ClassicalRK4 {
				sol.SetNewSolution()
			}
			sol.SetTimeStep(ml, sp, 0, timeIter)
		}
		sgi.SpaceIntegration(ml, sol, sp, 0)
		sgi.TimeIntegration(ml, sol, sp, iRK)
	}
	sol.Postprocessing(ml, sp, 0)

	sgi.ConvergenceMonitoring(sol, sp, timeIter)

	// Push the updated state down the hierarchy
	for iMesh := 1; iMesh < len(h.Solvers[sys]); iMesh++ {
		var (
			fineSol    = h.Solver(sys, iMesh-1)
			coarseSol  = h.Solver(sys, iMesh)
			fineMesh   = h.Geom.At(iMesh - 1)
			coarseMesh = h.Geom.At(iMesh)
		)
		sgi.SetRestrictedSolution(fineSol, coarseSol, fineMesh, coarseMesh, sp)
		if sys == RuntimeTurbSys {
			sgi.SetRestrictedEddyVisc(fineSol, coarseSol, fineMesh, coarseMesh, sp)
		}
	}

	if sys == RuntimeHeatSys {
		if hr, ok := sol.(solver.HeatReporter); ok {
			hr.HeatFluxes(ml, sp)
		}
	}
}

// SetRestrictedSolution mirrors the multigrid restriction for the push-down:
// volume-weighted children sums with the wall overwrite.
func (sgi *SingleGridIntegration) SetRestrictedSolution(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		nVar   = coarseSol.NVar()
		coarse = coarseSol.Nodes().Solution
	)
	for coarsePoint, children := range coarseMesh.Children {
		var (
			block = coarse.Block(coarsePoint)
			volC  = coarseMesh.Volume[coarsePoint]
		)
		for n := 0; n < nVar; n++ {
			block[n] = 0
		}
		for _, finePoint := range children {
			var (
				fb = fineSol.Nodes().Solution.Block(finePoint)
				w  = fineMesh.Volume[finePoint] / volC
			)
			for n := 0; n < nVar; n++ {
				block[n] += fb[n] * w
			}
		}
	}
	if wb, ok := coarseSol.(solver.WallBounded); ok {
		for p := range coarseMesh.NoSlipPoints() {
			wb.SetWallSolution(coarseMesh, sp, p)
		}
	}
	coarseSol.InitiateComms(coarseMesh, sp, solver.CommSolution)
	coarseSol.CompleteComms(coarseMesh, sp, solver.CommSolution)
}

// SetRestrictedEddyVisc restricts the eddy viscosity alongside the
// turbulence working variable and zeroes it on no-slip walls.
func (sgi *SingleGridIntegration) SetRestrictedEddyVisc(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	fineEV, okF := fineSol.(solver.EddyViscosityCarrier)
	coarseEV, okC := coarseSol.(solver.EddyViscosityCarrier)
	if !okF || !okC {
		return
	}
	for coarsePoint, children := range coarseMesh.Children {
		var (
			muT  float64
			volC = coarseMesh.Volume[coarsePoint]
		)
		for _, finePoint := range children {
			muT += fineEV.GetMuT(finePoint) * fineMesh.Volume[finePoint] / volC
		}
		coarseEV.SetMuT(coarsePoint, muT)
	}
	for p := range coarseMesh.NoSlipPoints() {
		coarseEV.SetMuT(p, 0)
	}
	coarseSol.InitiateComms(coarseMesh, sp, solver.CommSolutionEddy)
	coarseSol.CompleteComms(coarseMesh, sp, solver.CommSolutionEddy)
}

/*
	StructuralIntegration drives the structural system, which lives on the
	finest mesh only: residual assembly followed by the relaxation toward
	equilibrium, then convergence monitoring on the out-of-balance force.
*/
type StructuralIntegration struct {
	*Integration
}

func NewStructuralIntegration(state *RunState) *StructuralIntegration {
	return &StructuralIntegration{Integration: NewIntegration(state)}
}

func (sti *StructuralIntegration) Iteration(h *Hierarchy, sp *InputParameters.SolverParameters,
	timeIter int) {
	var (
		ml = h.Geom.At(0)
		ss = h.Solver(RuntimeFEASys, 0).(*solver.StructuralSolver)
	)
	ss.SpaceIntegrationFEM(ml, sp)
	ss.TimeIntegrationFEM(ml, sp)
	ss.Postprocessing(ml, sp, 0)
	sti.ConvergenceMonitoring(ss, sp, timeIter)
}
