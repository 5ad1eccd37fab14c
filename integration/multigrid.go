package integration

import (
	"math"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/solver"
)

/*
	MultiGridIntegration drives the Full Approximation Scheme over the
	agglomerated hierarchy. One Iteration runs one cycle from the current
	finest level, refreshes the monitors and, for full-multigrid start-up,
	moves the working level one step finer once the coarse solution has
	settled.

	The recursion multiplicity comes in as recursiveParam: 0 descends once
	per level (V shape), 1 descends twice (W shape). The level above the
	coarsest always passes 0 down, which caps the W branching at the bottom
	of the hierarchy.
*/
type MultiGridIntegration struct {
	*Integration
}

func NewMultiGridIntegration(state *RunState) *MultiGridIntegration {
	return &MultiGridIntegration{Integration: NewIntegration(state)}
}

func (mgi *MultiGridIntegration) Iteration(h *Hierarchy, sp *InputParameters.SolverParameters,
	sys EqSystem, timeIter int) {
	var (
		fullMG = sp.MGCycle == InputParameters.FullMGCycle
		direct = sys != RuntimeAdjFlowSys
	)
	if sys == RuntimeAdjFlowSys && timeIter == 0 {
		mgi.AdjointSetup(h, sp)
	}

	// Full multigrid start-up: once the current working level converged,
	// inject its solution one level finer and continue there
	if !sp.Restart && fullMG && direct &&
		mgi.State.ConvergenceFullMG && mgi.State.FinestMesh != 0 {
		finer := mgi.State.FinestMesh - 1
		mgi.SetProlongatedSolution(
			h.Solver(sys, finer), h.Solver(sys, mgi.State.FinestMesh),
			h.Geom.At(finer), h.Geom.At(mgi.State.FinestMesh), sp)
		mgi.State.FinestMesh = finer
		mgi.State.ConvergenceFullMG = false
		mgi.haveInit = false
	}

	recursiveParam := sp.RecursiveParam()
	mgi.Cycle(h, sp, sys, mgi.State.FinestMesh, recursiveParam, timeIter)

	// Monitor on the working level with the full boundary/gradient output
	var (
		iFinest = mgi.State.FinestMesh
		ml      = h.Geom.At(iFinest)
		sol     = h.Solver(sys, iFinest)
	)
	sol.Preprocessing(ml, sp, iFinest, 0, true)
	sol.AssembleResidual(ml, sp, iFinest)
	sol.Postprocessing(ml, sp, iFinest)

	if fullMG && iFinest != 0 {
		if sol.ResidualRMS()[0] < 100*sp.ConvergenceTol {
			mgi.State.ConvergenceFullMG = true
		}
	} else {
		mgi.ConvergenceMonitoring(sol, sp, timeIter)
	}
	mgi.NonDimensionalParameters(ml, sol, sp)
}

/*
	Cycle runs one FAS pass rooted at iMesh: presmoothing, forcing-term
	construction on the next coarser level, recursive descent, correction
	prolongation and postsmoothing. The forcing term makes the coarse
	problem reproduce the fine residual at the restricted state, so a
	converged fine solution produces a zero coarse correction.
*/
func (mgi *MultiGridIntegration) Cycle(h *Hierarchy, sp *InputParameters.SolverParameters,
	sys EqSystem, iMesh, recursiveParam, timeIter int) {
	var (
		fineMesh = h.Geom.At(iMesh)
		fineSol  = h.Solver(sys, iMesh)
	)
	mgi.smooth(fineMesh, fineSol, sp, iMesh, sp.PreSmooth(iMesh), timeIter)

	if iMesh >= h.Geom.NumLevels()-1 {
		return
	}
	var (
		coarseMesh = h.Geom.At(iMesh + 1)
		coarseSol  = h.Solver(sys, iMesh+1)
	)

	// Fine residual at the presmoothed state, forcing accumulator included
	fineSol.Preprocessing(fineMesh, sp, iMesh, 0, false)
	mgi.SpaceIntegration(fineMesh, fineSol, sp, iMesh)
	mgi.SetResidualTerm(fineSol, fineMesh)

	// Coarse residual at the restricted state
	mgi.SetRestrictedSolution(fineSol, coarseSol, fineMesh, coarseMesh, sp)
	coarseSol.Preprocessing(coarseMesh, sp, iMesh+1, 0, false)
	mgi.SpaceIntegration(coarseMesh, coarseSol, sp, iMesh+1)

	mgi.SetForcingTerm(fineSol, coarseSol, fineMesh, coarseMesh, sp)

	for imu := 0; imu <= recursiveParam; imu++ {
		nextParam := recursiveParam
		if iMesh == h.Geom.NumLevels()-3 {
			nextParam = 0
		}
		mgi.Cycle(h, sp, sys, iMesh+1, nextParam, timeIter)
	}

	mgi.GetProlongatedCorrection(fineSol, coarseSol, fineMesh, coarseMesh, sp)
	mgi.SmoothProlongatedCorrection(fineSol, fineMesh, sp.CorrecSmooth(iMesh), sp.SmoothCoeff)
	mgi.SetProlongatedCorrection(fineSol, fineMesh, sp)

	mgi.smooth(fineMesh, fineSol, sp, iMesh, sp.PostSmooth(iMesh), timeIter)
}

// smooth runs count smoothing passes, each with the sub-stages of the
// configured time scheme. Every sub-stage imposes the boundary state first;
// the first sub-stage of a pass then snapshots the constrained solution and
// refreshes the local time step before advancing.
func (mgi *MultiGridIntegration) smooth(ml *geometry.MeshLevel, sol solver.Solver,
	sp *InputParameters.SolverParameters, iMesh, count, timeIter int) {
	for iPass := 0; iPass < count; iPass++ {
		for iRK := 0; iRK < sp.RKLimit(); iRK++ {
			sol.Preprocessing(ml, sp, iMesh, iRK, false)
			if iRK == 0 {
				sol.SetOldSolution()
				if sp.TimeScheme == InputParameters.ClassicalRK4 {
					sol.SetNewSolution()
				}
				sol.SetTimeStep(ml, sp, iMesh, timeIter)
			}
			mgi.SpaceIntegration(ml, sol, sp, iMesh)
			mgi.TimeIntegration(ml, sol, sp, iRK)
			sol.Postprocessing(ml, sp, iMesh)
		}
	}
}

// SetResidualTerm folds the level's forcing accumulator into its spatial
// residual, so the restriction below sees P + F(u) rather than F(u) alone.
func (mgi *MultiGridIntegration) SetResidualTerm(sol solver.Solver, ml *geometry.MeshLevel) {
	for p := 0; p < ml.NPointDomain; p++ {
		sol.LinSysRes().AddBlock(p, sol.Nodes().ResTruncError.Block(p))
	}
}

/*
	SetRestrictedSolution restricts the fine solution to the coarse level by
	volume-weighted children sums, then overwrites no-slip wall points with
	the wall rule of the system so the coarse problem never smooths through
	a wall state.
*/
func (mgi *MultiGridIntegration) SetRestrictedSolution(fineSol, coarseSol solver.Solver,
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

// SetRestrictedGradient restricts the fine solution gradients with the same
// volume weighting.
func (mgi *MultiGridIntegration) SetRestrictedGradient(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel) {
	var (
		fineGrad   = fineSol.Nodes().Gradient
		coarseGrad = coarseSol.Nodes().Gradient
	)
	if fineGrad == nil || coarseGrad == nil {
		return
	}
	for coarsePoint, children := range coarseMesh.Children {
		var (
			block = coarseGrad.Block(coarsePoint)
			volC  = coarseMesh.Volume[coarsePoint]
		)
		for n := range block {
			block[n] = 0
		}
		for _, finePoint := range children {
			var (
				fb = fineGrad.Block(finePoint)
				w  = fineMesh.Volume[finePoint] / volC
			)
			for n := range block {
				block[n] += fb[n] * w
			}
		}
	}
}

/*
	SetForcingTerm builds the FAS forcing on the coarse level: the damped
	restriction of the fine residual minus the coarse residual at the
	restricted state. The result accumulates into ResTruncError, which every
	coarse time update adds to its spatial residual. No-slip wall points get
	their constrained components zeroed so the forcing cannot push a wall
	state off its boundary condition.
*/
func (mgi *MultiGridIntegration) SetForcingTerm(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		nVar    = coarseSol.NVar()
		forcing = coarseSol.Nodes().ResTruncError
		res     = make([]float64, nVar)
	)
	forcing.SetZero()
	for coarsePoint, children := range coarseMesh.Children {
		for n := 0; n < nVar; n++ {
			res[n] = 0
		}
		for _, finePoint := range children {
			fb := fineSol.LinSysRes().Block(finePoint)
			for n := 0; n < nVar; n++ {
				res[n] += sp.DampResRestric * fb[n]
			}
		}
		forcing.AddBlock(coarsePoint, res)
	}
	for p := 0; p < coarseMesh.NPointDomain; p++ {
		forcing.SubtractBlock(p, coarseSol.LinSysRes().Block(p))
	}
	// Wall rows end up fully zero, coarse-residual contribution included
	if wb, ok := coarseSol.(solver.WallBounded); ok {
		for p := range coarseMesh.NoSlipPoints() {
			wb.SetWallForcingZero(p)
		}
	}
}

/*
	GetProlongatedCorrection computes the coarse correction, the difference
	between the updated coarse solution and the restriction of the current
	fine solution, stores it in the coarse SolutionOld and scatters it into
	the fine LinSysRes for smoothing and application.
*/
func (mgi *MultiGridIntegration) GetProlongatedCorrection(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		nVar       = coarseSol.NVar()
		correction = make([]float64, nVar)
	)
	for coarsePoint, children := range coarseMesh.Children {
		var volC = coarseMesh.Volume[coarsePoint]
		for n := 0; n < nVar; n++ {
			correction[n] = 0
		}
		for _, finePoint := range children {
			var (
				fb = fineSol.Nodes().Solution.Block(finePoint)
				w  = fineMesh.Volume[finePoint] / volC
			)
			for n := 0; n < nVar; n++ {
				correction[n] -= fb[n] * w
			}
		}
		cb := coarseSol.Nodes().Solution.Block(coarsePoint)
		for n := 0; n < nVar; n++ {
			correction[n] += cb[n]
		}
		coarseSol.Nodes().SolutionOld.SetBlock(coarsePoint, correction)
	}
	if wb, ok := coarseSol.(solver.WallBounded); ok {
		for p := range coarseMesh.NoSlipPoints() {
			wb.SetWallCorrectionZero(p)
		}
	}
	coarseSol.InitiateComms(coarseMesh, sp, solver.CommSolutionOld)
	coarseSol.CompleteComms(coarseMesh, sp, solver.CommSolutionOld)

	for coarsePoint, children := range coarseMesh.Children {
		block := coarseSol.Nodes().SolutionOld.Block(coarsePoint)
		for _, finePoint := range children {
			fineSol.LinSysRes().SetBlock(finePoint, block)
		}
	}
}

/*
	SmoothProlongatedCorrection applies nSmooth implicit Jacobi passes to the
	injected correction sitting in the fine LinSysRes. Boundary points keep
	their unsmoothed values except on internal and periodic markers, whose
	points take part like interior ones.
*/
func (mgi *MultiGridIntegration) SmoothProlongatedCorrection(fineSol solver.Solver,
	fineMesh *geometry.MeshLevel, nSmooth int, smoothCoeff float64) {
	if nSmooth == 0 {
		return
	}
	var (
		nVar   = fineSol.NVar()
		res    = fineSol.LinSysRes()
		resSum = fineSol.Nodes().ResidualSum
		resOld = fineSol.Nodes().ResidualOld
		fixed  = fineMesh.SmoothingFixedPoints()
	)
	resOld.CopyFrom(res)
	for iSmooth := 0; iSmooth < nSmooth; iSmooth++ {
		resSum.SetZero()
		for _, e := range fineMesh.Edges {
			resSum.AddBlock(e[0], res.Block(e[1]))
			resSum.AddBlock(e[1], res.Block(e[0]))
		}
		for p := 0; p < fineMesh.NPointDomain; p++ {
			var (
				nNeigh = float64(fineMesh.NeighborCount(p))
				rb     = res.Block(p)
				sb     = resSum.Block(p)
				ob     = resOld.Block(p)
			)
			for n := 0; n < nVar; n++ {
				rb[n] = (ob[n] + smoothCoeff*sb[n]) / (1 + smoothCoeff*nNeigh)
			}
		}
		for p := range fixed {
			res.SetBlock(p, resOld.Block(p))
		}
	}
}

// SmoothSolution runs the same implicit smoother directly on the solution
// field, used to regularize a freshly prolongated full-multigrid state.
func (mgi *MultiGridIntegration) SmoothSolution(sol solver.Solver,
	ml *geometry.MeshLevel, nSmooth int, smoothCoeff float64) {
	if nSmooth == 0 {
		return
	}
	var (
		nVar  = sol.NVar()
		u     = sol.Nodes().Solution
		uSum  = sol.Nodes().ResidualSum
		uOld  = sol.Nodes().ResidualOld
		fixed = ml.SmoothingFixedPoints()
	)
	uOld.CopyFrom(u)
	for iSmooth := 0; iSmooth < nSmooth; iSmooth++ {
		uSum.SetZero()
		for _, e := range ml.Edges {
			uSum.AddBlock(e[0], u.Block(e[1]))
			uSum.AddBlock(e[1], u.Block(e[0]))
		}
		for p := 0; p < ml.NPointDomain; p++ {
			var (
				nNeigh = float64(ml.NeighborCount(p))
				ub     = u.Block(p)
				sb     = uSum.Block(p)
				ob     = uOld.Block(p)
			)
			for n := 0; n < nVar; n++ {
				ub[n] = (ob[n] + smoothCoeff*sb[n]) / (1 + smoothCoeff*nNeigh)
			}
		}
		for p := range fixed {
			u.SetBlock(p, uOld.Block(p))
		}
	}
}

/*
	SetProlongatedCorrection applies the smoothed correction to the fine
	solution with the prolongation damping factor. A non-finite component
	is dropped rather than propagated, so one bad coarse value cannot
	poison the fine level.
*/
func (mgi *MultiGridIntegration) SetProlongatedCorrection(fineSol solver.Solver,
	fineMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		nVar = fineSol.NVar()
		damp = sp.DampCorrecProlong
	)
	for p := 0; p < fineMesh.NPointDomain; p++ {
		var (
			u  = fineSol.Nodes().Solution.Block(p)
			rb = fineSol.LinSysRes().Block(p)
		)
		for n := 0; n < nVar; n++ {
			v := rb[n]
			if v != v || math.IsInf(v, 0) {
				v = 0
			}
			u[n] += damp * v
		}
	}
	fineSol.InitiateComms(fineMesh, sp, solver.CommSolution)
	fineSol.CompleteComms(fineMesh, sp, solver.CommSolution)
}

// SetProlongatedSolution injects the coarse solution into the fine level
// during full-multigrid start-up: every child takes its parent value.
func (mgi *MultiGridIntegration) SetProlongatedSolution(fineSol, coarseSol solver.Solver,
	fineMesh, coarseMesh *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	for coarsePoint, children := range coarseMesh.Children {
		block := coarseSol.Nodes().Solution.Block(coarsePoint)
		for _, finePoint := range children {
			fineSol.Nodes().Solution.SetBlock(finePoint, block)
		}
	}
	mgi.SmoothSolution(fineSol, fineMesh, 2, sp.SmoothCoeff)
	fineSol.InitiateComms(fineMesh, sp, solver.CommSolution)
	fineSol.CompleteComms(fineMesh, sp, solver.CommSolution)
}

/*
	AdjointSetup freezes the direct flow state on every coarse level before
	the first adjoint iteration: the flow solution and its gradients are
	restricted down the hierarchy so each adjoint level sees a consistent
	linearization point.
*/
func (mgi *MultiGridIntegration) AdjointSetup(h *Hierarchy, sp *InputParameters.SolverParameters) {
	for iMesh := 1; iMesh < h.Geom.NumLevels(); iMesh++ {
		var (
			fineSol    = h.Solver(RuntimeFlowSys, iMesh-1)
			coarseSol  = h.Solver(RuntimeFlowSys, iMesh)
			fineMesh   = h.Geom.At(iMesh - 1)
			coarseMesh = h.Geom.At(iMesh)
		)
		mgi.SetRestrictedSolution(fineSol, coarseSol, fineMesh, coarseMesh, sp)
		mgi.SetRestrictedGradient(fineSol, coarseSol, fineMesh, coarseMesh)
	}
}
