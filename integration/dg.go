package integration

import (
	"fmt"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/solver"
)

/*
	FEMDGIntegration drives the time-accurate path on the finest level. A
	configured synchronization step makes each Iteration march sub-steps
	until exactly that much physical time has evolved, clipping the last
	sub-step; without one, a single stage sequence runs per Iteration.

	JacobianOnly short-circuits the advance entirely and just assembles the
	spatial Jacobian, which external linearization tooling consumes.
*/
type FEMDGIntegration struct {
	*Integration

	JacobianOnly bool
}

func NewFEMDGIntegration(state *RunState) *FEMDGIntegration {
	return &FEMDGIntegration{Integration: NewIntegration(state)}
}

func (dgi *FEMDGIntegration) Iteration(h *Hierarchy, sp *InputParameters.SolverParameters,
	sys EqSystem, timeIter int) {
	var (
		ml  = h.Geom.At(0)
		sol = h.Solver(sys, 0)
	)
	dg, ok := sol.(solver.DGCapable)
	if !ok {
		panic(fmt.Sprintf("system %v does not support the time-accurate path", sys))
	}

	if dgi.JacobianOnly {
		dg.ComputeSpatialJacobian(ml, sp, 0)
		return
	}

	timeSyncSpecified := sp.TimeStep > 0
	if !timeSyncSpecified {
		sol.SetTimeStep(ml, sp, 0, timeIter)
		dgi.advance(h, sp, sys, dg, timeIter)
		dgi.ConvergenceMonitoring(sol, sp, timeIter)
		return
	}

	var timeEvolved float64
	for {
		sol.SetTimeStep(ml, sp, 0, timeIter)
		syncReached := dg.CheckTimeSynchronization(sp, sp.TimeStep, &timeEvolved)
		dgi.advance(h, sp, sys, dg, timeIter)
		if syncReached {
			break
		}
	}
	dgi.ConvergenceMonitoring(sol, sp, timeIter)
}

// advance runs one time step: the ADER predictor-corrector under the ADER
// scheme, otherwise the configured stage sequence through the task list.
// Every stage ends with the solver's postprocessing pass.
func (dgi *FEMDGIntegration) advance(h *Hierarchy, sp *InputParameters.SolverParameters,
	sys EqSystem, dg solver.DGCapable, timeIter int) {
	var (
		ml  = h.Geom.At(0)
		sol = h.Solver(sys, 0)
	)
	if sp.TimeScheme == InputParameters.ADERDG {
		dg.ADERSpaceTimeIntegration(ml, sp, 0)
		sol.Postprocessing(ml, sp, 0)
		return
	}
	sol.SetOldSolution()
	if sp.TimeScheme == InputParameters.ClassicalRK4 {
		sol.SetNewSolution()
	}
	for iRK := 0; iRK < sp.RKLimit(); iRK++ {
		dg.ProcessTaskList(ml, sp, 0)
		dgi.TimeIntegration(ml, sol, sp, iRK)
		sol.Postprocessing(ml, sp, 0)
	}
}
