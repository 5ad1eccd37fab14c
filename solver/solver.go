package solver

import (
	"math"
	"sync"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/utils"
)

// CommField selects which per-point field a halo exchange carries.
type CommField int

const (
	CommSolution CommField = iota
	CommSolutionOld
	CommSolutionEddy
)

/*
	Solver is the per-level, per-equation-set state container contract the
	integration core drives. Implementations own their state vectors; the
	core only sequences the calls and moves blocks between levels.
*/
type Solver interface {
	Name() string
	NVar() int
	Nodes() *NodeFields
	LinSysRes() *BlockVector

	Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh, iRKStep int, fullOutput bool)
	SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh, timeIter int)
	AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int)
	Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int)

	SetOldSolution()
	SetNewSolution()

	ExplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	ExplicitRKIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iRKStep int)
	ClassicalRK4Iteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iRKStep int)
	ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)

	InitiateComms(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, field CommField)
	CompleteComms(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, field CommField)

	ResidualRMS() []float64
	TimeStep() float64
}

// WallBounded is implemented by solvers whose restricted solution must be
// overwritten at no-slip markers during inter-grid transfer.
type WallBounded interface {
	SetWallSolution(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iPoint int)
	SetWallCorrectionZero(iPoint int)
	SetWallForcingZero(iPoint int)
}

// EddyViscosityCarrier is implemented by solvers that own an eddy-viscosity
// field restricted alongside the turbulence solution.
type EddyViscosityCarrier interface {
	GetMuT(iPoint int) float64
	SetMuT(iPoint int, muT float64)
}

// ForceReporter computes the aggregate non-dimensional force monitors after
// each cycle on the finest level.
type ForceReporter interface {
	PressureForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	MomentumForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	FrictionForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	BuffetMonitoring(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
}

// SensitivityReporter is the adjoint counterpart of ForceReporter.
type SensitivityReporter interface {
	InviscidSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	ViscousSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
	SmoothSensitivity(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
}

// HeatReporter computes aggregate heat fluxes for the heat equation system.
type HeatReporter interface {
	HeatFluxes(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters)
}

// DGCapable extends a solver with the entry points of the time-accurate DG
// integration path.
type DGCapable interface {
	ProcessTaskList(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int)
	ComputeSpatialJacobian(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int)
	ADERSpaceTimeIntegration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iMesh int)
	CheckTimeSynchronization(sp *InputParameters.SolverParameters, timeSync float64, timeEvolved *float64) (syncReached bool)
}

// BlockMsg carries one per-point block between goroutine shards.
type BlockMsg struct {
	Point int
	Vals  []float64
}

/*
	BaseSolver provides the storage, the sharded edge-loop assembly machinery
	and the explicit time updates shared by the concrete solvers. The edge
	loop applies contributions to points owned by the running shard directly
	and posts the rest through the MailBox, so no point is written by two
	goroutines.
*/
type BaseSolver struct {
	name  string
	nVar  int
	nodes *NodeFields

	linSysRes *BlockVector

	DT       []float64 // Local time step per point
	GlobalDT float64

	mail    *utils.MailBox[BlockMsg]
	edgePM  *utils.PartitionMap
	nShards int

	// Halo exchange: per shard, owned points adjacent to another shard
	haloSend [][]haloTarget

	resRMS []float64
}

type haloTarget struct {
	targetShard int
	point       int
}

func newBaseSolver(name string, ml *geometry.MeshLevel, nVar int) (bs *BaseSolver) {
	NP := ml.PartitionMap.ParallelDegree
	bs = &BaseSolver{
		name:      name,
		nVar:      nVar,
		nodes:     NewNodeFields(ml.NPoint, nVar, ml.NDim),
		linSysRes: NewBlockVector(ml.NPoint, nVar),
		DT:        make([]float64, ml.NPoint),
		mail:      utils.NewMailBox[BlockMsg](NP),
		edgePM:    utils.NewPartitionMap(NP, ml.NumEdges()),
		nShards:   NP,
		resRMS:    make([]float64, nVar),
	}
	bs.buildHaloLists(ml)
	return
}

func (bs *BaseSolver) Name() string          { return bs.name }
func (bs *BaseSolver) NVar() int             { return bs.nVar }
func (bs *BaseSolver) Nodes() *NodeFields    { return bs.nodes }
func (bs *BaseSolver) LinSysRes() *BlockVector { return bs.linSysRes }
func (bs *BaseSolver) ResidualRMS() []float64  { return bs.resRMS }
func (bs *BaseSolver) TimeStep() float64       { return bs.GlobalDT }

func (bs *BaseSolver) SetOldSolution() { bs.nodes.SolutionOld.CopyFrom(bs.nodes.Solution) }
func (bs *BaseSolver) SetNewSolution() { bs.nodes.SolutionNew.CopyFrom(bs.nodes.Solution) }

func (bs *BaseSolver) buildHaloLists(ml *geometry.MeshLevel) {
	var (
		pm = ml.PartitionMap
		NP = pm.ParallelDegree
	)
	bs.haloSend = make([][]haloTarget, NP)
	seen := make(map[[2]int]bool) // (ownerShard, point) -> targetShard visited via key triple
	for _, e := range ml.Edges {
		bi, _, _ := pm.GetBucket(e[0])
		bj, _, _ := pm.GetBucket(e[1])
		if bi == bj {
			continue
		}
		for _, pair := range [2][2]int{{e[0], bj}, {e[1], bi}} {
			point, tgt := pair[0], pair[1]
			owner, _, _ := pm.GetBucket(point)
			key := [2]int{point, tgt}
			if !seen[key] {
				seen[key] = true
				bs.haloSend[owner] = append(bs.haloSend[owner], haloTarget{targetShard: tgt, point: point})
			}
		}
	}
}

func (bs *BaseSolver) commField(field CommField) *BlockVector {
	switch field {
	case CommSolutionOld:
		return bs.nodes.SolutionOld
	case CommSolutionEddy:
		if bs.nodes.MuT != nil {
			return bs.nodes.MuT
		}
	}
	return bs.nodes.Solution
}

/*
	InitiateComms posts the shard-boundary blocks of the selected field to
	the shards that reference them; CompleteComms drains the queues and
	writes the blocks back. In the shared-memory build both sides address
	the same storage, so completion restores the exact owner values; the
	split initiate/complete pair keeps the call sites identical to a
	distributed halo exchange.
*/
func (bs *BaseSolver) InitiateComms(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, field CommField) {
	var (
		bv = bs.commField(field)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			for _, ht := range bs.haloSend[np] {
				vals := make([]float64, bv.NVar)
				copy(vals, bv.Block(ht.point))
				bs.mail.PostMessage(np, ht.targetShard, BlockMsg{Point: ht.point, Vals: vals})
			}
			bs.mail.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
}

func (bs *BaseSolver) CompleteComms(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, field CommField) {
	var (
		bv = bs.commField(field)
		wg = sync.WaitGroup{}
	)
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			bs.mail.ReceiveMyMessages(np)
			for _, msg := range bs.mail.ReceiveMsgQs[np].Cells() {
				bv.SetBlock(msg.Point, msg.Vals)
			}
			bs.mail.ClearMyMessages(np)
		}(np)
	}
	wg.Wait()
}

/*
	accumulateEdgeFluxes runs the sharded edge loop. computeFlux fills f with
	the nVar flux through edge iEdge oriented from Edges[iEdge][0] to [1];
	the loop adds it to the first endpoint's residual and subtracts it from
	the second. Cross-shard contributions ride the MailBox and land after
	the barrier.
*/
func (bs *BaseSolver) accumulateEdgeFluxes(ml *geometry.MeshLevel,
	computeFlux func(iEdge int, f []float64)) {
	var (
		pm = ml.PartitionMap
		wg = sync.WaitGroup{}
	)
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			var (
				f          = make([]float64, bs.nVar)
				eMin, eMax = bs.edgePM.GetBucketRange(np)
			)
			apply := func(iPoint int, sign float64) {
				owner, _, _ := pm.GetBucket(iPoint)
				if owner == np {
					b := bs.linSysRes.Block(iPoint)
					for n := 0; n < bs.nVar; n++ {
						b[n] += sign * f[n]
					}
					return
				}
				vals := make([]float64, bs.nVar)
				for n := 0; n < bs.nVar; n++ {
					vals[n] = sign * f[n]
				}
				bs.mail.PostMessage(np, owner, BlockMsg{Point: iPoint, Vals: vals})
			}
			for ie := eMin; ie < eMax; ie++ {
				computeFlux(ie, f)
				apply(ml.Edges[ie][0], 1)
				apply(ml.Edges[ie][1], -1)
			}
			bs.mail.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			bs.mail.ReceiveMyMessages(np)
			for _, msg := range bs.mail.ReceiveMsgQs[np].Cells() {
				bs.linSysRes.AddBlock(msg.Point, msg.Vals)
			}
			bs.mail.ClearMyMessages(np)
		}(np)
	}
	wg.Wait()
}

/*
	setTimeStepFromSpectralRadius computes the per-point local time step
	dt = CFL * Vol / Sum(lambda_edges) and the global minimum. When local
	time stepping is off, every point gets the global step. lambda returns
	the convective spectral radius of one edge, added to both endpoints.
*/
func (bs *BaseSolver) setTimeStepFromSpectralRadius(ml *geometry.MeshLevel,
	sp *InputParameters.SolverParameters, lambda func(iEdge int) float64) {
	var (
		pm      = ml.PartitionMap
		wg      = sync.WaitGroup{}
		lambdaP = make([]float64, ml.NPoint)
		minDT   = make([]float64, bs.nShards)
	)
	// Edge spectral radii accumulated through the MailBox, same ownership
	// discipline as the flux loop
	type lmsg = BlockMsg
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			eMin, eMax := bs.edgePM.GetBucketRange(np)
			for ie := eMin; ie < eMax; ie++ {
				l := lambda(ie)
				for _, iPoint := range ml.Edges[ie] {
					owner, _, _ := pm.GetBucket(iPoint)
					if owner == np {
						lambdaP[iPoint] += l
					} else {
						bs.mail.PostMessage(np, owner, lmsg{Point: iPoint, Vals: []float64{l}})
					}
				}
			}
			bs.mail.DeliverMyMessages(np)
		}(np)
	}
	wg.Wait()
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			bs.mail.ReceiveMyMessages(np)
			for _, msg := range bs.mail.ReceiveMsgQs[np].Cells() {
				lambdaP[msg.Point] += msg.Vals[0]
			}
			bs.mail.ClearMyMessages(np)

			min := math.MaxFloat64
			pMin, pMax := pm.GetBucketRange(np)
			for p := pMin; p < pMax; p++ {
				if lambdaP[p] <= 0 {
					lambdaP[p] = 1.e-30
				}
				bs.DT[p] = sp.CFL * ml.Volume[p] / lambdaP[p]
				if bs.DT[p] < min {
					min = bs.DT[p]
				}
			}
			minDT[np] = min
		}(np)
	}
	wg.Wait()
	// Collective reduction for the global step
	bs.GlobalDT = math.MaxFloat64
	for np := 0; np < bs.nShards; np++ {
		if minDT[np] < bs.GlobalDT {
			bs.GlobalDT = minDT[np]
		}
	}
	if !sp.LocalTimeStepping {
		for p := range bs.DT {
			bs.DT[p] = bs.GlobalDT
		}
	}
}

// effectiveResidual adds the FAS forcing accumulator into the spatial
// residual for the time update of point iPoint.
func (bs *BaseSolver) effectiveResidual(iPoint int, out []float64) {
	var (
		res   = bs.linSysRes.Block(iPoint)
		trunc = bs.nodes.ResTruncError.Block(iPoint)
	)
	for n := 0; n < bs.nVar; n++ {
		out[n] = res[n] + trunc[n]
	}
}

func (bs *BaseSolver) pointUpdate(ml *geometry.MeshLevel, update func(iPoint int)) {
	var (
		pm = ml.PartitionMap
		wg = sync.WaitGroup{}
	)
	for np := 0; np < bs.nShards; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			pMin, pMax := pm.GetBucketRange(np)
			for p := pMin; p < pMax; p++ {
				update(p)
			}
		}(np)
	}
	wg.Wait()
}

func (bs *BaseSolver) ExplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	bs.pointUpdate(ml, func(p int) {
		var (
			res  = make([]float64, bs.nVar)
			u    = bs.nodes.Solution.Block(p)
			uOld = bs.nodes.SolutionOld.Block(p)
			dtV  = bs.DT[p] / ml.Volume[p]
		)
		bs.effectiveResidual(p, res)
		for n := 0; n < bs.nVar; n++ {
			u[n] = uOld[n] - dtV*res[n]
		}
	})
	bs.computeResidualRMS(ml)
}

func (bs *BaseSolver) ExplicitRKIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iRKStep int) {
	alpha := sp.RKCoefficients[iRKStep]
	bs.pointUpdate(ml, func(p int) {
		var (
			res  = make([]float64, bs.nVar)
			u    = bs.nodes.Solution.Block(p)
			uOld = bs.nodes.SolutionOld.Block(p)
			dtV  = bs.DT[p] / ml.Volume[p]
		)
		bs.effectiveResidual(p, res)
		for n := 0; n < bs.nVar; n++ {
			u[n] = uOld[n] - alpha*dtV*res[n]
		}
	})
	if iRKStep == len(sp.RKCoefficients)-1 {
		bs.computeResidualRMS(ml)
	}
}

// Classical RK4: stage solutions evaluate from the old solution, the new
// solution accumulates the weighted stage residuals.
var rk4StageCoeff = [4]float64{0.5, 0.5, 1.0, 0}
var rk4AccumCoeff = [4]float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}

func (bs *BaseSolver) ClassicalRK4Iteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iRKStep int) {
	bs.pointUpdate(ml, func(p int) {
		var (
			res  = make([]float64, bs.nVar)
			u    = bs.nodes.Solution.Block(p)
			uOld = bs.nodes.SolutionOld.Block(p)
			uNew = bs.nodes.SolutionNew.Block(p)
			dtV  = bs.DT[p] / ml.Volume[p]
		)
		bs.effectiveResidual(p, res)
		for n := 0; n < bs.nVar; n++ {
			uNew[n] -= rk4AccumCoeff[iRKStep] * dtV * res[n]
			if iRKStep < 3 {
				u[n] = uOld[n] - rk4StageCoeff[iRKStep]*dtV*res[n]
			} else {
				u[n] = uNew[n]
			}
		}
	})
	if iRKStep == 3 {
		bs.computeResidualRMS(ml)
	}
}

func (bs *BaseSolver) computeResidualRMS(ml *geometry.MeshLevel) {
	for n := 0; n < bs.nVar; n++ {
		bs.resRMS[n] = 0
	}
	for p := 0; p < ml.NPointDomain; p++ {
		res := bs.linSysRes.Block(p)
		for n := 0; n < bs.nVar; n++ {
			bs.resRMS[n] += res[n] * res[n]
		}
	}
	for n := 0; n < bs.nVar; n++ {
		bs.resRMS[n] = math.Sqrt(bs.resRMS[n] / float64(ml.NPointDomain))
	}
}
