package solver

import "fmt"

/*
	BlockVector is flat per-point block storage: NVar contiguous values per
	mesh point. It backs the solution, residual and accumulator fields of
	every solver. Block returns a live subslice, so callers mutate storage in
	place; Set/Add/Subtract enforce the block-size invariant and abort on a
	mismatch since that is a programming error, never a runtime condition.
*/
type BlockVector struct {
	NVar int
	Data []float64
}

func NewBlockVector(nPoint, nVar int) *BlockVector {
	return &BlockVector{
		NVar: nVar,
		Data: make([]float64, nPoint*nVar),
	}
}

func (bv *BlockVector) NPoint() int { return len(bv.Data) / bv.NVar }

func (bv *BlockVector) Block(iPoint int) []float64 {
	return bv.Data[iPoint*bv.NVar : (iPoint+1)*bv.NVar]
}

func (bv *BlockVector) checkSize(op string, vals []float64) {
	if len(vals) != bv.NVar {
		panic(fmt.Sprintf("%s: block size %d does not match nVar %d", op, len(vals), bv.NVar))
	}
}

func (bv *BlockVector) SetBlock(iPoint int, vals []float64) {
	bv.checkSize("SetBlock", vals)
	copy(bv.Block(iPoint), vals)
}

func (bv *BlockVector) AddBlock(iPoint int, vals []float64) {
	bv.checkSize("AddBlock", vals)
	b := bv.Block(iPoint)
	for n := range b {
		b[n] += vals[n]
	}
}

func (bv *BlockVector) SubtractBlock(iPoint int, vals []float64) {
	bv.checkSize("SubtractBlock", vals)
	b := bv.Block(iPoint)
	for n := range b {
		b[n] -= vals[n]
	}
}

func (bv *BlockVector) SetBlockZero(iPoint int) {
	b := bv.Block(iPoint)
	for n := range b {
		b[n] = 0
	}
}

func (bv *BlockVector) SetZero() {
	for i := range bv.Data {
		bv.Data[i] = 0
	}
}

func (bv *BlockVector) CopyFrom(src *BlockVector) {
	if len(src.Data) != len(bv.Data) {
		panic(fmt.Sprintf("CopyFrom: size %d does not match %d", len(src.Data), len(bv.Data)))
	}
	copy(bv.Data, src.Data)
}

/*
	NodeFields bundles the per-point fields a solver exposes to the
	integration core. SolutionOld doubles as the multigrid correction store
	on coarse levels (a correction-delta, not a physical state), and
	ResTruncError is the FAS forcing accumulator: it persists across the
	smoothing sub-stages of one cycle invocation and is zeroed once per new
	cycle entry for the level.
*/
type NodeFields struct {
	NVar int

	Solution    *BlockVector
	SolutionOld *BlockVector
	SolutionNew *BlockVector // Classical RK4 accumulator

	ResTruncError *BlockVector // FAS forcing term P_k
	ResidualSum   *BlockVector // Jacobi smoother neighbor accumulator
	ResidualOld   *BlockVector // Jacobi smoother snapshot

	Gradient *BlockVector // nVar x nDim Green-Gauss gradients, optional
	MuT      *BlockVector // Eddy viscosity, allocated only for turbulent runs
}

func NewNodeFields(nPoint, nVar, nDim int) (nf *NodeFields) {
	nf = &NodeFields{
		NVar:          nVar,
		Solution:      NewBlockVector(nPoint, nVar),
		SolutionOld:   NewBlockVector(nPoint, nVar),
		SolutionNew:   NewBlockVector(nPoint, nVar),
		ResTruncError: NewBlockVector(nPoint, nVar),
		ResidualSum:   NewBlockVector(nPoint, nVar),
		ResidualOld:   NewBlockVector(nPoint, nVar),
	}
	if nDim > 0 {
		nf.Gradient = NewBlockVector(nPoint, nVar*nDim)
	}
	return
}
