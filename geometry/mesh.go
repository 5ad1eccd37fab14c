package geometry

import (
	"fmt"

	"github.com/cfdworks/mgsolve/utils"
)

// Marker is a tagged subset of points on a mesh level boundary.
type Marker struct {
	Name   string
	Kind   BCKind
	Points []int
}

/*
	MeshLevel is one resolution of the discretized domain: a vertex-centered
	finite-volume dual mesh. Level 0 is the finest. Levels above 0 are built
	by agglomeration and carry, per point, the list of children points on the
	next finer level. A MeshLevel is immutable once built; the integration
	core only reads from it.
*/
type MeshLevel struct {
	Level        int
	NDim         int
	NPoint       int // Total points on this level
	NPointDomain int // Owned points (== NPoint in the shared-memory build)

	Coord   [][2]float64
	Volume  []float64    // Dual control-volume measure per point
	GridVel [][2]float64 // Non-nil only for moving-grid cases

	Edges      [][2]int     // Unique point pairs
	EdgeNormal [][2]float64 // Area-scaled dual-face normal per edge

	AdjPoints [][]int // Point to neighbor points, derived from Edges

	Markers []Marker

	// Children maps each point of this level to its children on level-1.
	// Nil on the finest level. Every fine point appears in exactly one
	// children set.
	Children [][]int

	// PartitionMap shards the point range for the parallel loops.
	PartitionMap *utils.PartitionMap
}

func (ml *MeshLevel) NumEdges() int { return len(ml.Edges) }

func (ml *MeshLevel) NeighborCount(iPoint int) int { return len(ml.AdjPoints[iPoint]) }

// NoSlipPoints returns the set of points lying under a no-slip marker.
func (ml *MeshLevel) NoSlipPoints() (points map[int]bool) {
	points = make(map[int]bool)
	for _, marker := range ml.Markers {
		if !marker.Kind.IsNoSlip() {
			continue
		}
		for _, p := range marker.Points {
			points[p] = true
		}
	}
	return
}

// SmoothingFixedPoints returns every boundary point whose marker kind is
// excluded from the correction smoother.
func (ml *MeshLevel) SmoothingFixedPoints() (points map[int]bool) {
	points = make(map[int]bool)
	for _, marker := range ml.Markers {
		if !marker.Kind.ExcludedFromSmoothing() {
			continue
		}
		for _, p := range marker.Points {
			points[p] = true
		}
	}
	return
}

// buildAdjacency fills AdjPoints from the edge list.
func (ml *MeshLevel) buildAdjacency() {
	ml.AdjPoints = make([][]int, ml.NPoint)
	for _, e := range ml.Edges {
		ml.AdjPoints[e[0]] = append(ml.AdjPoints[e[0]], e[1])
		ml.AdjPoints[e[1]] = append(ml.AdjPoints[e[1]], e[0])
	}
}

func (ml *MeshLevel) setPartitions(nParallel int) {
	if nParallel > ml.NPoint {
		nParallel = 1
	}
	ml.PartitionMap = utils.NewPartitionMap(nParallel, ml.NPoint)
}

/*
	MultigridGeometry is the ordered mesh hierarchy, finest level first. It
	owns the parent/children maps between adjacent levels and hands out
	read-only queries to the integration core.
*/
type MultigridGeometry struct {
	Levels    []*MeshLevel
	NParallel int
}

func (mg *MultigridGeometry) NumLevels() int { return len(mg.Levels) }

func (mg *MultigridGeometry) At(iMesh int) *MeshLevel {
	if iMesh < 0 || iMesh >= len(mg.Levels) {
		panic(fmt.Sprintf("mesh level %d out of range [0,%d)", iMesh, len(mg.Levels)))
	}
	return mg.Levels[iMesh]
}

/*
	NewMultigridGeometry agglomerates the fine mesh into nLevels total levels
	(or fewer when a level gets too small to coarsen further) and shards every
	level for nParallel goroutines.
*/
func NewMultigridGeometry(fine *MeshLevel, nLevels, nParallel int) (mg *MultigridGeometry) {
	if nParallel < 1 {
		nParallel = 1
	}
	fine.Level = 0
	fine.buildAdjacency()
	fine.setPartitions(nParallel)
	mg = &MultigridGeometry{
		Levels:    []*MeshLevel{fine},
		NParallel: nParallel,
	}
	for iMesh := 1; iMesh < nLevels; iMesh++ {
		coarse := Agglomerate(mg.Levels[iMesh-1])
		if coarse.NPoint < 2 || coarse.NPoint == mg.Levels[iMesh-1].NPoint {
			break
		}
		coarse.Level = iMesh
		coarse.buildAdjacency()
		coarse.setPartitions(nParallel)
		mg.Levels = append(mg.Levels, coarse)
	}
	return
}
