package geometry

import (
	"github.com/pradeep-pyro/triangle"
)

/*
	Mesh generators used by tests and the examples. These produce fully
	formed fine MeshLevels ready for NewMultigridGeometry.
*/

// NewChainLevel builds a 1D chain of nPoint unit-volume points embedded in
// 2D. Agglomeration of a chain pairs neighbors 2:1, which makes it the
// reference case for the transfer-operator arithmetic.
func NewChainLevel(nPoint int) (ml *MeshLevel) {
	ml = &MeshLevel{
		NDim:         2,
		NPoint:       nPoint,
		NPointDomain: nPoint,
		Coord:        make([][2]float64, nPoint),
		Volume:       make([]float64, nPoint),
	}
	for i := 0; i < nPoint; i++ {
		ml.Coord[i] = [2]float64{float64(i), 0}
		ml.Volume[i] = 1.0
	}
	for i := 0; i < nPoint-1; i++ {
		ml.Edges = append(ml.Edges, [2]int{i, i + 1})
		ml.EdgeNormal = append(ml.EdgeNormal, [2]float64{1, 0})
	}
	return
}

// NewCartesianLevel builds an nx x ny unit-square grid with dual volumes and
// face normals. sideKinds tags the four boundaries in the order bottom,
// right, top, left.
func NewCartesianLevel(nx, ny int, sideKinds [4]BCKind) (ml *MeshLevel) {
	var (
		nPoint = nx * ny
		dx     = 1.0 / float64(nx-1)
		dy     = 1.0 / float64(ny-1)
	)
	ml = &MeshLevel{
		NDim:         2,
		NPoint:       nPoint,
		NPointDomain: nPoint,
		Coord:        make([][2]float64, nPoint),
		Volume:       make([]float64, nPoint),
	}
	id := func(i, j int) int { return i + j*nx }
	frac := func(i, n int) float64 {
		if i == 0 || i == n-1 {
			return 0.5
		}
		return 1.0
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			p := id(i, j)
			ml.Coord[p] = [2]float64{float64(i) * dx, float64(j) * dy}
			ml.Volume[p] = dx * dy * frac(i, nx) * frac(j, ny)
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if i < nx-1 {
				ml.Edges = append(ml.Edges, [2]int{id(i, j), id(i + 1, j)})
				ml.EdgeNormal = append(ml.EdgeNormal, [2]float64{dy * frac(j, ny), 0})
			}
			if j < ny-1 {
				ml.Edges = append(ml.Edges, [2]int{id(i, j), id(i, j + 1)})
				ml.EdgeNormal = append(ml.EdgeNormal, [2]float64{0, dx * frac(i, nx)})
			}
		}
	}
	side := func(name string, kind BCKind, points []int) Marker {
		return Marker{Name: name, Kind: kind, Points: points}
	}
	var bottom, right, top, left []int
	for i := 0; i < nx; i++ {
		bottom = append(bottom, id(i, 0))
		top = append(top, id(i, ny-1))
	}
	for j := 0; j < ny; j++ {
		right = append(right, id(nx-1, j))
		left = append(left, id(0, j))
	}
	ml.Markers = []Marker{
		side("bottom", sideKinds[0], bottom),
		side("right", sideKinds[1], right),
		side("top", sideKinds[2], top),
		side("left", sideKinds[3], left),
	}
	return
}

// NewDelaunayLevel triangulates the given point cloud and builds the FV dual.
// Convex-hull points are collected under a single farfield marker.
func NewDelaunayLevel(points [][2]float64) (ml *MeshLevel) {
	faces := triangle.Delaunay(points)

	elems := make([][]int, len(faces))
	edgeCount := make(map[[2]int]int)
	for k, f := range faces {
		elems[k] = []int{int(f[0]), int(f[1]), int(f[2])}
		for n := 0; n < 3; n++ {
			a, b := elems[k][n], elems[k][(n+1)%3]
			if a > b {
				a, b = b, a
			}
			edgeCount[[2]int{a, b}]++
		}
	}

	// Hull points bound exactly one triangle per hull edge
	hullSet := make(map[int]bool)
	var hull []int
	for e, count := range edgeCount {
		if count == 1 {
			for _, p := range []int{e[0], e[1]} {
				if !hullSet[p] {
					hullSet[p] = true
					hull = append(hull, p)
				}
			}
		}
	}
	markers := []Marker{{Name: "farfield", Kind: BCFarfield, Points: hull}}
	return buildDual(points, elems, markers)
}
