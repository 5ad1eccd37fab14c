package geometry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainAgglomeration(t *testing.T) {
	fine := NewChainLevel(4)
	mg := NewMultigridGeometry(fine, 2, 1)
	assert.Equal(t, 2, mg.NumLevels())

	coarse := mg.At(1)
	assert.Equal(t, 2, coarse.NPoint)
	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, coarse.Children)
	assert.Equal(t, 2.0, coarse.Volume[0])
	assert.Equal(t, 2.0, coarse.Volume[1])
	assert.Equal(t, 1, coarse.NumEdges())
}

func TestPartitionInvariant(t *testing.T) {
	fine := NewCartesianLevel(9, 9, [4]BCKind{BCWall, BCFarfield, BCFarfield, BCFarfield})
	mg := NewMultigridGeometry(fine, 4, 2)
	assert.True(t, mg.NumLevels() >= 3)

	for iMesh := 1; iMesh < mg.NumLevels(); iMesh++ {
		var (
			fineLevel   = mg.At(iMesh - 1)
			coarseLevel = mg.At(iMesh)
			seen        = make([]int, fineLevel.NPoint)
		)
		for coarsePoint, children := range coarseLevel.Children {
			var volSum float64
			for _, finePoint := range children {
				seen[finePoint]++
				volSum += fineLevel.Volume[finePoint]
			}
			assert.InEpsilon(t, coarseLevel.Volume[coarsePoint], volSum, 1e-6)
		}
		// Every fine point has exactly one coarse parent
		for finePoint, count := range seen {
			assert.Equalf(t, 1, count, "fine point %d on level %d", finePoint, iMesh-1)
		}
	}
}

func TestNoSlipMarkerSurvivesCoarsening(t *testing.T) {
	fine := NewCartesianLevel(9, 9, [4]BCKind{BCHeatFlux, BCFarfield, BCIsothermal, BCFarfield})
	mg := NewMultigridGeometry(fine, 3, 1)

	for iMesh := 0; iMesh < mg.NumLevels(); iMesh++ {
		noSlip := mg.At(iMesh).NoSlipPoints()
		assert.NotEmptyf(t, noSlip, "level %d lost its no-slip classification", iMesh)
	}
}

func TestReadSU2(t *testing.T) {
	// Two triangles over the unit square, all four points on a wall marker
	contents := `% test square
NDIME= 2
NELEM= 2
5 0 1 2 0
5 0 2 3 1
NPOIN= 4
0.0 0.0 0
1.0 0.0 1
1.0 1.0 2
0.0 1.0 3
NMARK= 1
MARKER_TAG= wall
MARKER_ELEMS= 4
3 0 1
3 1 2
3 2 3
3 3 0
`
	fname := filepath.Join(t.TempDir(), "square.su2")
	assert.NoError(t, os.WriteFile(fname, []byte(contents), 0644))

	ml, err := ReadSU2(fname)
	assert.NoError(t, err)
	assert.Equal(t, 4, ml.NPoint)
	assert.Equal(t, 5, ml.NumEdges()) // 4 sides plus the diagonal

	var totalVol float64
	for _, v := range ml.Volume {
		totalVol += v
	}
	assert.InDelta(t, 1.0, totalVol, 1e-12) // Dual volumes tile the square

	assert.Len(t, ml.Markers, 1)
	assert.Equal(t, BCWall, ml.Markers[0].Kind)
	assert.Len(t, ml.Markers[0].Points, 4)
}
