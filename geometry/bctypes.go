package geometry

import "strings"

// BCKind classifies a boundary marker. The multigrid transfer operators only
// special-case the no-slip family; everything else gets the generic
// volume-weighted treatment.
type BCKind uint16

const (
	BCNone BCKind = iota

	// Flow boundary conditions
	BCInflow
	BCOutflow
	BCWall // No-slip wall, adiabatic
	BCSlipWall
	BCSymmetry
	BCPeriodic
	BCFarfield

	// Thermal wall conditions
	BCIsothermal // No-slip wall, fixed temperature
	BCHeatFlux   // No-slip wall, prescribed heat flux
	BCCHTWall    // No-slip conjugate heat transfer interface

	// Markers that are not physical boundaries
	BCInternal
	BCDirichlet
)

var bcNameMap = map[string]BCKind{
	"inflow":     BCInflow,
	"in":         BCInflow,
	"outflow":    BCOutflow,
	"out":        BCOutflow,
	"wall":       BCWall,
	"heatflux":   BCHeatFlux,
	"isothermal": BCIsothermal,
	"cht":        BCCHTWall,
	"slip":       BCSlipWall,
	"symmetry":   BCSymmetry,
	"periodic":   BCPeriodic,
	"far":        BCFarfield,
	"farfield":   BCFarfield,
	"internal":   BCInternal,
	"dirichlet":  BCDirichlet,
}

// NewBCKind maps a marker tag from a mesh or parameter file to a kind. Tags
// may carry suffixes, e.g. "wall-top" or "Periodic-1".
func NewBCKind(label string) (kind BCKind) {
	l := strings.ToLower(strings.TrimSpace(label))
	if k, ok := bcNameMap[l]; ok {
		return k
	}
	for name, k := range bcNameMap {
		if strings.HasPrefix(l, name) {
			return k
		}
	}
	return BCNone
}

// IsNoSlip reports whether the marker pins the velocity at the surface. These
// are the markers the restriction/prolongation operators must overwrite.
func (k BCKind) IsNoSlip() bool {
	return k == BCWall || k == BCHeatFlux || k == BCIsothermal || k == BCCHTWall
}

// ExcludedFromSmoothing reports whether boundary values under the marker are
// restored after each Jacobi pass of the correction smoother. Internal and
// periodic markers take part in smoothing, everything else is held fixed.
func (k BCKind) ExcludedFromSmoothing() bool {
	return k != BCInternal && k != BCPeriodic
}
