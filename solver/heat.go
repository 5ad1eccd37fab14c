package solver

import (
	"math"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	HeatSolver advances a scalar temperature field by conduction on the dual
	mesh. The edge flux approximates -k grad(T) . n with the two-point
	difference along the edge. Isothermal markers pin the temperature, heat
	flux markers are left to the interior stencil (adiabatic).
*/
type HeatSolver struct {
	*BaseSolver

	Conductivity float64
	WallTemp     float64

	// Integrated wall heat flux per marker name, filled by HeatFluxes
	MarkerHeatFlux map[string]float64
	TotalHeatFlux  float64
}

func NewHeatSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) (hs *HeatSolver) {
	hs = &HeatSolver{
		BaseSolver:     newBaseSolver("Heat", ml, 1),
		Conductivity:   1.0,
		WallTemp:       1.0,
		MarkerHeatFlux: make(map[string]float64),
	}
	if bc, ok := sp.BCs["Isothermal"]; ok {
		for _, params := range bc {
			if t, ok := params["Temperature"]; ok {
				hs.WallTemp = t
			}
		}
	}
	hs.SetOldSolution()
	return
}

// edgeConductance is k * area / length for the two-point flux.
func (hs *HeatSolver) edgeConductance(ml *geometry.MeshLevel, ie int) float64 {
	var (
		e    = ml.Edges[ie]
		dx   = ml.Coord[e[1]][0] - ml.Coord[e[0]][0]
		dy   = ml.Coord[e[1]][1] - ml.Coord[e[0]][1]
		dist = math.Hypot(dx, dy)
		area = math.Hypot(ml.EdgeNormal[ie][0], ml.EdgeNormal[ie][1])
	)
	if dist < 1.e-14 {
		dist = 1.e-14
	}
	return hs.Conductivity * area / dist
}

func (hs *HeatSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	hs.linSysRes.SetZero()
	for _, marker := range ml.Markers {
		if marker.Kind != geometry.BCIsothermal && marker.Kind != geometry.BCDirichlet {
			continue
		}
		for _, p := range marker.Points {
			hs.nodes.Solution.Data[p] = hs.WallTemp
		}
	}
}

func (hs *HeatSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	hs.setTimeStepFromSpectralRadius(ml, sp, func(ie int) float64 {
		return hs.edgeConductance(ml, ie)
	})
}

func (hs *HeatSolver) AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	hs.accumulateEdgeFluxes(ml, func(ie int, f []float64) {
		e := ml.Edges[ie]
		f[0] = hs.edgeConductance(ml, ie) *
			(hs.nodes.Solution.Data[e[0]] - hs.nodes.Solution.Data[e[1]])
	})
}

func (hs *HeatSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
}

func (hs *HeatSolver) SetWallSolution(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iPoint int) {
	hs.nodes.Solution.Data[iPoint] = hs.WallTemp
}

func (hs *HeatSolver) SetWallCorrectionZero(iPoint int) { hs.nodes.SolutionOld.Data[iPoint] = 0 }
func (hs *HeatSolver) SetWallForcingZero(iPoint int)    { hs.nodes.ResTruncError.Data[iPoint] = 0 }

func (hs *HeatSolver) ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	implicitEulerUpdate(hs.BaseSolver, ml, func(ie int) float64 {
		return hs.edgeConductance(ml, ie)
	})
	hs.computeResidualRMS(ml)
}

// HeatFluxes integrates the conductive flux leaving the domain through each
// isothermal and heat-flux marker.
func (hs *HeatSolver) HeatFluxes(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	hs.TotalHeatFlux = 0
	for _, marker := range ml.Markers {
		if marker.Kind != geometry.BCIsothermal && marker.Kind != geometry.BCHeatFlux {
			continue
		}
		onMarker := make(map[int]bool, len(marker.Points))
		for _, p := range marker.Points {
			onMarker[p] = true
		}
		var flux float64
		for ie, e := range ml.Edges {
			onI, onJ := onMarker[e[0]], onMarker[e[1]]
			if onI == onJ {
				continue
			}
			q := hs.edgeConductance(ml, ie) *
				(hs.nodes.Solution.Data[e[0]] - hs.nodes.Solution.Data[e[1]])
			if onJ {
				q = -q
			}
			flux += q
		}
		hs.MarkerHeatFlux[marker.Name] = flux
		hs.TotalHeatFlux += flux
	}
}
