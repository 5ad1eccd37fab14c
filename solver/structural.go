package solver

import (
	"math"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	StructuralSolver solves linear elastostatics on the finest mesh with an
	edge-spring stiffness: each mesh edge contributes an axial spring of
	stiffness EA/L acting along its direction, so the element block is the
	scaled outer product of the edge tangent with itself. Displacements are
	2-vectors per point; Dirichlet markers clamp them to zero.

	The structural path runs on the finest level only, so the solver keeps
	the BaseSolver storage but replaces the time marching with a single
	stiffness solve per outer iteration.
*/
type StructuralSolver struct {
	*BaseSolver

	YoungsModulus float64
	Load          [2]float64 // Body load per unit volume

	// Component matrices of the symmetric 2x2 block stiffness
	kxx, kxy, kyy *sparse.CSR

	clamped map[int]bool
}

func NewStructuralSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) (ss *StructuralSolver) {
	ss = &StructuralSolver{
		BaseSolver:    newBaseSolver("FEA", ml, 2),
		YoungsModulus: 1.0,
		Load:          [2]float64{0, -1},
		clamped:       make(map[int]bool),
	}
	if bc, ok := sp.BCs["Load"]; ok {
		for _, params := range bc {
			if fx, ok := params["Fx"]; ok {
				ss.Load[0] = fx
			}
			if fy, ok := params["Fy"]; ok {
				ss.Load[1] = fy
			}
		}
	}
	for _, marker := range ml.Markers {
		if marker.Kind != geometry.BCDirichlet && !marker.Kind.IsNoSlip() {
			continue
		}
		for _, p := range marker.Points {
			ss.clamped[p] = true
		}
	}
	ss.assembleStiffness(ml)
	return
}

// assembleStiffness builds the three scalar component matrices of the block
// stiffness. Each edge contributes (EA/L) t t^T with t the unit tangent;
// clamped rows reduce to the identity.
func (ss *StructuralSolver) assembleStiffness(ml *geometry.MeshLevel) {
	nP := ml.NPoint
	var (
		dxx   = sparse.NewDOK(nP, nP)
		dxy   = sparse.NewDOK(nP, nP)
		dyy   = sparse.NewDOK(nP, nP)
		block = mat.NewDense(2, 2, nil)
		add   = func(d *sparse.DOK, i, j int, v float64) { d.Set(i, j, d.At(i, j)+v) }
	)
	for _, e := range ml.Edges {
		if ss.clamped[e[0]] && ss.clamped[e[1]] {
			continue
		}
		var (
			dx = ml.Coord[e[1]][0] - ml.Coord[e[0]][0]
			dy = ml.Coord[e[1]][1] - ml.Coord[e[0]][1]
			l  = math.Hypot(dx, dy)
		)
		if l < 1.e-14 {
			continue
		}
		t := mat.NewVecDense(2, []float64{dx / l, dy / l})
		block.Outer(ss.YoungsModulus/l, t, t)
		var (
			kxx = block.At(0, 0)
			kxy = block.At(0, 1)
			kyy = block.At(1, 1)
		)
		if !ss.clamped[e[0]] {
			add(dxx, e[0], e[0], kxx)
			add(dxx, e[0], e[1], -kxx)
			add(dxy, e[0], e[0], kxy)
			add(dxy, e[0], e[1], -kxy)
			add(dyy, e[0], e[0], kyy)
			add(dyy, e[0], e[1], -kyy)
		}
		if !ss.clamped[e[1]] {
			add(dxx, e[1], e[1], kxx)
			add(dxx, e[1], e[0], -kxx)
			add(dxy, e[1], e[1], kxy)
			add(dxy, e[1], e[0], -kxy)
			add(dyy, e[1], e[1], kyy)
			add(dyy, e[1], e[0], -kyy)
		}
	}
	for p := 0; p < nP; p++ {
		if ss.clamped[p] || dxx.At(p, p) == 0 {
			dxx.Set(p, p, 1)
		}
		if ss.clamped[p] || dyy.At(p, p) == 0 {
			dyy.Set(p, p, 1)
		}
	}
	ss.kxx = dxx.ToCSR()
	ss.kxy = dxy.ToCSR()
	ss.kyy = dyy.ToCSR()
}

// SpaceIntegrationFEM assembles the out-of-balance residual R = K u - f.
func (ss *StructuralSolver) SpaceIntegrationFEM(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	ss.linSysRes.SetZero()
	for p := 0; p < ml.NPoint; p++ {
		res := ss.linSysRes.Block(p)
		ss.kxx.DoRowNonZero(p, func(_, j int, k float64) {
			res[0] += k * ss.nodes.Solution.Block(j)[0]
		})
		ss.kxy.DoRowNonZero(p, func(_, j int, k float64) {
			u := ss.nodes.Solution.Block(j)
			res[0] += k * u[1]
			res[1] += k * u[0]
		})
		ss.kyy.DoRowNonZero(p, func(_, j int, k float64) {
			res[1] += k * ss.nodes.Solution.Block(j)[1]
		})
		if !ss.clamped[p] {
			res[0] -= ss.Load[0] * ml.Volume[p]
			res[1] -= ss.Load[1] * ml.Volume[p]
		}
	}
	ss.computeResidualRMS(ml)
}

// TimeIntegrationFEM relaxes the displacements toward equilibrium with
// damped block-Jacobi sweeps: the off-diagonal couplings move to the right
// hand side and the point-diagonal 2x2 block is solved directly.
func (ss *StructuralSolver) TimeIntegrationFEM(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		diag = mat.NewDense(2, 2, nil)
		rhs  = mat.NewVecDense(2, nil)
		x    mat.VecDense
	)
	for sweep := 0; sweep < jacobiSweeps; sweep++ {
		for p := 0; p < ml.NPoint; p++ {
			if ss.clamped[p] {
				ss.nodes.Solution.SetBlockZero(p)
				continue
			}
			var dxx, dxy, dyy, offX, offY float64
			ss.kxx.DoRowNonZero(p, func(_, j int, k float64) {
				if j == p {
					dxx = k
					return
				}
				offX += k * ss.nodes.Solution.Block(j)[0]
			})
			ss.kxy.DoRowNonZero(p, func(_, j int, k float64) {
				if j == p {
					dxy = k
					return
				}
				u := ss.nodes.Solution.Block(j)
				offX += k * u[1]
				offY += k * u[0]
			})
			ss.kyy.DoRowNonZero(p, func(_, j int, k float64) {
				if j == p {
					dyy = k
					return
				}
				offY += k * ss.nodes.Solution.Block(j)[1]
			})
			diag.SetRow(0, []float64{dxx, dxy})
			diag.SetRow(1, []float64{dxy, dyy})
			rhs.SetVec(0, ss.Load[0]*ml.Volume[p]-offX)
			rhs.SetVec(1, ss.Load[1]*ml.Volume[p]-offY)
			if err := x.SolveVec(diag, rhs); err != nil {
				continue
			}
			u := ss.nodes.Solution.Block(p)
			u[0] = (1-jacobiOmega)*u[0] + jacobiOmega*x.AtVec(0)
			u[1] = (1-jacobiOmega)*u[1] + jacobiOmega*x.AtVec(1)
		}
	}
}

/*
	Solver contract adapters. The structural system is quasi-static, so the
	time-step and explicit-update entry points map onto the relaxation
	sweeps above.
*/
func (ss *StructuralSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	ss.linSysRes.SetZero()
}

func (ss *StructuralSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	ss.GlobalDT = 1
	for p := range ss.DT {
		ss.DT[p] = 1
	}
}

func (ss *StructuralSolver) AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	ss.SpaceIntegrationFEM(ml, sp)
}

func (ss *StructuralSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
}

func (ss *StructuralSolver) ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	ss.TimeIntegrationFEM(ml, sp)
	ss.computeResidualRMS(ml)
}
