package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cfdworks/mgsolve/InputParameters"
	"github.com/cfdworks/mgsolve/geometry"
)

/*
	FlowSolver advances the 2D compressible Euler equations on a vertex
	centered dual mesh with a Lax-Friedrichs edge flux. Conservative
	variables per point: [rho, rhoU, rhoV, rhoE].

	Boundary conditions are imposed strongly in Preprocessing before the
	residual assembly: farfield points hold the freestream state, no-slip
	walls zero the momentum (or pin it to the grid velocity on moving
	meshes). Slip walls and symmetry planes are left to the interior
	stencil, which is zero-gradient in this discretization.
*/
type FlowSolver struct {
	*BaseSolver

	Gamma      float64
	Freestream [4]float64

	// Aggregate force monitors, filled by the ForceReporter methods
	CL, CD, CMz float64
	Buffet      float64
}

const NFlowVars = 4

func NewFlowSolver(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) (fs *FlowSolver) {
	fs = &FlowSolver{
		BaseSolver: newBaseSolver("Flow", ml, NFlowVars),
		Gamma:      sp.Gamma,
	}
	fs.Freestream = FreestreamState(sp)
	if sp.Turbulent {
		fs.nodes.MuT = NewBlockVector(ml.NPoint, 1)
	}
	for p := 0; p < ml.NPoint; p++ {
		fs.nodes.Solution.SetBlock(p, fs.Freestream[:])
	}
	fs.SetOldSolution()
	return
}

// FreestreamState builds the non-dimensional freestream conservative state
// from Mach number and angle of attack (degrees): rho = 1, c = 1, p = 1/Gamma.
func FreestreamState(sp *InputParameters.SolverParameters) (q [4]float64) {
	var (
		aRad = sp.Alpha * math.Pi / 180.
		u    = sp.Minf * math.Cos(aRad)
		v    = sp.Minf * math.Sin(aRad)
		p    = 1.0 / sp.Gamma
	)
	q[0] = 1.0
	q[1] = u
	q[2] = v
	q[3] = p/(sp.Gamma-1) + 0.5*(u*u+v*v)
	return
}

// Pressure computes the static pressure of a conservative state.
func (fs *FlowSolver) Pressure(q []float64) float64 {
	return (fs.Gamma - 1) * (q[3] - 0.5*(q[1]*q[1]+q[2]*q[2])/q[0])
}

// SoundSpeed returns the local speed of sound, floored away from zero so a
// transient non-physical state cannot zero the time step.
func (fs *FlowSolver) SoundSpeed(q []float64) float64 {
	c2 := fs.Gamma * fs.Pressure(q) / q[0]
	if c2 < 1.e-12 {
		c2 = 1.e-12
	}
	return math.Sqrt(c2)
}

// eulerFlux fills f with the projected Euler flux F(q).n for the area-scaled
// normal n.
func (fs *FlowSolver) eulerFlux(q []float64, n [2]float64, f []float64) {
	var (
		p  = fs.Pressure(q)
		un = (q[1]*n[0] + q[2]*n[1]) / q[0] // velocity . n, area-scaled
	)
	f[0] = q[0] * un
	f[1] = q[1]*un + p*n[0]
	f[2] = q[2]*un + p*n[1]
	f[3] = (q[3] + p) * un
}

func (fs *FlowSolver) edgeSpectralRadius(q []float64, n [2]float64) float64 {
	var (
		area = math.Hypot(n[0], n[1])
		un   = (q[1]*n[0] + q[2]*n[1]) / q[0]
	)
	return math.Abs(un) + fs.SoundSpeed(q)*area
}

func (fs *FlowSolver) Preprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, iRKStep int, fullOutput bool) {
	fs.linSysRes.SetZero()
	for _, marker := range ml.Markers {
		switch {
		case marker.Kind == geometry.BCFarfield || marker.Kind == geometry.BCInflow:
			for _, p := range marker.Points {
				fs.nodes.Solution.SetBlock(p, fs.Freestream[:])
			}
		case marker.Kind.IsNoSlip():
			for _, p := range marker.Points {
				fs.SetWallSolution(ml, sp, p)
			}
		}
	}
	if fullOutput && fs.nodes.Gradient != nil {
		fs.computeGradients(ml)
	}
}

func (fs *FlowSolver) SetTimeStep(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh, timeIter int) {
	var qAvg [NFlowVars]float64
	fs.setTimeStepFromSpectralRadius(ml, sp, func(ie int) float64 {
		var (
			qi = fs.nodes.Solution.Block(ml.Edges[ie][0])
			qj = fs.nodes.Solution.Block(ml.Edges[ie][1])
		)
		for n := 0; n < NFlowVars; n++ {
			qAvg[n] = 0.5 * (qi[n] + qj[n])
		}
		return fs.edgeSpectralRadius(qAvg[:], ml.EdgeNormal[ie])
	})
}

func (fs *FlowSolver) AssembleResidual(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	fs.accumulateEdgeFluxes(ml, func(ie int, f []float64) {
		var (
			qi     = fs.nodes.Solution.Block(ml.Edges[ie][0])
			qj     = fs.nodes.Solution.Block(ml.Edges[ie][1])
			normal = ml.EdgeNormal[ie]
			fi, fj [NFlowVars]float64
		)
		fs.eulerFlux(qi, normal, fi[:])
		fs.eulerFlux(qj, normal, fj[:])
		lMax := math.Max(fs.edgeSpectralRadius(qi, normal), fs.edgeSpectralRadius(qj, normal))
		for n := 0; n < NFlowVars; n++ {
			f[n] = 0.5*(fi[n]+fj[n]) - 0.5*lMax*(qj[n]-qi[n])
		}
	})
}

func (fs *FlowSolver) Postprocessing(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters,
	iMesh int) {
	// Positivity floor on density keeps a diverging transient recoverable
	for p := 0; p < ml.NPoint; p++ {
		q := fs.nodes.Solution.Block(p)
		if q[0] < 1.e-10 {
			q[0] = 1.e-10
		}
	}
}

// computeGradients fills the Green-Gauss gradient of the conservative state.
func (fs *FlowSolver) computeGradients(ml *geometry.MeshLevel) {
	fs.nodes.Gradient.SetZero()
	for ie, e := range ml.Edges {
		var (
			qi, qj = fs.nodes.Solution.Block(e[0]), fs.nodes.Solution.Block(e[1])
			n      = ml.EdgeNormal[ie]
			gi, gj = fs.nodes.Gradient.Block(e[0]), fs.nodes.Gradient.Block(e[1])
		)
		for k := 0; k < NFlowVars; k++ {
			qf := 0.5 * (qi[k] + qj[k])
			gi[2*k] += qf * n[0]
			gi[2*k+1] += qf * n[1]
			gj[2*k] -= qf * n[0]
			gj[2*k+1] -= qf * n[1]
		}
	}
	for p := 0; p < ml.NPoint; p++ {
		g := fs.nodes.Gradient.Block(p)
		for k := range g {
			g[k] /= ml.Volume[p]
		}
	}
}

/*
	Wall handling for the multigrid transfer operators. On static meshes the
	restricted wall momentum is zeroed; on moving meshes it is pinned to
	rho times the local grid velocity. Correction and forcing blocks zero
	only the momentum components so density and energy still receive coarse
	grid updates at the wall.
*/
func (fs *FlowSolver) SetWallSolution(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters, iPoint int) {
	q := fs.nodes.Solution.Block(iPoint)
	if sp.GridMovement && ml.GridVel != nil {
		q[1] = q[0] * ml.GridVel[iPoint][0]
		q[2] = q[0] * ml.GridVel[iPoint][1]
		return
	}
	q[1], q[2] = 0, 0
}

func (fs *FlowSolver) SetWallCorrectionZero(iPoint int) {
	b := fs.nodes.SolutionOld.Block(iPoint)
	b[1], b[2] = 0, 0
}

func (fs *FlowSolver) SetWallForcingZero(iPoint int) {
	b := fs.nodes.ResTruncError.Block(iPoint)
	b[1], b[2] = 0, 0
}

func (fs *FlowSolver) GetMuT(iPoint int) float64 {
	if fs.nodes.MuT == nil {
		return 0
	}
	return fs.nodes.MuT.Data[iPoint]
}

func (fs *FlowSolver) SetMuT(iPoint int, muT float64) {
	if fs.nodes.MuT != nil {
		fs.nodes.MuT.Data[iPoint] = muT
	}
}

/*
	Force monitors. The reference state is the freestream dynamic pressure;
	the moment is taken about the origin. These walk the no-slip and slip
	wall markers and integrate the pressure over the adjacent dual faces.
*/
func (fs *FlowSolver) PressureForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		aRad   = sp.Alpha * math.Pi / 180.
		qInf   = 0.5 * sp.Minf * sp.Minf // rhoInf = 1
		fx, fy float64
		mz     float64
	)
	if qInf == 0 {
		qInf = 1
	}
	pInf := 1.0 / sp.Gamma
	for _, marker := range ml.Markers {
		if !marker.Kind.IsNoSlip() && marker.Kind != geometry.BCSlipWall {
			continue
		}
		for _, p := range marker.Points {
			nx, ny := fs.wallNormal(ml, p)
			dp := fs.Pressure(fs.nodes.Solution.Block(p)) - pInf
			fx += dp * nx
			fy += dp * ny
			mz += dp * (ml.Coord[p][0]*ny - ml.Coord[p][1]*nx)
		}
	}
	fs.CD = (fx*math.Cos(aRad) + fy*math.Sin(aRad)) / qInf
	fs.CL = (fy*math.Cos(aRad) - fx*math.Sin(aRad)) / qInf
	fs.CMz = mz / qInf
}

// wallNormal estimates the outward boundary normal at a wall point as the
// negated sum of its dual-face normals; interior faces cancel and the
// boundary deficit remains.
func (fs *FlowSolver) wallNormal(ml *geometry.MeshLevel, iPoint int) (nx, ny float64) {
	for ie, e := range ml.Edges {
		if e[0] == iPoint {
			nx -= ml.EdgeNormal[ie][0]
			ny -= ml.EdgeNormal[ie][1]
		} else if e[1] == iPoint {
			nx += ml.EdgeNormal[ie][0]
			ny += ml.EdgeNormal[ie][1]
		}
	}
	return
}

func (fs *FlowSolver) MomentumForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	// Inviscid discretization carries no momentum-flux wall contribution
}

func (fs *FlowSolver) FrictionForces(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	// Inviscid discretization carries no skin friction
}

// BuffetMonitoring accumulates a separation-onset sensor over the no-slip
// walls: the fraction of wall points whose streamwise momentum opposes the
// freestream direction.
func (fs *FlowSolver) BuffetMonitoring(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	var (
		aRad     = sp.Alpha * math.Pi / 180.
		dir      = [2]float64{math.Cos(aRad), math.Sin(aRad)}
		count, n int
	)
	for p := range ml.NoSlipPoints() {
		q := fs.nodes.Solution.Block(p)
		if floats.Dot(q[1:3], dir[:]) < 0 {
			count++
		}
		n++
	}
	if n > 0 {
		fs.Buffet = float64(count) / float64(n)
	}
}

func (fs *FlowSolver) ImplicitEulerIteration(ml *geometry.MeshLevel, sp *InputParameters.SolverParameters) {
	implicitEulerUpdate(fs.BaseSolver, ml, func(ie int) float64 {
		var (
			qi = fs.nodes.Solution.Block(ml.Edges[ie][0])
			qj = fs.nodes.Solution.Block(ml.Edges[ie][1])
			n  = ml.EdgeNormal[ie]
		)
		return 0.5 * (fs.edgeSpectralRadius(qi, n) + fs.edgeSpectralRadius(qj, n))
	})
	fs.computeResidualRMS(ml)
}
