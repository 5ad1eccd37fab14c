package solver

import (
	"github.com/james-bowman/sparse"

	"github.com/cfdworks/mgsolve/geometry"
)

const (
	jacobiSweeps = 8
	jacobiOmega  = 0.8
)

/*
	implicitEulerUpdate advances one backward-Euler step with a first-order
	approximate Jacobian: the diagonal carries Vol/dt plus the summed edge
	spectral radii, neighbor couplings carry -lambda/2. The same scalar
	stencil applies to every variable of the block, so the linear system is
	assembled once as a CSR matrix and solved per variable with damped
	Jacobi sweeps.

	lambdaEdge returns the convective spectral radius of one edge.
*/
func implicitEulerUpdate(bs *BaseSolver, ml *geometry.MeshLevel, lambdaEdge func(ie int) float64) {
	nP := ml.NPoint
	dok := sparse.NewDOK(nP, nP)
	for ie, e := range ml.Edges {
		l := 0.5 * lambdaEdge(ie)
		dok.Set(e[0], e[1], dok.At(e[0], e[1])-l)
		dok.Set(e[1], e[0], dok.At(e[1], e[0])-l)
		dok.Set(e[0], e[0], dok.At(e[0], e[0])+l)
		dok.Set(e[1], e[1], dok.At(e[1], e[1])+l)
	}
	for p := 0; p < nP; p++ {
		dok.Set(p, p, dok.At(p, p)+ml.Volume[p]/bs.DT[p])
	}
	csr := dok.ToCSR()

	var (
		b    = make([]float64, nP)
		x    = make([]float64, nP)
		xNew = make([]float64, nP)
	)
	for v := 0; v < bs.nVar; v++ {
		for p := 0; p < nP; p++ {
			b[p] = -(bs.linSysRes.Block(p)[v] + bs.nodes.ResTruncError.Block(p)[v])
			x[p] = 0
		}
		for sweep := 0; sweep < jacobiSweeps; sweep++ {
			for p := 0; p < nP; p++ {
				var diag, off float64
				csr.DoRowNonZero(p, func(_, j int, val float64) {
					if j == p {
						diag = val
					} else {
						off += val * x[j]
					}
				})
				xNew[p] = (1-jacobiOmega)*x[p] + jacobiOmega*(b[p]-off)/diag
			}
			x, xNew = xNew, x
		}
		for p := 0; p < nP; p++ {
			bs.nodes.Solution.Block(p)[v] = bs.nodes.SolutionOld.Block(p)[v] + x[p]
		}
	}
}
