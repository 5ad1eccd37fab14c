//go:build linux
// +build linux

package solver

import (
	"testing"

	"github.com/cfdworks/mgsolve/geometry"
	"github.com/cfdworks/mgsolve/utils"
)

// Cycle-count benchmarks for the residual assembly kernel. Run with perf
// event access (perf_event_paranoid <= 2) to get hardware counters; without
// it the benchmark falls back to wall-clock only.
func BenchmarkAssembleResidualCycles(b *testing.B) {
	var (
		sp = testParams()
		mg = geometry.NewMultigridGeometry(
			geometry.NewCartesianLevel(64, 64, [4]geometry.BCKind{
				geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield, geometry.BCFarfield}),
			1, 4)
		ml = mg.At(0)
		fs = NewFlowSolver(ml, sp)
	)
	perturb(fs, ml.NPoint)

	cycles, err := utils.ProfileCycleCount(func() error {
		for i := 0; i < b.N; i++ {
			fs.AssembleResidual(ml, sp, 0)
		}
		return nil
	})
	if err != nil {
		b.Logf("hardware counters unavailable: %v", err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			fs.AssembleResidual(ml, sp, 0)
		}
		return
	}
	b.ReportMetric(float64(cycles)/float64(b.N), "cycles/op")

	instrs, err := utils.ProfileInstructionCount(func() error {
		for i := 0; i < b.N; i++ {
			fs.AssembleResidual(ml, sp, 0)
		}
		return nil
	})
	if err == nil {
		b.ReportMetric(float64(instrs)/float64(b.N), "instrs/op")
	}
}
