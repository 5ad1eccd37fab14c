//go:build linux
// +build linux

package utils

import (
	"fmt"

	perf "github.com/hodgesds/perf-utils"
)

// ProfileCycleCount runs f under a hardware CPU-cycle counter and reports the
// cycles spent. Used by benchmarks to compare cycle costs of the smoothing
// and transfer kernels independent of wall-clock noise.
func ProfileCycleCount(f func() error) (cycles uint64, err error) {
	profileValue, err := perf.CPUCycles(f)
	if err != nil {
		return 0, fmt.Errorf("perf counter unavailable: %w", err)
	}
	return profileValue.Value, nil
}

// ProfileInstructionCount is the instruction-retired companion to
// ProfileCycleCount.
func ProfileInstructionCount(f func() error) (instrs uint64, err error) {
	profileValue, err := perf.CPUInstructions(f)
	if err != nil {
		return 0, fmt.Errorf("perf counter unavailable: %w", err)
	}
	return profileValue.Value, nil
}
