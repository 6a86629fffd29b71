package scan

import (
	"fmt"
	"unsafe"
)

// NaiveScan computes the same exclusive prefix sum as Scan with the
// non-work-efficient iterative-doubling algorithm: log2(nPad) full
// passes over global memory with ping-pong buffers, then one shift to
// the exclusive form. Kept for performance contrast with the
// work-efficient multi-level scan; results are identical.
func (e *Engine) NaiveScan(n int, input []int32) ([]int32, error) {
	if n <= 0 {
		return []int32{}, nil
	}

	nPad := PaddedSize(n)
	capacity := e.LevelCapacity(nPad)
	groups := capacity / e.groupSize
	padded := make([]int32, capacity)
	copy(padded, input[:n])

	bufA, err := e.AllocInt32(padded)
	if err != nil {
		return nil, err
	}
	defer bufA.Free()
	bufB, err := e.AllocZeroed(capacity)
	if err != nil {
		return nil, err
	}
	defer bufB.Free()
	out, err := e.AllocZeroed(capacity)
	if err != nil {
		return nil, err
	}
	defer out.Free()

	src, dst := bufA, bufB

	e.timer.Start()
	var runErr error
	for d := 0; d < ceilLog2(nPad); d++ {
		if runErr = e.Kernels[kernelNaiveScanStep].RunWithArgs(
			int32(groups), int32(1<<d), src, dst); runErr != nil {
			runErr = fmt.Errorf("naive scan step %d failed: %w", d, runErr)
			break
		}
		e.device.Finish()
		src, dst = dst, src
	}
	// src holds the inclusive result after the final swap
	if runErr == nil {
		if err := e.Kernels[kernelShiftToExclusive].RunWithArgs(
			int32(groups), src, out); err != nil {
			runErr = fmt.Errorf("naive scan exclusive shift failed: %w", err)
		}
	}
	e.device.Finish()
	e.timer.Stop()
	if runErr != nil {
		return nil, runErr
	}

	result := make([]int32, n)
	out.CopyTo(unsafe.Pointer(&result[0]), int64(n*4))
	return result, nil
}
