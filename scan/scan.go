// Package scan computes exclusive prefix sums of int32 arrays on an
// OCCA device. Inputs larger than one work-group's capacity are
// decomposed into a hierarchy of levels: each level is scanned
// group-by-group with the work-efficient two-phase algorithm, group
// totals feed the next level, and the coarser levels' offsets are
// broadcast back down so the result is identical to a single-level
// scan with unlimited group capacity.
//
// Addition is 32-bit signed with no overflow detection; callers must
// size inputs so partial sums stay in range.
package scan

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/gpuscan/utils"
)

// Config controls engine construction
type Config struct {
	// GroupCapacity overrides the cooperative work-group size. Must be
	// a power of two >= 2; 0 queries the device.
	GroupCapacity int

	// Timer wraps the parallel portion of each invocation. nil
	// disables instrumentation.
	Timer utils.Timer
}

// Engine holds the compiled kernels and device state for scan calls.
// Per-call buffers are allocated and freed per invocation, so an
// Engine may serve sequential calls of any size; it is not safe for
// concurrent use of a single instance.
type Engine struct {
	device    *gocca.OCCADevice
	groupSize int
	groupLog2 int
	Kernels   map[string]*gocca.OCCAKernel
	timer     utils.Timer
}

// NewEngine compiles the scan kernels for the device
func NewEngine(device *gocca.OCCADevice, cfg Config) (*Engine, error) {
	if device == nil {
		panic("scan: nil device")
	}

	groupSize := cfg.GroupCapacity
	if groupSize == 0 {
		groupSize = utils.MaxGroupSize(device)
	}
	if groupSize < 2 || groupSize&(groupSize-1) != 0 {
		return nil, fmt.Errorf("group capacity must be a power of two >= 2, got %d", groupSize)
	}

	timer := cfg.Timer
	if timer == nil {
		timer = utils.NopTimer{}
	}

	e := &Engine{
		device:    device,
		groupSize: groupSize,
		groupLog2: ceilLog2(groupSize),
		Kernels:   make(map[string]*gocca.OCCAKernel),
		timer:     timer,
	}

	for name, source := range kernelSources {
		kernel, err := e.BuildKernel(source, name)
		if err != nil {
			e.Free()
			return nil, err
		}
		e.Kernels[name] = kernel
	}
	return e, nil
}

// Device returns the engine's OCCA device
func (e *Engine) Device() *gocca.OCCADevice { return e.device }

// GroupSize returns the cooperative work-group capacity in elements
func (e *Engine) GroupSize() int { return e.groupSize }

// PaddedSize returns the power-of-two length the scan pads n up to
func PaddedSize(n int) int { return nextPowerOfTwo(n) }

// LevelCapacity returns the allocated element count of a level-0
// buffer covering nPad elements: whole groups, so kernels never
// branch on a partial tail.
func (e *Engine) LevelCapacity(nPad int) int {
	groups := (nPad + e.groupSize - 1) / e.groupSize
	return groups * e.groupSize
}

// Free releases the compiled kernels. Per-call buffers are already
// released by the time each call returns.
func (e *Engine) Free() {
	for _, kernel := range e.Kernels {
		if kernel != nil {
			kernel.Free()
		}
	}
	e.Kernels = nil
}

// Scan computes the exclusive prefix sum of input[0:n]: output[0] = 0
// and output[k] = input[0] + ... + input[k-1]. The input is not
// modified; a private zero-padded copy is scanned. n <= 0 returns an
// empty result.
func (e *Engine) Scan(n int, input []int32) ([]int32, error) {
	if n <= 0 {
		return []int32{}, nil
	}

	nPad := PaddedSize(n)
	capacity := e.LevelCapacity(nPad)
	padded := make([]int32, capacity)
	copy(padded, input[:n])

	in, err := e.AllocInt32(padded)
	if err != nil {
		return nil, err
	}
	defer in.Free()

	h, err := e.newHierarchy(nPad, in, nil)
	if err != nil {
		return nil, err
	}
	defer h.free()

	e.timer.Start()
	err = e.runScan(h)
	e.device.Finish()
	e.timer.Stop()
	if err != nil {
		return nil, err
	}

	result := make([]int32, n)
	h.levels[0].output.CopyTo(unsafe.Pointer(&result[0]), int64(n*4))
	return result, nil
}

// ScanDevice runs the multi-level exclusive scan entirely on the
// device. in and out must each hold LevelCapacity(nPad) int32 elements
// with every slot beyond nPad zeroed; out receives the exclusive scan
// of in. The call is untimed so that drivers composing it (Scan,
// compaction) can place a single timing window around their whole
// parallel portion.
func (e *Engine) ScanDevice(nPad int, in, out *gocca.OCCAMemory) error {
	if nPad <= 0 || nPad&(nPad-1) != 0 {
		return fmt.Errorf("nPad must be a positive power of two, got %d", nPad)
	}

	h, err := e.newHierarchy(nPad, in, out)
	if err != nil {
		return err
	}
	defer h.free()

	return e.runScan(h)
}

// runScan dispatches the upward and downward passes over an arena.
// Device.Finish between levels is the cross-level completion barrier:
// level i+1 only reads group totals once level i has fully drained,
// and symmetrically on the way down.
func (e *Engine) runScan(h *hierarchy) error {
	// Upward pass: in-group inclusive scan per level, then feed each
	// group's total upward as one element of the next level
	for i, lev := range h.levels {
		if err := e.Kernels[kernelScanGroups].RunWithArgs(
			int32(lev.groups), lev.input, lev.scratch); err != nil {
			return fmt.Errorf("level %d group scan failed: %w", i, err)
		}
		if i+1 < len(h.levels) {
			if err := e.Kernels[kernelExtractGroupTotals].RunWithArgs(
				int32(lev.groups), lev.scratch, h.levels[i+1].input); err != nil {
				return fmt.Errorf("level %d total extraction failed: %w", i, err)
			}
		}
		e.device.Finish()
	}

	// Downward pass: the broadcast from level i folds its exclusive
	// per-group offsets into level i-1's scratch, making that scratch
	// globally inclusive, so the subsequent whole-level shift yields
	// the globally exclusive result including at group boundaries
	for i := len(h.levels) - 1; i >= 0; i-- {
		lev := h.levels[i]
		if err := e.Kernels[kernelShiftToExclusive].RunWithArgs(
			int32(lev.groups), lev.scratch, lev.output); err != nil {
			return fmt.Errorf("level %d exclusive shift failed: %w", i, err)
		}
		if i > 0 {
			lower := h.levels[i-1]
			if err := e.Kernels[kernelAddGroupOffsets].RunWithArgs(
				int32(lower.groups), lev.output, lower.scratch); err != nil {
				return fmt.Errorf("level %d offset broadcast failed: %w", i, err)
			}
		}
		e.device.Finish()
	}
	return nil
}
