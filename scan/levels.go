package scan

import (
	"fmt"
	"math/bits"
	"unsafe"

	"github.com/notargets/gocca"
)

// nextPowerOfTwo returns the smallest power of two >= n, with n <= 1
// mapping to 1. The size-1 subtraction keeps exact powers of two from
// doubling.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func ceilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// levelPlan describes one tier of the scan hierarchy: how many real
// elements it scans and how many work-groups cover them.
type levelPlan struct {
	length int
	groups int
}

// buildLevelPlans lays out the hierarchy for a padded input of nPad
// elements. Each tier's length is the previous tier's group count; the
// hierarchy ends once a single group suffices.
func buildLevelPlans(nPad, groupSize int) []levelPlan {
	var plans []levelPlan
	length := nPad
	for {
		groups := (length + groupSize - 1) / groupSize
		plans = append(plans, levelPlan{length: length, groups: groups})
		if groups == 1 {
			break
		}
		length = groups
	}
	return plans
}

// level owns the device buffers for one hierarchy tier: the tier's
// input, the in-group inclusive scratch, and the final exclusive
// output. Capacity is groups*groupSize elements and any slot beyond
// length is zero, so kernels need no bounds checks. No buffer is
// shared across tiers; level 0 may borrow caller-owned buffers.
type level struct {
	levelPlan
	capacity int

	input   *gocca.OCCAMemory
	scratch *gocca.OCCAMemory
	output  *gocca.OCCAMemory

	borrowedInput  bool
	borrowedOutput bool
}

// hierarchy is the arena of levels for one scan invocation, built
// bottom-up and torn down symmetrically by free.
type hierarchy struct {
	levels []*level
}

// AllocZeroed allocates a zero-filled device buffer of n int32 elements.
func (e *Engine) AllocZeroed(n int) (*gocca.OCCAMemory, error) {
	return e.AllocInt32(make([]int32, n))
}

// AllocInt32 allocates a device buffer seeded from host data.
func (e *Engine) AllocInt32(host []int32) (*gocca.OCCAMemory, error) {
	mem := e.device.Malloc(int64(len(host)*4), unsafe.Pointer(&host[0]), nil)
	if mem == nil {
		return nil, fmt.Errorf("device allocation of %d bytes failed", len(host)*4)
	}
	return mem, nil
}

// newHierarchy builds the level arena for a padded length. in0 and
// out0, when non-nil, are borrowed as level 0's input and output and
// are not freed with the arena. A failed allocation releases
// everything already allocated before returning.
func (e *Engine) newHierarchy(nPad int, in0, out0 *gocca.OCCAMemory) (*hierarchy, error) {
	h := &hierarchy{}
	for i, plan := range buildLevelPlans(nPad, e.groupSize) {
		lev := &level{levelPlan: plan, capacity: plan.groups * e.groupSize}
		h.levels = append(h.levels, lev)

		var err error
		if i == 0 && in0 != nil {
			lev.input = in0
			lev.borrowedInput = true
		} else if lev.input, err = e.AllocZeroed(lev.capacity); err != nil {
			h.free()
			return nil, fmt.Errorf("level %d input: %w", i, err)
		}
		if lev.scratch, err = e.AllocZeroed(lev.capacity); err != nil {
			h.free()
			return nil, fmt.Errorf("level %d scratch: %w", i, err)
		}
		if i == 0 && out0 != nil {
			lev.output = out0
			lev.borrowedOutput = true
		} else if lev.output, err = e.AllocZeroed(lev.capacity); err != nil {
			h.free()
			return nil, fmt.Errorf("level %d output: %w", i, err)
		}
	}
	return h, nil
}

func (h *hierarchy) free() {
	for _, lev := range h.levels {
		if lev.input != nil && !lev.borrowedInput {
			lev.input.Free()
		}
		if lev.scratch != nil {
			lev.scratch.Free()
		}
		if lev.output != nil && !lev.borrowedOutput {
			lev.output.Free()
		}
	}
	h.levels = nil
}
