// Package compact removes zero-valued elements from int32 arrays on an
// OCCA device, preserving relative order. It drives the scan engine as
// a pure sub-routine: a keep mask is built from the input, the
// exclusive scan of the mask yields each kept element's destination
// index, and a scatter pass writes the survivors.
package compact

import (
	"fmt"
	"unsafe"

	"github.com/notargets/gocca"
	"github.com/notargets/gpuscan/scan"
	"github.com/notargets/gpuscan/utils"
)

// Config controls compactor construction
type Config struct {
	// Timer wraps the parallel portion of each Compact invocation
	// (mask, scan, scatter). nil disables instrumentation.
	Timer utils.Timer
}

// Compactor holds the compiled mask and scatter kernels and the scan
// engine they bracket. Like the engine, one instance serves sequential
// calls of any size and is not safe for concurrent use.
type Compactor struct {
	engine  *scan.Engine
	Kernels map[string]*gocca.OCCAKernel
	timer   utils.Timer
}

// NewCompactor compiles the compaction kernels against the engine's
// device and group capacity.
func NewCompactor(engine *scan.Engine, cfg Config) (*Compactor, error) {
	if engine == nil {
		panic("compact: nil engine")
	}

	timer := cfg.Timer
	if timer == nil {
		timer = utils.NopTimer{}
	}

	c := &Compactor{
		engine:  engine,
		Kernels: make(map[string]*gocca.OCCAKernel),
		timer:   timer,
	}
	for name, source := range kernelSources {
		kernel, err := engine.BuildKernel(source, name)
		if err != nil {
			c.Free()
			return nil, err
		}
		c.Kernels[name] = kernel
	}
	return c, nil
}

// Free releases the compiled kernels. The scan engine is owned by the
// caller and is not freed.
func (c *Compactor) Free() {
	for _, kernel := range c.Kernels {
		if kernel != nil {
			kernel.Free()
		}
	}
	c.Kernels = nil
}

// Compact returns the nonzero elements of input[0:n] in their original
// relative order, together with their count. For n <= 0 the call is a
// no-op that passes n through unchanged as the count — observable
// behavior, deliberately not unified with Scan's plain empty result.
func (c *Compactor) Compact(n int, input []int32) ([]int32, int, error) {
	if n <= 0 {
		return []int32{}, n, nil
	}

	device := c.engine.Device()
	nPad := scan.PaddedSize(n)
	capacity := c.engine.LevelCapacity(nPad)
	groups := capacity / c.engine.GroupSize()
	padded := make([]int32, capacity)
	copy(padded, input[:n])

	work, err := c.engine.AllocInt32(padded)
	if err != nil {
		return nil, 0, err
	}
	defer work.Free()
	mask, err := c.engine.AllocZeroed(capacity)
	if err != nil {
		return nil, 0, err
	}
	defer mask.Free()
	destIndex, err := c.engine.AllocZeroed(capacity)
	if err != nil {
		return nil, 0, err
	}
	defer destIndex.Free()
	out, err := c.engine.AllocZeroed(capacity)
	if err != nil {
		return nil, 0, err
	}
	defer out.Free()

	c.timer.Start()
	runErr := c.runCompact(nPad, groups, n, work, mask, destIndex, out)
	device.Finish()
	c.timer.Stop()
	if runErr != nil {
		return nil, 0, runErr
	}

	// keptCount = exclusive count at the original (unpadded) last
	// index plus that element's own keep flag
	var lastDest, lastMask int32
	destIndex.CopyToWithOffset(unsafe.Pointer(&lastDest), 4, int64((n-1)*4))
	mask.CopyToWithOffset(unsafe.Pointer(&lastMask), 4, int64((n-1)*4))
	kept := int(lastDest + lastMask)

	result := make([]int32, kept)
	if kept > 0 {
		out.CopyTo(unsafe.Pointer(&result[0]), int64(kept*4))
	}
	return result, kept, nil
}

// runCompact dispatches mask → scan → scatter. Finish between stages
// is the device-wide barrier ordering each stage's writes before the
// next stage's reads.
func (c *Compactor) runCompact(nPad, groups, n int, work, mask, destIndex, out *gocca.OCCAMemory) error {
	if err := c.Kernels[kernelBuildKeepMask].RunWithArgs(
		int32(groups), work, mask); err != nil {
		return fmt.Errorf("keep mask failed: %w", err)
	}
	c.engine.Device().Finish()

	if err := c.engine.ScanDevice(nPad, mask, destIndex); err != nil {
		return fmt.Errorf("mask scan failed: %w", err)
	}

	if err := c.Kernels[kernelScatterKept].RunWithArgs(
		int32(groups), int32(n), work, mask, destIndex, out); err != nil {
		return fmt.Errorf("scatter failed: %w", err)
	}
	return nil
}
