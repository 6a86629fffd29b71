package scan

import (
	"fmt"
	"strings"

	"github.com/notargets/gocca"
)

// Kernel registry names
const (
	kernelScanGroups         = "scanGroups"
	kernelExtractGroupTotals = "extractGroupTotals"
	kernelShiftToExclusive   = "shiftToExclusive"
	kernelAddGroupOffsets    = "addGroupOffsets"
	kernelNaiveScanStep      = "naiveScanStep"
)

// scanGroupsKernel is the work-efficient two-phase scan, one work-group
// per GROUP_SIZE slab. The sweep loops run sequentially per step d with
// one @inner loop each, so OCCA places a group barrier at every step
// boundary: all writes of step d are visible before any read of step
// d+1. The group total is captured before the root is cleared with the
// scan identity, and the exclusive in-place result is emitted shifted
// left by one to give the inclusive form, closed with the total.
const scanGroupsKernel = `
@kernel void scanGroups(const int numGroups,
                        const int *levelIn,
                        int *levelScratch) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    @shared int s_data[GROUP_SIZE];
    @shared int s_total[1];

    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      s_data[t] = levelIn[g * GROUP_SIZE + t];
    }

    // Upsweep: reduce pairs at stride 2^(d+1)
    for (int d = 0; d < GROUP_LOG2; ++d) {
      for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
        const int stride = 1 << (d + 1);
        if ((t % stride) == 0) {
          s_data[t + stride - 1] += s_data[t + (1 << d) - 1];
        }
      }
    }

    // Capture the group total, clear the root with the identity
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      if (t == 0) {
        s_total[0] = s_data[GROUP_SIZE - 1];
        s_data[GROUP_SIZE - 1] = 0;
      }
    }

    // Downsweep: swap forward and accumulate back down the tree
    for (int d = GROUP_LOG2 - 1; d >= 0; --d) {
      for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
        const int stride = 1 << (d + 1);
        if ((t % stride) == 0) {
          const int lo = t + (1 << d) - 1;
          const int hi = t + stride - 1;
          const int carry = s_data[lo];
          s_data[lo] = s_data[hi];
          s_data[hi] += carry;
        }
      }
    }

    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      const int gid = g * GROUP_SIZE + t;
      if (t == GROUP_SIZE - 1) {
        levelScratch[gid] = s_total[0];
      } else {
        levelScratch[gid] = s_data[t + 1];
      }
    }
  }
}
`

// extractGroupTotalsKernel pulls the last element of each group out of
// the inclusive scratch. That slot holds the group's total sum, which
// becomes one input element of the next hierarchy level.
const extractGroupTotalsKernel = `
@kernel void extractGroupTotals(const int numGroups,
                                const int *levelScratch,
                                int *nextLevelIn) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      if (t == GROUP_SIZE - 1) {
        nextLevelIn[g] = levelScratch[g * GROUP_SIZE + t];
      }
    }
  }
}
`

// shiftToExclusiveKernel converts a level's inclusive scratch to the
// exclusive form: one-position right shift with 0 at level position 0.
const shiftToExclusiveKernel = `
@kernel void shiftToExclusive(const int numGroups,
                              const int *levelScratch,
                              int *levelOut) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      const int gid = g * GROUP_SIZE + t;
      levelOut[gid] = (gid == 0) ? 0 : levelScratch[gid - 1];
    }
  }
}
`

// addGroupOffsetsKernel broadcasts one offset per group onto every
// element of that group. offsets is the exclusive output of the level
// above (one value per group of the target level); the target is the
// level's inclusive scratch, which becomes globally inclusive.
const addGroupOffsetsKernel = `
@kernel void addGroupOffsets(const int numGroups,
                             const int *offsets,
                             int *levelScratch) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      levelScratch[g * GROUP_SIZE + t] += offsets[g];
    }
  }
}
`

// naiveScanStepKernel is one iterative-doubling step of the
// non-work-efficient scan over global memory. src and dst ping-pong
// between steps on the host side.
const naiveScanStepKernel = `
@kernel void naiveScanStep(const int numGroups,
                           const int offset,
                           const int *src,
                           int *dst) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      const int gid = g * GROUP_SIZE + t;
      dst[gid] = (gid >= offset) ? src[gid - offset] + src[gid] : src[gid];
    }
  }
}
`

var kernelSources = map[string]string{
	kernelScanGroups:         scanGroupsKernel,
	kernelExtractGroupTotals: extractGroupTotalsKernel,
	kernelShiftToExclusive:   shiftToExclusiveKernel,
	kernelAddGroupOffsets:    addGroupOffsetsKernel,
	kernelNaiveScanStep:      naiveScanStepKernel,
}

// kernelPreamble generates the shared kernel preamble
func (e *Engine) kernelPreamble() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#define GROUP_SIZE %d\n", e.groupSize))
	sb.WriteString(fmt.Sprintf("#define GROUP_LOG2 %d\n", e.groupLog2))
	return sb.String()
}

// BuildKernel compiles an OKL kernel against the engine's preamble and
// device. The compaction driver uses this to build its own kernels with
// the same GROUP_SIZE.
func (e *Engine) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	fullSource := e.kernelPreamble() + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	var err error

	if e.device.Mode() == "OpenMP" {
		// Workaround for OCCA bug: OpenMP doesn't get default -O3 flag
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = e.device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = e.device.BuildKernelFromString(fullSource, kernelName, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}
	return kernel, nil
}
