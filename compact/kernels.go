package compact

// Kernel registry names
const (
	kernelBuildKeepMask = "buildKeepMask"
	kernelScatterKept   = "scatterKept"
)

// buildKeepMaskKernel flags every nonzero element of the padded work
// array. Padding slots are zero, so their mask is always 0 and they
// never contribute to destination indices.
const buildKeepMaskKernel = `
@kernel void buildKeepMask(const int numGroups,
                           const int *work,
                           int *mask) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      const int gid = g * GROUP_SIZE + t;
      mask[gid] = (work[gid] != 0) ? 1 : 0;
    }
  }
}
`

// scatterKeptKernel writes each kept element to the destination slot
// the mask scan assigned it. Only original indices below n scatter;
// the relative order of kept elements is preserved because destination
// indices are strictly increasing over kept positions.
const scatterKeptKernel = `
@kernel void scatterKept(const int numGroups,
                         const int n,
                         const int *work,
                         const int *mask,
                         const int *destIndex,
                         int *out) {
  for (int g = 0; g < numGroups; ++g; @outer) {
    for (int t = 0; t < GROUP_SIZE; ++t; @inner) {
      const int gid = g * GROUP_SIZE + t;
      if (gid < n && mask[gid]) {
        out[destIndex[gid]] = work[gid];
      }
    }
  }
}
`

var kernelSources = map[string]string{
	kernelBuildKeepMask: buildKeepMaskKernel,
	kernelScatterKept:   scatterKeptKernel,
}
