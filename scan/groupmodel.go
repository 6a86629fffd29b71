package scan

// Host mirror of the in-group scan's step machine. Each function below
// corresponds to one barrier-delimited step d of the scanGroups kernel
// and mutates the shared-memory image the same way, so tests can audit
// every step boundary and its data dependencies on small fixed
// examples. len(s) must be a power of two.

// upsweepStep applies reduce step d: every index id with
// id mod 2^(d+1) == 0 adds the slot at offset 2^d - 1 into the slot at
// offset 2^(d+1) - 1.
func upsweepStep(s []int32, d int) {
	stride := 1 << (d + 1)
	for id := 0; id < len(s); id += stride {
		s[id+stride-1] += s[id+(1<<d)-1]
	}
}

// downsweepStep applies step d of the downsweep: at each active index
// the lower slot is swapped forward and the upper slot accumulates it.
func downsweepStep(s []int32, d int) {
	stride := 1 << (d + 1)
	for id := 0; id < len(s); id += stride {
		lo := id + (1 << d) - 1
		hi := id + stride - 1
		carry := s[lo]
		s[lo] = s[hi]
		s[hi] += carry
	}
}

// groupScanExclusive runs the full two-phase scan in place, leaving the
// exclusive result in s and returning the group total captured between
// the phases.
func groupScanExclusive(s []int32) int32 {
	steps := ceilLog2(len(s))
	for d := 0; d < steps; d++ {
		upsweepStep(s, d)
	}
	total := s[len(s)-1]
	s[len(s)-1] = 0
	for d := steps - 1; d >= 0; d-- {
		downsweepStep(s, d)
	}
	return total
}
