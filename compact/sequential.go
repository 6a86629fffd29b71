package compact

// Sequential removes zero elements on the host in a single pass,
// returning the survivors and their count. Reference and baseline for
// the device compaction.
func Sequential(input []int32) ([]int32, int) {
	output := make([]int32, 0, len(input))
	for _, v := range input {
		if v != 0 {
			output = append(output, v)
		}
	}
	return output, len(output)
}
