package scan

// Sequential computes the exclusive prefix sum on the host in a single
// pass. It is the correctness reference and timing baseline for the
// device scans.
func Sequential(input []int32) []int32 {
	output := make([]int32, len(input))
	var sum int32
	for i, v := range input {
		output[i] = sum
		sum += v
	}
	return output
}
