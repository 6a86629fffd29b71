package utils

import (
	"fmt"

	"github.com/notargets/gocca"
)

// CreateTestDevice creates a Device for testing, preferring parallel backends
func CreateTestDevice() *gocca.OCCADevice {
	// Try OpenMP, then CUDA, then fall back to Serial
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}

	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			fmt.Printf("Created %s Device\n", device.Mode())
			return device
		}
	}

	// Should not reach here
	panic("Failed to create any Device")
}

// MaxGroupSize reports the largest cooperative work-group the device
// supports: the number of threads that can synchronize via a barrier
// while sharing fast local memory. OCCA exposes the backend mode rather
// than a numeric limit, so the mapping follows the backend architecture.
func MaxGroupSize(device *gocca.OCCADevice) int {
	switch device.Mode() {
	case "CUDA", "HIP":
		// CUDA is limited to 1024 threads per @inner loop
		return 1024
	case "OpenCL":
		return 256
	default:
		// Serial and OpenMP emulate @inner lanes; keep groups modest
		// so the shared scratch stays cache-resident
		return 256
	}
}
