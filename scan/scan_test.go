package scan

import (
	"math/rand"
	"testing"

	"github.com/notargets/gpuscan/utils"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	device := utils.CreateTestDevice()
	t.Cleanup(func() { device.Free() })
	engine, err := NewEngine(device, cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	t.Cleanup(engine.Free)
	return engine
}

func randomInput(rng *rand.Rand, n int) []int32 {
	input := make([]int32, n)
	for i := range input {
		input[i] = int32(rng.Intn(200) - 100)
	}
	return input
}

func TestEngine_Config(t *testing.T) {
	t.Run("NilDevice", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic for nil device")
			}
		}()
		NewEngine(nil, Config{})
	})

	t.Run("NonPowerOfTwoCapacity", func(t *testing.T) {
		device := utils.CreateTestDevice()
		defer device.Free()
		if _, err := NewEngine(device, Config{GroupCapacity: 3}); err == nil {
			t.Error("expected error for group capacity 3")
		}
		if _, err := NewEngine(device, Config{GroupCapacity: 1}); err == nil {
			t.Error("expected error for group capacity 1")
		}
	})

	t.Run("DefaultCapacityFromDevice", func(t *testing.T) {
		engine := newTestEngine(t, Config{})
		want := utils.MaxGroupSize(engine.Device())
		if engine.GroupSize() != want {
			t.Errorf("GroupSize() = %d, want %d", engine.GroupSize(), want)
		}
	})
}

func TestScan_Identity(t *testing.T) {
	engine := newTestEngine(t, Config{})

	for _, n := range []int{0, -1, -5} {
		result, err := engine.Scan(n, nil)
		if err != nil {
			t.Fatalf("Scan(%d) failed: %v", n, err)
		}
		if len(result) != 0 {
			t.Errorf("Scan(%d) returned %d elements, want 0", n, len(result))
		}
	}
}

func TestScan_SingleElement(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result, err := engine.Scan(1, []int32{5})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assert.Equal(t, []int32{0}, result)
}

func TestScan_Example(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result, err := engine.Scan(8, []int32{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assert.Equal(t, []int32{0, 1, 3, 6, 10, 15, 21, 28}, result)
}

func TestScan_Exclusiveness(t *testing.T) {
	engine := newTestEngine(t, Config{})
	rng := rand.New(rand.NewSource(11))

	input := randomInput(rng, 777)
	result, err := engine.Scan(len(input), input)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result[0] != 0 {
		t.Errorf("result[0] = %d, want 0", result[0])
	}
	for k := 1; k < len(result); k++ {
		if result[k] != result[k-1]+input[k-1] {
			t.Fatalf("result[%d] = %d, want result[%d] + input[%d] = %d",
				k, result[k], k-1, k-1, result[k-1]+input[k-1])
		}
	}
}

func TestScan_MatchesSequential(t *testing.T) {
	engine := newTestEngine(t, Config{})
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{1, 2, 3, 7, 8, 9, 255, 256, 257, 1000, 4096, 10000} {
		input := randomInput(rng, n)
		result, err := engine.Scan(n, input)
		if err != nil {
			t.Fatalf("Scan(%d) failed: %v", n, err)
		}
		assert.Equal(t, Sequential(input), result, "n=%d", n)
	}
}

// Small group capacity forces a deep hierarchy; the results must be
// bit-identical to the single-pass host reference, making the
// decomposition purely a feasibility mechanism.
func TestScan_MultiLevel(t *testing.T) {
	engine := newTestEngine(t, Config{GroupCapacity: 4})
	rng := rand.New(rand.NewSource(99))

	// n=1000 at capacity 4: levels of 1024, 256, 64, 16, 4 elements
	for _, n := range []int{5, 16, 17, 100, 1000} {
		input := randomInput(rng, n)
		result, err := engine.Scan(n, input)
		if err != nil {
			t.Fatalf("Scan(%d) failed: %v", n, err)
		}
		assert.Equal(t, Sequential(input), result, "n=%d", n)
	}
}

// Scanning n elements must equal scanning the zero-padded power-of-two
// array and truncating back to n.
func TestScan_IdempotentPadding(t *testing.T) {
	engine := newTestEngine(t, Config{GroupCapacity: 8})
	rng := rand.New(rand.NewSource(5))

	n := 100
	input := randomInput(rng, n)
	nPad := PaddedSize(n)
	padded := make([]int32, nPad)
	copy(padded, input)

	direct, err := engine.Scan(n, input)
	if err != nil {
		t.Fatalf("Scan(%d) failed: %v", n, err)
	}
	wide, err := engine.Scan(nPad, padded)
	if err != nil {
		t.Fatalf("Scan(%d) failed: %v", nPad, err)
	}
	assert.Equal(t, wide[:n], direct)
}

func TestScan_InputUnmodified(t *testing.T) {
	engine := newTestEngine(t, Config{})

	input := []int32{9, -3, 0, 7, 2}
	original := append([]int32(nil), input...)
	if _, err := engine.Scan(len(input), input); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	assert.Equal(t, original, input)
}

func TestScan_TimerFiresOncePerCall(t *testing.T) {
	sw := utils.NewStopwatch()
	engine := newTestEngine(t, Config{Timer: sw})

	if _, err := engine.Scan(100, make([]int32, 100)); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if sw.Count() != 1 {
		t.Errorf("stopwatch recorded %d samples after one call, want 1", sw.Count())
	}

	// Degenerate size never reaches a dispatch, so no sample
	if _, err := engine.Scan(0, nil); err != nil {
		t.Fatalf("Scan(0) failed: %v", err)
	}
	if sw.Count() != 1 {
		t.Errorf("stopwatch recorded %d samples after degenerate call, want 1", sw.Count())
	}
}
