package scan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaiveScan_Example(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result, err := engine.NaiveScan(8, []int32{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("NaiveScan failed: %v", err)
	}
	assert.Equal(t, []int32{0, 1, 3, 6, 10, 15, 21, 28}, result)
}

func TestNaiveScan_Identity(t *testing.T) {
	engine := newTestEngine(t, Config{})

	result, err := engine.NaiveScan(0, nil)
	if err != nil {
		t.Fatalf("NaiveScan(0) failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("NaiveScan(0) returned %d elements, want 0", len(result))
	}
}

// The naive and work-efficient variants must agree bit-for-bit; only
// the work and memory traffic differ.
func TestNaiveScan_MatchesEfficient(t *testing.T) {
	engine := newTestEngine(t, Config{GroupCapacity: 16})
	rng := rand.New(rand.NewSource(23))

	for _, n := range []int{1, 2, 15, 16, 17, 300, 2048} {
		input := randomInput(rng, n)
		naive, err := engine.NaiveScan(n, input)
		if err != nil {
			t.Fatalf("NaiveScan(%d) failed: %v", n, err)
		}
		efficient, err := engine.Scan(n, input)
		if err != nil {
			t.Fatalf("Scan(%d) failed: %v", n, err)
		}
		assert.Equal(t, efficient, naive, "n=%d", n)
		assert.Equal(t, Sequential(input), naive, "n=%d", n)
	}
}
