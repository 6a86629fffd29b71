package utils

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// Timer instruments the device-side portion of a scan or compact call.
// Implementations are injected per engine; the engine calls Start
// immediately before the first kernel dispatch of an invocation and
// Stop after the last dispatch once the device has drained.
type Timer interface {
	Start()
	Stop()
}

// NopTimer satisfies Timer without recording anything.
type NopTimer struct{}

func (NopTimer) Start() {}
func (NopTimer) Stop()  {}

// Stopwatch is a Timer that accumulates one wall-clock sample per
// Start/Stop pair. It is not safe for concurrent use; give each
// engine its own instance.
type Stopwatch struct {
	start   time.Time
	samples []float64 // milliseconds
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{}
}

func (s *Stopwatch) Start() {
	s.start = time.Now()
}

func (s *Stopwatch) Stop() {
	s.samples = append(s.samples, float64(time.Since(s.start))/float64(time.Millisecond))
}

// Count returns the number of completed Start/Stop pairs.
func (s *Stopwatch) Count() int {
	return len(s.samples)
}

// LastMilliseconds returns the most recent sample, or 0 if none exist.
func (s *Stopwatch) LastMilliseconds() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[len(s.samples)-1]
}

// Samples returns a copy of all recorded samples in milliseconds.
func (s *Stopwatch) Samples() []float64 {
	out := make([]float64, len(s.samples))
	copy(out, s.samples)
	return out
}

// Summary returns the mean and standard deviation of all samples in
// milliseconds. The deviation is 0 when fewer than two samples exist.
func (s *Stopwatch) Summary() (mean, stddev float64) {
	if len(s.samples) == 0 {
		return 0, 0
	}
	mean = stat.Mean(s.samples, nil)
	if len(s.samples) > 1 {
		stddev = stat.StdDev(s.samples, nil)
	}
	return mean, stddev
}

// Reset discards all recorded samples.
func (s *Stopwatch) Reset() {
	s.samples = s.samples[:0]
}
