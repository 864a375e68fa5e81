package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gateway-fm/quotebench/pkg/types"
)

const defaultReservoirSize = 10000

// StreamingLatencyStats computes latency percentiles over an unbounded stream
// of samples using reservoir sampling, so memory stays constant no matter how
// many transactions a run confirms.
type StreamingLatencyStats struct {
	mu sync.Mutex

	count int64
	sum   float64
	min   float64
	max   float64

	reservoir []float64
	rngState  uint64
}

// NewStreamingLatencyStats creates a stats collector with the default
// reservoir size.
func NewStreamingLatencyStats() *StreamingLatencyStats {
	return &StreamingLatencyStats{
		reservoir: make([]float64, 0, defaultReservoirSize),
		min:       math.MaxFloat64,
		rngState:  uint64(time.Now().UnixNano()) | 1,
	}
}

// Add records a single latency sample.
func (s *StreamingLatencyStats) Add(latency time.Duration) {
	ms := float64(latency.Microseconds()) / 1000.0

	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	s.sum += ms
	if ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}

	// Algorithm R: keep a uniform sample of the stream.
	if len(s.reservoir) < cap(s.reservoir) {
		s.reservoir = append(s.reservoir, ms)
	} else {
		idx := s.fastRand() % uint64(s.count)
		if idx < uint64(len(s.reservoir)) {
			s.reservoir[idx] = ms
		}
	}
}

// fastRand is a xorshift64* generator. It is not cryptographic, it only has
// to be cheap and uniform enough for reservoir replacement.
func (s *StreamingLatencyStats) fastRand() uint64 {
	s.rngState ^= s.rngState >> 12
	s.rngState ^= s.rngState << 25
	s.rngState ^= s.rngState >> 27
	return s.rngState * 0x2545F4914F6CDD1D
}

// Count returns the number of samples recorded so far.
func (s *StreamingLatencyStats) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// GetStats returns a snapshot of the collected statistics. Percentiles are
// estimated from the reservoir.
func (s *StreamingLatencyStats) GetStats() *types.LatencyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &types.LatencyStats{Count: int(s.count)}
	if s.count == 0 {
		return stats
	}

	stats.Min = s.min
	stats.Max = s.max
	stats.Avg = s.sum / float64(s.count)

	sorted := make([]float64, len(s.reservoir))
	copy(sorted, s.reservoir)
	sort.Float64s(sorted)

	stats.P50 = percentile(sorted, 0.50)
	stats.P95 = percentile(sorted, 0.95)
	stats.P99 = percentile(sorted, 0.99)
	return stats
}

// Reset clears all collected samples.
func (s *StreamingLatencyStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = 0
	s.sum = 0
	s.min = math.MaxFloat64
	s.max = 0
	s.reservoir = s.reservoir[:0]
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
