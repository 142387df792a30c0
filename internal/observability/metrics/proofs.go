package metrics

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Proof pipeline results recorded by ObserveProof.
const (
	ResultVerified = "verified"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var proveBuckets = []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300}

type proofMetrics struct {
	mu       sync.Mutex
	results  map[string]uint64
	duration *histogram
}

var proofCollector = newProofMetrics()

func newProofMetrics() *proofMetrics {
	return &proofMetrics{
		results:  make(map[string]uint64),
		duration: newHistogram(proveBuckets),
	}
}

// ObserveProof records one prove-and-verify attempt and how long it took.
func ObserveProof(result string, duration time.Duration) {
	proofCollector.observe(result, duration)
}

func (p *proofMetrics) observe(result string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[result]++
	p.duration.observe(duration.Seconds())
}

func (p *proofMetrics) render() string {
	p.mu.Lock()
	results := make(map[string]uint64, len(p.results))
	for k, v := range p.results {
		results[k] = v
	}
	duration := p.duration.snapshot()
	p.mu.Unlock()

	var b strings.Builder
	total := newFamily(&b, "zkpong_proofs_total", "counter", "Prove-and-verify attempts by result.")
	for _, result := range slices.Sorted(maps.Keys(results)) {
		total.sample(labels{"result", result}, results[result])
	}
	newFamily(&b, "zkpong_prove_duration_seconds", "histogram", "Time spent proving and verifying a session.").
		histogram(nil, duration)
	return b.String()
}
