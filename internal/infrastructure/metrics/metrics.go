// Package metrics is the counter/histogram sink injected into services.
// The process owns a single sink; tests build their own and Reset it.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

const (
	PaymentOrdersCreated   = "payment_orders_created"
	PaymentVerifySuccess   = "payment_verify_success"
	PaymentVerifyFailure   = "payment_verify_failure"
	PaymentReportedFailed  = "payment_reported_failed"
	ReconcileCorrected     = "reconcile_corrected"
	ReconcileDiscrepancies = "reconcile_discrepancies"
	CleanupAbandoned       = "cleanup_abandoned"
	CleanupPurged          = "cleanup_purged"
	GatewayCallSeconds     = "gateway_call_seconds"
	FineCalculations       = "fine_calculations"
)

type Sink interface {
	Add(name string, delta int64)
	Observe(name string, d time.Duration)
}

func Inc(s Sink, name string) { s.Add(name, 1) }

type Nop struct{}

func (Nop) Add(string, int64)             {}
func (Nop) Observe(string, time.Duration) {}

// bucketBounds are the upper bounds of the duration histogram; anything
// slower lands in the overflow bucket.
var bucketBounds = []time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
}

type series struct {
	count   int64
	sum     time.Duration
	max     time.Duration
	buckets []int64
}

func (s *series) observe(d time.Duration) {
	s.count++
	s.sum += d
	if d > s.max {
		s.max = d
	}
	i := 0
	for i < len(bucketBounds) && d > bucketBounds[i] {
		i++
	}
	s.buckets[i]++
}

// Bucket counts observations at or below LE seconds that did not fit an
// earlier bucket.
type Bucket struct {
	LE    string `json:"le"`
	Count int64  `json:"count"`
}

// Summary is the fixed-size digest of one observed series.
type Summary struct {
	Count       int64    `json:"count"`
	SumSeconds  float64  `json:"sum_seconds"`
	MeanSeconds float64  `json:"mean_seconds"`
	MaxSeconds  float64  `json:"max_seconds"`
	Buckets     []Bucket `json:"buckets"`
}

func (s *series) summary() Summary {
	out := Summary{
		Count:      s.count,
		SumSeconds: s.sum.Seconds(),
		MaxSeconds: s.max.Seconds(),
		Buckets:    make([]Bucket, len(s.buckets)),
	}
	if s.count > 0 {
		out.MeanSeconds = out.SumSeconds / float64(s.count)
	}
	for i, n := range s.buckets {
		le := "+Inf"
		if i < len(bucketBounds) {
			le = strconv.FormatFloat(bucketBounds[i].Seconds(), 'f', -1, 64)
		}
		out.Buckets[i] = Bucket{LE: le, Count: n}
	}
	return out
}

// Memory keeps everything in process; it backs the stats endpoint. Memory use
// is bounded by the number of metric names.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
	observed map[string]*series
}

func NewMemory() *Memory {
	return &Memory{counters: map[string]int64{}, observed: map[string]*series{}}
}

func (m *Memory) Add(name string, delta int64) {
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

func (m *Memory) Observe(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.observed[name]
	if !ok {
		s = &series{buckets: make([]int64, len(bucketBounds)+1)}
		m.observed[name] = s
	}
	s.observe(d)
}

func (m *Memory) Counter(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Snapshot copies the counters.
func (m *Memory) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// Summaries digests every observed series.
func (m *Memory) Summaries() map[string]Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Summary, len(m.observed))
	for k, s := range m.observed {
		out[k] = s.summary()
	}
	return out
}

// Reset is for tests.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.counters = map[string]int64{}
	m.observed = map[string]*series{}
	m.mu.Unlock()
}
