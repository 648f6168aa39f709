// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"sync"
	"time"
)

const DurationBuckets = 40
const DurationBucketSize = 5 * time.Second

// Histogram counts run durations in fixed-width buckets. The last bucket
// also holds everything longer.
type Histogram struct {
	Buckets [DurationBuckets]uint64 `json:"b"`
	Count   uint64                  `json:"c"`
	Sum     float64                 `json:"s"` // Sum of durations in milliseconds
}

func (h *Histogram) Add(d time.Duration) {
	idx := int(d / DurationBucketSize)
	if idx >= DurationBuckets {
		idx = DurationBuckets - 1
	}
	if idx < 0 {
		idx = 0
	}
	h.Buckets[idx]++
	h.Count++
	h.Sum += float64(d.Milliseconds())
}

func (h *Histogram) Merge(other *Histogram) {
	if other == nil {
		return
	}
	for i := 0; i < DurationBuckets; i++ {
		h.Buckets[i] += other.Buckets[i]
	}
	h.Count += other.Count
	h.Sum += other.Sum
}

// ResolutionConfig defines the policy for a single ring buffer.
type ResolutionConfig struct {
	Name       string        `json:"name"`
	Resolution time.Duration `json:"resolution"`
	Buckets    int           `json:"buckets"`
}

var DefaultResolutions = []ResolutionConfig{
	{"1h", time.Hour, 48},
	{"1d", 24 * time.Hour, 31},
}

// Point represents a single data point in a time series.
type Point[T any] struct {
	Timestamp int64 `json:"t"`
	Value     T     `json:"v"`
}

// RingBuffer is a fixed-size circular buffer for storing time series data.
type RingBuffer[T any] struct {
	Config ResolutionConfig `json:"config"`
	Data   []Point[T]       `json:"data"`
	Head   int              `json:"head"` // Points to the *next* write position
}

func NewRingBuffer[T any](cfg ResolutionConfig) *RingBuffer[T] {
	return &RingBuffer[T]{
		Config: cfg,
		Data:   make([]Point[T], cfg.Buckets),
	}
}

// Update applies fn to the point of the bucket containing timestamp,
// starting a new point when the bucket changed.
func (rb *RingBuffer[T]) Update(timestamp int64, fn func(*T)) {
	resSec := int64(rb.Config.Resolution.Seconds())
	alignedTs := (timestamp / resSec) * resSec

	prevIdx := (rb.Head - 1 + len(rb.Data)) % len(rb.Data)
	if rb.Data[prevIdx].Timestamp == alignedTs {
		fn(&rb.Data[prevIdx].Value)
		return
	}
	var zero T
	rb.Data[rb.Head] = Point[T]{Timestamp: alignedTs, Value: zero}
	fn(&rb.Data[rb.Head].Value)
	rb.Head = (rb.Head + 1) % len(rb.Data)
}

// GetPoints returns the data points sorted by time.
func (rb *RingBuffer[T]) GetPoints() []Point[T] {
	points := make([]Point[T], 0, len(rb.Data))
	for i := 0; i < len(rb.Data); i++ {
		idx := (rb.Head + i) % len(rb.Data)
		if rb.Data[idx].Timestamp > 0 {
			points = append(points, rb.Data[idx])
		}
	}
	return points
}

// RunCounts tallies runs by how they ended.
type RunCounts struct {
	Total    uint64 `json:"total"`
	ExitZero uint64 `json:"exitZero"`
	ExitNon0 uint64 `json:"exitNonZero"`
	TimedOut uint64 `json:"timedOut"`
	Errored  uint64 `json:"errored"`
}

func (c *RunCounts) add(res RunResult) {
	c.Total++
	switch {
	case res.TimedOut:
		c.TimedOut++
	case res.Err != nil:
		c.Errored++
	case res.ExitCode == 0:
		c.ExitZero++
	default:
		c.ExitNon0++
	}
}

// RunMetrics aggregates driver runs since the server started.
type RunMetrics struct {
	mu        sync.Mutex
	startedAt time.Time
	counts    RunCounts
	durations Histogram
	series    map[string]*RingBuffer[RunCounts]
}

func NewRunMetrics() *RunMetrics {
	series := make(map[string]*RingBuffer[RunCounts])
	for _, cfg := range DefaultResolutions {
		series[cfg.Name] = NewRingBuffer[RunCounts](cfg)
	}
	return &RunMetrics{
		startedAt: time.Now().UTC(),
		series:    series,
	}
}

// Record adds a finished run.
func (m *RunMetrics) Record(res RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counts.add(res)
	m.durations.Add(res.Duration)
	ts := res.Started.Unix()
	for _, buf := range m.series {
		buf.Update(ts, func(c *RunCounts) { c.add(res) })
	}
}

// MetricsSnapshot is the JSON document served by /metrics.
type MetricsSnapshot struct {
	Since     time.Time                     `json:"since"`
	Runs      RunCounts                     `json:"runs"`
	Durations Histogram                     `json:"durations"`
	Series    map[string][]Point[RunCounts] `json:"series"`
}

func (m *RunMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := make(map[string][]Point[RunCounts], len(m.series))
	for name, buf := range m.series {
		series[name] = buf.GetPoints()
	}
	return MetricsSnapshot{
		Since:     m.startedAt,
		Runs:      m.counts,
		Durations: m.durations,
		Series:    series,
	}
}
