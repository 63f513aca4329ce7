package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks viewer frame and event counters. Safe for concurrent use.
type Metrics struct {
	frameCount   atomic.Uint64
	frameTotalNs atomic.Int64
	frameMinNs   atomic.Int64
	frameMaxNs   atomic.Int64
	lastFrameNs  atomic.Int64
	cellsApplied atomic.Uint64
	idleFrames   atomic.Uint64

	eventCount  atomic.Uint64
	reloadCount atomic.Uint64
	reloadFails atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.frameMinNs.Store(1<<63 - 1)
	return m
}

// RecordFrame records one rendered frame that applied cells changes.
// Frames with no changes count as idle.
func (m *Metrics) RecordFrame(d time.Duration, cells int) {
	if cells == 0 {
		m.idleFrames.Add(1)
		return
	}
	ns := d.Nanoseconds()
	m.frameCount.Add(1)
	m.frameTotalNs.Add(ns)
	m.lastFrameNs.Store(ns)
	m.cellsApplied.Add(uint64(cells))

	for {
		old := m.frameMinNs.Load()
		if ns >= old || m.frameMinNs.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.frameMaxNs.Load()
		if ns <= old || m.frameMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordEvent records one handled display event.
func (m *Metrics) RecordEvent() {
	m.eventCount.Add(1)
}

// RecordReload records a document reload attempt.
func (m *Metrics) RecordReload(ok bool) {
	if ok {
		m.reloadCount.Add(1)
		return
	}
	m.reloadFails.Add(1)
}

// Snapshot returns a point-in-time copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	frames := m.frameCount.Load()
	var avg int64
	if frames > 0 {
		avg = m.frameTotalNs.Load() / int64(frames)
	}
	minNs := m.frameMinNs.Load()
	if minNs == 1<<63-1 {
		minNs = 0
	}
	return MetricsSnapshot{
		Uptime:         time.Since(m.startTime),
		FrameCount:     frames,
		IdleFrames:     m.idleFrames.Load(),
		CellsApplied:   m.cellsApplied.Load(),
		AvgFrameTimeNs: avg,
		MinFrameTimeNs: minNs,
		MaxFrameTimeNs: m.frameMaxNs.Load(),
		LastFrameNs:    m.lastFrameNs.Load(),
		EventCount:     m.eventCount.Load(),
		Reloads:        m.reloadCount.Load(),
		ReloadFailures: m.reloadFails.Load(),
	}
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	FrameCount     uint64
	IdleFrames     uint64
	CellsApplied   uint64
	AvgFrameTimeNs int64
	MinFrameTimeNs int64
	MaxFrameTimeNs int64
	LastFrameNs    int64
	EventCount     uint64
	Reloads        uint64
	ReloadFailures uint64
}

// AvgFPS returns the average frames per second over drawn frames.
func (s MetricsSnapshot) AvgFPS() float64 {
	if s.AvgFrameTimeNs == 0 {
		return 0
	}
	return 1e9 / float64(s.AvgFrameTimeNs)
}

// AvgCellsPerFrame returns the mean number of cells applied per drawn frame.
func (s MetricsSnapshot) AvgCellsPerFrame() float64 {
	if s.FrameCount == 0 {
		return 0
	}
	return float64(s.CellsApplied) / float64(s.FrameCount)
}
