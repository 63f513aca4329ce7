package app

import (
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	s := NewMetrics().Snapshot()
	if s.FrameCount != 0 || s.MinFrameTimeNs != 0 {
		t.Errorf("fresh snapshot = %+v", s)
	}
	if s.AvgFPS() != 0 || s.AvgCellsPerFrame() != 0 {
		t.Error("expected zero rates without frames")
	}
}

func TestMetrics_RecordFrame(t *testing.T) {
	m := NewMetrics()

	m.RecordFrame(10*time.Millisecond, 4)
	m.RecordFrame(20*time.Millisecond, 8)
	m.RecordFrame(5*time.Millisecond, 6)
	m.RecordFrame(time.Millisecond, 0)

	s := m.Snapshot()
	if s.FrameCount != 3 {
		t.Errorf("FrameCount = %d, want 3", s.FrameCount)
	}
	if s.IdleFrames != 1 {
		t.Errorf("IdleFrames = %d, want 1", s.IdleFrames)
	}
	if s.MinFrameTimeNs != int64(5*time.Millisecond) {
		t.Errorf("min = %d", s.MinFrameTimeNs)
	}
	if s.MaxFrameTimeNs != int64(20*time.Millisecond) {
		t.Errorf("max = %d", s.MaxFrameTimeNs)
	}
	if s.LastFrameNs != int64(5*time.Millisecond) {
		t.Errorf("last = %d", s.LastFrameNs)
	}
	if s.AvgCellsPerFrame() != 6 {
		t.Errorf("AvgCellsPerFrame = %v, want 6", s.AvgCellsPerFrame())
	}
}

func TestMetricsSnapshot_AvgFPS(t *testing.T) {
	tests := []struct {
		name    string
		avgNs   int64
		wantFPS float64
	}{
		{"60fps", 16666667, 59.99999880},
		{"30fps", 33333333, 30.00000030},
		{"zero", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetricsSnapshot{AvgFrameTimeNs: tt.avgNs}.AvgFPS()
			if diff := got - tt.wantFPS; diff > 0.001 || diff < -0.001 {
				t.Errorf("AvgFPS = %v, want %v", got, tt.wantFPS)
			}
		})
	}
}

func TestMetrics_EventsAndReloads(t *testing.T) {
	m := NewMetrics()
	m.RecordEvent()
	m.RecordEvent()
	m.RecordReload(true)
	m.RecordReload(false)
	m.RecordReload(false)

	s := m.Snapshot()
	if s.EventCount != 2 || s.Reloads != 1 || s.ReloadFailures != 2 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Uptime < 0 {
		t.Error("expected non-negative uptime")
	}
}
