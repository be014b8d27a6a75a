package stats

import (
	"sync/atomic"
	"testing"

	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stream"
)

func TestStepWatcher(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	mgr := NewPipelineStats(log, SetStatsDumpFrequency(0))
	sw := mgr.AddStepWatcher("songs-writer")
	log.Info("Test 1, a step that hasn't started reports waiting")
	if got := mgr.GetStats()[0].StatusText; got != "waiting" {
		t.Fatalf("expected waiting; got %v", got)
	}
	log.Info("Test 2, rows counted while running appear in the final stats")
	rowCount := int64(0)
	ch := make(chan stream.Record, 5)
	ch <- stream.NewRecord()
	sw.StartWatching(&rowCount, &ch)
	if got := sw.RenderStats().StatusText; got != "running" {
		t.Fatalf("expected running; got %v", got)
	}
	atomic.AddInt64(&rowCount, 3)
	sw.StopWatching()
	s := mgr.GetStats()
	if len(s) != 1 {
		t.Fatalf("expected 1 step; got %v", len(s))
	}
	if s[0].TotalRowsProcessed != 3 || s[0].StatusText != "complete" || s[0].StepName != "songs-writer" {
		t.Fatalf("unexpected stats: %v", s[0])
	}
	log.Info("Test 3, StopDumping without StartDumping is a no-op")
	mgr.StartDumping()
	mgr.StopDumping()
}

func TestStepWatcherWithoutChannel(t *testing.T) {
	log := logger.NewLogger("sparkify", "info", true)
	sw := NewStepWatcher(log, "copy")
	rowCount := int64(1)
	sw.StartWatching(&rowCount, nil)
	sw.StopWatching()
	if got := sw.RenderStats(); got.TotalRowsProcessed != 1 || got.OutputBufferLen != 0 {
		t.Fatalf("unexpected stats: %v", got)
	}
}
