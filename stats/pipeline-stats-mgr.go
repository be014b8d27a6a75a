package stats

import (
	"sync"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/relloyd/sparkify/logger"
)

// StatsManager hands out StepWatchers and periodically logs what they saw.
type StatsManager interface {
	StatsFetcher
	AddStepWatcher(stepName string) *StepWatcher
	StartDumping()
	StopDumping()
}

type StatsFetcher interface {
	GetStats() []Stats
}

const defaultStatsDumpFrequencySeconds = 5

// PipelineStatsManager implements StatsManager and
// is used to save stats from each pipeline step added via calls to AddStepWatcher.
type PipelineStatsManager struct {
	ticker          *time.Ticker
	tickerDone      chan struct{}
	tickerIsRunning bool
	tickerFrequency int
	mu              sync.Mutex
	log             logger.Logger
	mapStepStats    *ordered_map.OrderedMap // StepWatcher per step name in the order they were added.
}

// SetStatsDumpFrequency returns a function that can be supplied as an option to NewPipelineStats().
// Zero disables periodic dumping.
func SetStatsDumpFrequency(seconds int) func(t *PipelineStatsManager) {
	return func(t *PipelineStatsManager) {
		t.tickerFrequency = seconds
	}
}

// NewPipelineStats creates a new PipelineStatsManager.
// Optionally supply func SetStatsDumpFrequency() to override the default stats dump frequency.
func NewPipelineStats(log logger.Logger, options ...func(t *PipelineStatsManager)) *PipelineStatsManager {
	t := &PipelineStatsManager{log: log, tickerFrequency: defaultStatsDumpFrequencySeconds}
	for _, option := range options {
		option(t)
	}
	t.tickerDone = make(chan struct{})
	t.mapStepStats = ordered_map.NewOrderedMap()
	return t
}

// AddStepWatcher creates a new StepWatcher and saves it for stats dumping.
// Adding the same step name twice replaces the earlier watcher.
func (t *PipelineStatsManager) AddStepWatcher(stepName string) *StepWatcher {
	sw := NewStepWatcher(t.log, stepName)
	t.mu.Lock()
	t.mapStepStats.Set(stepName, sw)
	t.mu.Unlock()
	return sw
}

func (t *PipelineStatsManager) StartDumping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tickerIsRunning {
		t.log.Debug("stats dumper ticker already running")
		return
	}
	if t.tickerFrequency <= 0 {
		t.log.Debug("stats dumper disabled")
		return
	}
	t.ticker = time.NewTicker(time.Second * time.Duration(t.tickerFrequency))
	t.tickerIsRunning = true
	go func() {
		t.log.Debug("stats dumper ticker started")
		for {
			select {
			case <-t.tickerDone:
				t.log.Debug("stats dumper ticker stopped")
				return
			case <-t.ticker.C:
				t.logStats()
			}
		}
	}()
}

// StopDumping will stop the ticker and dump the current stats,
// only if the ticker was already running via a call to StartDumping().
func (t *PipelineStatsManager) StopDumping() {
	t.mu.Lock()
	running := t.tickerIsRunning
	t.tickerIsRunning = false
	t.mu.Unlock()
	if !running {
		return
	}
	t.ticker.Stop()
	t.tickerDone <- struct{}{} // cause the goroutine to exit (we can't close ticker.C)
	for _, sw := range t.watchers() {
		sw.CalculateStats()
	}
	t.logStats()
}

func (t *PipelineStatsManager) watchers() []*StepWatcher {
	t.mu.Lock()
	defer t.mu.Unlock()
	retval := make([]*StepWatcher, 0, t.mapStepStats.Len())
	iter := t.mapStepStats.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Value.(*StepWatcher))
	}
	return retval
}

func (t *PipelineStatsManager) logStats() {
	for _, sw := range t.watchers() {
		t.log.Info(sw.RenderStats().String())
	}
}

// GetStats implements interface StatsFetcher{}.
func (t *PipelineStatsManager) GetStats() []Stats {
	statsList := make([]Stats, 0)
	for _, sw := range t.watchers() {
		statsList = append(statsList, sw.RenderStats())
	}
	return statsList
}
