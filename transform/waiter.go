package transform

import (
	"sort"
	"sync"
	"time"

	"github.com/relloyd/sparkify/components"
)

// stepTracker waits for the components of a step group and remembers when each step started and finished.
type stepTracker struct {
	wg    sync.WaitGroup
	mu    sync.Mutex
	steps map[string]*stepTiming
}

type stepTiming struct {
	running int
	start   time.Time
	end     time.Time
}

func newStepTracker() *stepTracker {
	return &stepTracker{steps: make(map[string]*stepTiming)}
}

// waiter returns the ComponentWaiter for the named step.
func (t *stepTracker) waiter(step string) components.ComponentWaiter {
	return &trackedStep{t: t, step: step}
}

func (t *stepTracker) add(step string) {
	t.wg.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.steps[step]
	if !ok {
		s = &stepTiming{start: time.Now()}
		t.steps[step] = s
	}
	s.running++
}

func (t *stepTracker) done(step string) {
	t.mu.Lock()
	if s, ok := t.steps[step]; ok {
		s.running--
		if s.running == 0 {
			s.end = time.Now()
		}
	}
	t.mu.Unlock()
	t.wg.Done()
}

func (t *stepTracker) wait() {
	t.wg.Wait()
}

// running returns the steps that have not finished in name order.
func (t *stepTracker) running() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	retval := make([]string, 0)
	for name, s := range t.steps {
		if s.running > 0 {
			retval = append(retval, name)
		}
	}
	sort.Strings(retval)
	return retval
}

// slowest returns the finished step that ran the longest.
func (t *stepTracker) slowest() (step string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, s := range t.steps {
		if s.running > 0 || s.end.IsZero() {
			continue
		}
		if e := s.end.Sub(s.start); e > d || (e == d && name < step) {
			step, d = name, e
		}
	}
	return
}

// trackedStep implements ComponentWaiter for one step.
type trackedStep struct {
	t    *stepTracker
	step string
}

func (s *trackedStep) Add() {
	s.t.add(s.step)
}

func (s *trackedStep) Done() {
	s.t.done(s.step)
}
