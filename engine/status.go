package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Status uint32

const (
	StatusMissing  Status = 0
	StatusStarting Status = iota
	StatusRunning
	StatusComplete
	StatusCompleteWithError
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return ""
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusCompleteWithError:
		return "complete with error"
	case StatusShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Status(%d)", uint32(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	switch s {
	case StatusMissing, StatusStarting, StatusRunning, StatusComplete, StatusCompleteWithError, StatusShutdown:
		return json.Marshal(s.String())
	}
	return nil, fmt.Errorf("unhandled Status value %v in custom MarshalJSON() conversion", uint32(s))
}

type TransformStatus struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// IsFinished is true once the transform has stopped for any reason.
func (t TransformStatus) IsFinished() bool {
	return t.Status != StatusStarting && t.Status != StatusRunning && t.Status != StatusMissing
}

// StatusTracker records the status of each transform in a run, in the order they were started.
type StatusTracker struct {
	mu       sync.RWMutex
	names    []string
	statuses map[string]TransformStatus
}

func NewStatusTracker() *StatusTracker {
	return &StatusTracker{statuses: make(map[string]TransformStatus)}
}

// Set updates the status of the named transform, recording start and end times as it moves through states.
// A non-nil err is saved with the status.
func (t *StatusTracker) Set(name string, status Status, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.statuses[name]
	if !ok {
		t.names = append(t.names, name)
		ts.Name = name
	}
	ts.Status = status
	switch status {
	case StatusStarting, StatusRunning:
		if ts.StartTime.IsZero() {
			ts.StartTime = time.Now()
		}
	case StatusComplete, StatusCompleteWithError, StatusShutdown:
		ts.EndTime = time.Now()
	}
	if err != nil {
		ts.Error = err.Error()
	}
	t.statuses[name] = ts
}

func (t *StatusTracker) Load(name string) (ts TransformStatus, ok bool) {
	t.mu.RLock()
	ts, ok = t.statuses[name]
	t.mu.RUnlock()
	return
}

// All returns every status in start order.
func (t *StatusTracker) All() []TransformStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	retval := make([]TransformStatus, 0, len(t.names))
	for _, n := range t.names {
		retval = append(retval, t.statuses[n])
	}
	return retval
}
