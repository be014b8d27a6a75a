package components

import "sync/atomic"

// MockComponentWaiter counts running components for tests.
type MockComponentWaiter struct {
	count int64
}

func (cw *MockComponentWaiter) Add() {
	atomic.AddInt64(&cw.count, 1)
}

func (cw *MockComponentWaiter) Done() {
	atomic.AddInt64(&cw.count, -1)
}

// Count returns the number of components that have not finished.
func (cw *MockComponentWaiter) Count() int64 {
	return atomic.LoadInt64(&cw.count)
}
