package components

import "github.com/relloyd/sparkify/stream"

// ComponentWaiter is a simple interface for use around a wait group.
// Components call Add before starting their goroutine and Done when it exits.
type ComponentWaiter interface {
	Add()
	Done()
}

// JsonRow is a typed input record that can be decoded from JSON and converted to a stream.Record.
type JsonRow interface {
	ToRecord() stream.Record
}
