package components

import (
	"testing"
	"time"

	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stream"
)

func TestNewChannelCombiner(t *testing.T) {
	log := logger.NewLogger("channel combiner test", "info", true)

	inputs := make([]chan stream.Record, 3)
	for idx := range inputs {
		inputs[idx] = make(chan stream.Record, 2)
		for j := 0; j < 2; j++ {
			r := stream.NewRecord()
			r.SetData("fred", int64(idx*10+j))
			inputs[idx] <- r
		}
		close(inputs[idx])
	}

	// Test 1.
	log.Info("Test 1: confirm the output rows are the sum of input rows...")
	cfg := &ChannelCombinerConfig{
		StepWatcher: nil,
		Log:         log,
		Name:        "Test1 ChannelCombiner",
		InputChans:  inputs}
	outputChan, _ := NewChannelCombiner(cfg)
	sum := int64(0)
	count := 0
	for _, rec := range collectRows(t, outputChan, 10) {
		sum += *rec.GetInt64("fred")
		count++
	}
	if count != 6 || sum != 63 {
		t.Fatalf("ChannelCombiner received unexpected records: expected 6 rows summing to 63; got %v rows summing to %v", count, sum)
	}

	// Test 2.
	log.Info("Test 2: confirm ChannelCombiner with no inputs closes its output...")
	outputChan, _ = NewChannelCombiner(&ChannelCombinerConfig{Log: log, Name: "Test2 ChannelCombiner"})
	if rows := collectRows(t, outputChan, 10); len(rows) != 0 {
		t.Fatalf("expected no rows; got %v", len(rows))
	}

	// Test 3.
	log.Info("Test 3: confirm ChannelCombiner respects shutdown requests...")
	cfg = &ChannelCombinerConfig{
		StepWatcher: nil,
		Log:         log,
		Name:        "Test3 ChannelCombiner",
		InputChans:  []chan stream.Record{make(chan stream.Record, 1), make(chan stream.Record, 1)}}
	_, controlChan := NewChannelCombiner(cfg)
	// Send a shutdown request.
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select { // confirm shutdown response...
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for ChannelCombiner to shutdown.")
	case <-responseChan: // if ChannelCombiner confirmed shutdown...
		// continue
	}
	// End OK.
}
