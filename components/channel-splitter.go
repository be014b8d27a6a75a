package components

import (
	"sync/atomic"

	"github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	s "github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type ChannelSplitterConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	OutputCount    int // number of output channels to create.
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewChannelSplitter copies every record on InputChan to each of OutputCount output channels.
// Each output receives its own copy of the record so downstream steps can change fields independently.
// A slow output blocks the others once its buffer is full.
func NewChannelSplitter(cfg *ChannelSplitterConfig) (outputChans []chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.OutputCount < 1 {
		cfg.Log.Panic(cfg.Name, " error - at least one output channel is required.")
	}
	outputChans = make([]chan stream.Record, cfg.OutputCount)
	for idx := range outputChans {
		outputChans[idx] = make(chan stream.Record, constants.ChanSize)
	}
	controlChan = make(chan ControlAction, 1)
	if cfg.WaitCounter != nil {
		cfg.WaitCounter.Add()
	}
	go func() {
		if cfg.WaitCounter != nil {
			defer cfg.WaitCounter.Done()
		}
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChans[0])
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input is exhausted...
					for _, o := range outputChans {
						close(o)
					}
					cfg.Log.Info(cfg.Name, " complete")
					return
				}
				for idx, o := range outputChans { // for each branch...
					out := rec
					if idx > 0 {
						out = rec.Copy()
					}
					if !safeSend(out, o, controlChan, sendNilControlResponse) {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
				}
				atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			case controlAction := <-controlChan: // if we have been asked to shutdown...
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
	}()
	return
}
