package components

import (
	"reflect"
	"sync/atomic"

	"github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	s "github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type ChannelCombinerConfig struct {
	Log            logger.Logger
	Name           string
	InputChans     []chan stream.Record
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewChannelCombiner will accept N input channels and collect all rows onto the outputChan.
// The output is closed once every input channel is closed.
func NewChannelCombiner(cfg *ChannelCombinerConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	outputChan = make(chan stream.Record, constants.ChanSize)
	controlChan = make(chan ControlAction, 1)
	// Case 0 is the control channel; the rest are inputs.
	cases := make([]reflect.SelectCase, 0, len(cfg.InputChans)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(controlChan)})
	for _, ch := range cfg.InputChans {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
	}
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
		cfg.Log.Info(cfg.Name, " is running")
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		open := len(cfg.InputChans)
		for open > 0 { // loop until all input channels are closed...
			chosen, v, ok := reflect.Select(cases)
			if chosen == 0 { // if we have been asked to shutdown...
				sendNilControlResponse(v.Interface().(ControlAction))
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			if !ok { // if this channel is closed...
				cases[chosen].Chan = reflect.ValueOf(nil) // a zero Value is never selected.
				open--
				continue
			}
			if recSentOK := safeSend(v.Interface().(stream.Record), outputChan, controlChan, sendNilControlResponse); !recSentOK { // forward the record
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
