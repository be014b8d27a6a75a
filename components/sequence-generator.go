package components

import (
	"sync/atomic"

	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type SequenceGeneratorConfig struct {
	Log                    logger.Logger
	Name                   string
	InputChan              chan stream.Record
	InputField4SourceIndex string // defaults to Defaults.ChanField4SourceIndex.
	OutputField            string // field to hold the generated id.
	StepWatcher            *stats.StepWatcher
	WaitCounter            ComponentWaiter
	PanicHandlerFn         PanicHandlerFunc
}

// NewSequenceGenerator adds an INT64 id to each record on InputChan.
// The id is the record's source index shifted left by SequencePartitionBits plus a counter kept per source index,
// so ids are unique for a run but not contiguous.
func NewSequenceGenerator(cfg *SequenceGeneratorConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.OutputField == "" {
		cfg.Log.Panic(cfg.Name, " error - missing output field name.")
	}
	cfg.InputField4SourceIndex = defaultString(cfg.InputField4SourceIndex, Defaults.ChanField4SourceIndex)
	outputChan = make(chan stream.Record, c.ChanSize)
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
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		counters := make(map[int64]int64)
		maxCounter := int64(1) << c.SequencePartitionBits
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok {
					close(outputChan)
					cfg.Log.Info(cfg.Name, " complete")
					return
				}
				idx := rec.GetInt64(cfg.InputField4SourceIndex)
				if idx == nil || *idx < 0 {
					cfg.Log.Panic(cfg.Name, " error - record has no valid ", cfg.InputField4SourceIndex)
				}
				n := counters[*idx]
				if n >= maxCounter {
					cfg.Log.Panic(cfg.Name, " error - too many rows for source index ", *idx)
				}
				counters[*idx] = n + 1
				rec.SetData(cfg.OutputField, *idx<<c.SequencePartitionBits+n)
				if !safeSend(rec, outputChan, controlChan, sendNilControlResponse) {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			case controlAction := <-controlChan:
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
	}()
	return
}
