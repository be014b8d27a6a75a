package components

import (
	"encoding/json"
	"io"
	"sync/atomic"

	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/storage"
	"github.com/relloyd/sparkify/stream"
)

type JsonFileReaderConfig struct {
	Log                     logger.Logger
	Name                    string
	InputChan               chan stream.Record // records containing the object keys to read.
	Storage                 storage.Storage    // used to open the objects.
	NewRow                  func() JsonRow     // returns a pointer to an empty typed record to decode each JSON object into.
	InputField4FileName     string             // the field on InputChan containing the object key. Defaults.ChanField4FileName if empty.
	InputField4SourceIndex  string             // the field on InputChan containing the object index. Defaults.ChanField4SourceIndex if empty.
	OutputField4SourceIndex string             // the hidden field added to each output record. Defaults.ChanField4SourceIndex if empty.
	StepWatcher             *stats.StepWatcher
	WaitCounter             ComponentWaiter
	PanicHandlerFn          PanicHandlerFunc
}

// NewJsonFileReader reads each object named on cfg.InputChan and decodes the stream of JSON objects it contains,
// whether they are one per line or one per file.
// Each decoded object is converted to a stream.Record tagged with the index of the object it came from.
// Unreadable objects and malformed JSON cause a panic.
func NewJsonFileReader(cfg *JsonFileReaderConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.Storage == nil || cfg.NewRow == nil {
		cfg.Log.Panic(cfg.Name, " error - missing storage or row constructor.")
	}
	cfg.InputField4FileName = defaultString(cfg.InputField4FileName, Defaults.ChanField4FileName)
	cfg.InputField4SourceIndex = defaultString(cfg.InputField4SourceIndex, Defaults.ChanField4SourceIndex)
	cfg.OutputField4SourceIndex = defaultString(cfg.OutputField4SourceIndex, Defaults.ChanField4SourceIndex)
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
		// readFile decodes all objects in one file and returns false if we were asked to shutdown.
		readFile := func(key string, sourceIndex interface{}) bool {
			rc, err := cfg.Storage.Open(key)
			if err != nil {
				cfg.Log.Panic(cfg.Name, " unable to read '", key, "': ", err)
			}
			defer rc.Close()
			dec := json.NewDecoder(rc)
			for n := 1; ; n++ {
				row := cfg.NewRow()
				err := dec.Decode(row)
				if err == io.EOF {
					break
				} else if err != nil {
					cfg.Log.Panic(cfg.Name, " malformed JSON object ", n, " in '", key, "': ", err)
				}
				rec := row.ToRecord()
				rec.SetData(cfg.OutputField4SourceIndex, sourceIndex)
				if recSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSentOK {
					return false
				}
				atomic.AddInt64(&rowCount, 1)
			}
			cfg.Log.Debug(cfg.Name, " read '", key, "'")
			return true
		}
		var controlAction ControlAction
		for {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil
				} else if !readFile(rec.GetDataAsStringUseUtcTime(cfg.Log, cfg.InputField4FileName), rec.GetData(cfg.InputField4SourceIndex)) {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown {
			sendNilControlResponse(controlAction)
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
