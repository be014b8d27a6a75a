package components

import (
	"path/filepath"
	"strings"
	"sync/atomic"

	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/storage"
	"github.com/relloyd/sparkify/stream"
)

type ObjectListInputConfig struct {
	Log                               logger.Logger
	Name                              string
	Storage                           storage.Storage  // where to list objects.
	Location                          storage.Location // the directory or S3 prefix to list recursively.
	OutputField4FileName              string           // the map key on outputChan that contains the object key. If this is an empty string then default to value found in this package var, Defaults.
	OutputField4FileNameWithoutPrefix string           // the object key relative to Location.
	OutputField4SourceIndex           string           // the int64 position of the object in the sorted listing.
	StepWatcher                       *stats.StepWatcher
	WaitCounter                       ComponentWaiter
	PanicHandlerFn                    PanicHandlerFunc
}

// NewObjectListInput lists the objects found under cfg.Location and produces one record per object onto the
// output channel, in lexical order.
// A location that does not exist causes a panic.
func NewObjectListInput(cfg *ObjectListInputConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.Storage == nil {
		cfg.Log.Panic(cfg.Name, " error - missing storage.")
	}
	cfg.OutputField4FileName = defaultString(cfg.OutputField4FileName, Defaults.ChanField4FileName)
	cfg.OutputField4FileNameWithoutPrefix = defaultString(cfg.OutputField4FileNameWithoutPrefix, Defaults.ChanField4FileNameWithoutPrefix)
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
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running for location '", cfg.Location, "'")
		keys, err := cfg.Storage.List(cfg.Location)
		if err != nil {
			cfg.Log.Panic(cfg.Name, " unable to list '", cfg.Location, "': ", err)
		}
		cfg.Log.Debug(cfg.Name, " found ", len(keys), " objects")
		for idx, k := range keys {
			rec := stream.NewRecord()
			rec.SetData(cfg.OutputField4FileName, k)
			rec.SetData(cfg.OutputField4FileNameWithoutPrefix, relativeName(cfg.Location, k))
			rec.SetData(cfg.OutputField4SourceIndex, int64(idx))
			if recSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSentOK {
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1)
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

func relativeName(l storage.Location, key string) string {
	if l.Remote {
		return strings.TrimPrefix(key, l.KeyPrefix())
	}
	rel, err := filepath.Rel(l.Path, key)
	if err != nil || rel == "." { // if the location was a single file...
		return filepath.Base(key)
	}
	return filepath.ToSlash(rel)
}
