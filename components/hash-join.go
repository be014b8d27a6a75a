package components

import (
	"sync/atomic"

	om "github.com/cevaris/ordered_map"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/helper"
	"github.com/relloyd/sparkify/logger"
	s "github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type HashJoinConfig struct {
	Log            logger.Logger
	Name           string
	LeftChan       chan stream.Record
	RightChan      chan stream.Record
	JoinKeys       *om.OrderedMap // left field name => right field name.
	RightFields    *om.OrderedMap // right field name => output field name, added to each matching left record.
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewHashJoin performs an inner equi-join of LeftChan and RightChan.
//
// Here's how it works:
//
// 1) all rows on RightChan are read into memory, keyed by the right side JoinKeys fields;
// 2) rows on LeftChan are then streamed and looked up using the left side JoinKeys fields;
// 3) for each matching right row a new record is output holding the left fields plus RightFields.
//
// Left rows without a match are dropped. A null in any join field never matches, not even another null.
// Values only match when they have the same type and string form, so comparison is case-sensitive.
// Output follows the order of LeftChan and, for one left row, the arrival order of the right rows.
// A field in RightFields that already exists on the left record is a fatal error.
func NewHashJoin(cfg *HashJoinConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.LeftChan == nil || cfg.RightChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.JoinKeys == nil || cfg.JoinKeys.Len() == 0 {
		cfg.Log.Panic(cfg.Name, " error - missing join keys.")
	}
	if cfg.RightFields == nil {
		cfg.RightFields = om.NewOrderedMap()
	}
	leftKeys := helper.OrderedMapKeys(cfg.JoinKeys)
	rightKeys := helper.OrderedMapValues(cfg.JoinKeys)
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
		// Build the hash table from the right side.
		table := make(map[string][]stream.Record)
		for cfg.RightChan != nil {
			select {
			case rec, ok := <-cfg.RightChan:
				if !ok {
					cfg.RightChan = nil
					continue
				}
				if rec.KeyHasNull(rightKeys) { // if the row can never match...
					continue
				}
				k := rec.Key(cfg.Log, rightKeys)
				table[k] = append(table[k], rec.Project(cfg.RightFields))
			case controlAction := <-controlChan:
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		cfg.Log.Debug(cfg.Name, " built hash table with ", len(table), " keys")
		// Probe with the left side.
		for cfg.LeftChan != nil {
			select {
			case rec, ok := <-cfg.LeftChan:
				if !ok {
					cfg.LeftChan = nil
					continue
				}
				if rec.KeyHasNull(leftKeys) {
					continue
				}
				for _, right := range table[rec.Key(cfg.Log, leftKeys)] { // for each matching right row...
					out, err := stream.MergeDataStreams(rec, right, false)
					if err != nil {
						cfg.Log.Panic(cfg.Name, " unable to merge joined rows: ", err)
					}
					if !safeSend(out, outputChan, controlChan, sendNilControlResponse) {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
				}
			case controlAction := <-controlChan:
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
