package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/diegoholiveira/jsonlogic"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/helper"
	log "github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type FilterType string
type FilterMetadata string

type mapFilterFuncs map[FilterType]filterSetupFunc
type filterSetupFunc func(log log.Logger, metadata FilterMetadata) (filterFunc, error)

// filterFunc returns the records to output for the supplied record.
// It is called with a nil record once the input is exhausted so that it can flush anything it held back.
type filterFunc func(data stream.Record) ([]stream.Record, error)

const (
	FilterRowsJsonLogic   FilterType = "JsonLogic"
	FilterRowsNotNull     FilterType = "NotNull"
	FilterRowsDistinct    FilterType = "Distinct"
	FilterRowsLatestByKey FilterType = "LatestByKey"
)

var filterTypes = mapFilterFuncs{
	FilterRowsJsonLogic:   setupJsonLogicFilter,   // FilterMetadata is the JSON Logic rule.
	FilterRowsNotNull:     setupNotNullFilter,     // FilterMetadata is a CSV of fields that must not be null.
	FilterRowsDistinct:    setupDistinctFilter,    // FilterMetadata is a CSV of fields that make a row distinct.
	FilterRowsLatestByKey: setupLatestByKeyFilter, // FilterMetadata is "key:order[,tieBreak...]".
}

type FilterRowsConfig struct {
	Log            log.Logger
	Name           string
	InputChan      chan stream.Record
	FilterType     FilterType     // one of the keys in the filterTypes map.
	FilterMetadata FilterMetadata // filter specific configuration.
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewFilterRows accepts a FilterRowsConfig{} and outputs rows if they match the given filter.
func NewFilterRows(cfg *FilterRowsConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	fnGetFilter, ok := filterTypes[cfg.FilterType]
	if !ok {
		cfg.Log.Panic("unable to find filter function using name ", cfg.FilterType)
	}
	// Set up the filter by supplying the metadata.
	fnFilter, err := fnGetFilter(cfg.Log, cfg.FilterMetadata)
	if err != nil {
		cfg.Log.Panic("unable to setup filter ", cfg.FilterType, ": ", err)
	}
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
		// Function to call the filter and output data if needed.
		// It returns false if we were asked to shutdown.
		fnFilterAndSend := func(rec stream.Record) bool {
			data, err := fnFilter(rec)
			if err != nil {
				cfg.Log.Panic(cfg.Name, " aborting due to error: ", err)
			}
			for _, d := range data {
				if !safeSend(d, outputChan, controlChan, sendNilControlResponse) {
					return false
				}
			}
			return true
		}
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else we have input to process...
					if !fnFilterAndSend(rec) {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			sendNilControlResponse(controlAction)
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		// We ran out of rows so let the filter output anything it held back.
		if !fnFilterAndSend(stream.NewNilRecord()) {
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

// setupJsonLogicFilter returns a filterFunc, which can be used to filter records using JSON Logic.
// Supply the JSON Logic rule as metadata input parameter.
// The filterFunc returns the data if the JSON Logic rule returns true.
// In order to apply the JSON Logic, the filterFunc marshals the supplied data to JSON.
func setupJsonLogicFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	var result bytes.Buffer
	rule := string(metadata)
	if !jsonlogic.IsValid(strings.NewReader(rule)) {
		return nil, fmt.Errorf("invalid %v rule: %v", FilterRowsJsonLogic, metadata)
	}
	return func(data stream.Record) ([]stream.Record, error) {
		if !data.RecordIsNil() {
			result.Reset()
			if err := applyJsonLogic(data, rule, &result); err != nil {
				return nil, err
			}
			if strings.TrimSpace(result.String()) == "true" {
				return []stream.Record{data}, nil
			}
		}
		return nil, nil
	}, nil
}

// applyJsonLogic will apply json logic supplied in rule to data.
// It assumes the caller has validated the logic already!
func applyJsonLogic(data stream.Record, rule string, result *bytes.Buffer) error {
	jsonData, err := json.Marshal(data.GetDataMap())
	if err != nil {
		return fmt.Errorf("error marshalling data before applying JSON logic: %v", err)
	}
	if err = jsonlogic.Apply(strings.NewReader(rule), bytes.NewReader(jsonData), result); err != nil {
		return fmt.Errorf("error applying JSON logic: %v", err)
	}
	return nil
}

// setupNotNullFilter returns a filterFunc that drops records where any of the fields in metadata is null.
func setupNotNullFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	fields := helper.CsvToStringSliceTrimSpaces(string(metadata))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%v requires at least one field name", FilterRowsNotNull)
	}
	return func(data stream.Record) ([]stream.Record, error) {
		if data.RecordIsNil() || data.KeyHasNull(fields) {
			return nil, nil
		}
		return []stream.Record{data}, nil
	}, nil
}

// setupDistinctFilter returns a filterFunc that outputs the first record seen for each distinct combination of the
// fields in metadata. Nulls are equal to each other. Output order follows input order.
func setupDistinctFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	fields := helper.CsvToStringSliceTrimSpaces(string(metadata))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%v requires at least one field name", FilterRowsDistinct)
	}
	seen := make(map[string]struct{})
	return func(data stream.Record) ([]stream.Record, error) {
		if data.RecordIsNil() {
			return nil, nil
		}
		k := data.Key(log, fields)
		if _, ok := seen[k]; ok {
			return nil, nil
		}
		seen[k] = struct{}{}
		return []stream.Record{data}, nil
	}, nil
}

// setupLatestByKeyFilter returns a filterFunc that remembers, per key, the record with the greatest order value.
// Metadata is "key:order" optionally followed by tie break fields, e.g. "userId:ts,level,firstName".
// When order values are equal the record with the greatest tie break values wins, compared field by field.
// Records with a null key or null order value are dropped.
// Nothing is output until the input is exhausted, then one record per key is output in key order.
func setupLatestByKeyFilter(log log.Logger, metadata FilterMetadata) (filterFunc, error) {
	tokens := helper.CsvToStringSliceTrimSpaces(string(metadata))
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%v requires metadata of the form key:order", FilterRowsLatestByKey)
	}
	keyField, orderField := helper.Split(tokens[0], ":")
	keyField, orderField = strings.TrimSpace(keyField), strings.TrimSpace(orderField)
	if keyField == "" || orderField == "" {
		return nil, fmt.Errorf("%v requires metadata of the form key:order but got %q", FilterRowsLatestByKey, metadata)
	}
	compareFields := append([]string{orderField}, tokens[1:]...)
	keyFields := []string{keyField}
	latest := make(map[string]stream.Record)
	isGreater := func(a, b stream.Record) bool {
		for _, f := range compareFields {
			if r := stream.CompareValues(log, a.GetData(f), b.GetData(f)); r != 0 {
				return r > 0
			}
		}
		return false
	}
	return func(data stream.Record) ([]stream.Record, error) {
		if !data.RecordIsNil() {
			if data.IsNull(keyField) || data.IsNull(orderField) {
				return nil, nil
			}
			k := data.Key(log, keyFields)
			if prev, ok := latest[k]; !ok || isGreater(data, prev) {
				latest[k] = data
			}
			return nil, nil
		}
		keys := make([]string, 0, len(latest))
		for k := range latest {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		retval := make([]stream.Record, 0, len(keys))
		for _, k := range keys {
			retval = append(retval, latest[k])
		}
		log.Debug("LatestByKey found ", len(retval), " keys")
		return retval, nil
	}, nil
}
