package components

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/calendar"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/helper"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type mapFieldMappers map[string]fieldMapperSetupFunc
type fieldMapperSetupFunc func(log logger.Logger, cfg map[string]string) (fieldMapperFunc, error)
type fieldMapperFunc func(data stream.Record) stream.Record

const (
	FieldMapperProject                = "Project"
	FieldMapperEpochMillisToTimestamp = "EpochMillisToTimestamp"
	FieldMapperDateParts              = "DateParts"
)

var fieldMappers = mapFieldMappers{
	FieldMapperProject:                setupProject,
	FieldMapperEpochMillisToTimestamp: setupEpochMillisToTimestamp,
	FieldMapperDateParts:              setupDateParts,
}

type FieldMapperConfig struct {
	Log            logger.Logger
	Name           string
	InputChan      chan stream.Record
	Steps          []ComponentStep
	StepWatcher    *stats.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewFieldMapper uses FieldMapperConfig to map fields in records read from InputChan.
// Supply a slice of map step actions in cfg.Steps, where:
// Steps.Type is one of the entries in mapFieldMappers to lookup a map function.
// Steps.Data is a map of further config values to supply to the chosen map function.
// Steps are applied in order so later steps see the fields produced by earlier ones.
func NewFieldMapper(cfg *FieldMapperConfig) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	// Setup all field mapper functions.
	mappers := make([]fieldMapperFunc, len(cfg.Steps))
	var err error
	for idx, s := range cfg.Steps { // for each requested field mapper...
		setupMapperFunc, ok := fieldMappers[s.Type]
		if !ok {
			cfg.Log.Panic("unable to find field mapper using name ", s.Type)
		}
		mappers[idx], err = setupMapperFunc(cfg.Log, s.Data)
		if err != nil {
			cfg.Log.Panic(err)
		}
	}
	// Setup outputs.
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	if cfg.WaitCounter != nil {
		cfg.WaitCounter.Add()
	}
	// Process rows.
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
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else we have input to process...
					for idx := range mappers { // for each mapper function...
						rec = mappers[idx](rec)
					}
					if !safeSend(rec, outputChan, controlChan, sendNilControlResponse) {
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
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

// missingConfig returns an error naming the keys of cfg that were not supplied.
func missingConfig(mapperName string, cfg map[string]string, keys ...string) error {
	errBuilder := strings.Builder{}
	for _, k := range keys {
		if _, ok := cfg[k]; !ok {
			errBuilder.WriteString(k + ", ")
		}
	}
	if errBuilder.Len() > 0 {
		return fmt.Errorf("missing field mapper configuration; please supply %v with: %v", mapperName, strings.TrimRight(errBuilder.String(), ", "))
	}
	return nil
}

// setupProject returns a mapper that outputs a new record holding only the fields in cfg["fields"].
// The fields are given as a CSV of "source:target" pairs. Missing source fields become null.
func setupProject(log logger.Logger, cfg map[string]string) (fieldMapperFunc, error) {
	if err := missingConfig(FieldMapperProject, cfg, "fields"); err != nil {
		return nil, err
	}
	fields := helper.TokensToOrderedMap(cfg["fields"])
	if fields.Len() == 0 {
		return nil, fmt.Errorf("%v requires at least one source:target pair", FieldMapperProject)
	}
	sources := helper.OrderedMapKeys(fields)
	targets := helper.OrderedMapValues(fields)
	return func(data stream.Record) stream.Record {
		retval := stream.NewRecord()
		for idx := range sources {
			if data.HasField(sources[idx]) {
				retval.SetData(targets[idx], data.GetData(sources[idx]))
			} else {
				retval.SetData(targets[idx], nil)
			}
		}
		return retval
	}, nil
}

// setupEpochMillisToTimestamp returns a mapper that converts the epoch milliseconds in fieldName into a UTC
// time.Time saved in resultField. A null input produces a null result.
func setupEpochMillisToTimestamp(log logger.Logger, cfg map[string]string) (fieldMapperFunc, error) {
	if err := missingConfig(FieldMapperEpochMillisToTimestamp, cfg, "fieldName", "resultField"); err != nil {
		return nil, err
	}
	fieldName := cfg["fieldName"]
	resultField := cfg["resultField"]
	return func(data stream.Record) stream.Record {
		ms := data.GetInt64(fieldName)
		if ms == nil {
			data.SetData(resultField, nil)
		} else {
			data.SetData(resultField, calendar.ToTimestamp(*ms))
		}
		return data
	}, nil
}

// setupDateParts returns a mapper that splits the time in fieldName into the parts listed in cfg["parts"].
// Parts are given as a CSV of "part:target" pairs, e.g. "hour:hour, week:week".
// Values are saved as int32, or null when the time is null.
func setupDateParts(log logger.Logger, cfg map[string]string) (fieldMapperFunc, error) {
	if err := missingConfig(FieldMapperDateParts, cfg, "fieldName", "parts"); err != nil {
		return nil, err
	}
	fieldName := cfg["fieldName"]
	parts := helper.TokensToOrderedMap(cfg["parts"])
	names := helper.OrderedMapKeys(parts)
	targets := helper.OrderedMapValues(parts)
	if len(names) == 0 {
		return nil, errors.New("DateParts requires at least one part:target pair")
	}
	probe := calendar.TimeParts{}
	for _, n := range names {
		if _, ok := probe.Get(n); !ok {
			return nil, fmt.Errorf("unsupported date part %q supplied to %v", n, FieldMapperDateParts)
		}
	}
	return func(data stream.Record) stream.Record {
		t, ok := data.GetTime(fieldName)
		if !ok {
			for idx := range targets {
				data.SetData(targets[idx], nil)
			}
			return data
		}
		tp := calendar.NewTimeParts(t)
		for idx := range names {
			v, _ := tp.Get(names[idx])
			data.SetData(targets[idx], int32(v))
		}
		return data
	}, nil
}
