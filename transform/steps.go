package transform

import (
	"github.com/relloyd/sparkify/components"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/helper"
	"github.com/relloyd/sparkify/schema"
	"github.com/relloyd/sparkify/storage"
	"github.com/relloyd/sparkify/stream"
)

// Each function below starts one component wired into the step group and returns its output.

func (sg *stepGroup) readJson(step string, location storage.Location, newRow func() components.JsonRow) chan stream.Record {
	st, err := sg.sess.Storage(location)
	if err != nil {
		sg.log.Panic("unable to read ", location, ": ", err)
	}
	name := sg.stepName(step + " list")
	files, ctl := components.NewObjectListInput(&components.ObjectListInputConfig{
		Log:            sg.log,
		Name:           name,
		Storage:        st,
		Location:       location,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	name = sg.stepName(step + " read")
	rows, ctl := components.NewJsonFileReader(&components.JsonFileReaderConfig{
		Log:            sg.log,
		Name:           name,
		InputChan:      files,
		Storage:        st,
		NewRow:         newRow,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return rows
}

func (sg *stepGroup) split(step string, in chan stream.Record, n int) []chan stream.Record {
	name := sg.stepName(step)
	outs, ctl := components.NewChannelSplitter(&components.ChannelSplitterConfig{
		Log:            sg.log,
		Name:           name,
		InputChan:      in,
		OutputCount:    n,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return outs
}

func (sg *stepGroup) filter(step string, in chan stream.Record, filterType components.FilterType, metadata string) chan stream.Record {
	name := sg.stepName(step)
	out, ctl := components.NewFilterRows(&components.FilterRowsConfig{
		Log:            sg.log,
		Name:           name,
		InputChan:      in,
		FilterType:     filterType,
		FilterMetadata: components.FilterMetadata(metadata),
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return out
}

func (sg *stepGroup) mapFields(step string, in chan stream.Record, steps ...components.ComponentStep) chan stream.Record {
	name := sg.stepName(step)
	out, ctl := components.NewFieldMapper(&components.FieldMapperConfig{
		Log:            sg.log,
		Name:           name,
		InputChan:      in,
		Steps:          steps,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return out
}

// project is a field mapper with a single Project step.
func (sg *stepGroup) project(step string, in chan stream.Record, fields string) chan stream.Record {
	return sg.mapFields(step, in, components.ComponentStep{Type: components.FieldMapperProject, Data: map[string]string{"fields": fields}})
}

func (sg *stepGroup) join(step string, left chan stream.Record, right chan stream.Record, joinKeys string, rightFields string) chan stream.Record {
	name := sg.stepName(step)
	out, ctl := components.NewHashJoin(&components.HashJoinConfig{
		Log:            sg.log,
		Name:           name,
		LeftChan:       left,
		RightChan:      right,
		JoinKeys:       helper.TokensToOrderedMap(joinKeys),
		RightFields:    helper.TokensToOrderedMap(rightFields),
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return out
}

func (sg *stepGroup) sequence(step string, in chan stream.Record, outputField string) chan stream.Record {
	name := sg.stepName(step)
	out, ctl := components.NewSequenceGenerator(&components.SequenceGeneratorConfig{
		Log:            sg.log,
		Name:           name,
		InputChan:      in,
		OutputField:    outputField,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return out
}

func (sg *stepGroup) combine(step string, inputs ...chan stream.Record) chan stream.Record {
	name := sg.stepName(step)
	out, ctl := components.NewChannelCombiner(&components.ChannelCombinerConfig{
		Log:            sg.log,
		Name:           name,
		InputChans:     inputs,
		StepWatcher:    sg.stepWatcher(name),
		WaitCounter:    sg.componentWaiter(name),
		PanicHandlerFn: sg.panicHandler(),
	})
	sg.addControl(ctl)
	return out
}

// writeTable clears the table's output location and writes the rows on in as Parquet.
// Tables bound for S3 are written to the session's staging directory and then moved to the bucket.
// The returned channel carries one record per file published.
func writeTable[T any](sg *stepGroup, in chan stream.Record, output storage.Location, table schema.TableDefinition, toRow func(stream.Record) T) chan stream.Record {
	loc := storage.JoinLocation(output, table.Name)
	dir, upload, err := sg.sess.PrepareOutput(loc)
	if err != nil {
		sg.log.Panic("unable to prepare output for table ", table.Name, ": ", err)
	}
	name := sg.stepName("write " + table.Name)
	written, ctl := components.NewTableWriter(&components.TableWriterConfig[T]{
		Log:              sg.log,
		Name:             name,
		InputChan:        in,
		Table:            table,
		OutputDir:        dir,
		RunID:            sg.sess.RunID,
		Codec:            sg.sess.Codec,
		MaxFileRows:      sg.sess.MaxFileRows,
		WriteConcurrency: sg.sess.WriteConcurrency,
		ToRow:            toRow,
		StepWatcher:      sg.stepWatcher(name),
		WaitCounter:      sg.componentWaiter(name),
		PanicHandlerFn:   sg.panicHandler(),
	})
	sg.addControl(ctl)
	if !upload {
		return written
	}
	client, err := sg.sess.S3Client(loc.Bucket)
	if err != nil {
		sg.log.Panic("unable to upload table ", table.Name, ": ", err)
	}
	name = sg.stepName("upload " + table.Name)
	uploaded, ctl := components.NewCopyFilesToS3(&components.CopyFilesToS3Config{
		Log:              sg.log,
		Name:             name,
		InputChan:        written,
		Client:           client,
		KeyPrefix:        loc.Path,
		RemoveInputFiles: true,
		StepWatcher:      sg.stepWatcher(name),
		WaitCounter:      sg.componentWaiter(name),
		PanicHandlerFn:   sg.panicHandler(),
	})
	sg.addControl(ctl)
	return uploaded
}

type tableSummary struct {
	files int64
	rows  int64
}

// reportTables consumes the file records of every table and logs a summary per table once it is complete.
func (sg *stepGroup) reportTables(tables ...chan stream.Record) {
	summary := make(map[string]*tableSummary)
	sg.consume("report", sg.combine("collect written files", tables...), func(rec stream.Record) {
		table := rec.GetDataAsStringUseUtcTime(sg.log, components.Defaults.ChanField4TableName)
		fileName := rec.GetDataAsStringUseUtcTime(sg.log, components.Defaults.ChanField4FileNameWithoutPrefix)
		s, ok := summary[table]
		if !ok {
			s = &tableSummary{}
			summary[table] = s
		}
		if fileName == c.SuccessMarkerFileName {
			sg.log.Info(sg.name, " wrote table ", table, " with ", s.rows, " rows in ", s.files, " files")
			return
		}
		s.files++
		if rows := rec.GetInt64(components.Defaults.ChanField4RowCount); rows != nil {
			s.rows += *rows
		}
		sg.log.Debug(sg.name, " wrote ", fileName, " to table ", table)
	})
}
