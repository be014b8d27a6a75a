package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/file"
	"github.com/relloyd/sparkify/helper"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/schema"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
	"golang.org/x/sync/errgroup"
)

type TableWriterConfig[T any] struct {
	Log                               logger.Logger
	Name                              string
	InputChan                         chan stream.Record
	Table                             schema.TableDefinition
	OutputDir                         string // local directory that receives the table's files.
	RunID                             string // unique per run; part of every file name.
	Codec                             file.Codec
	MaxFileRows                       int                   // 0 writes one file per partition.
	WriteConcurrency                  int                   // max partitions written at once; defaults to WriteConcurrencyDefault.
	ToRow                             func(stream.Record) T // converts a record into the Parquet row.
	OutputField4FileName              string                // defaults to Defaults.ChanField4FileName.
	OutputField4FileNameWithoutPrefix string                // defaults to Defaults.ChanField4FileNameWithoutPrefix.
	OutputField4TableName             string                // defaults to Defaults.ChanField4TableName.
	OutputField4RowCount              string                // defaults to Defaults.ChanField4RowCount.
	StepWatcher                       *stats.StepWatcher
	WaitCounter                       ComponentWaiter
	PanicHandlerFn                    PanicHandlerFunc
}

// partition holds the rows destined for one partition directory.
type partition[T any] struct {
	path   string // relative directory, e.g. year=2018/month=11, or "" when the table is not partitioned.
	rows   []T
	files  []string
	counts []int
}

// NewTableWriter collects every record on InputChan, groups the rows by the table's partition columns and writes
// Parquet part files under OutputDir once the input is closed.
// Partitions are written concurrently. A _SUCCESS marker is written after all part files.
// The output channel receives one record per file written (including the marker) holding the absolute file name,
// the name relative to OutputDir, the table name and the row count.
func NewTableWriter[T any](cfg *TableWriterConfig[T]) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.OutputDir == "" || cfg.RunID == "" || cfg.ToRow == nil {
		cfg.Log.Panic(cfg.Name, " error - output directory, run ID and row converter are required.")
	}
	if cfg.WriteConcurrency < 1 {
		cfg.WriteConcurrency = c.WriteConcurrencyDefault
	}
	if cfg.Codec.Name == "" {
		var err error
		if cfg.Codec, err = file.GetCodec(c.CompressionDefault); err != nil {
			cfg.Log.Panic(err)
		}
	}
	cfg.OutputField4FileName = defaultString(cfg.OutputField4FileName, Defaults.ChanField4FileName)
	cfg.OutputField4FileNameWithoutPrefix = defaultString(cfg.OutputField4FileNameWithoutPrefix, Defaults.ChanField4FileNameWithoutPrefix)
	cfg.OutputField4TableName = defaultString(cfg.OutputField4TableName, Defaults.ChanField4TableName)
	cfg.OutputField4RowCount = defaultString(cfg.OutputField4RowCount, Defaults.ChanField4RowCount)
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
		// Collect rows per partition.
		partitions := make(map[string]*partition[T])
		for cfg.InputChan != nil {
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok {
					cfg.InputChan = nil
					continue
				}
				p := PartitionPath(cfg.Log, rec, cfg.Table.PartitionBy)
				part, ok := partitions[p]
				if !ok {
					part = &partition[T]{path: p}
					partitions[p] = part
				}
				part.rows = append(part.rows, cfg.ToRow(rec))
				atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			case controlAction := <-controlChan:
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
		}
		// Write partitions in sorted order so file names are stable between runs.
		paths := make([]string, 0, len(partitions))
		for p := range partitions {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		cfg.Log.Debug(cfg.Name, " writing ", rowCount, " rows to ", len(paths), " partitions of table ", cfg.Table.Name)
		if err := writePartitions(cfg, paths, partitions); err != nil {
			cfg.Log.Panic(cfg.Name, " error writing table ", cfg.Table.Name, ": ", err)
		}
		marker := filepath.Join(cfg.OutputDir, c.SuccessMarkerFileName)
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			cfg.Log.Panic(cfg.Name, " error creating table directory: ", err)
		}
		if err := os.WriteFile(marker, nil, 0644); err != nil {
			cfg.Log.Panic(cfg.Name, " error writing success marker: ", err)
		}
		// Report the files.
		send := func(name string, count int) bool {
			rel, err := filepath.Rel(cfg.OutputDir, name)
			if err != nil {
				cfg.Log.Panic(cfg.Name, " error - unable to get relative file name: ", err)
			}
			rec := stream.NewRecord()
			rec.SetData(cfg.OutputField4FileName, name)
			rec.SetData(cfg.OutputField4FileNameWithoutPrefix, filepath.ToSlash(rel))
			rec.SetData(cfg.OutputField4TableName, cfg.Table.Name)
			rec.SetData(cfg.OutputField4RowCount, int64(count))
			return safeSend(rec, outputChan, controlChan, sendNilControlResponse)
		}
		for _, p := range paths {
			part := partitions[p]
			for idx := range part.files {
				if !send(part.files[idx], part.counts[idx]) {
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
			}
		}
		if !send(marker, 0) {
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

func writePartitions[T any](cfg *TableWriterConfig[T], paths []string, partitions map[string]*partition[T]) error {
	g := new(errgroup.Group)
	g.SetLimit(cfg.WriteConcurrency)
	for idx, p := range paths {
		idx, part := idx, partitions[p]
		g.Go(func() error {
			dir := filepath.Join(cfg.OutputDir, filepath.FromSlash(part.path))
			prefix := fmt.Sprintf("part-%05d-%v", idx, cfg.RunID)
			out, err := file.NewParquetFileOutput[T](cfg.Log, dir, prefix, cfg.Codec, cfg.MaxFileRows)
			if err != nil {
				return err
			}
			if err = out.Write(part.rows); err != nil {
				_ = out.Close()
				return err
			}
			if err = out.Close(); err != nil {
				return err
			}
			part.files = out.ListOfOutputFiles
			part.counts = out.ListOfRowCounts
			part.rows = nil
			return nil
		})
	}
	return errors.Wrap(g.Wait(), "partition write failed")
}

// PartitionPath returns the Hive style directory for rec, e.g. year=2018/month=11.
// Null or empty values are written to the default partition.
func PartitionPath(log logger.Logger, rec stream.Record, partitionBy []string) string {
	parts := make([]string, 0, len(partitionBy))
	for _, col := range partitionBy {
		v := helper.GetStringFromInterfaceUseUtcTime(log, rec.GetData(col))
		if v == "" {
			v = c.HiveDefaultPartition
		} else {
			v = EscapePathName(v)
		}
		parts = append(parts, EscapePathName(col)+"="+v)
	}
	return strings.Join(parts, "/")
}

// EscapePathName replaces characters that are unsafe in file names with %XX.
func EscapePathName(s string) string {
	b := strings.Builder{}
	for _, r := range s {
		if needsEscape(r) {
			b.WriteString(fmt.Sprintf("%%%02X", r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func needsEscape(r rune) bool {
	if r < 0x20 || r == 0x7f {
		return true
	}
	return strings.ContainsRune("\"#%'*/:=?\\{[]^", r)
}
