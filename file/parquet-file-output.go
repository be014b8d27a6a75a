package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
)

// Codec is a Parquet compression codec and the tag used for it in file names.
type Codec struct {
	Name      string
	Extension string
	codec     compress.Codec
}

var codecs = map[string]Codec{
	"snappy":       {Name: "snappy", Extension: "snappy", codec: &parquet.Snappy},
	"gzip":         {Name: "gzip", Extension: "gz", codec: &parquet.Gzip},
	"zstd":         {Name: "zstd", Extension: "zstd", codec: &parquet.Zstd},
	"lz4":          {Name: "lz4", Extension: "lz4raw", codec: &parquet.Lz4Raw},
	"uncompressed": {Name: "uncompressed", codec: &parquet.Uncompressed},
	"none":         {Name: "uncompressed", codec: &parquet.Uncompressed},
}

// GetCodec returns the codec with the given name, which is one of snappy, gzip, zstd, lz4, uncompressed or none.
func GetCodec(name string) (Codec, error) {
	c, ok := codecs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Codec{}, fmt.Errorf("unsupported compression codec %q", name)
	}
	return c, nil
}

// ParquetFileOutput writes rows of type T to a rotating set of Parquet files in one directory.
// Files are created lazily so a writer that never receives rows leaves no files behind.
type ParquetFileOutput[T any] struct {
	log               logger.Logger
	directory         string
	prefix            string
	codec             Codec
	maxFileRows       int
	currentSuffixID   int
	currentRowCount   int
	totalRowCount     int
	currentName       string
	file              *os.File
	writer            *parquet.GenericWriter[T]
	ListOfOutputFiles []string
	ListOfRowCounts   []int // rows per closed file, matching ListOfOutputFiles by position.
}

// NewParquetFileOutput creates the output directory if needed.
// Set maxFileRows to 0 to write all rows into a single file.
// File names are <prefix>.c<rotation#>.<codec>.parquet, e.g. part-00000-<runID>.c000.snappy.parquet.
func NewParquetFileOutput[T any](log logger.Logger, outputDirectory string, fileNamePrefix string, codec Codec, maxFileRows int) (*ParquetFileOutput[T], error) {
	if err := os.MkdirAll(outputDirectory, 0755); err != nil {
		return nil, errors.Wrapf(err, "error creating output directory %v", outputDirectory)
	}
	f := &ParquetFileOutput[T]{
		log:         log,
		directory:   outputDirectory,
		prefix:      fileNamePrefix,
		codec:       codec,
		maxFileRows: maxFileRows,
	}
	log.Debug("ParquetFileOutput directory=", f.directory, "; prefix=", f.prefix, "; codec=", codec.Name, "; maxFileRows=", f.maxFileRows)
	return f, nil
}

// Write appends rows, rotating the file every maxFileRows rows.
func (f *ParquetFileOutput[T]) Write(rows []T) error {
	for len(rows) > 0 {
		if f.writer == nil {
			if err := f.createNewWriter(); err != nil {
				return err
			}
		}
		n := len(rows)
		if f.maxFileRows > 0 && n > f.maxFileRows-f.currentRowCount {
			n = f.maxFileRows - f.currentRowCount
		}
		if _, err := f.writer.Write(rows[:n]); err != nil {
			return errors.Wrapf(err, "error writing to %v", f.currentName)
		}
		f.currentRowCount += n
		f.totalRowCount += n
		rows = rows[n:]
		if rotateCheck(f.maxFileRows, f.currentRowCount) {
			if err := f.closeFile(); err != nil {
				return err
			}
		}
	}
	return nil
}

func rotateCheck(maxCount int, currentCount int) bool {
	return maxCount > 0 && currentCount >= maxCount
}

// Close flushes and closes the current file.
func (f *ParquetFileOutput[T]) Close() error {
	return f.closeFile()
}

// TotalRowCount is the number of rows written across all files.
func (f *ParquetFileOutput[T]) TotalRowCount() int {
	return f.totalRowCount
}

func (f *ParquetFileOutput[T]) closeFile() error {
	if f.writer == nil {
		return nil
	}
	err := f.writer.Close()
	if cerr := f.file.Close(); err == nil {
		err = cerr
	}
	f.writer = nil
	f.file = nil
	f.ListOfRowCounts = append(f.ListOfRowCounts, f.currentRowCount)
	f.currentRowCount = 0
	return errors.Wrapf(err, "error closing %v", f.currentName)
}

func (f *ParquetFileOutput[T]) createNewWriter() error {
	f.getNextFileName()
	f.log.Debug("Creating new Parquet file '", f.currentName, "'")
	var err error
	f.file, err = os.Create(f.currentName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %v", f.currentName)
	}
	f.writer = parquet.NewGenericWriter[T](f.file, parquet.Compression(f.codec.codec))
	return nil
}

// getNextFileName generates a new file name in currentName.
// It also stores the history of these files in ListOfOutputFiles.
func (f *ParquetFileOutput[T]) getNextFileName() {
	name := fmt.Sprintf("%v.c%03d", f.prefix, f.currentSuffixID)
	if f.codec.Extension != "" {
		name += "." + f.codec.Extension
	}
	f.currentName = filepath.Join(f.directory, name+"."+constants.ParquetFileExtension)
	f.ListOfOutputFiles = append(f.ListOfOutputFiles, f.currentName)
	f.currentSuffixID++
}
