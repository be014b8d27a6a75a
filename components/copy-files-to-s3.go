package components

import (
	"os"
	"path"
	"strings"
	"sync/atomic"

	"github.com/relloyd/sparkify/aws/s3"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/stream"
)

type CopyFilesToS3Config struct {
	Log                              logger.Logger
	Name                             string
	InputChan                        chan stream.Record // the input channel of rows containing files (with full paths) to copy/move to S3.
	InputField4FileName              string             // name of the field in InputChan that contains the files to move; defaults to Defaults.ChanField4FileName.
	InputField4FileNameWithoutPrefix string             // name of the field holding the key relative to KeyPrefix; defaults to Defaults.ChanField4FileNameWithoutPrefix.
	Client                           s3.BasicClient     // client for the target bucket.
	KeyPrefix                        string             // prefix added to the relative file names, e.g. output/songs.
	RemoveInputFiles                 bool               // true to delete the input files after successful copy to s3.
	StepWatcher                      *stats.StepWatcher
	WaitCounter                      ComponentWaiter
	PanicHandlerFn                   PanicHandlerFunc
}

// NewCopyFilesToS3 copies os files to S3, preserving their relative paths under KeyPrefix.
// Files are uploaded in input order so a success marker sent last lands last.
// This passes InputChan rows to outputChan.
func NewCopyFilesToS3(cfg *CopyFilesToS3Config) (outputChan chan stream.Record, controlChan chan ControlAction) {
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewCopyFilesToS3.")
	}
	if cfg.Client == nil {
		cfg.Log.Panic(cfg.Name, " error - missing S3 client.")
	}
	cfg.InputField4FileName = defaultString(cfg.InputField4FileName, Defaults.ChanField4FileName)
	cfg.InputField4FileNameWithoutPrefix = defaultString(cfg.InputField4FileNameWithoutPrefix, Defaults.ChanField4FileNameWithoutPrefix)
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")
	cfg.Log.Debug(cfg.Name, ": RemoveInputFiles = ", cfg.RemoveInputFiles)
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
		cfg.Log.Info(cfg.Name, " is running")
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a StepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		// Setup log text based on copy vs move action.
		action := "moving"
		if !cfg.RemoveInputFiles {
			action = "copying"
		}
		for {
			select {
			case rec, ok := <-cfg.InputChan: // for each row of input...
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else { // else process the input row...
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
					fileFullPathName := rec.GetDataAsStringUseUtcTime(cfg.Log, cfg.InputField4FileName)
					if fileFullPathName != "" {
						key := path.Join(cfg.KeyPrefix, rec.GetDataAsStringUseUtcTime(cfg.Log, cfg.InputField4FileNameWithoutPrefix))
						cfg.Log.Debug(cfg.Name, " ", action, " file '", fileFullPathName, "' to S3 key '", key, "'")
						uploadFile(cfg, fileFullPathName, key)
						// Remove the local file after copy to S3.
						if cfg.RemoveInputFiles { // if we are requested to move the file instead of just copy...
							if err := os.Remove(fileFullPathName); err != nil {
								cfg.Log.Panic(cfg.Name, " unable to remove OS file, ", fileFullPathName)
							}
							cfg.Log.Debug(cfg.Name, " removed file '", fileFullPathName, "'")
						}
						if recSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSentOK { // forward the record
							cfg.Log.Info(cfg.Name, " shutdown")
							return
						}
					} else {
						cfg.Log.Debug(cfg.Name, " no file found in input channel - skipping.")
					}
				}
			case controlAction := <-controlChan: // if we received a shutdown request...
				sendNilControlResponse(controlAction)
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			if cfg.InputChan == nil { // if all input rows were consumed...
				break
			}
		}
		close(outputChan) // we're done so close the channel we created.
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

func uploadFile(cfg *CopyFilesToS3Config, fileName string, key string) {
	f, err := os.Open(fileName) // File implements io.ReadSeeker
	if err != nil {
		cfg.Log.Panic(cfg.Name, " error - unable to open file, ", fileName)
	}
	defer f.Close()
	if err = cfg.Client.BufferPut(key, f); err != nil {
		cfg.Log.Panic(cfg.Name, " error uploading ", fileName, ": ", err)
	}
}
