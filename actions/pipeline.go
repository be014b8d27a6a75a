package actions

import (
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/config"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/transform"
)

// TransformFunc reads from inputData and writes tables under outputData.
type TransformFunc func(sess *engine.Session, inputData string, outputData string) error

type pipelineStep struct {
	name string
	fn   TransformFunc
}

// The song catalog is processed first so a bad catalog fails the run before any event tables are replaced.
var pipelineSteps = []pipelineStep{
	{"ProcessSongData", transform.ProcessSongData},
	{"ProcessLogData", transform.ProcessLogData},
}

// RunPipeline runs the song and log transforms one after the other using the settings in cfg.
// The first transform to fail stops the run. Tables written before the failure are left in place.
func RunPipeline(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil pointer to pipeline config supplied")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.NewLogger(c.ServiceName, cfg.LogLevel, cfg.StackDump)
	log.Debug("Config:\n", cfg.Redacted())
	return runPipeline(log, cfg, pipelineSteps)
}

func runPipeline(log logger.Logger, cfg *config.Config, steps []pipelineStep, opts ...engine.Option) (err error) {
	start := time.Now()
	statsMgr := stats.NewPipelineStats(log, stats.SetStatsDumpFrequency(cfg.StatsSeconds))
	options := []engine.Option{
		engine.WithAWSCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey),
		engine.WithRegion(cfg.AWSRegion),
		engine.WithCompression(cfg.Compression),
		engine.WithMaxFileRows(cfg.MaxFileRows),
		engine.WithWriteConcurrency(cfg.WriteConcurrency),
		engine.WithStagingDir(cfg.StagingDir),
		engine.WithStats(statsMgr),
	}
	sess, err := engine.NewSession(log, c.AppName, append(options, opts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			log.Warn(closeErr)
		}
	}()
	stopSignals := transform.HandleSignals(log, sess)
	defer stopSignals()
	if cfg.StatusPort > 0 {
		srv := runStatusServer(log, &StatusServerConfig{Port: cfg.StatusPort}, sess)
		defer func() {
			if stopErr := stopStatusServer(log, srv); stopErr != nil {
				log.Warn("error stopping status server: ", stopErr)
			}
		}()
	}
	statsMgr.StartDumping()
	defer statsMgr.StopDumping()
	for _, s := range steps {
		log.Info("Starting ", s.name, " for run ", sess.RunID)
		if err = s.fn(sess, cfg.InputData, cfg.OutputData); err != nil {
			log.Error(s.name, " failed: ", err)
			return err
		}
	}
	log.Info(c.AppName, " run ", sess.RunID, " complete in ", time.Since(start).Round(time.Millisecond))
	return nil
}
