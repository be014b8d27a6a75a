// Package engine provides the execution context shared by the transforms of one run:
// storage resolution, output preparation, stats and run status.
package engine

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/relloyd/sparkify/aws/s3"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/file"
	"github.com/relloyd/sparkify/logger"
	"github.com/relloyd/sparkify/stats"
	"github.com/relloyd/sparkify/storage"
	"github.com/rs/xid"
)

// S3ClientFactory creates a client for a bucket. Clients must not use a key prefix.
type S3ClientFactory func(bucket, region string, options ...s3.ClientOption) (s3.BasicClient, error)

// Session is created once per run and passed to each transform.
type Session struct {
	Log              logger.Logger
	AppName          string
	RunID            string
	Codec            file.Codec
	MaxFileRows      int
	WriteConcurrency int
	Status           *StatusTracker
	stats            stats.StatsManager
	compression      string
	region           string
	accessKeyID      string
	secretAccessKey  string
	stagingDir       string // parent of stagingRoot; the OS temp dir if empty.
	stagingRoot      string // created on first use and removed by Close.
	newS3Client      S3ClientFactory
	mu               sync.Mutex
	clients          map[string]s3.BasicClient
	done             chan struct{}
	shutdownOnce     sync.Once
}

type Option func(s *Session)

// WithAWSCredentials sets a static access key pair. The default credential chain is used otherwise.
func WithAWSCredentials(accessKeyID, secretAccessKey string) Option {
	return func(s *Session) {
		s.accessKeyID = accessKeyID
		s.secretAccessKey = secretAccessKey
	}
}

// WithRegion sets the AWS region used for S3 locations.
func WithRegion(region string) Option {
	return func(s *Session) {
		s.region = region
	}
}

// WithCompression sets the Parquet compression codec by name.
func WithCompression(codec string) Option {
	return func(s *Session) {
		s.compression = codec
	}
}

// WithMaxFileRows rotates Parquet files after n rows. Zero means one file per partition.
func WithMaxFileRows(n int) Option {
	return func(s *Session) {
		s.MaxFileRows = n
	}
}

// WithWriteConcurrency limits the number of partitions of one table written at once.
func WithWriteConcurrency(n int) Option {
	return func(s *Session) {
		s.WriteConcurrency = n
	}
}

// WithStagingDir sets the directory in which files bound for S3 are written before upload.
func WithStagingDir(dir string) Option {
	return func(s *Session) {
		s.stagingDir = dir
	}
}

// WithStats registers every step watcher with m.
func WithStats(m stats.StatsManager) Option {
	return func(s *Session) {
		s.stats = m
	}
}

// WithS3ClientFactory replaces the function used to create S3 clients.
func WithS3ClientFactory(f S3ClientFactory) Option {
	return func(s *Session) {
		s.newS3Client = f
	}
}

func defaultS3ClientFactory(bucket, region string, options ...s3.ClientOption) (s3.BasicClient, error) {
	return s3.NewBasicClient(bucket, region, "", options...)
}

// NewSession creates a Session with a new run ID.
func NewSession(log logger.Logger, appName string, opts ...Option) (*Session, error) {
	s := &Session{
		Log:              log,
		AppName:          appName,
		RunID:            xid.New().String(),
		MaxFileRows:      c.MaxFileRowsDefault,
		WriteConcurrency: c.WriteConcurrencyDefault,
		Status:           NewStatusTracker(),
		compression:      c.CompressionDefault,
		newS3Client:      defaultS3ClientFactory,
		clients:          make(map[string]s3.BasicClient),
		done:             make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	var err error
	if s.Codec, err = file.GetCodec(s.compression); err != nil {
		return nil, errors.Wrap(err, "unable to create session")
	}
	if s.MaxFileRows < 0 {
		return nil, errors.Errorf("max file rows must not be negative: %v", s.MaxFileRows)
	}
	if s.WriteConcurrency < 1 {
		return nil, errors.Errorf("write concurrency must be at least 1: %v", s.WriteConcurrency)
	}
	if (s.accessKeyID == "") != (s.secretAccessKey == "") {
		return nil, errors.New("both the AWS access key ID and secret access key are required when either is set")
	}
	log.Info("Created session for ", appName, " with run ID ", s.RunID)
	return s, nil
}

// S3Client returns the cached client for bucket, creating it if needed.
func (s *Session) S3Client(bucket string) (s3.BasicClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cl, ok := s.clients[bucket]; ok {
		return cl, nil
	}
	if s.region == "" {
		return nil, errors.Errorf("an AWS region is required to use bucket %v", bucket)
	}
	var options []s3.ClientOption
	if s.accessKeyID != "" {
		options = append(options, s3.WithStaticCredentials(s.accessKeyID, s.secretAccessKey))
	}
	cl, err := s.newS3Client(bucket, s.region, options...)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create S3 client for bucket %v", bucket)
	}
	s.clients[bucket] = cl
	return cl, nil
}

// Storage returns local or S3 storage for location.
func (s *Session) Storage(location storage.Location) (storage.Storage, error) {
	if !location.Remote {
		return storage.NewLocalStorage(location), nil
	}
	cl, err := s.S3Client(location.Bucket)
	if err != nil {
		return nil, err
	}
	return storage.NewS3Storage(cl, location), nil
}

// PrepareOutput removes everything at location and returns the local directory into which a table should be
// written. For S3 locations the directory is a staging area and upload is true.
func (s *Session) PrepareOutput(location storage.Location) (dir string, upload bool, err error) {
	st, err := s.Storage(location)
	if err != nil {
		return "", false, err
	}
	if err = st.RemoveAll(location); err != nil {
		return "", false, errors.Wrapf(err, "unable to clear output %v", location)
	}
	if !location.Remote {
		return location.Path, false, nil
	}
	root, err := s.staging()
	if err != nil {
		return "", false, err
	}
	dir = filepath.Join(root, location.Bucket, filepath.FromSlash(location.Path))
	if err = os.RemoveAll(dir); err != nil {
		return "", false, errors.Wrapf(err, "unable to clear staging directory %v", dir)
	}
	return dir, true, nil
}

func (s *Session) staging() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stagingRoot != "" {
		return s.stagingRoot, nil
	}
	if s.stagingDir != "" {
		if err := os.MkdirAll(s.stagingDir, 0755); err != nil {
			return "", errors.Wrapf(err, "unable to create staging directory %v", s.stagingDir)
		}
	}
	root, err := ioutil.TempDir(s.stagingDir, c.StagingDirPrefix+s.RunID+"-")
	if err != nil {
		return "", errors.Wrap(err, "unable to create staging directory")
	}
	s.stagingRoot = root
	return root, nil
}

// StepWatcher returns a watcher registered with the session's stats manager, or nil if there is none.
func (s *Session) StepWatcher(name string) *stats.StepWatcher {
	if s.stats == nil {
		return nil
	}
	return s.stats.AddStepWatcher(name)
}

// Stats returns the stats manager supplied with WithStats.
func (s *Session) Stats() stats.StatsManager {
	return s.stats
}

// Shutdown asks running transforms to stop. It is safe to call more than once.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.Log.Info("Shutdown requested for run ", s.RunID)
		close(s.done)
	})
}

// Done is closed once Shutdown is called.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close removes the staging directory.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stagingRoot == "" {
		return nil
	}
	err := os.RemoveAll(s.stagingRoot)
	s.stagingRoot = ""
	return errors.Wrap(err, "unable to remove staging directory")
}
