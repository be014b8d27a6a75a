// Package config loads the settings of a run from an optional YAML or JSON file and the environment.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/ghodss/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	c "github.com/relloyd/sparkify/constants"
	"github.com/relloyd/sparkify/helper"
	yamlv2 "gopkg.in/yaml.v2"
)

const (
	MainDir          = ".sparkify"
	MainFileFullName = "dl.yaml"
	redacted         = "<redacted>"
)

// Environment variables read by Load.
const (
	EnvInputData          = c.EnvVarPrefix + "_INPUT_DATA"
	EnvOutputData         = c.EnvVarPrefix + "_OUTPUT_DATA"
	EnvAWSAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvAWSSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	EnvAWSRegion          = "AWS_REGION"
	EnvLogLevel           = c.EnvVarPrefix + "_LOG_LEVEL"
	EnvStackDump          = c.EnvVarPrefix + "_STACK_DUMP"
	EnvStatsSeconds       = c.EnvVarPrefix + "_STATS_SECONDS"
	EnvStatusPort         = c.EnvVarPrefix + "_STATUS_PORT"
	EnvCompression        = c.EnvVarPrefix + "_COMPRESSION"
	EnvMaxFileRows        = c.EnvVarPrefix + "_MAX_FILE_ROWS"
	EnvWriteConcurrency   = c.EnvVarPrefix + "_WRITE_CONCURRENCY"
	EnvStagingDir         = c.EnvVarPrefix + "_STAGING_DIR"
)

var envVars = []string{
	EnvInputData, EnvOutputData, EnvAWSAccessKeyID, EnvAWSSecretAccessKey, EnvAWSRegion, EnvLogLevel, EnvStackDump,
	EnvStatsSeconds, EnvStatusPort, EnvCompression, EnvMaxFileRows, EnvWriteConcurrency, EnvStagingDir,
}

// Config holds everything a run needs.
// The json tags name the keys in the config file and the env tags name the environment variables.
type Config struct {
	InputData          string `json:"input_data" yaml:"input_data" env:"SPK_INPUT_DATA" errorTxt:"input data location" mandatory:"yes"`
	OutputData         string `json:"output_data" yaml:"output_data" env:"SPK_OUTPUT_DATA" errorTxt:"output data location" mandatory:"yes"`
	AWSAccessKeyID     string `json:"aws_access_key_id" yaml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `json:"aws_secret_access_key" yaml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `json:"aws_region" yaml:"aws_region" env:"AWS_REGION"`
	LogLevel           string `json:"log_level" yaml:"log_level" env:"SPK_LOG_LEVEL" errorTxt:"log level" mandatory:"yes"`
	StackDump          bool   `json:"stack_dump" yaml:"stack_dump" env:"SPK_STACK_DUMP"`
	StatsSeconds       int    `json:"stats_seconds" yaml:"stats_seconds" env:"SPK_STATS_SECONDS"`
	StatusPort         int    `json:"status_port" yaml:"status_port" env:"SPK_STATUS_PORT"`
	Compression        string `json:"compression" yaml:"compression" env:"SPK_COMPRESSION" errorTxt:"compression codec" mandatory:"yes"`
	MaxFileRows        int    `json:"max_file_rows" yaml:"max_file_rows" env:"SPK_MAX_FILE_ROWS"`
	WriteConcurrency   int    `json:"write_concurrency" yaml:"write_concurrency" env:"SPK_WRITE_CONCURRENCY" errorTxt:"write concurrency" mandatory:"yes"`
	StagingDir         string `json:"staging_dir" yaml:"staging_dir" env:"SPK_STAGING_DIR"`
	// FileName is the config file that was read, if any.
	FileName string `json:"-" yaml:"-"`
}

// FileNotFoundError denotes failing to find the configuration file named by SPK_CONFIG_FILE.
type FileNotFoundError struct {
	name string
}

// Error returns the formatted configuration error.
func (f FileNotFoundError) Error() string {
	return fmt.Sprintf("config file %q not found", f.name)
}

// Default returns a Config with the default values of optional settings.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		StatsSeconds:     c.StatsCaptureFrequencySeconds,
		Compression:      c.CompressionDefault,
		MaxFileRows:      c.MaxFileRowsDefault,
		WriteConcurrency: c.WriteConcurrencyDefault,
	}
}

// Load builds a Config from the defaults, then the config file, then the environment.
// The file named by SPK_CONFIG_FILE must exist. Otherwise ./dl.yaml and ~/.sparkify/dl.yaml are tried in turn
// and it is fine for neither to exist.
func Load() (*Config, error) {
	cfg := Default()
	fileName, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if fileName != "" {
		if err = cfg.readFile(fileName); err != nil {
			return nil, err
		}
	}
	if err = cfg.readEnv(helper.EnvMap(envVars...)); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that mandatory settings are present and numbers are in range.
func (cfg *Config) Validate() error {
	if err := helper.ValidateStructIsPopulated(cfg); err != nil {
		return err
	}
	if cfg.MaxFileRows < 0 {
		return fmt.Errorf("max file rows must not be negative: %v", cfg.MaxFileRows)
	}
	if cfg.WriteConcurrency < 1 {
		return fmt.Errorf("write concurrency must be at least 1: %v", cfg.WriteConcurrency)
	}
	if cfg.StatsSeconds < 0 {
		return fmt.Errorf("stats seconds must not be negative: %v", cfg.StatsSeconds)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return fmt.Errorf("invalid status port: %v", cfg.StatusPort)
	}
	return nil
}

// Redacted renders the config as YAML with secrets masked.
func (cfg *Config) Redacted() string {
	r := *cfg
	if r.AWSAccessKeyID != "" {
		r.AWSAccessKeyID = redacted
	}
	if r.AWSSecretAccessKey != "" {
		r.AWSSecretAccessKey = redacted
	}
	b, err := yamlv2.Marshal(&r)
	if err != nil {
		return fmt.Sprintf("unable to render config: %v", err)
	}
	return string(b)
}

// readFile applies the YAML or JSON file on top of cfg.
func (cfg *Config) readFile(fileName string) error {
	b, err := ioutil.ReadFile(fileName)
	if err != nil {
		return errors.Wrapf(err, "error reading config file %v", fileName)
	}
	if err = yaml.Unmarshal(b, cfg); err != nil {
		return errors.Wrapf(err, "error parsing config file %v", fileName)
	}
	cfg.FileName = fileName
	return nil
}

// readEnv applies the environment variables in env on top of cfg.
// Values are strings so they are decoded weakly into numbers and booleans.
func (cfg *Config) readEnv(env map[string]interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "env",
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return err
	}
	if err = d.Decode(env); err != nil {
		return errors.Wrap(err, "error reading config from the environment")
	}
	return nil
}

func findConfigFile() (string, error) {
	if f := os.Getenv(c.EnvVarConfigFile); f != "" {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				return "", FileNotFoundError{f}
			}
			return "", err
		}
		return f, nil
	}
	candidates := []string{MainFileFullName}
	if home, err := homeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, MainFileFullName))
	}
	for _, f := range candidates {
		if fi, err := os.Stat(f); err == nil && !fi.IsDir() {
			return f, nil
		}
	}
	return "", nil
}
