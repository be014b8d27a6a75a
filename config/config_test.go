package config_test

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/sparkify/config"
	c "github.com/relloyd/sparkify/constants"
)

var _ = Describe("Config", func() {
	var (
		dir      string
		savedEnv map[string]string
		savedWd  string
	)

	vars := []string{
		c.EnvVarConfigFile, "HOME", config.EnvInputData, config.EnvOutputData, config.EnvAWSAccessKeyID,
		config.EnvAWSSecretAccessKey, config.EnvAWSRegion, config.EnvLogLevel, config.EnvStackDump,
		config.EnvStatsSeconds, config.EnvStatusPort, config.EnvCompression, config.EnvMaxFileRows,
		config.EnvWriteConcurrency, config.EnvStagingDir,
	}

	writeFile := func(name string, content string) string {
		p := filepath.Join(dir, name)
		Expect(os.MkdirAll(filepath.Dir(p), 0755)).To(Succeed())
		Expect(ioutil.WriteFile(p, []byte(content), 0644)).To(Succeed())
		return p
	}

	BeforeEach(func() {
		var err error
		dir, err = ioutil.TempDir("", "sparkify-config-")
		Expect(err).NotTo(HaveOccurred())
		savedEnv = make(map[string]string)
		for _, v := range vars {
			if val, ok := os.LookupEnv(v); ok {
				savedEnv[v] = val
			}
			Expect(os.Unsetenv(v)).To(Succeed())
		}
		// Isolate the default file locations.
		Expect(os.Setenv("HOME", filepath.Join(dir, "home"))).To(Succeed())
		homedir.DisableCache = true
		savedWd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(savedWd)).To(Succeed())
		for _, v := range vars {
			_ = os.Unsetenv(v)
		}
		for k, v := range savedEnv {
			_ = os.Setenv(k, v)
		}
		homedir.DisableCache = false
		_ = os.RemoveAll(dir)
	})

	It("Should apply defaults and read the environment", func() {
		Expect(os.Setenv(config.EnvInputData, "s3a://udacity-dend/")).To(Succeed())
		Expect(os.Setenv(config.EnvOutputData, "/tmp/out")).To(Succeed())
		Expect(os.Setenv(config.EnvStatusPort, "8080")).To(Succeed())
		Expect(os.Setenv(config.EnvStackDump, "true")).To(Succeed())
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.InputData).To(Equal("s3a://udacity-dend/"))
		Expect(cfg.OutputData).To(Equal("/tmp/out"))
		Expect(cfg.StatusPort).To(Equal(8080))
		Expect(cfg.StackDump).To(BeTrue())
		Expect(cfg.LogLevel).To(Equal("info"))
		Expect(cfg.Compression).To(Equal(c.CompressionDefault))
		Expect(cfg.WriteConcurrency).To(Equal(c.WriteConcurrencyDefault))
		Expect(cfg.FileName).To(BeEmpty())
	})

	It("Should let the environment override ./dl.yaml", func() {
		writeFile(config.MainFileFullName, `
input_data: /data/in
output_data: /data/out
aws_region: us-west-2
max_file_rows: 1000
`)
		Expect(os.Setenv(config.EnvOutputData, "/other/out")).To(Succeed())
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.FileName).To(Equal(config.MainFileFullName))
		Expect(cfg.InputData).To(Equal("/data/in"))
		Expect(cfg.OutputData).To(Equal("/other/out"))
		Expect(cfg.AWSRegion).To(Equal("us-west-2"))
		Expect(cfg.MaxFileRows).To(Equal(1000))
	})

	It("Should read JSON from the file in the home directory", func() {
		p := writeFile(filepath.Join("home", config.MainDir, config.MainFileFullName),
			`{"input_data": "/json/in", "output_data": "/json/out", "write_concurrency": 2}`)
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.FileName).To(Equal(p))
		Expect(cfg.WriteConcurrency).To(Equal(2))
	})

	It("Should fail when SPK_CONFIG_FILE does not exist", func() {
		Expect(os.Setenv(c.EnvVarConfigFile, filepath.Join(dir, "missing.yaml"))).To(Succeed())
		_, err := config.Load()
		Expect(err).To(BeAssignableToTypeOf(config.FileNotFoundError{}))
	})

	It("Should report missing mandatory settings", func() {
		_, err := config.Load()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("input data location"))
		Expect(err.Error()).To(ContainSubstring("output data location"))
	})

	It("Should reject bad numbers", func() {
		Expect(os.Setenv(config.EnvInputData, "/in")).To(Succeed())
		Expect(os.Setenv(config.EnvOutputData, "/out")).To(Succeed())
		Expect(os.Setenv(config.EnvMaxFileRows, "lots")).To(Succeed())
		_, err := config.Load()
		Expect(err).To(HaveOccurred())
		Expect(os.Setenv(config.EnvMaxFileRows, "-1")).To(Succeed())
		_, err = config.Load()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("max file rows"))
	})

	It("Should mask secrets when redacted", func() {
		cfg := config.Default()
		cfg.InputData = "/in"
		cfg.AWSAccessKeyID = "AKIAEXAMPLE"
		cfg.AWSSecretAccessKey = "secret"
		out := cfg.Redacted()
		Expect(out).To(ContainSubstring("input_data: /in"))
		Expect(out).NotTo(ContainSubstring("AKIAEXAMPLE"))
		Expect(out).NotTo(ContainSubstring("secret\n"))
		Expect(out).To(ContainSubstring("<redacted>"))
		Expect(cfg.AWSSecretAccessKey).To(Equal("secret"))
	})
})
