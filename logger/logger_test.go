package logger_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/relloyd/sparkify/logger"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Logger", func() {
	var (
		log       *logger.LoggerImpl
		logOutput *bytes.Buffer
	)

	BeforeEach(func() {
		log = logger.NewLogger("test-service", "debug", true)
		logOutput = bytes.NewBufferString("")
		log.SetOutput(logOutput)
	})

	parse := func() map[string]interface{} {
		var actual map[string]interface{}
		Expect(json.Unmarshal(logOutput.Bytes(), &actual)).To(Succeed())
		return actual
	}

	It("Should have `test-service` as service name", func() {
		log.Info("Testing")
		Expect(parse()["service"]).To(Equal("test-service"))
	})

	It("Should have info as log level", func() {
		log.Info("Testing")
		Expect(parse()["level"]).To(Equal("info"))
	})

	It("Should have warn as log level", func() {
		log.Warn("Testing")
		Expect(parse()["level"]).To(Equal("warning"))
	})

	It("Should have error as log level with a stack trace", func() {
		log.Error("Testing")
		actual := parse()
		Expect(actual["level"]).To(Equal("error"))
		Expect(actual["stackTrace"]).ToNot(BeNil())
	})

	It("Should have `Testing` as msg", func() {
		log.Info("Testing")
		Expect(parse()["msg"]).To(Equal("Testing"))
	})

	It("Should add fields with WithField", func() {
		log.WithField("table", "songs").Info("Testing")
		Expect(parse()["table"]).To(Equal("songs"))
	})

	It("Should panic with a logrus entry so callers can recover", func() {
		var recovered interface{}
		func() {
			defer func() { recovered = recover() }()
			log.Panic("boom")
		}()
		entry, ok := recovered.(*logrus.Entry)
		Expect(ok).To(BeTrue())
		Expect(entry.Message).To(Equal("boom"))
	})

	It("Should skip debug output at info level", func() {
		quiet := logger.NewLogger("test-service", "info", false)
		quiet.SetOutput(logOutput)
		quiet.Debug("hidden")
		Expect(logOutput.Len()).To(Equal(0))
	})

	It("Should fall back to info for an unknown level", func() {
		l := logger.NewLogger("test-service", "loud", false)
		Expect(l.LogLevelStr).To(Equal("info"))
	})
})
