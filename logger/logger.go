package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
)

// Logger type is interface for available logging methods.
type Logger interface {
	Trace(...interface{})
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
	Panic(...interface{})
	Fatal(...interface{})
}

// LoggerImpl is a struct that extends sirupsen/logrus.
// Each instance owns its own logrus.Logger so tests and concurrent pipelines don't share output settings.
type LoggerImpl struct {
	Logger         *log.Entry
	Service        string
	LogLevelStr    string
	PrintStackDump bool
	base           *log.Logger
}

// NewLogger will create a new logger implementation that writes to stderr.
// An unknown level falls back to "info" and is reported once at warning level.
func NewLogger(serviceName string, level string, stackDumpOnPanic bool) *LoggerImpl {
	base := log.New()
	badLevel := false
	logLevel, err := log.ParseLevel(level)
	if err != nil {
		logLevel = log.InfoLevel
		level = "info"
		badLevel = true
	}
	base.SetLevel(logLevel)
	l := &LoggerImpl{
		Logger:         base.WithFields(log.Fields{"service": serviceName}),
		Service:        serviceName,
		LogLevelStr:    level,
		PrintStackDump: stackDumpOnPanic,
		base:           base,
	}
	l.SetOutput(os.Stderr)
	if badLevel {
		l.Warn("unknown log level, using info: ", err)
	}
	return l
}

// WithField returns a copy of the logger that adds key=value to every entry.
func (l *LoggerImpl) WithField(key string, value interface{}) *LoggerImpl {
	c := *l
	c.Logger = l.Logger.WithField(key, value)
	return &c
}

// Trace log.
func (l *LoggerImpl) Trace(message ...interface{}) {
	l.Logger.Trace(message...)
}

// Debug log.
func (l *LoggerImpl) Debug(message ...interface{}) {
	l.Logger.Debug(message...)
}

// Info log.
func (l *LoggerImpl) Info(message ...interface{}) {
	l.Logger.Info(message...)
}

// Warn log.
func (l *LoggerImpl) Warn(message ...interface{}) {
	l.Logger.Warn(message...)
}

// Error (with stack trace in trace mode or if the user asked for stack dumps).
func (l *LoggerImpl) Error(message ...interface{}) {
	if l.LogLevelStr == "trace" || l.PrintStackDump {
		l.Logger.WithField("stackTrace", string(debug.Stack())).Error(message...)
	} else {
		l.Logger.Error(message...)
	}
}

// Panic logs the message and panics with the *logrus.Entry.
// Step groups recover the panic and convert it into an error, so this never exits the process itself.
func (l *LoggerImpl) Panic(message ...interface{}) {
	if l.LogLevelStr == "debug" || l.LogLevelStr == "trace" || l.PrintStackDump {
		l.Logger.WithField("stackTrace", string(debug.Stack())).Panic(message...)
	} else {
		l.Logger.Panic(message...)
	}
}

// Fatal (with stack trace in debug mode).
// This causes exit(1).
func (l *LoggerImpl) Fatal(message ...interface{}) {
	if l.LogLevelStr == "debug" || l.LogLevelStr == "trace" {
		l.Logger.WithField("stackTrace", string(debug.Stack())).Fatal(message...)
	} else {
		l.Logger.Fatal(message...)
	}
}

// SetOutput will set the log output to the Writer supplied.
// Interactive terminals get the text formatter, everything else gets JSON.
func (l *LoggerImpl) SetOutput(writer io.Writer) {
	l.base.SetOutput(writer)
	if isTerminal(writer) {
		l.base.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		l.base.SetFormatter(&log.JSONFormatter{})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// String describes the logger for debug output.
func (l *LoggerImpl) String() string {
	return fmt.Sprintf("logger{service=%v level=%v stackDump=%v}", l.Service, l.LogLevelStr, l.PrintStackDump)
}
