// Package log provides structured, colored logging for the snekcloud node runtime.
package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Node       zerolog.Logger
	Directory  zerolog.Logger
	Dispatcher zerolog.Logger
	Heartbeat  zerolog.Logger
	Topology   zerolog.Logger
	Transport  zerolog.Logger
	Config     zerolog.Logger
)

func init() {
	// Default to colored console output.
	Logger = NewConsoleLogger(os.Stdout, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given level. When logFolder is
// non-empty, logs are additionally written as JSON to daily-rotated files
// under it, named "<log_folder>/YYYY-MM-DD.log".
func Init(level string, logFolder string) error {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
		NoColor:    false,
	}

	var writer io.Writer = consoleWriter
	if logFolder != "" {
		if err := os.MkdirAll(logFolder, 0755); err != nil {
			return err
		}
		writer = zerolog.MultiLevelWriter(consoleWriter, newDailyWriter(logFolder))
	}

	Logger = zerolog.New(writer).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	initComponentLoggers()
	return nil
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    false,
	}

	return zerolog.New(output).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Node = Logger.With().Str("component", "node").Logger()
	Directory = Logger.With().Str("component", "directory").Logger()
	Dispatcher = Logger.With().Str("component", "dispatcher").Logger()
	Heartbeat = Logger.With().Str("component", "heartbeat").Logger()
	Topology = Logger.With().Str("component", "topology").Logger()
	Transport = Logger.With().Str("component", "transport").Logger()
	Config = Logger.With().Str("component", "config").Logger()
}

// WithComponent returns a logger with a component field.
func WithComponent(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// dailyWriter swaps its underlying lumberjack-backed file to
// "<folder>/YYYY-MM-DD.log" whenever the local date changes, layering
// day-boundary rotation on top of lumberjack's size/age rotation.
type dailyWriter struct {
	mu      sync.Mutex
	folder  string
	day     string
	current *lumberjack.Logger
}

func newDailyWriter(folder string) *dailyWriter {
	return &dailyWriter{folder: folder}
}

func (w *dailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().Format("2006-01-02")
	if day != w.day {
		if w.current != nil {
			w.current.Close()
		}
		w.current = &lumberjack.Logger{
			Filename: filepath.Join(w.folder, day+".log"),
			MaxSize:  100, // megabytes; safety net if a single day logs unusually heavily
		}
		w.day = day
	}
	return w.current.Write(p)
}
