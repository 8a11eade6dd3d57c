// Package jplog provides the structured logger jp writes to the
// terminal and to a rotating state-directory log file, grounded on the
// teacher's logger/logger.go, plus a handful of jp-vocabulary helpers
// (LogToolCall, LogStreamEvent, LogStreamError) that tag log lines with
// the tool-call and stream-event fields the rest of this module deals
// in, rather than leaving every call site to invent its own field names.
package jplog

import (
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/sidedotdev/jp/config"
)

// asyncWriter decouples log writes from the caller. jp streams model
// output to the terminal concurrently with writing log lines to disk;
// a slow or contended disk shouldn't stall token delivery.
type asyncWriter struct {
	ch     chan []byte
	writer io.Writer
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:     make(chan []byte, bufSize),
		writer: w,
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) drain() {
	for p := range aw.ch {
		aw.writer.Write(p) //nolint:errcheck
	}
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case aw.ch <- buf:
	default:
		// drop the log entry if the buffer is full rather than blocking
	}
	return len(p), nil
}

var once sync.Once
var log zerolog.Logger

// GetLogLevel reads JP_LOG_LEVEL as a zerolog.Level integer, defaulting
// to info.
func GetLogLevel() zerolog.Level {
	level, err := strconv.Atoi(os.Getenv("JP_LOG_LEVEL"))
	if err != nil {
		level = int(zerolog.InfoLevel)
	}
	return zerolog.Level(level)
}

// Get returns the process-wide logger, building it on first call.
func Get() zerolog.Logger {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}

		var syncOutput io.Writer = consoleWriter

		stateDir := config.Dir()
		if err := os.MkdirAll(stateDir, 0o755); err == nil {
			if fileWriter, err := newDailyRotatingLogWriter(stateDir); err == nil {
				syncOutput = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
			}
		}

		output := newAsyncWriter(syncOutput, 1024)

		var gitRevision string
		buildInfo, ok := debug.ReadBuildInfo()
		if ok {
			for _, v := range buildInfo.Settings {
				if v.Key == "vcs.revision" {
					gitRevision = v.Value
					break
				}
			}
		}

		log = zerolog.New(output).
			Level(zerolog.Level(GetLogLevel())).
			With().
			Timestamp().
			Str("git_revision", gitRevision).
			Str("go_version", buildInfo.GoVersion).
			Logger()
	})

	return log
}

// LogToolCall records one tool-call outcome at debug level, tagged with
// jp's own vocabulary rather than a generic message: the tool name, its
// call id, and the outcome (the coordinator passes "ok", "needs_input",
// or "error"). Mirrors dev/run_command.go's
// l.Debug().Str("cmd", command).Msg(...) field-tagging style.
func LogToolCall(name, id, outcome string) {
	Get().Debug().Str("tool", name).Str("call_id", id).Str("outcome", outcome).Msg("tool call")
}

// LogStreamEvent records one provider stream event at debug level,
// tagged by its Part/Flush/Finished kind and content-block index (spec
// §4.2), plus the finish reason when the event is a Finished.
func LogStreamEvent(kind string, index int, reason string) {
	ev := Get().Debug().Str("stream_kind", kind).Int("index", index)
	if reason != "" {
		ev = ev.Str("finish_reason", reason)
	}
	ev.Msg("provider stream event")
}

// LogStreamError records a classified StreamError at warn level, tagged
// by its StreamErrorKind and whether the resilience layer will retry it
// — the distinction that matters operationally between a transient
// RateLimit and a terminal InsufficientQuota (spec §4.4/§7).
func LogStreamError(kind string, retryable bool, message string) {
	Get().Warn().Str("error_kind", kind).Bool("retryable", retryable).Msg(message)
}

const (
	logFilePrefix   = "jp-"
	logFileSuffix   = ".log"
	maxLogFileCount = 7
)

type dailyRotatingLogWriter struct {
	mu          sync.Mutex
	stateDir    string
	currentDate string
	file        *os.File
}

func newDailyRotatingLogWriter(stateDir string) (*dailyRotatingLogWriter, error) {
	w := &dailyRotatingLogWriter{stateDir: stateDir}
	if err := w.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *dailyRotatingLogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.rotateIfNeeded(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

func (w *dailyRotatingLogWriter) rotateIfNeeded() error {
	today := time.Now().Format("2006-01-02")
	if w.currentDate == today && w.file != nil {
		return nil
	}

	if w.file != nil {
		w.file.Close()
	}

	logFileName := logFilePrefix + today + logFileSuffix
	file, err := os.OpenFile(
		filepath.Join(w.stateDir, logFileName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY,
		0o644,
	)
	if err != nil {
		return err
	}

	w.file = file
	w.currentDate = today

	cleanupOldLogFiles(w.stateDir)

	return nil
}

func (w *dailyRotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}

var _ io.WriteCloser = (*dailyRotatingLogWriter)(nil)

func cleanupOldLogFiles(stateDir string) {
	entries, err := os.ReadDir(stateDir)
	if err != nil {
		return
	}

	var logFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, logFilePrefix) && strings.HasSuffix(name, logFileSuffix) {
			logFiles = append(logFiles, name)
		}
	}

	if len(logFiles) <= maxLogFileCount {
		return
	}

	sort.Strings(logFiles)

	for i := 0; i < len(logFiles)-maxLogFileCount; i++ {
		os.Remove(filepath.Join(stateDir, logFiles[i]))
	}
}
