package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagnosticsFile = "diagnostics_log.txt"
	transcriptFile  = "transcribe_log.txt"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	pid            int
	dir            string
)

// Options controls Init. Console, when set, receives a copy of the
// diagnostics stream (the terminal when not running the TUI).
type Options struct {
	Console io.Writer
	Debug   bool
}

// Transcription describes one finished transcription for the diagnostics log.
type Transcription struct {
	SessionID string
	Variant   string
	Model     string
	AudioS    float64
	InferMs   float64
	Chars     int
	DNSMs     float64
	TLSMs     float64
	TTFBMs    float64
	Reused    bool
	RateLimit string
}

func ResolveDir(flagPath string) (string, error) {
	for _, p := range []string{flagPath, os.Getenv("WHISPERKEY_LOG_PATH")} {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) {
			return p, nil
		}
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(wd, p), nil
	}
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init(opts Options) error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	transcribeFile, err = os.OpenFile(filepath.Join(dir, transcriptFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		diagFile.Close()
		return err
	}

	writers := []io.Writer{zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: time.DateTime,
		NoColor:    true,
	}}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.TimeOnly})
	}
	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}
	diagLog = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
}

// Logger returns the diagnostics logger, or a disabled one before Init.
func Logger() zerolog.Logger {
	if !logReady.Load() {
		return zerolog.Nop()
	}
	return diagLog
}

func Debugf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Debug().Msgf(format, args...)
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msgf(format, args...)
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msgf(format, args...)
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msgf(format, args...)
	}
}

// State records one session state transition.
func State(sessionID, from, to string, reason error) {
	if !logReady.Load() {
		return
	}
	ev := diagLog.Info()
	if reason != nil {
		ev = diagLog.Warn().Str("reason", reason.Error())
	}
	ev.Str("session", sessionID).Str("from", from).Str("to", to).Msg("state")
}

func TranscriptionMetrics(m Transcription) {
	if !logReady.Load() {
		return
	}
	ev := diagLog.Info().
		Str("session", m.SessionID).
		Str("variant", m.Variant).
		Str("model", m.Model).
		Float64("audio_s", m.AudioS).
		Float64("infer_ms", m.InferMs).
		Int("chars", m.Chars)
	if m.TTFBMs > 0 {
		conn := "new"
		if m.Reused {
			conn = "reused"
		}
		ev = ev.Str("conn", conn).
			Float64("dns_ms", m.DNSMs).
			Float64("tls_ms", m.TLSMs).
			Float64("ttfb_ms", m.TTFBMs)
	}
	if m.RateLimit != "" {
		ev = ev.Str("rate_limit", m.RateLimit)
	}
	ev.Msg("transcription")
}

func TranscriptionText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	fmt.Fprintf(transcribeFile, "%s\t[%d]\t%s\n", time.Now().Format(time.DateTime), pid, text)
}

func SessionStart(variant, model, key, paste string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("variant", variant).
		Str("model", model).
		Str("key", key).
		Str("paste", paste).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Int("count", count).Msg("session_end")
}
