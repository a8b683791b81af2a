package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"whisperkey/audio"
	"whisperkey/log"
)

const (
	VariantWhisperCpp = "whisper-cpp"
	VariantServer     = "whisper-server"
	VariantGroq       = "groq"
	VariantOpenAI     = "openai"
)

var Variants = []string{VariantWhisperCpp, VariantServer, VariantGroq, VariantOpenAI}

var ModelSizes = []string{
	"tiny", "tiny.en", "base", "base.en", "small", "small.en",
	"medium", "medium.en", "large-v1", "large-v2", "large-v3", "large-v3-turbo",
}

// ErrModelLoad wraps any failure to load a local model.
var ErrModelLoad = errors.New("model failed to load")

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text         string
	Start        time.Duration
	End          time.Duration
	NoSpeechProb float64
}

type Result struct {
	Text      string
	Segments  []Segment
	Audio     time.Duration // length of the transcribed recording
	Inference time.Duration // wall time spent in Transcribe
	Metrics   *NetworkMetrics
	RateLimit string
}

// NoSpeech reports whether the model produced no usable text.
func (r Result) NoSpeech() bool {
	return strings.TrimSpace(r.Text) == ""
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, rec audio.Recording) (Result, error)
	Close() error
}

type Config struct {
	Variant   string
	Model     string // model size, e.g. "small"
	ModelDir  string
	ServerURL string
	Language  string
	Threads   int
	GroqKey   string
	OpenAIKey string
}

// ModelPath returns the ggml model file for a model size.
func ModelPath(dir, size string) string {
	return filepath.Join(dir, "ggml-"+size+".bin")
}

func ValidModelSize(size string) bool {
	return slices.Contains(ModelSizes, size)
}

// New builds the transcriber for cfg.Variant. The in-process variant loads
// its model in the background; a build without whisper.cpp support falls
// back to the server variant.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Variant {
	case VariantWhisperCpp, "":
		if !NativeAvailable {
			log.Warnf("built without whisper.cpp support; falling back to %s at %s", VariantServer, cfg.ServerURL)
			return NewServer(cfg.ServerURL, cfg.Language, cfg.Model), nil
		}
		path := ModelPath(cfg.ModelDir, cfg.Model)
		return NewLazy(VariantWhisperCpp, func() (Transcriber, error) {
			return NewNative(path, cfg.Language, cfg.Threads)
		}), nil
	case VariantServer:
		return NewServer(cfg.ServerURL, cfg.Language, cfg.Model), nil
	case VariantGroq:
		if cfg.GroqKey == "" {
			return nil, fmt.Errorf("set GROQ_API_KEY to use the %s variant", VariantGroq)
		}
		return NewGroq(cfg.GroqKey, cfg.Language), nil
	case VariantOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("set OPENAI_API_KEY to use the %s variant", VariantOpenAI)
		}
		return NewOpenAI(cfg.OpenAIKey, cfg.Language), nil
	}
	return nil, fmt.Errorf("unknown variant %q (want one of %s)", cfg.Variant, strings.Join(Variants, ", "))
}
