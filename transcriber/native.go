//go:build whispercpp

package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"whisperkey/audio"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// NativeAvailable reports whether this binary links whisper.cpp.
const NativeAvailable = true

// whisper.cpp expects 16 kHz mono input.
const nativeSampleRate = whisperlib.SampleRate

// Native runs whisper.cpp in-process. The model is shared; each call gets
// its own context.
type Native struct {
	model   whisperlib.Model
	lang    string
	threads int
}

func NewNative(modelPath, lang string, threads int) (*Native, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper model %s: %w", modelPath, err)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	if threads <= 0 {
		threads = min(runtime.NumCPU(), 8)
	}
	return &Native{model: model, lang: lang, threads: threads}, nil
}

func (n *Native) Name() string { return VariantWhisperCpp }

func (n *Native) Close() error {
	return n.model.Close()
}

func (n *Native) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	if rec.SampleRate != nativeSampleRate {
		return Result{}, fmt.Errorf("whisper: recording is %d Hz, model needs %d Hz", rec.SampleRate, nativeSampleRate)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()

	wctx, err := n.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if n.lang != "" {
		if err := wctx.SetLanguage(n.lang); err != nil {
			return Result{}, fmt.Errorf("whisper: language %q: %w", n.lang, err)
		}
	}
	wctx.SetThreads(uint(n.threads))

	if err := wctx.Process(rec.Float32(), nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	var segments []Segment
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		segments = append(segments, Segment{Text: text, Start: seg.Start, End: seg.End})
		if text != "" {
			parts = append(parts, text)
		}
	}

	return Result{
		Text:      strings.Join(parts, " "),
		Segments:  segments,
		Audio:     rec.Duration(),
		Inference: time.Since(start),
	}, ctx.Err()
}
