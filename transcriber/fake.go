package transcriber

import (
	"context"
	"fmt"
	"sync"
	"time"

	"whisperkey/audio"
)

// FakeTranscriber returns a fixed text or error and records its inputs.
type FakeTranscriber struct {
	text  string
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls []audio.Recording
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

// WithDelay makes Transcribe take d (or until ctx ends).
func (f *FakeTranscriber) WithDelay(d time.Duration) *FakeTranscriber {
	f.delay = d
	return f
}

func (f *FakeTranscriber) Name() string { return "fake" }
func (f *FakeTranscriber) Close() error { return nil }

func (f *FakeTranscriber) Calls() []audio.Recording {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audio.Recording(nil), f.calls...)
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, rec audio.Recording) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rec)
	f.mu.Unlock()

	if f.delay > 0 {
		t := time.NewTimer(f.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-t.C:
		}
	}
	if f.err != nil {
		return Result{}, fmt.Errorf("fake transcriber error: %w", f.err)
	}
	return Result{Text: f.text, Audio: rec.Duration(), Inference: f.delay}, nil
}
