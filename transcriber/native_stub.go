//go:build !whispercpp

package transcriber

import (
	"context"
	"errors"

	"whisperkey/audio"
)

// NativeAvailable reports whether this binary links whisper.cpp.
const NativeAvailable = false

var errNoNative = errors.New("whisper.cpp support not compiled in (rebuild with -tags whispercpp)")

type Native struct{}

func NewNative(string, string, int) (*Native, error) {
	return nil, errNoNative
}

func (n *Native) Name() string { return VariantWhisperCpp }

func (n *Native) Close() error { return nil }

func (n *Native) Transcribe(context.Context, audio.Recording) (Result, error) {
	return Result{}, errNoNative
}
