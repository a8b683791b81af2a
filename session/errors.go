package session

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTranscript  = errors.New("no speech detected")
	ErrNoAudio          = errors.New("capture produced no audio")
	ErrRecordingTimeout = errors.New("recording exceeded watchdog timeout")
	ErrProcessTimeout   = errors.New("processing exceeded timeout")
	ErrShutdown         = errors.New("shutting down")
)

// CaptureError wraps a failure to open, read or close the audio stream.
type CaptureError struct{ Err error }

func (e *CaptureError) Error() string { return fmt.Sprintf("capture: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// TranscriptionError wraps a model failure or an empty result.
type TranscriptionError struct{ Err error }

func (e *TranscriptionError) Error() string { return fmt.Sprintf("transcription: %v", e.Err) }
func (e *TranscriptionError) Unwrap() error { return e.Err }

// InsertionError wraps a failure to place text at the cursor.
type InsertionError struct{ Err error }

func (e *InsertionError) Error() string { return fmt.Sprintf("insertion: %v", e.Err) }
func (e *InsertionError) Unwrap() error { return e.Err }

// Stage names the pipeline stage an error came from.
func Stage(err error) string {
	var ce *CaptureError
	var te *TranscriptionError
	var ie *InsertionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return "capture"
	case errors.As(err, &te):
		return "transcription"
	case errors.As(err, &ie):
		return "insertion"
	}
	return "unknown"
}
