package audio

import (
	"errors"
	"fmt"
	"sync"
)

var ErrStreamClosed = errors.New("capture stream already closed")

// Stream is an open capture. Close stops it and returns what was buffered.
type Stream interface {
	Close() (Recording, error)
}

// Capturer opens capture streams on one device of a Context.
type Capturer struct {
	Context  Context
	Device   *DeviceInfo // nil selects the system default
	Channels int
}

// Open creates a capture device at the given sample rate and starts buffering.
func (c *Capturer) Open(sampleRate int) (Stream, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	channels := c.Channels
	if channels < 1 {
		channels = 1
	}
	dev, err := c.Context.NewCapture(c.Device, CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   uint32(channels),
	})
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}

	s := &captureStream{dev: dev, sampleRate: sampleRate, channels: channels}
	dev.SetCallback(s.append)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("start capture on %s: %w", dev.DeviceName(), err)
	}
	return s, nil
}

type captureStream struct {
	dev        CaptureDevice
	sampleRate int
	channels   int

	mu     sync.Mutex
	pcm    []byte
	closed bool
}

func (s *captureStream) append(data []byte, _ uint32) {
	s.mu.Lock()
	if !s.closed {
		s.pcm = append(s.pcm, data...)
	}
	s.mu.Unlock()
}

func (s *captureStream) Close() (Recording, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Recording{}, ErrStreamClosed
	}
	s.closed = true
	s.mu.Unlock()

	s.dev.ClearCallback()
	s.dev.Stop()
	s.dev.Close()

	s.mu.Lock()
	pcm := s.pcm
	s.pcm = nil
	s.mu.Unlock()
	return FromPCM(pcm, s.sampleRate, s.channels), nil
}
