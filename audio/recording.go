package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// SilenceThreshold is the mean normalized amplitude below which a recording
// is treated as mostly silence.
const SilenceThreshold = 0.001

// Recording is a finalized capture: interleaved PCM16 samples plus format.
// A Recording is not modified after it leaves the capture stream.
type Recording struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Stats holds normalized (0..1) absolute amplitude figures.
type Stats struct {
	Mean float64
	Max  float64
}

// FromPCM builds a Recording from little-endian PCM16 bytes.
func FromPCM(data []byte, sampleRate, channels int) Recording {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Recording{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

func (r Recording) channels() int {
	if r.Channels < 1 {
		return 1
	}
	return r.Channels
}

func (r Recording) Frames() int {
	return len(r.Samples) / r.channels()
}

func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(r.Frames()) * time.Second / time.Duration(r.SampleRate)
}

// PCM returns the samples as little-endian PCM16 bytes.
func (r Recording) PCM() []byte {
	out := make([]byte, len(r.Samples)*2)
	for i, s := range r.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Float32 returns a mono mixdown normalized to [-1, 1).
func (r Recording) Float32() []float32 {
	ch := r.channels()
	out := make([]float32, r.Frames())
	for i := range out {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += float32(r.Samples[i*ch+c])
		}
		out[i] = sum / float32(ch) / 32768
	}
	return out
}

func (r Recording) Stats() Stats {
	if len(r.Samples) == 0 {
		return Stats{}
	}
	var sum, peak float64
	for _, s := range r.Samples {
		a := math.Abs(float64(s)) / 32768
		sum += a
		if a > peak {
			peak = a
		}
	}
	return Stats{Mean: sum / float64(len(r.Samples)), Max: peak}
}

// Silent reports whether the recording is mostly silence.
func (r Recording) Silent() bool {
	return r.Stats().Mean < SilenceThreshold
}

// Mono returns the recording mixed down to one channel.
func (r Recording) Mono() Recording {
	ch := r.channels()
	if ch == 1 {
		return r
	}
	out := make([]int16, r.Frames())
	for i := range out {
		var sum int32
		for c := 0; c < ch; c++ {
			sum += int32(r.Samples[i*ch+c])
		}
		out[i] = int16(sum / int32(ch))
	}
	return Recording{Samples: out, SampleRate: r.SampleRate, Channels: 1}
}
