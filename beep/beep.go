// Package beep plays short audible cues for recording start, stop and errors.
package beep

import (
	"math"
	"sync/atomic"
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

func (c Cue) String() string {
	switch c {
	case Start:
		return "start"
	case End:
		return "end"
	case Error:
		return "error"
	}
	return "unknown"
}

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End beep: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	errorBeep = 0.08
	errorGap  = 0.05
)

// Play sounds c without blocking. It is a no-op after Disable or when no
// output device is available.
func Play(c Cue) {
	if disabled.Load() {
		return
	}
	play(c)
}

// tick is a decaying sine, mono.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, 2*len(b)+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// cueSamples renders c; tail is the length of single ticks in seconds.
func cueSamples(c Cue, tail float64) []int16 {
	switch c {
	case Start:
		return tick(startFreq, tail, startVolume, startDecay)
	case End:
		return tick(endFreq, tail, endVolume, endDecay)
	case Error:
		return doubleBeep(errorFreq, errorBeep, errorGap, errorVolume, errorDecay)
	}
	return nil
}

func stereo(mono []int16) []int16 {
	out := make([]int16, len(mono)*2)
	for i, s := range mono {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

func littleEndian(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
