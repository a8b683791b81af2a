package audio

import (
	"context"
	"time"
)

// MicReport summarizes a short probe recording.
type MicReport struct {
	Device   string
	Duration time.Duration
	Stats    Stats
}

// OK reports whether the probe picked up more than silence.
func (r MicReport) OK() bool {
	return r.Stats.Mean >= SilenceThreshold
}

// ProbeMicrophone records for d (or until ctx ends) and reports levels.
func ProbeMicrophone(ctx context.Context, c *Capturer, sampleRate int, d time.Duration) (MicReport, error) {
	stream, err := c.Open(sampleRate)
	if err != nil {
		return MicReport{}, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	rec, err := stream.Close()
	if err != nil {
		return MicReport{}, err
	}
	name := "system default"
	if c.Device != nil {
		name = c.Device.Name
	}
	return MicReport{Device: name, Duration: rec.Duration(), Stats: rec.Stats()}, ctx.Err()
}
