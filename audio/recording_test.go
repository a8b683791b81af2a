package audio

import (
	"math"
	"testing"
	"time"
)

func tone(sampleRate int, seconds float64, amp float64) Recording {
	n := int(float64(sampleRate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amp * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return Recording{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func TestRecordingDuration(t *testing.T) {
	tests := []struct {
		name string
		rec  Recording
		want time.Duration
	}{
		{"mono 1s", Recording{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 1}, time.Second},
		{"stereo 0.5s", Recording{Samples: make([]int16, 16000), SampleRate: 16000, Channels: 2}, 500 * time.Millisecond},
		{"zero channels treated as mono", Recording{Samples: make([]int16, 8000), SampleRate: 16000}, 500 * time.Millisecond},
		{"no sample rate", Recording{Samples: make([]int16, 100)}, 0},
		{"empty", Recording{SampleRate: 16000, Channels: 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordingStats(t *testing.T) {
	silent := Recording{Samples: make([]int16, 1600), SampleRate: 16000, Channels: 1}
	if !silent.Silent() {
		t.Errorf("all-zero recording should be silent, stats %+v", silent.Stats())
	}

	loud := tone(16000, 0.1, 0.5)
	st := loud.Stats()
	if loud.Silent() {
		t.Errorf("tone should not be silent, stats %+v", st)
	}
	if st.Max < 0.49 || st.Max > 0.51 {
		t.Errorf("Max = %f, want ~0.5", st.Max)
	}
	// mean |sin| is 2/pi of the peak
	if want := 0.5 * 2 / math.Pi; math.Abs(st.Mean-want) > 0.01 {
		t.Errorf("Mean = %f, want ~%f", st.Mean, want)
	}

	if got := (Recording{}).Stats(); got != (Stats{}) {
		t.Errorf("empty Stats() = %+v, want zero", got)
	}
}

func TestRecordingFloat32MixesDown(t *testing.T) {
	rec := Recording{Samples: []int16{16384, -16384, 8192, 8192}, SampleRate: 16000, Channels: 2}
	got := rec.Float32()
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0] != 0 {
		t.Errorf("frame 0 = %f, want 0", got[0])
	}
	if got[1] != 0.25 {
		t.Errorf("frame 1 = %f, want 0.25", got[1])
	}
}

func TestFromPCMRoundTrip(t *testing.T) {
	rec := Recording{Samples: []int16{0, 1, -1, 32767, -32768}, SampleRate: 8000, Channels: 1}
	back := FromPCM(rec.PCM(), 8000, 1)
	if len(back.Samples) != len(rec.Samples) {
		t.Fatalf("len = %d, want %d", len(back.Samples), len(rec.Samples))
	}
	for i := range rec.Samples {
		if back.Samples[i] != rec.Samples[i] {
			t.Errorf("sample %d = %d, want %d", i, back.Samples[i], rec.Samples[i])
		}
	}
}
