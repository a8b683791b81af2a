//go:build linux

package beep

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"whisperkey/log"
)

var (
	cues      map[Cue][]int16
	soundOnce sync.Once
)

func initSound() {
	// 200ms tails so PulseAudio fills its buffer before the stream drains
	cues = map[Cue][]int16{
		Start: stereo(cueSamples(Start, 0.2)),
		End:   stereo(cueSamples(End, 0.2)),
		Error: stereo(cueSamples(Error, 0)),
	}
}

func Init() { soundOnce.Do(initSound) }

func play(c Cue) {
	soundOnce.Do(initSound)
	go playSamples(cues[c])
}

func playSamples(samples []int16) {
	if len(samples) == 0 {
		return
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName("whisperkey"))
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	defer client.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := client.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
		}),
	)
	if err != nil {
		log.Warnf("pulse playback error: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
