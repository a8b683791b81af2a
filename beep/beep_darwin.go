//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"whisperkey/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	cues      map[Cue][]byte
	soundOnce sync.Once

	// Playback state - accessed atomically from callback
	playSamples atomic.Pointer[[]byte]
	playPos     atomic.Uint32
	playMu      sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("malgo init error: %v", err)
		return
	}

	cues = map[Cue][]byte{
		Start: littleEndian(cueSamples(Start, 0.03)),
		End:   littleEndian(cueSamples(End, 0.05)),
		Error: littleEndian(cueSamples(Error, 0)),
	}

	if err := initDevice(); err != nil {
		log.Warnf("playback device error: %v", err)
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func Init() { soundOnce.Do(initSound) }

func play(c Cue) {
	soundOnce.Do(initSound)
	playBytes(cues[c])
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := playSamples.Load()
	if samples == nil || len(*samples) == 0 {
		clear(pOutput)
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	bytesToWrite := frameCount * 2
	remaining := total - pos
	if remaining == 0 {
		playSamples.Store(nil)
		clear(pOutput)
		return
	}
	bytesToWrite = min(bytesToWrite, remaining)

	copy(pOutput[:bytesToWrite], (*samples)[pos:pos+bytesToWrite])
	playPos.Store(pos + bytesToWrite)
	clear(pOutput[bytesToWrite : frameCount*2])
}

func playBytes(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}
	// Stop device first to ensure clean state (no-op if not running)
	device.Stop()
	playPos.Store(0)
	playSamples.Store(&samples)

	if err := device.Start(); err != nil {
		// Try recreating device (handles macOS sleep/wake)
		device.Uninit()
		if err := initDevice(); err != nil {
			playSamples.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playSamples.Store(nil)
		}
	}
}
