package audio

import (
	"sync"
	"time"
)

const fakeChunkFrames = 1024

// FakeContext plays a fixed recording into every capture it creates.
type FakeContext struct {
	rec      Recording
	realtime bool

	mu       sync.Mutex
	captures []*FakeCapture
	startErr error
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	rec, err := ReadWAV(wavPath)
	if err != nil {
		return nil, err
	}
	return NewFakeContextFrom(rec, realtime), nil
}

func NewFakeContextFrom(rec Recording, realtime bool) *FakeContext {
	return &FakeContext{rec: rec, realtime: realtime}
}

// FailStart makes subsequent captures fail to start with err.
func (f *FakeContext) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// Captures returns every capture created so far.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &FakeCapture{
		pcm:       f.rec.PCM(),
		config:    config,
		realtime:  f.realtime,
		startErr:  f.startErr,
		audioDone: make(chan struct{}),
	}
	f.captures = append(f.captures, c)
	return c, nil
}

// FakeCapture feeds PCM to its callback, then silence until stopped.
type FakeCapture struct {
	pcm       []byte
	config    CaptureConfig
	realtime  bool
	startErr  error
	audioDone chan struct{}

	mu      sync.Mutex
	cb      DataCallback
	stopCh  chan struct{}
	fedDone chan struct{}
	started bool
	closed  bool
}

// AudioDone is closed once all source PCM has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) deliver(chunk []byte) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(chunk, uint32(len(chunk)/(2*int(max(f.config.Channels, 1)))))
	}
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	stop, fedDone := make(chan struct{}), make(chan struct{})
	f.mu.Lock()
	f.started = true
	f.stopCh = stop
	f.fedDone = fedDone
	f.mu.Unlock()

	chunkBytes := fakeChunkFrames * 2 * int(max(f.config.Channels, 1))
	interval := time.Millisecond
	if f.realtime && f.config.SampleRate > 0 {
		interval = time.Duration(fakeChunkFrames) * time.Second / time.Duration(f.config.SampleRate)
	}

	if !f.realtime {
		for pos := 0; pos < len(f.pcm); pos += chunkBytes {
			f.deliver(f.pcm[pos:min(pos+chunkBytes, len(f.pcm))])
		}
		close(f.audioDone)
	} else if len(f.pcm) == 0 {
		close(f.audioDone)
	}

	go func() {
		defer close(fedDone)
		pos := 0
		if !f.realtime {
			pos = len(f.pcm)
		}
		silence := make([]byte, chunkBytes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				f.deliver(f.pcm[pos:end])
				pos = end
				if pos == len(f.pcm) {
					close(f.audioDone)
				}
				continue
			}
			f.deliver(silence)
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, fedDone := f.stopCh, f.fedDone
	f.stopCh = nil
	f.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-fedDone
}

func (f *FakeCapture) Close() {
	f.Stop()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
