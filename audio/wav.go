package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var ErrEmptyWAV = errors.New("wav file has no audio frames")

// WriteWAV encodes rec as a 16-bit PCM WAV stream.
func WriteWAV(w io.WriteSeeker, rec Recording) error {
	channels := rec.channels()
	enc := wav.NewEncoder(w, rec.SampleRate, 16, channels, 1)
	data := make([]int, len(rec.Samples))
	for i, s := range rec.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rec.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav finalize: %w", err)
	}
	return nil
}

// EncodeWAV returns rec as an in-memory WAV file.
func EncodeWAV(rec Recording) ([]byte, error) {
	var buf seekBuffer
	if err := WriteWAV(&buf, rec); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// SaveWAV writes rec to path, creating parent directories.
func SaveWAV(path string, rec Recording) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadWAV loads a 16-bit PCM WAV file. Files without frames return ErrEmptyWAV.
func ReadWAV(path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()
	return DecodeWAV(f)
}

func DecodeWAV(r io.ReadSeeker) (Recording, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Recording{}, fmt.Errorf("not a valid wav file")
	}
	if d.BitDepth != 16 {
		return Recording{}, fmt.Errorf("unsupported bit depth %d (want 16)", d.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Recording{}, fmt.Errorf("wav decode: %w", err)
	}
	if buf.NumFrames() == 0 {
		return Recording{}, ErrEmptyWAV
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return Recording{
		Samples:    samples,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
	}, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		b.data = append(b.data, make([]byte, end-len(b.data))...)
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	b.pos = int(abs)
	return abs, nil
}
