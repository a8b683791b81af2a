package encoder

import "whisperkey/audio"

const (
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

// FLAC encodes a whole recording, mixed down to mono, as a FLAC file.
func FLAC(rec audio.Recording) ([]byte, error) {
	mono := rec.Mono()
	enc, err := NewFlac(mono.SampleRate)
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(mono.Samples); i += BlockSize {
		if err := enc.EncodeBlock(mono.Samples[i:min(i+BlockSize, len(mono.Samples))]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
