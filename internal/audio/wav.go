package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV reads a PCM WAV stream and returns mono samples in [-1, 1] with
// the stream's sample rate. Multi-channel input is averaged down to mono.
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, errors.New("wav missing format")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d", depth)
	}

	full := float64(int64(1) << (depth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := buf.Data[f*channels+c]
			if depth == 8 {
				// 8-bit WAV is unsigned.
				v -= 128
			}
			sum += float64(v) / full
		}
		samples[f] = sum / float64(channels)
	}
	return samples, buf.Format.SampleRate, nil
}

// EncodeWAV writes b as a mono 16-bit PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	if b == nil || b.SampleRate <= 0 {
		return errors.New("buffer has no sample rate")
	}
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(toInt16(s))
	}
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(w, b.SampleRate, 16, 1, 1)
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
