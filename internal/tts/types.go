package tts

import (
	"context"

	"github.com/loqalabs/loqa-diphone/internal/audio"
	"github.com/loqalabs/loqa-diphone/internal/synth"
)

// Engine is the contract the service needs from the synthesizer.
type Engine interface {
	Synthesize(ctx context.Context, phrase string, opts synth.Options) (*synth.Result, error)
}

// SynthChunk contains PCM data.
type SynthChunk struct {
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Chunk splits buf into PCM16 slices of at most durationMS each. The last
// chunk is marked Final. An empty buffer yields no chunks.
func Chunk(buf *audio.Buffer, durationMS int) []SynthChunk {
	if buf.Empty() {
		return nil
	}
	per := buf.SampleRate * durationMS / 1000
	if per <= 0 {
		per = buf.Len()
	}
	pcm := buf.PCM16()
	total := buf.Len()

	chunks := make([]SynthChunk, 0, (total+per-1)/per)
	for start, seq := 0, 0; start < total; start, seq = start+per, seq+1 {
		end := min(start+per, total)
		chunks = append(chunks, SynthChunk{
			Sequence:   seq,
			SampleRate: buf.SampleRate,
			Channels:   1,
			PCM:        pcm[start*2 : end*2],
			Final:      end == total,
		})
	}
	return chunks
}
