//go:build cgo

package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/loqalabs/loqa-diphone/internal/audio"
)

type portaudioPlayer struct {
	framesPerBuffer int
	mu              sync.Mutex
}

// NewPortaudioPlayer plays audio on the default output device.
func NewPortaudioPlayer(framesPerBuffer int) (Player, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = 1024
	}
	return &portaudioPlayer{framesPerBuffer: framesPerBuffer}, nil
}

func (p *portaudioPlayer) Play(ctx context.Context, buf *audio.Buffer) (err error) {
	if buf.Empty() {
		return ErrNothingToPlay
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	out := make([]int16, p.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(buf.SampleRate), len(out), out)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start output stream: %w", err)
	}
	defer stream.Stop()

	samples := int16Samples(buf.PCM16())
	for off := 0; off < len(samples); off += len(out) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n := copy(out, samples[off:])
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if err := stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				continue
			}
			return fmt.Errorf("write output stream: %w", err)
		}
	}
	return nil
}

func int16Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	return out
}
