// Package sink delivers assembled audio to a file or a playback device.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loqalabs/loqa-diphone/internal/audio"
	"github.com/loqalabs/loqa-diphone/internal/config"
)

// ErrNothingToPlay is returned when a sink is handed an empty buffer.
var ErrNothingToPlay = errors.New("no audio to output")

// Player plays a buffer and blocks until playback finishes or fails.
type Player interface {
	Play(ctx context.Context, buf *audio.Buffer) error
}

// SaveWAV writes buf to path as 16-bit mono WAV, creating parent directories.
func SaveWAV(buf *audio.Buffer, path string) error {
	if buf.Empty() {
		return ErrNothingToPlay
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := audio.EncodeWAV(f, buf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// NewPlayer builds the player selected by cfg.Mode. Mode "none" returns a
// nil Player and no error.
func NewPlayer(cfg config.PlaybackConfig) (Player, error) {
	switch cfg.Mode {
	case "none", "":
		return nil, nil
	case "exec":
		return NewExecPlayer(cfg.Command)
	case "portaudio":
		return NewPortaudioPlayer(cfg.FramesPerBuffer)
	default:
		return nil, fmt.Errorf("unknown playback mode %q", cfg.Mode)
	}
}
