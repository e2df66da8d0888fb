package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/loqalabs/loqa-diphone/internal/audio"
)

// fileArg in a player command is replaced by the path of the rendered WAV;
// without it the WAV is streamed on stdin.
const fileArg = "{file}"

type execPlayer struct {
	cmd []string
	mu  sync.Mutex
}

// NewExecPlayer plays audio through an external command such as
// "aplay -q -" or "afplay {file}".
func NewExecPlayer(command string) (Player, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse playback command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("playback command empty")
	}
	return &execPlayer{cmd: args}, nil
}

func (p *execPlayer) Play(ctx context.Context, buf *audio.Buffer) error {
	if buf.Empty() {
		return ErrNothingToPlay
	}
	// One device, one utterance at a time.
	p.mu.Lock()
	defer p.mu.Unlock()

	file, err := os.CreateTemp("", "diphone_play_*.wav")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := audio.EncodeWAV(file, buf); err != nil {
		return err
	}

	args := make([]string, 0, len(p.cmd)-1)
	useStdin := true
	for _, a := range p.cmd[1:] {
		if a == fileArg {
			a = file.Name()
			useStdin = false
		}
		args = append(args, a)
	}

	command := exec.CommandContext(ctx, p.cmd[0], args...)
	if useStdin {
		if _, err := file.Seek(0, 0); err != nil {
			return fmt.Errorf("rewind temp file: %w", err)
		}
		command.Stdin = file
	}
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("playback command failed: %w: %s", err, stderr.String())
	}
	return nil
}
