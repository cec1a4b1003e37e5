package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// ErrNotFound is returned when the player binary cannot be located.
var ErrNotFound = errors.New("playback: player not found")

// ExecOutput plays PCM by piping it into an external player, ffplay by
// default.
type ExecOutput struct {
	Path string // defaults to "ffplay" from PATH

	// Command replaces the ffplay invocation. The process reads raw s16le
	// PCM from stdin.
	Command []string
}

// FFplayArgs builds the ffplay arguments for raw PCM on stdin.
func FFplayArgs(sampleRate, channels int) []string {
	layout := "mono"
	if channels == 2 {
		layout = "stereo"
	}
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ch_layout", layout,
		"-i", "-",
	}
}

// LookPath resolves the player binary.
func (o ExecOutput) LookPath() (string, error) {
	name := o.Path
	if len(o.Command) > 0 {
		name = o.Command[0]
	}
	if name == "" {
		name = "ffplay"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return bin, nil
}

// Open starts the player process. The process is killed when ctx is done.
func (o ExecOutput) Open(ctx context.Context, sampleRate, channels int) (io.WriteCloser, error) {
	bin, err := o.LookPath()
	if err != nil {
		return nil, err
	}

	args := FFplayArgs(sampleRate, channels)
	if len(o.Command) > 0 {
		args = o.Command[1:]
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", bin, err)
	}

	slog.Debug("player started", "bin", bin, "rate", sampleRate, "channels", channels)
	return &execSink{cmd: cmd, stdin: stdin}, nil
}

type execSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	closed bool
}

func (s *execSink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close ends the input and waits for the player to finish the buffered audio.
func (s *execSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()
	return s.cmd.Wait()
}
