// Package audiocapture provides microphone capture through an ffmpeg subprocess.
package audiocapture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

var (
	// ErrRunning is returned when starting a capture that is already running.
	ErrRunning = errors.New("audiocapture: already running")

	// ErrUnsupported is returned when no input can be derived for the platform.
	ErrUnsupported = errors.New("audiocapture: no default input on this platform")

	// ErrNotFound is returned when the ffmpeg binary cannot be located.
	ErrNotFound = errors.New("audiocapture: ffmpeg not found")
)

// AudioHandler receives captured samples as float32 in [-1, 1], interleaved
// when there is more than one channel. The slice is owned by the handler.
type AudioHandler func(samples []float32)

// Capturer captures audio from an input device.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
}

// Config holds configuration for audio capture.
type Config struct {
	SampleRate int
	Channels   int

	FFmpegPath  string // defaults to "ffmpeg" from PATH
	InputFormat string // ffmpeg -f for the input; platform default when empty
	Device      string // ffmpeg -i for the input; platform default when empty
	LogPath     string // ffmpeg stderr is written here when set

	// Command replaces the ffmpeg invocation. The process must write raw
	// little-endian float32 samples to stdout.
	Command []string
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate: 12000,
		Channels:   1,
	}
}

// stopTimeout bounds how long Stop waits for ffmpeg to exit after SIGINT.
const stopTimeout = 3 * time.Second

// DefaultInput returns the ffmpeg input format and device for goos.
func DefaultInput(goos string) (format, device string, err error) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default", nil
	case "linux":
		return "pulse", "default", nil
	case "windows":
		// dshow needs a named device such as "audio=Microphone (USB)".
		return "dshow", "", ErrUnsupported
	}
	return "", "", ErrUnsupported
}

// FFmpegArgs builds the ffmpeg arguments for cfg.
func FFmpegArgs(cfg Config) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-f", cfg.InputFormat,
		"-i", cfg.Device,
		"-ac", fmt.Sprint(cfg.Channels),
		"-ar", fmt.Sprint(cfg.SampleRate),
		"-f", "f32le",
		"pipe:1",
	}
}

// New resolves the capture command. It fails when ffmpeg is missing or the
// input device cannot be determined; nothing is started yet.
func New(cfg Config) (Capturer, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 12000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	if len(cfg.Command) > 0 {
		bin, err := exec.LookPath(cfg.Command[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return &capturer{cfg: cfg, bin: bin, args: cfg.Command[1:]}, nil
	}

	if cfg.InputFormat == "" || cfg.Device == "" {
		format, device, err := DefaultInput(runtime.GOOS)
		if cfg.InputFormat == "" {
			cfg.InputFormat = format
		}
		if cfg.Device == "" {
			if err != nil {
				return nil, err
			}
			cfg.Device = device
		}
	}

	name := cfg.FFmpegPath
	if name == "" {
		name = "ffmpeg"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return &capturer{cfg: cfg, bin: bin, args: FFmpegArgs(cfg)}, nil
}

// capturer runs one subprocess per Start.
type capturer struct {
	cfg  Config
	bin  string
	args []string

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	logFile *os.File
	done    chan struct{}
	readErr error
}

func (c *capturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return ErrRunning
	}

	cmd := exec.Command(c.bin, c.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout: %w", err)
	}

	if c.cfg.LogPath != "" {
		if f, err := os.Create(c.cfg.LogPath); err == nil {
			cmd.Stderr = f
			c.logFile = f
		} else {
			slog.Warn("create capture log", "error", err, "path", c.cfg.LogPath)
		}
	}

	if err := cmd.Start(); err != nil {
		c.closeLog()
		return fmt.Errorf("start %s: %w", c.bin, err)
	}

	c.cmd = cmd
	c.stdout = stdout
	c.done = make(chan struct{})
	c.readErr = nil
	go c.read(stdout, handler, c.done)

	slog.Debug("capture started", "bin", c.bin, "args", c.args)
	return nil
}

// read decodes f32le from r until EOF and hands samples to handler.
func (c *capturer) read(r io.Reader, handler AudioHandler, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	carry := 0
	for {
		n, err := r.Read(buf[carry:])
		n += carry
		whole := n - n%4
		if whole > 0 {
			handler(decodeF32LE(buf[:whole]))
		}
		carry = copy(buf, buf[whole:n])

		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				c.mu.Lock()
				c.readErr = err
				c.mu.Unlock()
			}
			return
		}
	}
}

func decodeF32LE(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

func (c *capturer) Stop() error {
	c.mu.Lock()
	cmd, stdout, done := c.cmd, c.stdout, c.done
	c.mu.Unlock()

	if cmd == nil {
		return nil
	}

	// ffmpeg finalizes its output on SIGINT. Windows has no SIGINT for
	// child processes, so it is killed outright there.
	signalled := true
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
	} else if err := cmd.Process.Signal(os.Interrupt); err != nil {
		signalled = !errors.Is(err, os.ErrProcessDone)
	}

	select {
	case <-done:
	case <-time.After(stopTimeout):
		slog.Warn("capture did not exit after interrupt, killing", "bin", c.bin)
		_ = cmd.Process.Kill()
		// A grandchild may still hold the pipe open.
		_ = stdout.Close()
		<-done
	}

	waitErr := cmd.Wait()

	c.mu.Lock()
	readErr := c.readErr
	c.cmd = nil
	c.stdout = nil
	c.done = nil
	c.closeLog()
	c.mu.Unlock()

	if readErr != nil {
		return fmt.Errorf("read capture: %w", readErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !(signalled && errors.As(waitErr, &exitErr)) {
		return fmt.Errorf("capture exited: %w", waitErr)
	}

	slog.Debug("capture stopped", "bin", c.bin)
	return nil
}

func (c *capturer) closeLog() {
	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
}
