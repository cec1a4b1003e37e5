package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.aimuz.me/voxmemo/audiocapture"
	"go.aimuz.me/voxmemo/internal/recording"
	"go.aimuz.me/voxmemo/opusfile"
)

// AudioAdapter records the microphone into Ogg Opus files. It implements
// recording.Recorder.
type AudioAdapter struct {
	mu       sync.Mutex
	cfg      audiocapture.Config
	format   opusfile.Format
	newCap   func(audiocapture.Config) (audiocapture.Capturer, error)
	capturer audiocapture.Capturer
}

// NewAudioAdapter returns an adapter capturing with cfg at the voice format.
func NewAudioAdapter(cfg audiocapture.Config) *AudioAdapter {
	format := opusfile.VoiceFormat()
	cfg.SampleRate = format.SampleRate
	cfg.Channels = format.Channels
	return &AudioAdapter{cfg: cfg, format: format, newCap: audiocapture.New}
}

// Activate resolves the capture backend. It fails when ffmpeg or an input
// device is unavailable.
func (aa *AudioAdapter) Activate() error {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.capturer != nil {
		return nil
	}

	c, err := aa.newCap(aa.cfg)
	if err != nil {
		return fmt.Errorf("create audio capture: %w", err)
	}
	aa.capturer = c
	return nil
}

// Record creates the file at path and streams captured samples into it.
func (aa *AudioAdapter) Record(path string) (recording.Capture, error) {
	aa.mu.Lock()
	defer aa.mu.Unlock()

	if aa.capturer == nil {
		return nil, errors.New("audio session not activated")
	}

	w, err := opusfile.Create(path, aa.format)
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}

	active := &activeCapture{capturer: aa.capturer, writer: w, path: path}
	if err := aa.capturer.Start(active.handle); err != nil {
		w.Close()
		os.Remove(path)
		return nil, fmt.Errorf("start audio capture: %w", err)
	}

	slog.Info("audio capture started", "path", path)
	return active, nil
}

// activeCapture feeds one capture into one file.
type activeCapture struct {
	capturer audiocapture.Capturer
	writer   *opusfile.Writer
	path     string

	level   audiocapture.LevelMeter
	chunks  int
	warned  bool
	stopped bool
}

// handle runs on the capture goroutine only.
func (ac *activeCapture) handle(samples []float32) {
	ac.chunks++
	ac.level.Observe(samples)
	if err := ac.writer.Write(samples); err != nil && !ac.warned {
		ac.warned = true
		slog.Error("encode audio", "error", err, "path", ac.path)
	}

	if ac.chunks%100 == 0 {
		slog.Debug("captured audio chunks", "count", ac.chunks, "samples", len(samples))
	}
}

// Stop stops the capture and finalizes the file.
func (ac *activeCapture) Stop() error {
	if ac.stopped {
		return nil
	}
	ac.stopped = true

	capErr := ac.capturer.Stop()
	closeErr := ac.writer.Close()

	slog.Info("audio capture stopped", "path", ac.path, "duration", ac.writer.Duration(), "peak", ac.level.Peak())
	if ac.chunks > 0 && ac.level.Silent() {
		slog.Warn("recording is silent, check the input device", "path", ac.path)
	}
	return errors.Join(capErr, closeErr)
}
