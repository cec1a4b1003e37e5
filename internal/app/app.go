package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.aimuz.me/voxmemo/audiocapture"
	"go.aimuz.me/voxmemo/config"
	"go.aimuz.me/voxmemo/hotkey"
	"go.aimuz.me/voxmemo/internal/output"
	"go.aimuz.me/voxmemo/internal/recording"
	"go.aimuz.me/voxmemo/playback"
)

// Options overrides the backends a Service is built with.
type Options struct {
	Recorder recording.Recorder // defaults to ffmpeg capture into Ogg Opus
	Player   recording.Player   // defaults to ffplay
	Output   io.Writer          // defaults to os.Stdout
}

// Service runs one recording session driven by triggers.
type Service struct {
	cfg      *config.Config
	session  *recording.Session
	out      *output.Formatter
	hotkey   *hotkey.HotkeyManager
	triggers chan Trigger

	shutdown sync.Once
}

// New creates the recordings directory, the recording log and the session.
func New(cfg *config.Config, opts Options) (*Service, error) {
	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}

	log, err := openLog(cfg.LogStore)
	if err != nil {
		return nil, err
	}

	if opts.Recorder == nil {
		opts.Recorder = NewAudioAdapter(audiocapture.Config{
			FFmpegPath:  cfg.FFmpegPath,
			InputFormat: cfg.InputFormat,
			Device:      cfg.InputDevice,
		})
	}
	if opts.Player == nil {
		opts.Player = NewPlayerAdapter(playback.ExecOutput{Path: cfg.PlayerPath})
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	session, err := recording.New(recording.Config{
		Dir:             cfg.RecordingsDir,
		Log:             log,
		Recorder:        opts.Recorder,
		Player:          opts.Player,
		Transition:      recording.TransitionPolicy(cfg.TransitionPolicy),
		ShortRecordings: recording.ShortRecordingPolicy(cfg.ShortRecordings),
		MinDuration:     cfg.MinRecording(),
	})
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	s := &Service{
		cfg:      cfg,
		session:  session,
		out:      output.NewFormatter(opts.Output),
		triggers: make(chan Trigger, 16),
	}
	session.OnStatus(s.out.Status)

	if cfg.Hotkeys.Enabled {
		s.setupHotkey()
	}

	slog.Info("session ready", "dir", cfg.RecordingsDir, "store", cfg.LogStore,
		"transition", cfg.TransitionPolicy, "short_recordings", cfg.ShortRecordings)
	return s, nil
}

func openLog(store string) (recording.Log, error) {
	switch store {
	case config.StoreBadger:
		l, err := recording.NewBadgerLog()
		if err != nil {
			return nil, fmt.Errorf("open recording log: %w", err)
		}
		return l, nil
	case config.StoreMemory, "":
		return recording.NewMemoryLog(), nil
	}
	return nil, fmt.Errorf("unknown log store %q", store)
}

func (s *Service) setupHotkey() {
	s.hotkey = hotkey.NewHotkeyManager(
		func() { s.Send(TriggerToggle) },
		func() { s.Send(TriggerPlay) },
	)

	if err := s.hotkey.SetCombos(s.cfg.Hotkeys.Toggle, s.cfg.Hotkeys.Play); err != nil {
		slog.Error("configure hotkeys", "error", err)
		s.hotkey = nil
		return
	}
	if err := s.hotkey.Start(); err != nil {
		slog.Error("start hotkey", "error", err)
		s.hotkey = nil
	}
}

// Session returns the underlying recording session.
func (s *Service) Session() *recording.Session { return s.session }

// Triggers returns the channel trigger sources send to.
func (s *Service) Triggers() chan<- Trigger { return s.triggers }

// Send queues t without blocking. Triggers are dropped while the queue is full.
func (s *Service) Send(t Trigger) {
	select {
	case s.triggers <- t:
	default:
		slog.Warn("trigger dropped", "trigger", t)
	}
}

// Run handles triggers one at a time until TriggerQuit or ctx is done.
// Playback started here is cancelled when ctx is.
func (s *Service) Run(ctx context.Context) error {
	s.out.Status(s.session.Status())
	s.help()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-s.triggers:
			if t == TriggerQuit {
				return nil
			}
			s.handle(ctx, t)
		}
	}
}

func (s *Service) handle(ctx context.Context, t Trigger) {
	slog.Debug("trigger", "trigger", t)

	switch t {
	case TriggerToggle:
		if err := s.session.Toggle(); err != nil {
			slog.Debug("toggle failed", "error", err, "state", s.session.State())
		}
	case TriggerPlay:
		if _, err := s.session.PlayLast(ctx); err != nil {
			slog.Debug("play failed", "error", err)
		}
	case TriggerStopPlayback:
		if !s.session.StopPlayback() {
			s.out.Info("Nothing is playing.")
		}
	case TriggerHelp:
		s.help()
	default:
		s.out.Warning("Unknown command. Type h for help.")
	}
}

func (s *Service) help() {
	if s.hotkey == nil {
		s.out.Help("", "")
		return
	}
	toggle, play := s.hotkey.Combos()
	s.out.Help(combo(toggle), combo(play))
}

// combo renders a gohook key list as "ctrl+shift+r".
func combo(keys []string) string {
	if len(keys) == 0 {
		return ""
	}
	return strings.Join(append(keys[1:len(keys):len(keys)], keys[0]), "+")
}

// Shutdown stops hotkeys, finalizes any active recording and closes the log.
func (s *Service) Shutdown() {
	s.shutdown.Do(func() {
		if s.hotkey != nil {
			s.hotkey.Stop()
		}
		if err := s.session.Close(); err != nil {
			slog.Error("close session", "error", err)
		}
	})
}
