package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Recorder activates the audio input and creates captures.
type Recorder interface {
	// Activate prepares the audio input for recording.
	Activate() error
	// Record creates the file at path and starts capturing into it.
	Record(path string) (Capture, error)
}

// Capture is one running capture.
type Capture interface {
	// Stop ends the capture and finalizes the file.
	Stop() error
}

// Player opens recordings for playback.
type Player interface {
	Open(path string) (Stream, error)
}

// Stream plays one opened recording. Play blocks until the recording has
// been played or ctx is done.
type Stream interface {
	Play(ctx context.Context) error
}

// TransitionPolicy decides when Toggle changes the session state.
type TransitionPolicy string

const (
	// TransitionOnSuccess flips the state only when start or stop succeeded.
	TransitionOnSuccess TransitionPolicy = "on-success"
	// TransitionAlways flips the state after every toggle, even on failure.
	TransitionAlways TransitionPolicy = "always"
)

// ShortRecordingPolicy decides what happens to recordings stopped almost
// immediately after they were started.
type ShortRecordingPolicy string

const (
	KeepShort    ShortRecordingPolicy = "keep"
	DiscardShort ShortRecordingPolicy = "discard"
)

// Config configures a Session.
type Config struct {
	Dir      string // directory recordings are written to
	Log      Log
	Recorder Recorder
	Player   Player

	Transition      TransitionPolicy
	ShortRecordings ShortRecordingPolicy
	MinDuration     time.Duration // used with DiscardShort

	Now    func() time.Time
	Name   NameFunc
	Remove func(path string) error
}

// Session owns the capture state and the recording log. All methods are
// safe to call from multiple goroutines; they are serialized internally.
type Session struct {
	mu  sync.Mutex
	cfg Config

	state       State
	active      Capture
	activeEntry Entry
	startedAt   time.Time

	playback *Playback

	status   Status
	onStatus []func(Status)
}

// New creates a Session in the Idle state.
func New(cfg Config) (*Session, error) {
	if cfg.Recorder == nil {
		return nil, errors.New("recording: nil recorder")
	}
	if cfg.Player == nil {
		return nil, errors.New("recording: nil player")
	}
	if cfg.Log == nil {
		cfg.Log = NewMemoryLog()
	}
	if cfg.Transition == "" {
		cfg.Transition = TransitionOnSuccess
	}
	if cfg.ShortRecordings == "" {
		cfg.ShortRecordings = KeepShort
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Name == nil {
		cfg.Name = DefaultName
	}
	if cfg.Remove == nil {
		cfg.Remove = os.Remove
	}

	return &Session{
		cfg:    cfg,
		state:  Idle,
		status: StatusReady,
	}, nil
}

// OnStatus registers a callback invoked after every status change.
// Callbacks run outside the session lock.
func (s *Session) OnStatus(cb func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = append(s.onStatus, cb)
}

// State returns the current capture state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current status readout.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Log returns the session's recording log.
func (s *Session) Log() Log { return s.cfg.Log }

// Toggle stops the capture when recording and starts one otherwise.
func (s *Session) Toggle() error {
	s.mu.Lock()
	var err error
	if s.state == Recording {
		_, err = s.stopLocked()
	} else {
		_, err = s.startLocked()
	}
	if err == nil || s.cfg.Transition == TransitionAlways {
		if s.state == Recording {
			s.state = Idle
		} else {
			s.state = Recording
		}
	}
	s.mu.Unlock()

	s.emit()
	return err
}

// Start begins a new recording and appends it to the log.
func (s *Session) Start() (Entry, error) {
	s.mu.Lock()
	e, err := s.startLocked()
	if err == nil {
		s.state = Recording
	}
	s.mu.Unlock()

	s.emit()
	return e, err
}

// Stop ends the active recording and returns its entry.
func (s *Session) Stop() (Entry, error) {
	s.mu.Lock()
	e, err := s.stopLocked()
	if err == nil {
		s.state = Idle
	}
	s.mu.Unlock()

	s.emit()
	return e, err
}

func (s *Session) startLocked() (Entry, error) {
	if s.active != nil {
		s.status = StatusCannotRecord
		slog.Warn("start recording", "error", ErrAlreadyRecording, "name", s.activeEntry.Name)
		return Entry{}, ErrAlreadyRecording
	}

	now := s.cfg.Now()
	entry := newEntry(s.cfg.Dir, now, s.cfg.Name)

	if err := s.cfg.Recorder.Activate(); err != nil {
		s.status = StatusCannotRecord
		slog.Error("activate audio session", "error", err)
		return Entry{}, fmt.Errorf("%w: %w", ErrSessionActivation, err)
	}

	capture, err := s.cfg.Recorder.Record(entry.Path)
	if err != nil {
		s.status = StatusCannotRecord
		slog.Error("create recorder", "error", err, "path", entry.Path)
		return Entry{}, fmt.Errorf("%w: %w", ErrRecorderConstruction, err)
	}

	if err := s.cfg.Log.Append(entry); err != nil {
		_ = capture.Stop()
		s.status = StatusCannotRecord
		slog.Error("append recording", "error", err, "name", entry.Name)
		return Entry{}, fmt.Errorf("%w: %w", ErrRecorderConstruction, err)
	}

	s.active = capture
	s.activeEntry = entry
	s.startedAt = now
	s.status = StatusRecording
	slog.Info("recording started", "name", entry.Name, "path", entry.Path)
	return entry, nil
}

func (s *Session) stopLocked() (Entry, error) {
	if s.active == nil {
		s.status = StatusNoActive
		slog.Warn("no active recording")
		return Entry{}, ErrNoActiveRecording
	}

	capture, entry := s.active, s.activeEntry
	s.active = nil
	s.activeEntry = Entry{}

	if err := capture.Stop(); err != nil {
		// The capture is gone either way; the file may be truncated.
		slog.Warn("stop capture", "error", err, "name", entry.Name)
	}

	elapsed := s.cfg.Now().Sub(s.startedAt)
	if s.cfg.ShortRecordings == DiscardShort && elapsed < s.cfg.MinDuration {
		s.discard(entry, elapsed)
	}

	s.status = StatusStopped
	slog.Info("recording stopped", "name", entry.Name, "duration", elapsed)
	return entry, nil
}

// discard drops a short recording from the log tail and from disk.
func (s *Session) discard(entry Entry, elapsed time.Duration) {
	last, ok, err := s.cfg.Log.Last()
	if err != nil {
		slog.Error("read last recording", "error", err)
		return
	}
	if !ok || last.Name != entry.Name {
		return
	}
	if _, _, err := s.cfg.Log.RemoveLast(); err != nil {
		slog.Error("discard recording", "error", err, "name", entry.Name)
		return
	}
	if err := s.cfg.Remove(entry.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove discarded recording", "error", err, "path", entry.Path)
	}
	slog.Info("discarded short recording", "name", entry.Name, "duration", elapsed, "min", s.cfg.MinDuration)
}

// PlayLast starts playing the most recent recording. Playback runs in the
// background; the returned handle reports when it ends. An in-flight
// playback is cancelled first.
func (s *Session) PlayLast(ctx context.Context) (*Playback, error) {
	s.mu.Lock()
	p, err := s.playLastLocked(ctx)
	s.mu.Unlock()

	s.emit()
	return p, err
}

func (s *Session) playLastLocked(ctx context.Context) (*Playback, error) {
	entry, ok, err := s.cfg.Log.Last()
	if err != nil {
		s.status = StatusCannotPlay
		slog.Error("read last recording", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPlayerConstruction, err)
	}
	if !ok {
		s.status = StatusNoRecordings
		slog.Warn("no recordings found")
		return nil, ErrNoRecordings
	}

	stream, err := s.cfg.Player.Open(entry.Path)
	if err != nil {
		s.status = StatusCannotPlay
		slog.Error("create player", "error", err, "path", entry.Path)
		return nil, fmt.Errorf("%w: %w", ErrPlayerConstruction, err)
	}

	if prev := s.playback; prev != nil && !prev.finished() {
		slog.Info("replacing playback", "name", prev.Entry().Name)
		prev.Cancel()
	}

	p := startPlayback(ctx, entry, stream, s.playbackDone)
	s.playback = p
	s.status = StatusPlaying
	slog.Info("playing recording", "name", entry.Name)
	return p, nil
}

func (s *Session) playbackDone(p *Playback) {
	s.mu.Lock()
	if s.playback != p {
		s.mu.Unlock()
		return
	}
	s.playback = nil

	err := p.Err()
	switch {
	case errors.Is(err, context.Canceled):
		slog.Debug("playback cancelled", "name", p.Entry().Name)
		if s.status == StatusPlaying {
			s.status = StatusReady
		}
	case err != nil:
		slog.Error("play recording", "error", err, "name", p.Entry().Name)
		s.status = StatusCannotPlay
	default:
		slog.Debug("playback finished", "name", p.Entry().Name)
		if s.status == StatusPlaying {
			s.status = StatusReady
		}
	}
	s.mu.Unlock()

	s.emit()
}

// StopPlayback cancels the in-flight playback. It reports whether one was running.
func (s *Session) StopPlayback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playback == nil || s.playback.finished() {
		return false
	}
	s.playback.Cancel()
	return true
}

// Playback returns the in-flight playback, or nil.
func (s *Session) Playback() *Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}

// Close stops any capture and playback and closes the log.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.active != nil {
		if _, err := s.stopLocked(); err != nil {
			slog.Warn("stop recording on close", "error", err)
		}
		s.state = Idle
	}
	p := s.playback
	s.mu.Unlock()

	if p != nil {
		p.Cancel()
		<-p.Done()
	}
	return s.cfg.Log.Close()
}

func (s *Session) emit() {
	s.mu.Lock()
	st := s.status
	callbacks := s.onStatus
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb(st)
	}
}
