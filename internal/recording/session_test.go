package recording

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapture struct {
	mu      sync.Mutex
	stopped int
	err     error
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
	return c.err
}

type fakeRecorder struct {
	mu          sync.Mutex
	activateErr error
	recordErr   error
	paths       []string
	captures    []*fakeCapture
}

func (r *fakeRecorder) Activate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activateErr
}

func (r *fakeRecorder) Record(path string) (Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return nil, r.recordErr
	}
	c := &fakeCapture{}
	r.paths = append(r.paths, path)
	r.captures = append(r.captures, c)
	return c, nil
}

type fakeStream struct {
	release chan struct{}
	err     error
}

func (s *fakeStream) Play(ctx context.Context) error {
	select {
	case <-s.release:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	openErr error
	opened  []string
	streams []*fakeStream
}

func (p *fakePlayer) Open(path string) (Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	s := &fakeStream{release: make(chan struct{})}
	p.opened = append(p.opened, path)
	p.streams = append(p.streams, s)
	return s, nil
}

func (p *fakePlayer) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.opened)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	session  *Session
	recorder *fakeRecorder
	player   *fakePlayer
	clock    *fakeClock
	removed  []string
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		recorder: &fakeRecorder{},
		player:   &fakePlayer{},
		clock:    &fakeClock{now: time.Unix(1700000000, 0)},
	}
	cfg := Config{
		Dir:      t.TempDir(),
		Recorder: h.recorder,
		Player:   h.player,
		Now:      h.clock.Now,
		Remove: func(path string) error {
			h.removed = append(h.removed, path)
			return nil
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	h.session = s
	return h
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(Config{Player: &fakePlayer{}})
	require.Error(t, err)

	_, err = New(Config{Recorder: &fakeRecorder{}})
	require.Error(t, err)
}

func TestInitialState(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, StatusReady, h.session.Status())
	assert.Equal(t, 0, h.session.Log().Len())
}

func TestToggleRecordThenStop(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Toggle())
	assert.Equal(t, Recording, h.session.State())
	assert.Equal(t, StatusRecording, h.session.Status())
	require.Equal(t, 1, h.session.Log().Len())

	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.session.Toggle())
	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, StatusStopped, h.session.Status())
	assert.Equal(t, 1, h.session.Log().Len(), "stop must not change the log")
	assert.Equal(t, 1, h.recorder.captures[0].stopped)
}

func TestToggleAlwaysAlternatesOnFailure(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Transition = TransitionAlways })
	h.recorder.activateErr = errors.New("microphone busy")

	want := []State{Recording, Idle, Recording, Idle}
	for i, w := range want {
		_ = h.session.Toggle()
		assert.Equal(t, w, h.session.State(), "toggle %d", i+1)
	}
	assert.Equal(t, 0, h.session.Log().Len())
}

func TestToggleAlwaysReportsMissingCapture(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Transition = TransitionAlways })
	h.recorder.recordErr = errors.New("cannot open file")

	err := h.session.Toggle()
	require.ErrorIs(t, err, ErrRecorderConstruction)
	assert.Equal(t, Recording, h.session.State())

	err = h.session.Toggle()
	require.ErrorIs(t, err, ErrNoActiveRecording)
	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, StatusNoActive, h.session.Status())
}

func TestToggleOnSuccessKeepsStateOnFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.activateErr = errors.New("microphone busy")

	err := h.session.Toggle()
	require.ErrorIs(t, err, ErrSessionActivation)
	assert.Equal(t, Idle, h.session.State())
	assert.Equal(t, StatusCannotRecord, h.session.Status())

	h.recorder.activateErr = nil
	require.NoError(t, h.session.Toggle())
	assert.Equal(t, Recording, h.session.State())
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name        string
		activateErr error
		recordErr   error
		wantErr     error
	}{
		{"activation", errors.New("no input device"), nil, ErrSessionActivation},
		{"construction", nil, errors.New("permission denied"), ErrRecorderConstruction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.recorder.activateErr = tt.activateErr
			h.recorder.recordErr = tt.recordErr

			_, err := h.session.Start()
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, h.session.Log().Len())
			assert.Equal(t, Idle, h.session.State())
			assert.Equal(t, StatusCannotRecord, h.session.Status())
		})
	}
}

func TestStartWhileRecording(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)

	_, err = h.session.Start()
	require.ErrorIs(t, err, ErrAlreadyRecording)
	assert.Equal(t, 1, h.session.Log().Len())
	assert.Len(t, h.recorder.captures, 1)
}

func TestLogGrowsWithEachStart(t *testing.T) {
	h := newHarness(t, nil)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := h.session.Start()
		require.NoError(t, err)
		require.Equal(t, i+1, h.session.Log().Len())

		h.clock.Advance(time.Second)
		_, err = h.session.Stop()
		require.NoError(t, err)
		require.Equal(t, i+1, h.session.Log().Len())
	}

	entries, err := h.session.Log().All()
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i := 1; i < n; i++ {
		assert.True(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}
}

func TestStopWithoutRecording(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.session.Stop()
	require.ErrorIs(t, err, ErrNoActiveRecording)
	assert.Equal(t, StatusNoActive, h.session.Status())
	assert.Equal(t, Idle, h.session.State())
}

func TestStopCaptureErrorStillStops(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)
	h.recorder.captures[0].err = errors.New("ffmpeg exited")

	_, err = h.session.Stop()
	require.NoError(t, err)
	assert.Equal(t, Idle, h.session.State())

	_, err = h.session.Stop()
	require.ErrorIs(t, err, ErrNoActiveRecording)
}

func TestEntriesHaveDistinctNamesWithinOneSecond(t *testing.T) {
	h := newHarness(t, nil)

	first, err := h.session.Start()
	require.NoError(t, err)
	_, err = h.session.Stop()
	require.NoError(t, err)

	second, err := h.session.Start()
	require.NoError(t, err)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.NotEqual(t, first.Name, second.Name)
	assert.NotEqual(t, first.Path, second.Path)
}

func TestEntryPathLayout(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.Name = func(t time.Time) string { return "recording_fixed" }
	})

	e, err := h.session.Start()
	require.NoError(t, err)
	assert.Equal(t, "recording_fixed", e.Name)
	assert.Equal(t, "recording_fixed.ogg", filepath.Base(e.Path))
	assert.Equal(t, []string{e.Path}, h.recorder.paths)
}

func TestPlayLastEmptyLog(t *testing.T) {
	h := newHarness(t, nil)

	p, err := h.session.PlayLast(context.Background())
	require.ErrorIs(t, err, ErrNoRecordings)
	assert.Nil(t, p)
	assert.Equal(t, StatusNoRecordings, h.session.Status())
	assert.Equal(t, 0, h.player.openCount())
}

func TestRecordStopPlayScenario(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.session.Toggle())
	first, ok, err := h.session.Log().Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, h.session.Toggle())

	p, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, p.Entry())
	assert.Equal(t, []string{first.Path}, h.player.opened)
	assert.Equal(t, StatusPlaying, h.session.Status())
}

func TestPlayLastPlaysTail(t *testing.T) {
	h := newHarness(t, nil)

	var last Entry
	for i := 0; i < 3; i++ {
		e, err := h.session.Start()
		require.NoError(t, err)
		last = e
		h.clock.Advance(time.Second)
		_, err = h.session.Stop()
		require.NoError(t, err)
	}

	p, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, last.Name, p.Entry().Name)
}

func TestPlayLastConstructionFailure(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)
	h.player.openErr = errors.New("corrupt ogg")

	p, err := h.session.PlayLast(context.Background())
	require.ErrorIs(t, err, ErrPlayerConstruction)
	assert.Nil(t, p)
	assert.Equal(t, StatusCannotPlay, h.session.Status())
}

func TestPlaybackCompletion(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)
	_, err = h.session.Stop()
	require.NoError(t, err)

	p, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)

	close(h.player.streams[0].release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	assert.Eventually(t, func() bool {
		return h.session.Status() == StatusReady && h.session.Playback() == nil
	}, time.Second, 5*time.Millisecond)
}

func TestPlaybackFailureSetsStatus(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)

	p, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)

	h.player.streams[0].err = errors.New("ffplay exited")
	close(h.player.streams[0].release)

	<-p.Done()
	assert.EqualError(t, p.Err(), "ffplay exited")
	assert.Eventually(t, func() bool {
		return h.session.Status() == StatusCannotPlay
	}, time.Second, 5*time.Millisecond)
}

func TestPlayLastReplacesInFlight(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)

	first, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)
	second, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first playback was not cancelled")
	}
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.Same(t, second, h.session.Playback())
	assert.Equal(t, StatusPlaying, h.session.Status())
}

func TestStopPlayback(t *testing.T) {
	h := newHarness(t, nil)
	assert.False(t, h.session.StopPlayback())

	_, err := h.session.Start()
	require.NoError(t, err)
	p, err := h.session.PlayLast(context.Background())
	require.NoError(t, err)

	assert.True(t, h.session.StopPlayback())
	<-p.Done()
	assert.ErrorIs(t, p.Err(), context.Canceled)
	assert.Eventually(t, func() bool {
		return h.session.Status() == StatusReady
	}, time.Second, 5*time.Millisecond)
}

func TestShortRecordingPolicy(t *testing.T) {
	tests := []struct {
		name        string
		policy      ShortRecordingPolicy
		elapsed     time.Duration
		wantLen     int
		wantRemoved int
	}{
		{"keep short", KeepShort, 0, 1, 0},
		{"discard short", DiscardShort, 200 * time.Millisecond, 0, 1},
		{"discard keeps long", DiscardShort, 2 * time.Second, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(c *Config) {
				c.ShortRecordings = tt.policy
				c.MinDuration = time.Second
			})

			_, err := h.session.Start()
			require.NoError(t, err)
			h.clock.Advance(tt.elapsed)
			_, err = h.session.Stop()
			require.NoError(t, err)

			assert.Equal(t, tt.wantLen, h.session.Log().Len())
			assert.Len(t, h.removed, tt.wantRemoved)
			assert.Equal(t, StatusStopped, h.session.Status())
		})
	}
}

func TestOnStatus(t *testing.T) {
	h := newHarness(t, nil)

	var (
		mu  sync.Mutex
		got []Status
	)
	h.session.OnStatus(func(s Status) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	_, _ = h.session.PlayLast(context.Background())
	_ = h.session.Toggle()
	_ = h.session.Toggle()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Status{StatusNoRecordings, StatusRecording, StatusStopped}, got)
}

func TestCloseStopsCapture(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.session.Start()
	require.NoError(t, err)

	require.NoError(t, h.session.Close())
	assert.Equal(t, 1, h.recorder.captures[0].stopped)
	assert.Equal(t, Idle, h.session.State())
}
