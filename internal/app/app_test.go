package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/voxmemo/config"
	"go.aimuz.me/voxmemo/internal/recording"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubCapture struct{ stopped bool }

func (c *stubCapture) Stop() error {
	c.stopped = true
	return nil
}

type stubRecorder struct {
	activateErr error
	paths       []string
}

func (r *stubRecorder) Activate() error { return r.activateErr }

func (r *stubRecorder) Record(path string) (recording.Capture, error) {
	r.paths = append(r.paths, path)
	return &stubCapture{}, nil
}

type stubStream struct{}

func (stubStream) Play(context.Context) error { return nil }

type stubPlayer struct{ opened []string }

func (p *stubPlayer) Open(path string) (recording.Stream, error) {
	p.opened = append(p.opened, path)
	return stubStream{}, nil
}

func newTestService(t *testing.T, rec *stubRecorder, mutate func(*config.Config)) (*Service, *syncBuffer, *stubPlayer) {
	t.Helper()
	cfg := &config.Config{
		RecordingsDir:    t.TempDir(),
		TransitionPolicy: config.TransitionOnSuccess,
		ShortRecordings:  config.ShortKeep,
		LogStore:         config.StoreMemory,
	}
	if mutate != nil {
		mutate(cfg)
	}

	out := &syncBuffer{}
	player := &stubPlayer{}
	svc, err := New(cfg, Options{Recorder: rec, Player: player, Output: out})
	require.NoError(t, err)
	t.Cleanup(svc.Shutdown)
	return svc, out, player
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		line string
		want Trigger
		ok   bool
	}{
		{"r", TriggerToggle, true},
		{" RECORD ", TriggerToggle, true},
		{"p", TriggerPlay, true},
		{"play", TriggerPlay, true},
		{"s", TriggerStopPlayback, true},
		{"h", TriggerHelp, true},
		{"?", TriggerHelp, true},
		{"q", TriggerQuit, true},
		{"exit", TriggerQuit, true},
		{"dance", TriggerUnknown, true},
		{"   ", TriggerUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseTrigger(tt.line)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestReadTriggers(t *testing.T) {
	out := make(chan Trigger, 8)
	err := ReadTriggers(context.Background(), strings.NewReader("r\n\nfoo\np\n"), out)
	require.NoError(t, err)
	close(out)

	var got []Trigger
	for tr := range out {
		got = append(got, tr)
	}
	assert.Equal(t, []Trigger{TriggerToggle, TriggerUnknown, TriggerPlay, TriggerQuit}, got)
}

func TestReadTriggersCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ReadTriggers(ctx, strings.NewReader("r\n"), make(chan Trigger))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRecordStopPlay(t *testing.T) {
	rec := &stubRecorder{}
	svc, out, player := newTestService(t, rec, nil)

	for _, tr := range []Trigger{TriggerToggle, TriggerToggle, TriggerPlay, TriggerQuit} {
		svc.Send(tr)
	}
	require.NoError(t, svc.Run(context.Background()))

	assert.Equal(t, recording.Idle, svc.Session().State())
	assert.Equal(t, 1, svc.Session().Log().Len())
	require.Len(t, rec.paths, 1)
	assert.Equal(t, rec.paths, player.opened)

	text := out.String()
	assert.Contains(t, text, string(recording.StatusRecording))
	assert.Contains(t, text, string(recording.StatusStopped))
	assert.Contains(t, text, string(recording.StatusPlaying))
	assert.Eventually(t, func() bool {
		return svc.Session().Status() == recording.StatusReady
	}, time.Second, 10*time.Millisecond)
}

func TestRunPlayWithoutRecordings(t *testing.T) {
	svc, out, player := newTestService(t, &stubRecorder{}, nil)

	svc.Send(TriggerPlay)
	svc.Send(TriggerQuit)
	require.NoError(t, svc.Run(context.Background()))

	assert.Contains(t, out.String(), string(recording.StatusNoRecordings))
	assert.Empty(t, player.opened)
}

func TestRunActivationFailure(t *testing.T) {
	rec := &stubRecorder{activateErr: errors.New("no microphone")}
	svc, out, _ := newTestService(t, rec, nil)

	svc.Send(TriggerToggle)
	svc.Send(TriggerQuit)
	require.NoError(t, svc.Run(context.Background()))

	assert.Contains(t, out.String(), string(recording.StatusCannotRecord))
	assert.Equal(t, recording.Idle, svc.Session().State())
	assert.Zero(t, svc.Session().Log().Len())
}

func TestRunMiscTriggers(t *testing.T) {
	svc, out, _ := newTestService(t, &stubRecorder{}, nil)

	svc.Send(TriggerStopPlayback)
	svc.Send(TriggerUnknown)
	svc.Send(TriggerHelp)
	svc.Send(TriggerQuit)
	require.NoError(t, svc.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Nothing is playing.")
	assert.Contains(t, text, "Unknown command")
	assert.Equal(t, 2, strings.Count(text, "Commands:"), "help at startup and on request")
}

func TestRunStopsOnContext(t *testing.T) {
	svc, _, _ := newTestService(t, &stubRecorder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- svc.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdownFinalizesActiveRecording(t *testing.T) {
	rec := &stubRecorder{}
	svc, _, _ := newTestService(t, rec, func(c *config.Config) { c.LogStore = config.StoreBadger })

	_, err := svc.Session().Start()
	require.NoError(t, err)

	svc.Shutdown()
	assert.Equal(t, recording.Idle, svc.Session().State())
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := &config.Config{RecordingsDir: t.TempDir(), LogStore: "sqlite"}
	_, err := New(cfg, Options{Recorder: &stubRecorder{}, Player: &stubPlayer{}, Output: &syncBuffer{}})
	assert.Error(t, err)
}

func TestSendDropsWhenFull(t *testing.T) {
	svc, _, _ := newTestService(t, &stubRecorder{}, nil)
	for i := 0; i < cap(svc.triggers)+5; i++ {
		svc.Send(TriggerHelp)
	}
	assert.Len(t, svc.triggers, cap(svc.triggers))
}

func TestCombo(t *testing.T) {
	keys := []string{"r", "ctrl", "shift"}
	assert.Equal(t, "ctrl+shift+r", combo(keys))
	assert.Equal(t, []string{"r", "ctrl", "shift"}, keys)
	assert.Equal(t, "", combo(nil))
}
