// Package hotkey registers global keyboard shortcuts.
package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// ErrRunning is returned when Start is called twice. The underlying hook
// is process-global, so only one manager can listen at a time.
var ErrRunning = errors.New("hotkey: already running")

// Default combos.
const (
	DefaultToggle = "ctrl+shift+r"
	DefaultPlay   = "ctrl+shift+p"
)

var modifiers = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"cmd":     "cmd",
	"command": "cmd",
	"super":   "cmd",
}

var namedKeys = map[string]bool{
	"space": true, "enter": true, "tab": true, "esc": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
}

// ParseCombo turns "ctrl+shift+r" into the key list gohook expects: the
// main key first, then modifiers in the order given.
func ParseCombo(combo string) ([]string, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(combo)), "+")
	var (
		key  string
		mods []string
	)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("invalid hotkey %q: empty key", combo)
		}
		if m, ok := modifiers[p]; ok {
			mods = append(mods, m)
			continue
		}
		if key != "" {
			return nil, fmt.Errorf("invalid hotkey %q: more than one key", combo)
		}
		if len(p) != 1 && !namedKeys[p] {
			return nil, fmt.Errorf("invalid hotkey %q: unknown key %q", combo, p)
		}
		key = p
	}
	if key == "" {
		return nil, fmt.Errorf("invalid hotkey %q: no key", combo)
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("invalid hotkey %q: needs a modifier", combo)
	}
	return append([]string{key}, mods...), nil
}

// HotkeyManager listens for the toggle and play shortcuts.
type HotkeyManager struct {
	mu       sync.Mutex
	onToggle func()
	onPlay   func()
	toggle   []string
	play     []string
	running  bool
	done     chan struct{}
}

// NewHotkeyManager creates a manager bound to the default combos.
func NewHotkeyManager(onToggle, onPlay func()) *HotkeyManager {
	toggle, _ := ParseCombo(DefaultToggle)
	play, _ := ParseCombo(DefaultPlay)
	return &HotkeyManager{
		onToggle: onToggle,
		onPlay:   onPlay,
		toggle:   toggle,
		play:     play,
	}
}

// SetCombos replaces the shortcuts. It must be called before Start.
func (h *HotkeyManager) SetCombos(toggle, play string) error {
	t, err := ParseCombo(toggle)
	if err != nil {
		return err
	}
	p, err := ParseCombo(play)
	if err != nil {
		return err
	}
	if strings.Join(t, "+") == strings.Join(p, "+") {
		return fmt.Errorf("toggle and play hotkeys are both %q", toggle)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.toggle, h.play = t, p
	return nil
}

// Combos returns the registered key lists.
func (h *HotkeyManager) Combos() (toggle, play []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.toggle, h.play
}

// Start registers the shortcuts and starts the event loop.
func (h *HotkeyManager) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrRunning
	}

	hook.Register(hook.KeyDown, h.toggle, func(hook.Event) {
		slog.Debug("hotkey pressed", "action", "toggle")
		h.onToggle()
	})
	hook.Register(hook.KeyDown, h.play, func(hook.Event) {
		slog.Debug("hotkey pressed", "action", "play")
		h.onPlay()
	})

	events := hook.Start()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-hook.Process(events)
	}()

	h.running = true
	h.done = done
	slog.Info("hotkeys registered", "toggle", strings.Join(h.toggle, "+"), "play", strings.Join(h.play, "+"))
	return nil
}

// Stop ends the event loop. It is safe to call when not running.
func (h *HotkeyManager) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return
	}
	hook.End()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		slog.Warn("hotkey loop did not exit")
	}
	h.running = false
	h.done = nil
	slog.Debug("hotkeys stopped")
}
