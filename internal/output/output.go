package output

import (
	"fmt"
	"io"
	"sync"

	"go.aimuz.me/voxmemo/internal/recording"
)

// Formatter writes user-facing lines. It is safe for concurrent use since
// status updates arrive from the playback goroutine.
type Formatter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.w, format, args...)
}

// Status prints a status readout exactly as the session reports it.
func (f *Formatter) Status(s recording.Status) {
	icon := "🎙️ "
	switch {
	case s.IsError():
		icon = "❌"
	case s == recording.StatusRecording:
		icon = "🔴"
	case s == recording.StatusStopped:
		icon = "⏹️ "
	case s == recording.StatusPlaying:
		icon = "▶️ "
	}
	f.printf("%s %s\n", icon, s)
}

func (f *Formatter) Error(msg string) {
	f.printf("❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	f.printf("ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	f.printf("✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	f.printf("⚠️  %s\n", msg)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		f.printf("  ✅ %s: %s\n", name, detail)
	} else {
		f.printf("  ❌ %s: %s\n", name, detail)
	}
}

func (f *Formatter) Help(toggleHotkey, playHotkey string) {
	f.printf("Commands:\n")
	f.printf("  r, record   start or stop recording\n")
	f.printf("  p, play     play the last recording\n")
	f.printf("  s, stop     stop playback\n")
	f.printf("  h, help     show this help\n")
	f.printf("  q, quit     exit\n")
	if toggleHotkey != "" || playHotkey != "" {
		f.printf("Hotkeys:\n")
		f.printf("  %-12s start or stop recording\n", toggleHotkey)
		f.printf("  %-12s play the last recording\n", playHotkey)
	}
}
