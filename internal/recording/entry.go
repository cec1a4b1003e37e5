// Package recording implements the recording session: capture state, the
// in-memory recording log, and playback of the most recent entry.
package recording

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State is the capture state of a session.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FileExt is the extension of recordings written by voxmemo.
const FileExt = ".ogg"

const namePrefix = "recording_"

// Entry is one recording. It never changes after creation.
type Entry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// NameFunc returns the base name (without extension) for a recording created at t.
type NameFunc func(t time.Time) string

// DefaultName builds recording_<unix>_<suffix>. The suffix comes from a random
// UUID so two recordings started within the same second still differ.
func DefaultName(t time.Time) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("%s%d_%s", namePrefix, t.Unix(), id[:8])
}

func newEntry(dir string, now time.Time, name NameFunc) Entry {
	base := name(now)
	return Entry{
		Name:      base,
		Path:      filepath.Join(dir, base+FileExt),
		CreatedAt: now,
	}
}

// ParseName extracts the creation time encoded in a recording name.
// Both the current form and the legacy recording_<unix> form are accepted.
func ParseName(name string) (time.Time, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	rest, ok := strings.CutPrefix(base, namePrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("not a recording name: %q", name)
	}
	secs, _, _ := strings.Cut(rest, "_")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp in %q: %w", name, err)
	}
	return time.Unix(n, 0), nil
}
