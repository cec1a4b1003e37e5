package recording

import "sync"

// Log is the ordered list of recordings made during this process.
// Entries come back in insertion order.
type Log interface {
	Append(e Entry) error
	Last() (Entry, bool, error)
	Len() int
	All() ([]Entry, error)
	// RemoveLast drops the tail entry. Only the discard policy calls it.
	RemoveLast() (Entry, bool, error)
	Close() error
}

// MemoryLog is a Log backed by a slice.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryLog returns an empty MemoryLog.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *MemoryLog) Last() (Entry, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false, nil
	}
	return l.entries[len(l.entries)-1], true, nil
}

func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *MemoryLog) All() ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

func (l *MemoryLog) RemoveLast() (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry{}, false, nil
	}
	last := l.entries[len(l.entries)-1]
	l.entries = l.entries[:len(l.entries)-1]
	return last, true, nil
}

func (l *MemoryLog) Close() error { return nil }
