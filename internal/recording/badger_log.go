package recording

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

var entryPrefix = []byte("entry/")

// BadgerLog is a Log kept in an in-memory badger database. Nothing is
// written to disk, so the log starts empty on every run.
type BadgerLog struct {
	mu   sync.Mutex
	db   *badger.DB
	next uint64
	n    int
}

// NewBadgerLog opens an in-memory badger database for the log.
func NewBadgerLog() (*BadgerLog, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(badgerLogger{slog.Default().With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerLog{db: db}, nil
}

func entryKey(seq uint64) []byte {
	k := make([]byte, len(entryPrefix)+8)
	copy(k, entryPrefix)
	binary.BigEndian.PutUint64(k[len(entryPrefix):], seq)
	return k
}

func (l *BadgerLog) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := entryKey(l.next)
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	}); err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	l.next++
	l.n++
	return nil
}

func (l *BadgerLog) Last() (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, _, ok, err := l.last()
	return e, ok, err
}

// last returns the tail entry and its key. Callers hold l.mu.
func (l *BadgerLog) last() (Entry, []byte, bool, error) {
	var (
		e     Entry
		key   []byte
		found bool
	)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, entryPrefix...), 0xff))
		if !it.ValidForPrefix(entryPrefix) {
			return nil
		}
		item := it.Item()
		key = item.KeyCopy(nil)
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if err != nil {
		return Entry{}, nil, false, fmt.Errorf("read last entry: %w", err)
	}
	return e, key, found, nil
}

func (l *BadgerLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.n
}

func (l *BadgerLog) All() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, l.n)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = entryPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (l *BadgerLog) RemoveLast() (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, key, ok, err := l.last()
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return Entry{}, false, fmt.Errorf("remove entry: %w", err)
	}
	l.n--
	return e, true, nil
}

func (l *BadgerLog) Close() error {
	return l.db.Close()
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...))
}
