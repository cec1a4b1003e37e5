package recording

import (
	"context"
	"sync"
)

// Playback is a handle to one in-flight playback started by PlayLast.
type Playback struct {
	entry  Entry
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func startPlayback(ctx context.Context, entry Entry, stream Stream, onDone func(*Playback)) *Playback {
	ctx, cancel := context.WithCancel(ctx)
	p := &Playback{
		entry:  entry,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		err := stream.Play(ctx)
		if ctx.Err() != nil && err != nil {
			err = ctx.Err()
		}
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		cancel()
		close(p.done)
		if onDone != nil {
			onDone(p)
		}
	}()

	return p
}

// Entry returns the recording being played.
func (p *Playback) Entry() Entry { return p.entry }

// Done is closed when playback ends, either naturally or after Cancel.
func (p *Playback) Done() <-chan struct{} { return p.done }

// Err returns the playback result once Done is closed. A cancelled playback
// reports context.Canceled.
func (p *Playback) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Cancel stops playback. It does not wait for the output to shut down.
func (p *Playback) Cancel() { p.cancel() }

// Wait blocks until playback ends or ctx is done.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Playback) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
