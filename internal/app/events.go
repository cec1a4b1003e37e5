// Package app wires capture, playback and trigger sources to the recording
// session.
package app

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Trigger is a user action from any input source.
type Trigger int

const (
	TriggerUnknown Trigger = iota
	TriggerToggle
	TriggerPlay
	TriggerStopPlayback
	TriggerHelp
	TriggerQuit
)

func (t Trigger) String() string {
	switch t {
	case TriggerToggle:
		return "toggle"
	case TriggerPlay:
		return "play"
	case TriggerStopPlayback:
		return "stop-playback"
	case TriggerHelp:
		return "help"
	case TriggerQuit:
		return "quit"
	}
	return "unknown"
}

// ParseTrigger maps a terminal command to a trigger. Empty lines report false.
func ParseTrigger(line string) (Trigger, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return TriggerUnknown, false
	case "r", "record":
		return TriggerToggle, true
	case "p", "play":
		return TriggerPlay, true
	case "s", "stop":
		return TriggerStopPlayback, true
	case "h", "help", "?":
		return TriggerHelp, true
	case "q", "quit", "exit":
		return TriggerQuit, true
	}
	return TriggerUnknown, true
}

// ReadTriggers parses one command per line from r and sends it to out.
// End of input is reported as TriggerQuit.
func ReadTriggers(ctx context.Context, r io.Reader, out chan<- Trigger) error {
	send := func(t Trigger) bool {
		select {
		case out <- t:
			return true
		case <-ctx.Done():
			return false
		}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		t, ok := ParseTrigger(sc.Text())
		if !ok {
			continue
		}
		if !send(t) {
			return ctx.Err()
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	send(TriggerQuit)
	return nil
}
