package recording

import "errors"

// Status is the text shown in the status readout.
type Status string

const (
	StatusReady     Status = "Status: Ready"
	StatusRecording Status = "Status: Recording..."
	StatusStopped   Status = "Status: Recording stopped."
	StatusPlaying   Status = "Status: Playing recording..."

	StatusCannotRecord Status = "Error: Could not record"
	StatusNoActive     Status = "Error: No active recording."
	StatusNoRecordings Status = "Error: No recordings found."
	StatusCannotPlay   Status = "Error: Could not play recording"
)

// IsError reports whether s is one of the error readouts.
func (s Status) IsError() bool {
	switch s {
	case StatusCannotRecord, StatusNoActive, StatusNoRecordings, StatusCannotPlay:
		return true
	}
	return false
}

// StatusForError maps a session error to its readout. It returns false for
// errors the session does not produce.
func StatusForError(err error) (Status, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, ErrSessionActivation),
		errors.Is(err, ErrRecorderConstruction),
		errors.Is(err, ErrAlreadyRecording):
		return StatusCannotRecord, true
	case errors.Is(err, ErrNoActiveRecording):
		return StatusNoActive, true
	case errors.Is(err, ErrNoRecordings):
		return StatusNoRecordings, true
	case errors.Is(err, ErrPlayerConstruction):
		return StatusCannotPlay, true
	}
	return "", false
}
