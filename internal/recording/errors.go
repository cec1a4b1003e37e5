package recording

import "errors"

var (
	// ErrSessionActivation is returned when the audio input cannot be activated.
	ErrSessionActivation = errors.New("activate audio session")

	// ErrRecorderConstruction is returned when the recorder cannot be created or started.
	ErrRecorderConstruction = errors.New("create recorder")

	// ErrNoActiveRecording is returned by Stop when nothing is being captured.
	ErrNoActiveRecording = errors.New("no active recording")

	// ErrNoRecordings is returned by PlayLast when the log is empty.
	ErrNoRecordings = errors.New("no recordings found")

	// ErrPlayerConstruction is returned when the tail entry cannot be opened for playback.
	ErrPlayerConstruction = errors.New("create player")

	// ErrAlreadyRecording is returned by Start while a capture is active.
	ErrAlreadyRecording = errors.New("already recording")
)
