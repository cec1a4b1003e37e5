// Package opusfile writes and reads mono voice recordings as Ogg Opus files.
package opusfile

import (
	"errors"
	"time"
)

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("opusfile: writer closed")

// Format is the encoding used for recordings.
type Format struct {
	SampleRate    int           // 8000, 12000, 16000, 24000 or 48000 Hz
	Channels      int           // 1 or 2
	FrameDuration time.Duration // 2.5, 5, 10, 20, 40 or 60 ms
	Bitrate       int           // bits per second
	Complexity    int           // 0-10
}

// VoiceFormat is the fixed recording format: mono speech at 12 kHz with the
// encoder at its highest quality setting.
func VoiceFormat() Format {
	return Format{
		SampleRate:    12000,
		Channels:      1,
		FrameDuration: 20 * time.Millisecond,
		Bitrate:       24000,
		Complexity:    10,
	}
}

// FrameSize returns the number of interleaved samples in one frame.
func (f Format) FrameSize() int {
	return int(int64(f.SampleRate)*int64(f.FrameDuration)/int64(time.Second)) * f.Channels
}

// Validate checks that libopus accepts the format.
func (f Format) Validate() error {
	switch f.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return errors.New("opusfile: unsupported sample rate")
	}
	if f.Channels != 1 && f.Channels != 2 {
		return errors.New("opusfile: channels must be 1 or 2")
	}
	switch f.FrameDuration {
	case 2500 * time.Microsecond, 5 * time.Millisecond, 10 * time.Millisecond,
		20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond:
	default:
		return errors.New("opusfile: unsupported frame duration")
	}
	if f.Complexity < 0 || f.Complexity > 10 {
		return errors.New("opusfile: complexity must be within 0-10")
	}
	return nil
}

// rtpClockRate is the Opus RTP clock. Ogg granule positions use the same clock
// regardless of the input sample rate.
const rtpClockRate = 48000
