// Package playback decodes Ogg Opus recordings and plays them through an
// audio output.
package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.aimuz.me/voxmemo/opusfile"
)

// Output opens a sink that consumes signed 16-bit little-endian PCM.
// Writes block at playback speed; the sink stops when ctx is done.
type Output interface {
	Open(ctx context.Context, sampleRate, channels int) (io.WriteCloser, error)
}

// Player opens recordings for playback on an Output.
type Player struct {
	out Output
}

// NewPlayer returns a Player that plays through out.
func NewPlayer(out Output) *Player {
	return &Player{out: out}
}

// Open opens and validates the recording at path. Missing or corrupt files
// fail here, before any audio output is started.
func (p *Player) Open(path string) (*Stream, error) {
	r, err := opusfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return &Stream{path: path, reader: r, out: p.out}, nil
}

// Stream is one opened recording. It can be played once.
type Stream struct {
	path   string
	reader *opusfile.Reader
	out    Output
}

// Play decodes the recording into the output and blocks until it has been
// played or ctx is done.
func (s *Stream) Play(ctx context.Context) error {
	defer s.reader.Close()

	sink, err := s.out.Open(ctx, s.reader.SampleRate(), s.reader.Channels())
	if err != nil {
		return fmt.Errorf("open audio output: %w", err)
	}

	frames := 0
	buf := make([]byte, 0, 4096)
	for {
		if err := ctx.Err(); err != nil {
			sink.Close()
			return err
		}

		pcm, err := s.reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			sink.Close()
			return err
		}

		buf = buf[:0]
		for _, v := range pcm {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
		}
		if _, err := sink.Write(buf); err != nil {
			sink.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write audio output: %w", err)
		}
		frames++
	}

	if err := sink.Close(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("close audio output: %w", err)
	}

	slog.Debug("playback drained", "path", s.path, "frames", frames)
	return nil
}
