package opusfile

import (
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// maxPacketSize is the largest Opus packet libopus produces.
const maxPacketSize = 1275

// Writer encodes float32 PCM into an Ogg Opus stream. Samples may arrive in
// chunks of any size; they are buffered until a full frame is available.
type Writer struct {
	mu sync.Mutex

	format  Format
	encoder *opuscodec.Encoder
	ogg     *oggwriter.OggWriter
	packet  []byte
	pending []float32

	seq       uint16
	timestamp uint32
	ssrc      uint32
	tsStep    uint32

	encoded int64 // samples per channel written to the stream
	closed  bool
}

// Create creates the file at path and returns a Writer for it.
func Create(path string, f Format) (*Writer, error) {
	enc, err := newEncoder(f)
	if err != nil {
		return nil, err
	}
	ogg, err := oggwriter.New(path, uint32(f.SampleRate), uint16(f.Channels))
	if err != nil {
		return nil, fmt.Errorf("create ogg file: %w", err)
	}
	return newWriter(f, enc, ogg), nil
}

// NewWriter returns a Writer that writes the Ogg stream to out.
func NewWriter(out io.Writer, f Format) (*Writer, error) {
	enc, err := newEncoder(f)
	if err != nil {
		return nil, err
	}
	ogg, err := oggwriter.NewWith(out, uint32(f.SampleRate), uint16(f.Channels))
	if err != nil {
		return nil, fmt.Errorf("create ogg stream: %w", err)
	}
	return newWriter(f, enc, ogg), nil
}

func newEncoder(f Format) (*opuscodec.Encoder, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	enc, err := opuscodec.NewEncoder(f.SampleRate, f.Channels, opuscodec.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}
	if f.Bitrate > 0 {
		if err := enc.SetBitrate(f.Bitrate); err != nil {
			return nil, fmt.Errorf("set opus bitrate: %w", err)
		}
	}
	if err := enc.SetComplexity(f.Complexity); err != nil {
		return nil, fmt.Errorf("set opus complexity: %w", err)
	}
	return enc, nil
}

func newWriter(f Format, enc *opuscodec.Encoder, ogg *oggwriter.OggWriter) *Writer {
	return &Writer{
		format:  f,
		encoder: enc,
		ogg:     ogg,
		packet:  make([]byte, maxPacketSize),
		pending: make([]float32, 0, f.FrameSize()*2),
		ssrc:    rand.Uint32(),
		tsStep:  uint32(int64(rtpClockRate) * int64(f.FrameDuration) / int64(time.Second)),
	}
}

// Write buffers samples and encodes every complete frame.
// Samples are interleaved when the format has two channels.
func (w *Writer) Write(samples []float32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	w.pending = append(w.pending, samples...)
	frame := w.format.FrameSize()
	off := 0
	for len(w.pending)-off >= frame {
		if err := w.encodeFrame(w.pending[off : off+frame]); err != nil {
			return err
		}
		off += frame
	}
	if off > 0 {
		n := copy(w.pending, w.pending[off:])
		w.pending = w.pending[:n]
	}
	return nil
}

func (w *Writer) encodeFrame(frame []float32) error {
	n, err := w.encoder.EncodeFloat32(frame, w.packet)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: w.seq,
			Timestamp:      w.timestamp,
			SSRC:           w.ssrc,
		},
		Payload: w.packet[:n],
	}
	if err := w.ogg.WriteRTP(pkt); err != nil {
		return fmt.Errorf("write ogg page: %w", err)
	}

	w.seq++
	w.timestamp += w.tsStep
	w.encoded += int64(len(frame) / w.format.Channels)
	return nil
}

// Duration returns how much audio has been encoded so far.
func (w *Writer) Duration() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Duration(w.encoded) * time.Second / time.Duration(w.format.SampleRate)
}

// Close pads and encodes any partial frame, then closes the stream.
// Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	var flushErr error
	if len(w.pending) > 0 {
		frame := make([]float32, w.format.FrameSize())
		copy(frame, w.pending)
		w.pending = w.pending[:0]
		flushErr = w.encodeFrame(frame)
	}

	if err := w.ogg.Close(); err != nil {
		return fmt.Errorf("close ogg stream: %w", err)
	}
	return flushErr
}
