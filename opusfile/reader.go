package opusfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	opuscodec "github.com/jj11hh/opus"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

var opusTagsMagic = []byte("OpusTags")

// maxFrameSamples48k is the longest Opus frame, 120 ms, in samples per channel at 48 kHz.
const maxFrameSamples48k = 5760

// Reader decodes an Ogg Opus stream into 16-bit PCM frames.
type Reader struct {
	closer   io.Closer
	ogg      *oggreader.OggReader
	decoder  *opuscodec.Decoder
	rate     int
	channels int
	pcm      []int16
}

// Open opens the Ogg Opus file at path and parses its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader parses the Ogg Opus header from in.
func NewReader(in io.Reader) (*Reader, error) {
	ogg, header, err := oggreader.NewWith(in)
	if err != nil {
		return nil, fmt.Errorf("parse ogg header: %w", err)
	}
	if header.Channels != 1 && header.Channels != 2 {
		return nil, fmt.Errorf("opusfile: unsupported channel count %d", header.Channels)
	}

	rate := decodeRate(int(header.SampleRate))
	channels := int(header.Channels)
	dec, err := opuscodec.NewDecoder(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	return &Reader{
		ogg:      ogg,
		decoder:  dec,
		rate:     rate,
		channels: channels,
		pcm:      make([]int16, maxFrameSamples48k*rate/48000*channels),
	}, nil
}

// decodeRate picks the decoder rate. libopus decodes at any of its native
// rates; other input rates recorded in the header fall back to 48 kHz.
func decodeRate(inputRate int) int {
	switch inputRate {
	case 8000, 12000, 16000, 24000, 48000:
		return inputRate
	}
	return 48000
}

// SampleRate returns the rate of decoded PCM.
func (r *Reader) SampleRate() int { return r.rate }

// Channels returns the channel count of decoded PCM.
func (r *Reader) Channels() int { return r.channels }

// ReadFrame decodes the next packet. It returns io.EOF after the last one.
// The returned slice is reused by the next call.
func (r *Reader) ReadFrame() ([]int16, error) {
	for {
		payload, _, err := r.ogg.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read ogg page: %w", err)
		}
		if len(payload) == 0 || bytes.HasPrefix(payload, opusTagsMagic) {
			continue
		}

		n, err := r.decoder.Decode(payload, r.pcm)
		if err != nil {
			return nil, fmt.Errorf("opus decode: %w", err)
		}
		return r.pcm[:n*r.channels], nil
	}
}

// Close releases the underlying file, if the Reader opened one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
