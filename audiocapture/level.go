package audiocapture

import "math"

// SilenceThreshold is the RMS below which captured audio counts as silence.
const SilenceThreshold = 0.001

// RMS returns the root mean square of samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}

// LevelMeter tracks the loudest chunk seen by a capture.
type LevelMeter struct {
	peak float32
}

// Observe records the RMS of one chunk and returns it.
func (m *LevelMeter) Observe(samples []float32) float32 {
	rms := RMS(samples)
	if rms > m.peak {
		m.peak = rms
	}
	return rms
}

// Peak returns the loudest chunk RMS observed.
func (m *LevelMeter) Peak() float32 { return m.peak }

// Silent reports whether nothing above SilenceThreshold was observed.
func (m *LevelMeter) Silent() bool { return m.peak < SilenceThreshold }
