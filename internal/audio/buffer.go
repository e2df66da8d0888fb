// Package audio holds the sample buffers the synthesizer works on and the
// operations that build them: unit concatenation, crossfading, gain, WAV
// coding and rate conversion. Samples are mono float64 in [-1, 1].
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// DefaultSampleRate is the rate diphone libraries are usually recorded at.
const DefaultSampleRate = 16000

// Unit is an immutable recording of one diphone. Its samples are never handed
// out by reference.
type Unit struct {
	name       string
	sampleRate int
	samples    []float64
}

// NewUnit copies samples into a new Unit.
func NewUnit(name string, sampleRate int, samples []float64) *Unit {
	return &Unit{
		name:       name,
		sampleRate: sampleRate,
		samples:    append([]float64(nil), samples...),
	}
}

func (u *Unit) Name() string    { return u.name }
func (u *Unit) SampleRate() int { return u.sampleRate }
func (u *Unit) Len() int        { return len(u.samples) }

// At returns sample i.
func (u *Unit) At(i int) float64 { return u.samples[i] }

// AppendTo appends a copy of the unit's samples to dst.
func (u *Unit) AppendTo(dst []float64) []float64 {
	return append(dst, u.samples...)
}

// Buffer is assembled audio owned by a single request.
type Buffer struct {
	SampleRate int
	Samples    []float64
}

// Len reports the number of samples.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// Empty reports whether the buffer holds no audio.
func (b *Buffer) Empty() bool { return b.Len() == 0 }

// Duration is the playback length at the buffer's sample rate.
func (b *Buffer) Duration() time.Duration {
	if b.Empty() || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// OutOfRangeError rejects a volume outside [Min, Max].
type OutOfRangeError struct {
	Value int
	Min   int
	Max   int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("volume %d out of range %d-%d", e.Value, e.Min, e.Max)
}

// Scale multiplies every sample by percent/100. Scaling an empty buffer is a
// no-op whatever the percent. Otherwise values outside [0, 100] are rejected
// and leave the buffer untouched.
func (b *Buffer) Scale(percent int) error {
	if b.Empty() {
		return nil
	}
	if percent < 0 || percent > 100 {
		return &OutOfRangeError{Value: percent, Min: 0, Max: 100}
	}
	gain := float64(percent) / 100
	for i := range b.Samples {
		b.Samples[i] *= gain
	}
	return nil
}

// PCM16 renders the buffer as little-endian signed 16-bit PCM, clipping
// samples outside [-1, 1].
func (b *Buffer) PCM16() []byte {
	out := make([]byte, 2*b.Len())
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float64) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(s * math.MaxInt16))
}
