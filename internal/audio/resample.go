package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one rate to another. The result always
// holds round(len(samples)*to/from) samples; the resampler is flushed and its
// output trimmed or zero-padded to that length. Equal rates return a copy.
func Resample(samples []float64, from, to int) ([]float64, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if from == to || len(samples) == 0 {
		return append([]float64(nil), samples...), nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	out, err := rs.Process(samples)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d: %w", from, to, err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler: %w", err)
	}
	out = append(out, tail...)

	want := ResampledLen(len(samples), from, to)
	if len(out) > want {
		return out[:want:want], nil
	}
	for len(out) < want {
		out = append(out, 0)
	}
	return out, nil
}

// ResampledLen is the number of samples n input samples span at the new rate.
func ResampledLen(n, from, to int) int {
	return int(math.Round(float64(n) * float64(to) / float64(from)))
}
