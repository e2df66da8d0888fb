package audio

// AssembleOptions controls how units are joined.
type AssembleOptions struct {
	// SampleRate is used for the output when no unit resolved.
	SampleRate int
	Crossfade  bool
	// Overlap is the crossfade window in samples. Each boundary uses at most
	// the length of the shorter neighbour.
	Overlap int
}

// Assemble concatenates units in order into a new Buffer. Nil entries are
// missing units and are skipped without padding. With Crossfade set, adjacent
// units overlap and are blended with a linear fade.
func Assemble(units []*Unit, opts AssembleOptions) *Buffer {
	out := &Buffer{}
	total := 0
	for _, u := range units {
		if u == nil {
			continue
		}
		if out.SampleRate == 0 {
			out.SampleRate = u.SampleRate()
		}
		total += u.Len()
	}
	if out.SampleRate == 0 {
		out.SampleRate = opts.SampleRate
	}
	if out.SampleRate == 0 {
		out.SampleRate = DefaultSampleRate
	}

	samples := make([]float64, 0, total)
	prevLen := 0
	for _, u := range units {
		if u == nil || u.Len() == 0 {
			continue
		}
		if !opts.Crossfade || prevLen == 0 || opts.Overlap <= 0 {
			samples = u.AppendTo(samples)
			prevLen = u.Len()
			continue
		}
		w := min(opts.Overlap, prevLen, u.Len())
		start := len(samples) - w
		for i := 0; i < w; i++ {
			in := fadeWeight(i, w)
			samples[start+i] = samples[start+i]*(1-in) + u.At(i)*in
		}
		for i := w; i < u.Len(); i++ {
			samples = append(samples, u.At(i))
		}
		prevLen = u.Len()
	}
	out.Samples = samples
	return out
}

// fadeWeight is the incoming unit's weight at position i of a w-sample
// window; it runs from 0 to 1 inclusive.
func fadeWeight(i, w int) float64 {
	if w <= 1 {
		return 1
	}
	return float64(i) / float64(w-1)
}
