package audio

// ToMono downmixes interleaved multi-channel frames by averaging. Input
// length not divisible by channels keeps the trailing partial frame averaged
// over the samples it has.
func ToMono(data []float32, channels int) []float32 {
	if channels <= 1 {
		return data
	}
	out := make([]float32, 0, (len(data)+channels-1)/channels)
	for i := 0; i < len(data); i += channels {
		end := i + channels
		if end > len(data) {
			end = len(data)
		}
		var sum float32
		for _, s := range data[i:end] {
			sum += s
		}
		out = append(out, sum/float32(end-i))
	}
	return out
}

// Resample linearly interpolates mono samples from srcRate to dstRate.
// Output length is ceil(len(in) * dstRate / srcRate); equal rates return the
// input unchanged.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(in) == 0 {
		return in
	}

	ratio := float64(dstRate) / float64(srcRate)
	outLen := int(float64(len(in)) * ratio)
	if float64(outLen) < float64(len(in))*ratio {
		outLen++
	}

	out := make([]float32, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		idx := int(srcPos)
		frac := float32(srcPos - float64(idx))

		switch {
		case idx+1 < len(in):
			out[i] = in[idx]*(1-frac) + in[idx+1]*frac
		case idx < len(in):
			out[i] = in[idx]
		}
	}
	return out
}
