package common

// ResampleLinear maps a contour of any length onto exactly n points using
// linear interpolation between neighbouring samples. An empty contour
// yields n zeros; a single sample is repeated.
func ResampleLinear(contour []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}

	out := make([]float64, n)
	switch len(contour) {
	case 0:
		return out
	case 1:
		for i := range out {
			out[i] = contour[0]
		}
		return out
	}

	if n == 1 {
		out[0] = Mean(contour)
		return out
	}

	scale := float64(len(contour)-1) / float64(n-1)
	for i := range n {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= len(contour)-1 {
			out[i] = contour[len(contour)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = contour[lo]*(1-frac) + contour[lo+1]*frac
	}

	return out
}
