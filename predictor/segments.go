package predictor

// Span is a half-open sample range [Start, End).
type Span struct {
	Start int
	End   int
}

// Segments returns the analysis windows for a recording of length samples.
// There are int((2T-1)*N + 1) of them; window i covers
// [i*length/d, (i+N)*length/d) with d = int(2*T*N), so consecutive windows
// overlap by all but 1/d of the recording and the last one ends at length.
func Segments(length int, t float64, n int) []Span {
	count := int((2*t-1)*float64(n) + 1)
	denom := int(2 * t * float64(n))
	if count <= 0 || denom <= 0 || n <= 0 {
		return nil
	}

	spans := make([]Span, count)
	for i := range count {
		start := min(i*length/denom, length)
		end := min((i+n)*length/denom, length)
		spans[i] = Span{Start: start, End: max(start, end)}
	}
	return spans
}
