package temporal

// ZeroCrossingRate measures sign changes per sample pair, in [0, 1].
type ZeroCrossingRate struct {
	frameSize int
	hopSize   int
}

// NewZeroCrossingRate creates a frame-based zero crossing calculator.
func NewZeroCrossingRate(frameSize, hopSize int) *ZeroCrossingRate {
	return &ZeroCrossingRate{
		frameSize: frameSize,
		hopSize:   hopSize,
	}
}

// Compute returns crossings / (len(frame)-1) for a single frame.
func (z *ZeroCrossingRate) Compute(frame []float64) float64 {
	if len(frame) < 2 {
		return 0.0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}

	return float64(crossings) / float64(len(frame)-1)
}

// ComputeFrames returns the rate of every frame; a signal shorter than one
// frame is measured as a whole.
func (z *ZeroCrossingRate) ComputeFrames(signal []float64) []float64 {
	if len(signal) == 0 || z.frameSize <= 0 || z.hopSize <= 0 {
		return []float64{}
	}
	if len(signal) < z.frameSize {
		return []float64{z.Compute(signal)}
	}

	numFrames := (len(signal)-z.frameSize)/z.hopSize + 1
	rates := make([]float64, numFrames)
	for i := range numFrames {
		start := i * z.hopSize
		rates[i] = z.Compute(signal[start : start+z.frameSize])
	}
	return rates
}
