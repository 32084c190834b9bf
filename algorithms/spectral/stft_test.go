package spectral

import (
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-verdict/algorithms/windowing"
)

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestSTFTShape(t *testing.T) {
	s := NewSTFT()
	res, err := s.Compute(sine(440, 16000, 16000), 512, 256, 16000, windowing.NewHann(512, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.FreqBins != 257 {
		t.Errorf("FreqBins = %d, want 257", res.FreqBins)
	}
	if want := (16000-512)/256 + 1; res.TimeFrames != want {
		t.Errorf("TimeFrames = %d, want %d", res.TimeFrames, want)
	}
	for i, frame := range res.Magnitude {
		if len(frame) != res.FreqBins {
			t.Fatalf("frame %d has %d bins", i, len(frame))
		}
	}
}

func TestSTFTPadsShortSignal(t *testing.T) {
	res, err := NewSTFT().Compute([]float64{1, -1, 1}, 512, 256, 16000, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.TimeFrames != 1 {
		t.Errorf("TimeFrames = %d, want 1", res.TimeFrames)
	}
}

func TestSpectralDescriptorsOnSine(t *testing.T) {
	res, err := NewSTFT().Compute(sine(1000, 16000, 8192), 512, 256, 16000, windowing.NewHann(512, false))
	if err != nil {
		t.Fatal(err)
	}
	mean := res.MeanSpectrum()

	centroid := NewSpectralCentroid(16000).Compute(mean)
	if centroid < 800 || centroid > 1200 {
		t.Errorf("centroid = %.1f Hz, want near 1000", centroid)
	}

	flatness := NewSpectralFlatness().Compute(mean)
	if flatness < 0 || flatness > 0.5 {
		t.Errorf("flatness of a pure tone = %.3f, want low", flatness)
	}

	rolloff := NewSpectralRolloff(16000).Compute(mean, 0.85)
	if rolloff < 900 || rolloff > 1200 {
		t.Errorf("rolloff = %.1f Hz, want near 1000", rolloff)
	}
}

func TestMelFilterBank(t *testing.T) {
	ms := NewMelScale()
	bank := ms.FilterBank(40, 512, 16000, 0, 8000)
	if len(bank) != 40 {
		t.Fatalf("filters = %d, want 40", len(bank))
	}
	for i, f := range bank {
		if len(f) != 257 {
			t.Fatalf("filter %d has %d bins", i, len(f))
		}
	}

	if got := ms.MelToHz(ms.HzToMel(1234)); math.Abs(got-1234) > 1e-6 {
		t.Errorf("mel round trip = %v", got)
	}
}
