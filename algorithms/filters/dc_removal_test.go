package filters

import (
	"math"
	"testing"
)

func TestDCRemovalRemovesOffset(t *testing.T) {
	dc := NewDCRemovalWithCutoff(16000, 20)
	in := make([]float64, 16000)
	for i := range in {
		in[i] = 0.5
	}
	out := dc.Process(in)
	if math.Abs(out[len(out)-1]) > 1e-3 {
		t.Errorf("residual DC = %v", out[len(out)-1])
	}
	if in[0] != 0.5 {
		t.Error("input was modified")
	}
}

func TestDCRemovalPoleClamp(t *testing.T) {
	if r := NewDCRemovalWithCutoff(0, 20).PoleLocation(); r != 0.995 {
		t.Errorf("invalid rate pole = %v, want default", r)
	}
	if r := NewDCRemovalWithCutoff(100, 1000).PoleLocation(); r <= 0 || r >= 1 {
		t.Errorf("pole %v outside (0,1)", r)
	}
}
