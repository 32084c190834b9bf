package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-verdict/features"
	"github.com/RyanBlaney/sonido-verdict/transcode"
)

func writeClip(t *testing.T, path string, freq float64, rate int) {
	t.Helper()
	samples := make([]float64, rate/4)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := transcode.WriteWAV(f, samples, rate); err != nil {
		t.Fatal(err)
	}
}

func newLoader(t *testing.T) *Loader {
	t.Helper()
	ext, err := features.NewExtractor(features.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	dec := transcode.NewDecoder(&transcode.DecoderConfig{TargetSampleRate: ext.Config().SampleRate})
	return NewLoader(dec, ext)
}

func TestLoadShape(t *testing.T) {
	root := t.TempDir()
	labels := []string{"ok", "ng"}
	counts := map[string]int{"ok": 3, "ng": 2}

	for _, label := range labels {
		dir := filepath.Join(root, label)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for i := range counts[label] {
			name := filepath.Join(dir, string(rune('a'+i))+".wav")
			if i == 0 {
				name = filepath.Join(dir, "UPPER.WAV")
			}
			writeClip(t, name, 300+float64(i)*200, 16000)
		}
		// ignored
		if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	loader := newLoader(t)
	ds, err := loader.Load(context.Background(), root, labels)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if ds.Len() != 5 || len(ds.Y) != 5 || len(ds.Files) != 5 {
		t.Fatalf("rows = %d/%d/%d, want 5", ds.Len(), len(ds.Y), len(ds.Files))
	}
	got := ds.ClassCounts(len(labels))
	if got[0] != 3 || got[1] != 2 {
		t.Errorf("ClassCounts = %v, want [3 2]", got)
	}
	for i, row := range ds.X {
		if len(row) != loader.extractor.Dimension() {
			t.Errorf("row %d length %d", i, len(row))
		}
	}

	var globalMax float64
	for _, row := range ds.X {
		for _, v := range row {
			globalMax = math.Max(globalMax, v)
		}
	}
	if globalMax != 1 {
		t.Errorf("global max after scaling = %v, want 1", globalMax)
	}
}

func TestLoadMissingLabelFolder(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "ok"), 0755); err != nil {
		t.Fatal(err)
	}
	writeClip(t, filepath.Join(root, "ok", "a.wav"), 440, 16000)

	_, err := newLoader(t).Load(context.Background(), root, []string{"ok", "ng"})
	if !errors.Is(err, ErrLabelFolder) {
		t.Errorf("err = %v, want ErrLabelFolder", err)
	}
}

func TestLoadEmpty(t *testing.T) {
	root := t.TempDir()
	for _, l := range []string{"ok", "ng"} {
		if err := os.MkdirAll(filepath.Join(root, l), 0755); err != nil {
			t.Fatal(err)
		}
	}

	_, err := newLoader(t).Load(context.Background(), root, []string{"ok", "ng"})
	if !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("err = %v, want ErrEmptyDataset", err)
	}
}

func TestLoadHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	for _, l := range []string{"ok", "ng"} {
		if err := os.MkdirAll(filepath.Join(root, l), 0755); err != nil {
			t.Fatal(err)
		}
		writeClip(t, filepath.Join(root, l, "a.wav"), 440, 16000)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newLoader(t).Load(ctx, root, []string{"ok", "ng"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestValidationSize(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 0}, {1, 0}, {2, 1}, {4, 1}, {5, 1}, {8, 2}, {10, 2}, {13, 3}, {100, 20},
	}
	for _, tt := range tests {
		if got := ValidationSize(tt.n, 0.2); got != tt.want {
			t.Errorf("ValidationSize(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestSplitDeterministicAndPaired(t *testing.T) {
	ds := &Dataset{}
	for i := range 20 {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, i%2)
	}

	train1, val1 := ds.Split(0.2, 42)
	train2, val2 := ds.Split(0.2, 42)

	if val1.Len() != 4 || train1.Len() != 16 {
		t.Fatalf("sizes = %d/%d, want 16/4", train1.Len(), val1.Len())
	}
	for i := range val1.X {
		if val1.X[i][0] != val2.X[i][0] {
			t.Fatal("split is not deterministic")
		}
	}
	for i := range train1.X {
		if train1.X[i][0] != train2.X[i][0] {
			t.Fatal("split is not deterministic")
		}
	}

	seen := map[float64]bool{}
	for _, part := range []*Dataset{train1, val1} {
		for i, row := range part.X {
			if int(row[0])%2 != part.Y[i] {
				t.Errorf("row %v paired with label %d", row[0], part.Y[i])
			}
			seen[row[0]] = true
		}
	}
	if len(seen) != 20 {
		t.Errorf("split covers %d distinct rows, want 20", len(seen))
	}
}

func TestSplitCarriesFiles(t *testing.T) {
	ds := &Dataset{}
	for i := range 10 {
		ds.X = append(ds.X, []float64{float64(i)})
		ds.Y = append(ds.Y, 0)
		ds.Files = append(ds.Files, fmt.Sprintf("clip%d.wav", i))
	}

	train, val := ds.Split(0.2, 42)
	for _, part := range []*Dataset{train, val} {
		if len(part.Files) != part.Len() {
			t.Fatalf("len(Files) = %d, want %d", len(part.Files), part.Len())
		}
		for i, row := range part.X {
			if want := fmt.Sprintf("clip%d.wav", int(row[0])); part.Files[i] != want {
				t.Errorf("row %v file = %q, want %q", row[0], part.Files[i], want)
			}
		}
	}
}

func TestLabelIndexRoundTrip(t *testing.T) {
	labels := []string{"ok", "ng", "noise"}
	for i, l := range labels {
		idx, err := LabelIndex(labels, l)
		if err != nil || idx != i || labels[idx] != l {
			t.Errorf("LabelIndex(%q) = %d, %v", l, idx, err)
		}
	}
	if _, err := LabelIndex(labels, "missing"); err == nil {
		t.Error("expected error for unknown label")
	}
}

func TestScaleByMaxDegenerate(t *testing.T) {
	ds := &Dataset{X: [][]float64{{0, 0}, {0, 0}}, Y: []int{0, 1}}
	if got := ds.ScaleByMax(); got != 0 {
		t.Errorf("ScaleByMax = %v, want 0", got)
	}
	for _, row := range ds.X {
		for _, v := range row {
			if v != 0 {
				t.Fatal("degenerate scale changed data")
			}
		}
	}
}
