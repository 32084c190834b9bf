package runstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/nn"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutListNewestFirst(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i := range 3 {
		r := &Run{
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Accuracy:  float64(i) / 10,
			History:   nn.History{Loss: []float64{1, 0.5}},
		}
		if err := s.Put(ctx, r); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if r.ID == "" {
			t.Fatal("Put did not assign an id")
		}
	}

	runs, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("List returned %d runs, want 3", len(runs))
	}
	for i, r := range runs {
		want := float64(2-i) / 10
		if r.Accuracy != want {
			t.Errorf("run %d accuracy = %v, want %v", i, r.Accuracy, want)
		}
	}
	if len(runs[0].History.Loss) != 2 {
		t.Errorf("history not round-tripped: %+v", runs[0].History)
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d runs", len(limited))
	}
}

func TestGet(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	r := &Run{ID: NewID(), StartedAt: time.Now(), DatasetRoot: "/data"}
	if err := s.Put(ctx, r); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DatasetRoot != "/data" {
		t.Errorf("DatasetRoot = %q", got.DatasetRoot)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Error("expected error without Dir")
	}
}

func TestRecorderReleasesStoreForReaders(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	rec := NewRecorder(dir)

	if _, err := Open(Options{Dir: dir, ReadOnly: true}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("read-only open before any run: err = %v, want ErrNoStore", err)
	}

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 2 {
		if err := rec.Put(ctx, &Run{StartedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Recorder.Put %d: %v", i, err)
		}
	}

	// readers share the directory lock
	r1, err := Open(Options{Dir: dir, ReadOnly: true})
	if err != nil {
		t.Fatalf("first reader: %v", err)
	}
	defer r1.Close()
	r2, err := Open(Options{Dir: dir, ReadOnly: true})
	if err != nil {
		t.Fatalf("second reader: %v", err)
	}
	defer r2.Close()

	for _, s := range []*Store{r1, r2} {
		runs, err := s.List(ctx, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(runs) != 2 {
			t.Errorf("List returned %d runs, want 2", len(runs))
		}
	}

	if err := r1.Put(ctx, &Run{StartedAt: time.Now()}); err == nil {
		t.Error("Put succeeded on a read-only store")
	}
}
