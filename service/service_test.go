package service

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/RyanBlaney/sonido-verdict/config"
	"github.com/RyanBlaney/sonido-verdict/logging"
	"github.com/RyanBlaney/sonido-verdict/protocol"
	"github.com/RyanBlaney/sonido-verdict/trainer"
	"github.com/RyanBlaney/sonido-verdict/transcode"
	"github.com/RyanBlaney/sonido-verdict/transport"
	"github.com/RyanBlaney/sonido-verdict/workspace"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

type stubPredictor struct {
	answer bool
	err    error
	calls  []int
	state  func() State
	seen   []State
}

func (p *stubPredictor) Predict(_ context.Context, idx int, _, _ string) (bool, error) {
	p.calls = append(p.calls, idx)
	if p.state != nil {
		p.seen = append(p.seen, p.state())
	}
	return p.answer, p.err
}

type stubTrainer struct {
	result *trainer.Result
	err    error
	panics bool
}

func (t *stubTrainer) Train(context.Context, string, int, int) (*trainer.Result, error) {
	if t.panics {
		panic("index out of range")
	}
	return t.result, t.err
}

func newTestWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return ws
}

func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "svc")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestHandle(t *testing.T) {
	ws := newTestWorkspace(t)
	pr := &stubPredictor{answer: true}
	tr := &stubTrainer{result: &trainer.Result{Accuracy: 0.75, Loss: 0.5}}
	svc := New(ws, transport.Config{}, tr, pr, "ok")
	ctx := context.Background()

	tests := []struct {
		msg  string
		want string
	}{
		{"init@", "response:" + ws.Root},
		{"predict@3@/tmp/model.h5", "response:True"},
		{"train@/data@1@8", "response:0.75:0.5"},
		{"foo@bar", "response:error:unknown command: \"foo\""},
		{"predict@3", "response:error:wrong number of arguments: predict takes 2, got 1"},
	}
	for _, tt := range tests {
		if got := svc.Handle(ctx, tt.msg); got != tt.want {
			t.Errorf("Handle(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}

	if len(pr.calls) != 1 || pr.calls[0] != 3 {
		t.Errorf("predictor calls = %v", pr.calls)
	}
}

func TestHandleFailuresBecomeErrorResponses(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	svc := New(ws, transport.Config{}, &stubTrainer{panics: true}, &stubPredictor{err: errors.New("artifact missing")}, "ok")

	if got := svc.Handle(ctx, "train@/data@1@8"); !strings.HasPrefix(got, "response:error:internal error") {
		t.Errorf("panic response = %q", got)
	}
	if got := svc.Handle(ctx, "predict@0@/nope"); got != "response:error:artifact missing" {
		t.Errorf("predict failure response = %q", got)
	}
}

func TestServe(t *testing.T) {
	ws := newTestWorkspace(t)
	tcfg := transport.Config{Network: "unixpacket", Endpoint: socketPath(t), MaxMessage: 64 * 1024}
	pr := &stubPredictor{answer: false}
	svc := New(ws, tcfg, &stubTrainer{}, pr, "ok")
	pr.state = svc.State
	if st := svc.State(); st != StateIdle {
		t.Errorf("State before Serve = %v, want %v", st, StateIdle)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- svc.Serve(ctx) }()

	client := transport.NewClient(tcfg)
	reqCtx, reqCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer reqCancel()

	for _, tt := range []struct{ msg, want string }{
		{"init@", "response:" + ws.Root},
		{"predict@1@/m", "response:False"},
		{"bogus", "response:error:unknown command: \"bogus\""},
		{"init@", "response:" + ws.Root},
	} {
		got, err := client.Do(reqCtx, tt.msg)
		if err != nil {
			t.Fatalf("Do(%q): %v", tt.msg, err)
		}
		if got != tt.want {
			t.Errorf("Do(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}

	cancel()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}

	if len(pr.seen) != 1 || pr.seen[0] != StateRouting {
		t.Errorf("State while routing = %v, want [%v]", pr.seen, StateRouting)
	}
	if st := svc.State(); st != StateIdle {
		t.Errorf("State after Serve = %v, want %v", st, StateIdle)
	}

	if _, err := os.Stat(tcfg.Endpoint); !os.IsNotExist(err) {
		t.Errorf("endpoint left behind: %v", err)
	}
}

func TestServeEndpointFailureIsFatal(t *testing.T) {
	ws := newTestWorkspace(t)
	tcfg := transport.Config{Endpoint: filepath.Join(t.TempDir(), "missing-dir", "s.sock")}
	svc := New(ws, tcfg, &stubTrainer{}, &stubPredictor{}, "ok")

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("Serve succeeded without an endpoint")
	}
}

func writeTone(t *testing.T, path string, freq, noise float64) {
	t.Helper()
	const rate = 16000
	samples := make([]float64, rate/2)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate)
		if noise > 0 && i%3 == 0 {
			samples[i] += noise
		}
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

func TestTrainAndPredictEndToEnd(t *testing.T) {
	ws := newTestWorkspace(t)
	cfg := config.Default()

	data := t.TempDir()
	for li, label := range cfg.Labels.Names {
		dir := filepath.Join(data, label)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		for i := range 4 {
			freq := 300 + float64(i)*50
			noise := 0.0
			if li == 1 {
				freq = 3000 + float64(i)*200
				noise = 0.3
			}
			writeTone(t, filepath.Join(dir, strconv.Itoa(i)+".wav"), freq, noise)
		}
	}
	writeTone(t, ws.AudioPath(0), 350, 0)

	comps, err := NewComponents(cfg, ws, nil)
	if err != nil {
		t.Fatal(err)
	}
	svc := comps.Service()
	ctx := context.Background()

	resp := svc.Handle(ctx, "train@"+data+"@1@8")
	payload, err := protocol.ParseResponse(resp)
	if err != nil {
		t.Fatalf("train response %q: %v", resp, err)
	}
	acc, loss, err := protocol.ParseTrainResult(payload)
	if err != nil {
		t.Fatalf("train payload %q: %v", payload, err)
	}
	if acc < 0 || acc > 1 || math.IsNaN(loss) {
		t.Errorf("accuracy = %v, loss = %v", acc, loss)
	}
	if _, err := os.Stat(ws.ArtifactPath); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}

	resp = svc.Handle(ctx, "predict@0@"+ws.ArtifactPath)
	if resp != "response:True" && resp != "response:False" {
		t.Errorf("predict response = %q", resp)
	}

	resp = svc.Handle(ctx, "predict@9@"+ws.ArtifactPath)
	if !strings.HasPrefix(resp, "response:error:") {
		t.Errorf("missing clip response = %q", resp)
	}

	resp = svc.Handle(ctx, "train@"+filepath.Join(data, "nothing")+"@1@8")
	if !strings.HasPrefix(resp, "response:error:") {
		t.Errorf("bad dataset response = %q", resp)
	}
}
