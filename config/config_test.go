package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultConfigFile)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	// second load reads the file it just wrote
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if strings.Join(again.Labels.Names, ",") != "ok,ng" {
		t.Errorf("labels = %v", again.Labels.Names)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	data := "training:\n  epochs: 3\nlabels:\n  names: [ok, ng, noise]\n  target: ok\n  fallback: ng\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Training.Epochs != 3 {
		t.Errorf("Epochs = %d, want 3", cfg.Training.Epochs)
	}
	if cfg.Training.BatchSize != 16 {
		t.Errorf("BatchSize = %d, want default 16", cfg.Training.BatchSize)
	}
	if len(cfg.Labels.Names) != 3 {
		t.Errorf("labels = %v", cfg.Labels.Names)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"duplicate label", func(c *Config) { c.Labels.Names = []string{"ok", "ok"} }, "twice"},
		{"one label", func(c *Config) { c.Labels.Names = []string{"ok"} }, "at least two"},
		{"target missing", func(c *Config) { c.Labels.Target = "yes" }, "labels.target"},
		{"bad network", func(c *Config) { c.Transport.Network = "tcp" }, "transport.network"},
		{"bad ratio", func(c *Config) { c.Training.ValidationRatio = 1 }, "validation_ratio"},
		{"bad rate", func(c *Config) { c.Audio.SampleRate = 0 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

