// Package workspace lays out the service's working directory.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DirName is the working directory name under the user's home.
const DirName = ".sonido-verdict"

// Workspace holds the paths of everything the service reads and writes.
type Workspace struct {
	Root             string
	AudioDir         string // clips named {index}.wav, supplied by the client
	ArtifactPath     string
	HistoryImagePath string
	RunsDir          string
	ConfigPath       string
}

// DefaultRoot returns {home}/.sonido-verdict.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Layout returns the workspace paths under root without touching the disk.
func Layout(root string) *Workspace {
	return &Workspace{
		Root:             root,
		AudioDir:         filepath.Join(root, "audio"),
		ArtifactPath:     filepath.Join(root, "model.h5"),
		HistoryImagePath: filepath.Join(root, "history.png"),
		RunsDir:          filepath.Join(root, "runs"),
		ConfigPath:       filepath.Join(root, "config.yaml"),
	}
}

// New creates the workspace directories under root if needed. Calling it
// again on an existing workspace changes nothing.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	ws := Layout(abs)
	for _, dir := range []string{ws.Root, ws.AudioDir, ws.RunsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	return ws, nil
}

// AudioPath returns {root}/audio/{index}.wav.
func (w *Workspace) AudioPath(index int) string {
	return filepath.Join(w.AudioDir, strconv.Itoa(index)+".wav")
}
