package predictor

import (
	"os"
	"sync"
	"time"
)

type cacheKey struct {
	path    string
	modTime time.Time
	size    int64
}

// artifactCache holds the most recently loaded model. An entry is reused only
// while the file's path, modification time and size are unchanged.
type artifactCache struct {
	mu    sync.Mutex
	key   cacheKey
	model Model
}

func (c *artifactCache) get(path string, info os.FileInfo) (Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model == nil || c.key != keyFor(path, info) {
		return nil, false
	}
	return c.model, true
}

func (c *artifactCache) put(path string, info os.FileInfo, m Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.key = keyFor(path, info)
	c.model = m
}

func (c *artifactCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.key = cacheKey{}
	c.model = nil
}

func keyFor(path string, info os.FileInfo) cacheKey {
	return cacheKey{path: path, modTime: info.ModTime(), size: info.Size()}
}
