package geocode

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Point is a resolved coordinate pair. It is stored in the cache file as a
// two-element array [lat, lon].
type Point [2]float64

// Lat returns the latitude.
func (p Point) Lat() float64 { return p[0] }

// Lon returns the longitude.
func (p Point) Lon() float64 { return p[1] }

// Cache is an append-only key → Point map persisted as a JSON object. It is
// safe for concurrent use.
type Cache struct {
	path string

	mu      sync.RWMutex
	entries map[string]Point
	dirty   bool
}

// NewCache creates an empty cache bound to path. Call Load to read it.
func NewCache(path string) *Cache {
	return &Cache{path: path, entries: make(map[string]Point)}
}

// Load reads the persisted cache. A missing or unreadable file leaves the
// cache empty; Load never fails the run. Entries already in memory win over
// entries read from disk.
func (c *Cache) Load() int {
	log := zap.L().With(zap.String("component", "geocode.cache"), zap.String("path", c.path))

	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("geocode cache unreadable, starting fresh", zap.Error(err))
		} else {
			log.Info("no geocode cache found, starting fresh")
		}
		return c.Len()
	}

	var disk map[string]Point
	if err := json.Unmarshal(data, &disk); err != nil {
		log.Warn("geocode cache corrupt, starting fresh", zap.Error(err))
		return c.Len()
	}

	c.mu.Lock()
	for k, v := range disk {
		if _, ok := c.entries[k]; !ok {
			c.entries[k] = v
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	log.Info("geocode cache loaded", zap.Int("entries", n))
	return n
}

// Get returns the cached point for key.
func (c *Cache) Get(key string) (Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.entries[key]
	return p, ok
}

// Put stores p under key and marks the cache dirty.
func (c *Cache) Put(key string, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = p
	c.dirty = true
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Save writes the cache to disk if it changed since the last save. The file
// is replaced atomically.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "geocode: marshal cache")
	}
	if err := writeFileAtomic(c.path, append(data, '\n')); err != nil {
		return eris.Wrapf(err, "geocode: save cache %s", c.path)
	}
	c.dirty = false

	zap.L().Info("geocode cache saved",
		zap.String("path", c.path),
		zap.Int("entries", len(c.entries)),
	)
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
