package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Cache stores GET response bodies keyed by URL and token, revalidated with
// ETags. Entries are best-effort: any read failure is treated as a miss.
type Cache struct {
	mu  sync.Mutex
	dir string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Key derives the cache key for a request. The token participates so two
// accounts never share cached bodies.
func (c *Cache) Key(url, language, token string) string {
	sum := sha256.Sum256([]byte(url + "\x00" + language + "\x00" + token))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) etagsPath() string { return filepath.Join(c.dir, "etags.json") }

func (c *Cache) responsesDir() string { return filepath.Join(c.dir, "responses") }

func (c *Cache) bodyPath(k string) string { return filepath.Join(c.responsesDir(), k+".body") }

func (c *Cache) loadETags() map[string]string {
	etags := map[string]string{}
	data, err := os.ReadFile(c.etagsPath())
	if err != nil {
		return etags
	}
	_ = json.Unmarshal(data, &etags)
	return etags
}

func (c *Cache) saveETags(etags map[string]string) error {
	data, err := json.Marshal(etags)
	if err != nil {
		return err
	}
	return os.WriteFile(c.etagsPath(), data, 0o600)
}

// GetETag returns the stored ETag for key, or "".
func (c *Cache) GetETag(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadETags()[key]
}

// GetBody returns the stored body for key, or nil.
func (c *Cache) GetBody(key string) []byte {
	data, err := os.ReadFile(c.bodyPath(key))
	if err != nil {
		return nil
	}
	return data
}

// Set stores body under key with its ETag.
func (c *Cache) Set(key string, body []byte, etag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.responsesDir(), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(c.bodyPath(key), body, 0o600); err != nil {
		return err
	}
	etags := c.loadETags()
	etags[key] = etag
	return c.saveETags(etags)
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	etags := c.loadETags()
	if _, ok := etags[key]; ok {
		delete(etags, key)
		if err := c.saveETags(etags); err != nil {
			return err
		}
	}
	if err := os.Remove(c.bodyPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.responsesDir()); err != nil {
		return err
	}
	if err := os.Remove(c.etagsPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
