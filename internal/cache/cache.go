// Package cache stores downloaded images on disk with a bbolt index so
// cached bytes survive restarts without re-downloading.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/driveshow/driveshow/internal/domain"
)

var bucketImages = []byte("images")

// entry is the persisted index record for one cached image.
type entry struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FileName   string    `json:"file_name"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag"`
	LastAccess time.Time `json:"last_access"`
}

// Cache is a size-budgeted disk cache of downloaded images.
type Cache struct {
	dir     string
	maxSize int64
	db      *bolt.DB
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	size    int64
}

// Open creates dir if needed, opens the index, and reconciles it against
// the files actually on disk. Orphaned files and leftover temp files from
// an interrupted run are removed.
func Open(dir string, maxSize int64, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketImages)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	c := &Cache{
		dir:     dir,
		maxSize: maxSize,
		db:      db,
		logger:  logger,
		entries: make(map[string]*entry),
	}
	if err := c.loadIndex(); err != nil {
		db.Close()
		return nil, err
	}
	c.reconcile()
	return c, nil
}

// Close closes the index database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// loadIndex reads all index records into memory.
func (c *Cache) loadIndex() error {
	return c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil {
				return nil // skip corrupt record
			}
			c.entries[e.ID] = &e
			c.size += e.Size
			return nil
		})
	})
}

// reconcile drops index records whose file vanished and deletes files the
// index does not know about, including temp files from interrupted
// downloads.
func (c *Cache) reconcile() {
	known := make(map[string]bool, len(c.entries))
	for id, e := range c.entries {
		if _, err := os.Stat(filepath.Join(c.dir, e.FileName)); err != nil {
			c.size -= e.Size
			delete(c.entries, id)
			c.deleteRecord(id)
			continue
		}
		known[e.FileName] = true
	}

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || name == "index.db" || known[name] {
			continue
		}
		os.Remove(filepath.Join(c.dir, name))
		c.logger.Debug("removed orphaned cache file", "file", name)
	}
}

// Has reports whether id is cached with the given etag, i.e. the cached
// copy is current.
func (c *Cache) Has(id, etag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return ok && e.ETag == etag
}

// Get returns the cached image for id and bumps its access time.
func (c *Cache) Get(id string) (domain.CachedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return domain.CachedImage{}, false
	}
	e.LastAccess = time.Now()
	c.putRecord(e)
	return c.toImage(e), true
}

// Put streams content from fill into the cache under id. The file is
// written to a temp path and renamed into place, so readers never see a
// partial download and an aborted run leaves nothing referenced.
func (c *Cache) Put(id, name, etag string, fill func(io.Writer) error) (domain.CachedImage, error) {
	fileName := cacheFileName(id, name)
	localPath := filepath.Join(c.dir, fileName)
	tempPath := localPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return domain.CachedImage{}, fmt.Errorf("create temp file: %w", err)
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return domain.CachedImage{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return domain.CachedImage{}, err
	}
	written := info.Size()
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return domain.CachedImage{}, err
	}
	if err := os.Rename(tempPath, localPath); err != nil {
		os.Remove(tempPath)
		return domain.CachedImage{}, fmt.Errorf("rename temp file: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[id]; ok {
		if old.FileName != fileName {
			os.Remove(filepath.Join(c.dir, old.FileName))
		}
		c.size -= old.Size
	}
	e := &entry{
		ID:         id,
		Name:       name,
		FileName:   fileName,
		Size:       written,
		ETag:       etag,
		LastAccess: time.Now(),
	}
	c.entries[id] = e
	c.size += written
	c.putRecord(e)
	c.evictLocked(id)

	return c.toImage(e), nil
}

// Prune removes every cached image whose ID is not in keep and returns
// how many were dropped.
func (c *Cache) Prune(keep map[string]bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id := range c.entries {
		if !keep[id] {
			c.removeLocked(id)
			removed++
		}
	}
	return removed
}

// Images returns all cached images, ordered by file name for stable
// rotation seeding.
func (c *Cache) Images() []domain.CachedImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	images := make([]domain.CachedImage, 0, len(c.entries))
	for _, e := range c.entries {
		images = append(images, c.toImage(e))
	}
	sort.Slice(images, func(i, j int) bool { return images[i].LocalPath < images[j].LocalPath })
	return images
}

// Size returns the total bytes currently cached.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *Cache) removeLocked(id string) {
	e, ok := c.entries[id]
	if !ok {
		return
	}
	os.Remove(filepath.Join(c.dir, e.FileName))
	c.size -= e.Size
	delete(c.entries, id)
	c.deleteRecord(id)
}

// evictLocked drops least-recently-accessed entries until the cache fits
// its budget. keepID is the entry just written and is never evicted.
func (c *Cache) evictLocked(keepID string) {
	for c.maxSize > 0 && c.size > c.maxSize {
		var oldest *entry
		for id, e := range c.entries {
			if id == keepID {
				continue
			}
			if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
				oldest = e
			}
		}
		if oldest == nil {
			return
		}
		c.logger.Info("evicting cached image for space", "file", oldest.FileName, "size", oldest.Size)
		c.removeLocked(oldest.ID)
	}
}

func (c *Cache) toImage(e *entry) domain.CachedImage {
	return domain.CachedImage{
		ID:         e.ID,
		Name:       e.Name,
		LocalPath:  filepath.Join(c.dir, e.FileName),
		Size:       e.Size,
		ETag:       e.ETag,
		LastAccess: e.LastAccess,
	}
}

func (c *Cache) putRecord(e *entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Put([]byte(e.ID), data)
	}); err != nil {
		c.logger.Error("failed to write cache index", "id", e.ID, "error", err)
	}
}

func (c *Cache) deleteRecord(id string) {
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(id))
	}); err != nil {
		c.logger.Error("failed to delete cache index record", "id", id, "error", err)
	}
}

// cacheFileName derives a filesystem-safe name from the item ID, keeping
// the original extension so image decoders can sniff the format.
func cacheFileName(id, name string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8]) + strings.ToLower(filepath.Ext(name))
}
