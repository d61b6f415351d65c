// Package cache persists analysis service answers on disk so repeated runs
// over the same document and model are free and deterministic.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ResponseCache stores raw analysis answers keyed by a digest of the model
// and the full prompt. Values are opaque bytes; the service layer decides
// what goes inside.
type ResponseCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600
	// on entries so cached documents stay private on shared machines.
	StrictPerms bool
}

// Key builds a cache key from the model name and the composed prompt.
func Key(model, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *ResponseCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	if err := os.MkdirAll(c.Dir, perm); err != nil {
		return err
	}
	if c.StrictPerms {
		if info, err := os.Stat(c.Dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(c.Dir, 0o700)
		}
	}
	return nil
}

func (c *ResponseCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present. A hit refreshes the entry's mtime so
// age-based eviction sees it as recently used.
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := c.ensureDir(); err != nil {
		return nil, false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes bytes under key, replacing any previous entry.
func (c *ResponseCache) Save(_ context.Context, key string, data []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	return os.WriteFile(c.pathFor(key), data, mode)
}

// ClearDir removes the directory and all contents, then recreates it so a
// valid empty cache location remains.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// EnforceLimits deletes entries older than maxAge and, when maxEntries is
// positive, evicts the least recently used entries beyond that count. Either
// limit can be disabled with a zero value. It returns how many entries were
// removed.
func EnforceLimits(dir string, maxAge time.Duration, maxEntries int) (int, error) {
	type entry struct {
		path string
		mod  time.Time
	}
	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, entry{path: path, mod: info.ModTime()})
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge)
		kept := entries[:0]
		for _, e := range entries {
			if e.mod.Before(cutoff) {
				_ = os.Remove(e.path)
				removed++
				continue
			}
			kept = append(kept, e)
		}
		entries = kept
	}
	if maxEntries > 0 && len(entries) > maxEntries {
		sort.Slice(entries, func(i, j int) bool { return entries[i].mod.After(entries[j].mod) })
		for _, e := range entries[maxEntries:] {
			_ = os.Remove(e.path)
			removed++
		}
	}
	return removed, nil
}
