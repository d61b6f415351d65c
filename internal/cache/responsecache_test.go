package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResponseCacheSaveGet(t *testing.T) {
	c := &ResponseCache{Dir: t.TempDir()}
	key := Key("model", "system\n\nuser prompt")
	data := []byte(`{"rawText":"{}"}`)
	if err := c.Save(context.Background(), key, data); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := c.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("get: %v ok=%v", err, ok)
	}
	if string(got) != string(data) {
		t.Fatalf("cached bytes changed")
	}
	if _, ok, _ := c.Get(context.Background(), Key("model", "other prompt")); ok {
		t.Fatalf("unexpected hit for different prompt")
	}
}

func TestKeyDependsOnModelAndPrompt(t *testing.T) {
	if Key("a", "p") == Key("b", "p") {
		t.Fatalf("key ignores model")
	}
	if Key("a", "p1") == Key("a", "p2") {
		t.Fatalf("key ignores prompt")
	}
	if Key("a", "p") != Key("a", "p") {
		t.Fatalf("key not deterministic")
	}
}

func TestStrictPerms(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "analysis")
	c := &ResponseCache{Dir: dir, StrictPerms: true}
	key := Key("model", "prompt")
	if err := c.Save(context.Background(), key, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	finfo, err := os.Stat(filepath.Join(dir, key+".json"))
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if got := finfo.Mode() & 0o777; got != 0o600 {
		t.Fatalf("file mode = %o, want 0600", got)
	}
}

func TestEnforceLimitsByAge(t *testing.T) {
	dir := t.TempDir()
	c := &ResponseCache{Dir: dir}
	old := Key("m", "old")
	fresh := Key("m", "fresh")
	for _, k := range []string{old, fresh} {
		if err := c.Save(context.Background(), k, []byte("x")); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(filepath.Join(dir, old+".json"), stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := EnforceLimits(dir, 24*time.Hour, 0)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok, _ := c.Get(context.Background(), old); ok {
		t.Fatalf("stale entry survived")
	}
	if _, ok, _ := c.Get(context.Background(), fresh); !ok {
		t.Fatalf("fresh entry evicted")
	}
}

func TestEnforceLimitsByCount(t *testing.T) {
	dir := t.TempDir()
	c := &ResponseCache{Dir: dir}
	keys := []string{Key("m", "p1"), Key("m", "p2"), Key("m", "p3")}
	base := time.Now().Add(-time.Hour)
	for i, k := range keys {
		if err := c.Save(context.Background(), k, []byte(fmt.Sprintf("%d", i))); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		mod := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(filepath.Join(dir, k+".json"), mod, mod); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
	removed, err := EnforceLimits(dir, 0, 2)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if _, ok, _ := c.Get(context.Background(), keys[0]); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	for _, k := range keys[1:] {
		if _, ok, _ := c.Get(context.Background(), k); !ok {
			t.Fatalf("recent entry evicted: %s", k)
		}
	}
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	c := &ResponseCache{Dir: dir}
	if err := c.Save(context.Background(), Key("m", "p"), []byte("x")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(matches) != 0 {
		t.Fatalf("entries survived clear: %v", matches)
	}
}
