package storage

import (
	"os"
	"testing"

	"github.com/mctschess/engine/internal/evalcache"
)

func newTestStore(t *testing.T) *CacheStore {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "mctschess-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	t.Setenv("XDG_DATA_HOME", tmpDir)

	store, err := NewCacheStore()
	if err != nil {
		t.Fatalf("NewCacheStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCacheStorePutGet(t *testing.T) {
	store := newTestStore(t)

	entry := evalcache.Entry{Value: 0.25}
	entry.Policy[17] = 0.5

	if err := store.Put(42, entry); err != nil {
		t.Fatal(err)
	}

	got, ok, err := store.Get(42)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if got.Value != entry.Value {
		t.Fatalf("Value = %v, want %v", got.Value, entry.Value)
	}
	if got.Policy[17] != entry.Policy[17] {
		t.Fatalf("Policy[17] = %v, want %v", got.Policy[17], entry.Policy[17])
	}
}

func TestCacheStoreGetMiss(t *testing.T) {
	store := newTestStore(t)

	_, ok, err := store.Get(999)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a miss for an absent key")
	}
}

func TestWarmCache(t *testing.T) {
	store := newTestStore(t)

	for i := uint64(0); i < 5; i++ {
		if err := store.Put(i, evalcache.Entry{Value: float32(i)}); err != nil {
			t.Fatal(err)
		}
	}

	cache := evalcache.New()
	if err := store.WarmCache(cache, 3); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", cache.Len())
	}
}

func TestDataPaths(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mctschess-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	t.Setenv("XDG_DATA_HOME", tmpDir)

	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dataDir)
	}
}
