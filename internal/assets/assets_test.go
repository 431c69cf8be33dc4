package assets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/receipts")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}

	receipt, err := store.Put(context.Background(), []byte("fake-image"), "image/png")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if !strings.HasSuffix(receipt.ID, ".png") {
		t.Errorf("id %q should carry the png extension", receipt.ID)
	}
	if !strings.HasPrefix(receipt.URL, "/receipts/") {
		t.Errorf("url %q should be under the base url", receipt.URL)
	}

	data, err := os.ReadFile(filepath.Join(dir, receipt.ID))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	if string(data) != "fake-image" {
		t.Fatalf("stored blob mismatch: %q", data)
	}

	// No temp files may remain.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestDiskStoreRejectsEmptyBlob(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "/receipts")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	if _, err := store.Put(context.Background(), nil, "image/png"); err == nil {
		t.Fatalf("expected error for empty blob")
	}
}

func TestMemoryStoreFailNext(t *testing.T) {
	store := NewMemoryStore()
	store.FailNext = true

	if _, err := store.Put(context.Background(), []byte("x"), ""); err == nil {
		t.Fatalf("expected injected failure")
	}
	if _, err := store.Put(context.Background(), []byte("x"), ""); err != nil {
		t.Fatalf("second put should succeed: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("len = %d, want 1", store.Len())
	}
}
