// Package assets stores uploaded receipt blobs and hands back stable
// references. Upload failures abort expense creation, so implementations
// must not leave partial files behind on error.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"tripledger/internal/core"
)

// Store is the outbound port for receipt uploads.
type Store interface {
	Put(ctx context.Context, blob []byte, contentType string) (core.Receipt, error)
}

// DiskStore writes receipts to a local directory and serves them by path.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create receipts directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: baseURL}, nil
}

func (s *DiskStore) Put(ctx context.Context, blob []byte, contentType string) (core.Receipt, error) {
	if len(blob) == 0 {
		return core.Receipt{}, fmt.Errorf("empty receipt blob")
	}
	if err := ctx.Err(); err != nil {
		return core.Receipt{}, err
	}

	id := uuid.New().String() + extensionFor(contentType)
	path := filepath.Join(s.dir, id)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return core.Receipt{}, fmt.Errorf("write receipt: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return core.Receipt{}, fmt.Errorf("store receipt: %w", err)
	}

	return core.Receipt{ID: id, URL: s.baseURL + "/" + id}, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

// MemoryStore keeps receipts in memory, for tests.
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailNext makes the next Put fail, to exercise abort paths.
	FailNext bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, blob []byte, _ string) (core.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailNext {
		s.FailNext = false
		return core.Receipt{}, fmt.Errorf("receipt store unavailable")
	}
	if len(blob) == 0 {
		return core.Receipt{}, fmt.Errorf("empty receipt blob")
	}

	id := uuid.New().String()
	s.blobs[id] = append([]byte(nil), blob...)
	return core.Receipt{ID: id, URL: "mem://" + id}, nil
}

// Len reports how many receipts are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
