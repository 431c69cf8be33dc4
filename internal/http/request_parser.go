package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tripledger/internal/core"
)

const maxBodyBytes = 1 << 20 // 1 MiB
const maxReceiptBytes = 8 << 20

// decodeJSON reads a size-limited JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathUUID parses a UUID URL parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return id, nil
}

// parseAmount converts a decimal string ("12.34" or "12,34") to Money.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(s))
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// parseUUIDList parses a slice of UUID strings, rejecting malformed entries.
func parseUUIDList(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid participant id: %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}

// readReceipt extracts an optional uploaded receipt from a multipart form.
func readReceipt(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile("receipt")
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read receipt: %w", err)
	}
	defer file.Close()

	blob, err := io.ReadAll(io.LimitReader(file, maxReceiptBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read receipt: %w", err)
	}
	if len(blob) > maxReceiptBytes {
		return nil, "", fmt.Errorf("receipt exceeds %d bytes", maxReceiptBytes)
	}
	return blob, header.Header.Get("Content-Type"), nil
}
