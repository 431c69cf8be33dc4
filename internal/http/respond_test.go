package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tripledger/internal/core"
	"tripledger/internal/storage"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not a group member", core.ErrNotGroupMember, http.StatusBadRequest},
		{"not in split", core.ErrNotInSplit, http.StatusBadRequest},
		{"locked split", core.ErrSplitLocked, http.StatusBadRequest},
		{"unauthorized actor", core.ErrUnauthorized, http.StatusForbidden},
		{"missing expense", core.ErrExpenseNotFound, http.StatusNotFound},
		{"stale version", core.ErrVersionConflict, http.StatusConflict},
		{"bad credentials", storage.ErrInvalidCredentials, http.StatusUnauthorized},
		{"expired session", storage.ErrExpiredSession, http.StatusUnauthorized},
		{"unmapped error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)

			respondError(rec, req, tc.err)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
			var body envelope
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Success {
				t.Error("success = true, want false")
			}
		})
	}
}
