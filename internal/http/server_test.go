package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"tripledger/internal/assets"
	"tripledger/internal/cache"
	"tripledger/internal/core"
	applog "tripledger/internal/log"
	"tripledger/internal/services"
	"tripledger/internal/storage"
)

type apiClient struct {
	t    *testing.T
	base string
	http *http.Client
}

type apiResponse struct {
	Status  int
	Success bool
	Message string
	Data    json.RawMessage
}

func newAPIClient(t *testing.T, base string) *apiClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &apiClient{t: t, base: base, http: &http.Client{Jar: jar}}
}

func (c *apiClient) do(method, path string, body any) apiResponse {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.t.Fatalf("%s %s: decode envelope: %v", method, path, err)
	}
	return apiResponse{Status: resp.StatusCode, Success: env.Success, Message: env.Message, Data: env.Data}
}

func (c *apiClient) mustDo(method, path string, body any, wantStatus int) apiResponse {
	c.t.Helper()
	resp := c.do(method, path, body)
	if resp.Status != wantStatus {
		c.t.Fatalf("%s %s = %d (%s), want %d", method, path, resp.Status, resp.Message, wantStatus)
	}
	return resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, resp.Data)
	}
	return out
}

func startTestServer(t *testing.T) string {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := services.NewExpenseService(
		repo, repo,
		assets.NewMemoryStore(),
		nil, // no broker in tests, publish is skipped
		cache.NewLRUCache[core.BalanceSummary](16, time.Minute),
	)

	srv := NewServer(":0", svc, repo, time.Hour, applog.New(applog.DefaultConfig()))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.rateLimiter.stop() })

	return ts.URL
}

func register(t *testing.T, c *apiClient, name, email string) core.User {
	t.Helper()
	resp := c.mustDo("POST", "/api/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": "correct-horse",
	}, http.StatusCreated)
	return decodeData[core.User](t, resp)
}

func TestAPIFlow(t *testing.T) {
	base := startTestServer(t)

	paula := newAPIClient(t, base)
	bob := newAPIClient(t, base)

	paulaUser := register(t, paula, "Paula", "paula@example.com")
	bobUser := register(t, bob, "Bob", "bob@example.com")

	t.Run("unauthenticated requests are rejected", func(t *testing.T) {
		anon := newAPIClient(t, base)
		anon.mustDo("POST", "/api/groups", map[string]string{"name": "x"}, http.StatusUnauthorized)
	})

	t.Run("duplicate email", func(t *testing.T) {
		c := newAPIClient(t, base)
		c.mustDo("POST", "/api/auth/register", map[string]string{
			"name": "Paula2", "email": "paula@example.com", "password": "pw",
		}, http.StatusBadRequest)
	})

	// Paula creates the group and invites Bob.
	resp := paula.mustDo("POST", "/api/groups", map[string]string{
		"name": "Lisbon trip", "destination": "Lisbon", "currency": "EUR",
	}, http.StatusCreated)
	group := decodeData[core.Group](t, resp)

	paula.mustDo("POST", fmt.Sprintf("/api/groups/%s/members", group.ID), map[string]any{
		"user_id": bobUser.ID,
	}, http.StatusOK)

	t.Run("non-admin cannot add members", func(t *testing.T) {
		bob.mustDo("POST", fmt.Sprintf("/api/groups/%s/members", group.ID), map[string]any{
			"user_id": uuid.New(),
		}, http.StatusForbidden)
	})

	// Paula pays 90.00 split with Bob: 45.00 each.
	resp = paula.mustDo("POST", fmt.Sprintf("/api/groups/%s/expenses", group.ID), map[string]any{
		"description":  "Dinner at Ramiro",
		"category":     "food",
		"amount":       "90.00",
		"participants": []string{bobUser.ID.String()},
	}, http.StatusCreated)
	expense := decodeData[core.Expense](t, resp)

	if expense.Amount.Cents != 9000 {
		t.Errorf("amount = %d, want 9000", expense.Amount.Cents)
	}
	if len(expense.Splits) != 1 || expense.Splits[0].Amount.Cents != 4500 {
		t.Fatalf("splits = %+v, want one 4500 share", expense.Splits)
	}

	t.Run("group total tracks the entry", func(t *testing.T) {
		resp := paula.mustDo("GET", fmt.Sprintf("/api/groups/%s", group.ID), nil, http.StatusOK)
		g := decodeData[core.Group](t, resp)
		if g.TotalExpenses.Cents != 9000 {
			t.Errorf("TotalExpenses = %d, want 9000", g.TotalExpenses.Cents)
		}
	})

	t.Run("member list includes resolved names", func(t *testing.T) {
		resp := bob.mustDo("GET", fmt.Sprintf("/api/groups/%s/expenses", group.ID), nil, http.StatusOK)
		views := decodeData[[]services.ExpenseView](t, resp)
		if len(views) != 1 {
			t.Fatalf("expected 1 expense, got %d", len(views))
		}
		if views[0].Payer.ID != paulaUser.ID || views[0].Payer.Name != "Paula" {
			t.Errorf("payer = %+v, want Paula", views[0].Payer)
		}
	})

	t.Run("outsider cannot read the ledger", func(t *testing.T) {
		outsider := newAPIClient(t, base)
		register(t, outsider, "Eve", "eve@example.com")
		outsider.mustDo("GET", fmt.Sprintf("/api/groups/%s/expenses", group.ID), nil, http.StatusBadRequest)
		outsider.mustDo("GET", fmt.Sprintf("/api/expenses/%s", expense.ID), nil, http.StatusBadRequest)
	})

	t.Run("summary", func(t *testing.T) {
		resp := bob.mustDo("GET", fmt.Sprintf("/api/groups/%s/summary", group.ID), nil, http.StatusOK)
		summary := decodeData[core.BalanceSummary](t, resp)
		if summary.TotalOwed.Cents != 4500 {
			t.Errorf("TotalOwed = %d, want 4500", summary.TotalOwed.Cents)
		}
		if summary.NetBalance.Cents != -4500 {
			t.Errorf("NetBalance = %d, want -4500", summary.NetBalance.Cents)
		}
	})

	t.Run("settlement request by non-payer", func(t *testing.T) {
		bob.mustDo("POST", fmt.Sprintf("/api/expenses/%s/request-settlement", expense.ID), nil, http.StatusForbidden)
	})

	resp = paula.mustDo("POST", fmt.Sprintf("/api/expenses/%s/request-settlement", expense.ID), nil, http.StatusOK)
	result := decodeData[services.SettlementRequestResult](t, resp)
	if len(result.Requested) != 1 || result.Requested[0] != bobUser.ID {
		t.Errorf("settlement result = %+v, want Bob requested", result)
	}

	// Bob settles; the only debtor paid means the entry is settled.
	resp = bob.mustDo("POST", fmt.Sprintf("/api/expenses/%s/settle", expense.ID), map[string]string{
		"note": "paid via MB Way",
	}, http.StatusOK)
	settled := decodeData[core.Expense](t, resp)
	if settled.Status != core.StatusSettled {
		t.Errorf("status = %s, want settled", settled.Status)
	}
	if len(settled.Notes) != 1 {
		t.Errorf("notes = %v, want the settle note", settled.Notes)
	}

	t.Run("no outstanding debtors after settle", func(t *testing.T) {
		paula.mustDo("POST", fmt.Sprintf("/api/expenses/%s/request-settlement", expense.ID), nil, http.StatusBadRequest)
	})

	t.Run("amount edit refused once settled", func(t *testing.T) {
		paula.mustDo("PATCH", fmt.Sprintf("/api/expenses/%s", expense.ID), map[string]string{
			"amount": "120.00",
		}, http.StatusBadRequest)
	})

	t.Run("dispute flow", func(t *testing.T) {
		resp := paula.mustDo("POST", fmt.Sprintf("/api/groups/%s/expenses", group.ID), map[string]any{
			"description":  "Tuk-tuk tour",
			"category":     "activities",
			"amount":       "30.00",
			"participants": []string{bobUser.ID.String()},
		}, http.StatusCreated)
		second := decodeData[core.Expense](t, resp)

		resp = bob.mustDo("POST", fmt.Sprintf("/api/expenses/%s/dispute", second.ID), map[string]string{
			"note": "never took the tour",
		}, http.StatusOK)
		disputed := decodeData[core.Expense](t, resp)
		if disputed.Status != core.StatusDisputed {
			t.Errorf("status = %s, want disputed", disputed.Status)
		}

		// Disputed share still blocks amount edits.
		paula.mustDo("PATCH", fmt.Sprintf("/api/expenses/%s", second.ID), map[string]string{
			"amount": "45.00",
		}, http.StatusBadRequest)

		// Deleting reverses the total.
		paula.mustDo("DELETE", fmt.Sprintf("/api/expenses/%s", second.ID), nil, http.StatusOK)
		groupResp := paula.mustDo("GET", fmt.Sprintf("/api/groups/%s", group.ID), nil, http.StatusOK)
		g := decodeData[core.Group](t, groupResp)
		if g.TotalExpenses.Cents != 9000 {
			t.Errorf("TotalExpenses after delete = %d, want 9000", g.TotalExpenses.Cents)
		}
	})

	t.Run("description edit updates in place", func(t *testing.T) {
		resp := paula.mustDo("PATCH", fmt.Sprintf("/api/expenses/%s", expense.ID), map[string]string{
			"description": "Dinner at Cervejaria Ramiro",
		}, http.StatusOK)
		updated := decodeData[core.Expense](t, resp)
		if updated.Description != "Dinner at Cervejaria Ramiro" {
			t.Errorf("description = %q", updated.Description)
		}
	})

	t.Run("logout invalidates the session", func(t *testing.T) {
		bob.mustDo("POST", "/api/auth/logout", nil, http.StatusOK)
		bob.mustDo("GET", "/api/auth/me", nil, http.StatusUnauthorized)
	})

	t.Run("login restores access", func(t *testing.T) {
		bob.mustDo("POST", "/api/auth/login", map[string]string{
			"email": "bob@example.com", "password": "correct-horse",
		}, http.StatusOK)
		resp := bob.mustDo("GET", "/api/auth/me", nil, http.StatusOK)
		me := decodeData[core.User](t, resp)
		if me.ID != bobUser.ID {
			t.Errorf("me = %s, want %s", me.ID, bobUser.ID)
		}
	})
}

func TestHealth(t *testing.T) {
	base := startTestServer(t)
	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health = %d, want 200", resp.StatusCode)
	}
}
