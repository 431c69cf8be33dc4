package http

import (
	"net/http"
	"strings"

	"tripledger/internal/core"
	"tripledger/internal/services"
)

type createExpenseRequest struct {
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	Amount       string   `json:"amount"`
	Participants []string `json:"participants"`
}

type updateExpenseRequest struct {
	Description  *string   `json:"description"`
	Category     *string   `json:"category"`
	Amount       *string   `json:"amount"`
	Participants *[]string `json:"participants"`
}

type noteRequest struct {
	Note string `json:"note"`
}

// handleCreateExpense accepts either a JSON body or, when a receipt image is
// attached, a multipart form with the same field names.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	in := services.CreateExpenseInput{GroupID: groupID, PaidBy: actor}

	var req createExpenseRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxReceiptBytes); err != nil {
			respondJSON(w, http.StatusBadRequest, "invalid multipart form", nil)
			return
		}
		req.Description = r.FormValue("description")
		req.Category = r.FormValue("category")
		req.Amount = r.FormValue("amount")
		req.Participants = r.Form["participants"]

		blob, contentType, err := readReceipt(r)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		if blob != nil {
			in.Receipt = &services.ReceiptUpload{Blob: blob, ContentType: contentType}
		}
	} else {
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, r, core.ErrInvalidAmount)
		return
	}
	participants, err := parseUUIDList(req.Participants)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	in.Description = strings.TrimSpace(req.Description)
	in.Category = strings.TrimSpace(req.Category)
	in.Amount = amount
	in.Participants = participants

	e, err := s.expenses.CreateExpense(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "expense created", e)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	onlyUnsettled := r.URL.Query().Get("unsettled") == "true"
	views, err := s.expenses.FetchExpenses(r.Context(), actor, groupID, onlyUnsettled)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", views)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	id, err := pathUUID(r, "expenseID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	view, err := s.expenses.FetchExpense(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", view)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	id, err := pathUUID(r, "expenseID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var req updateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	in := services.UpdateExpenseInput{
		Description: req.Description,
		Category:    req.Category,
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			respondError(w, r, core.ErrInvalidAmount)
			return
		}
		in.Amount = &amount
	}
	if req.Participants != nil {
		participants, err := parseUUIDList(*req.Participants)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		in.Participants = &participants
	}

	e, err := s.expenses.UpdateExpense(r.Context(), actor, id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "expense updated", e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	id, err := pathUUID(r, "expenseID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := s.expenses.DeleteExpense(r.Context(), actor, id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "expense deleted", nil)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	summary, err := s.expenses.Summary(r.Context(), actor, groupID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "ok", summary)
}

func (s *Server) handleRequestSettlement(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	id, err := pathUUID(r, "expenseID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := s.expenses.RequestSettlement(r.Context(), actor, id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	message := "settlement requested"
	if len(result.Failed) > 0 {
		message = "settlement requested with partial failures"
	}
	respondJSON(w, http.StatusOK, message, result)
}

func (s *Server) handleSettleExpense(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.expenses.SettleExpense, "share settled")
}

func (s *Server) handleDisputeExpense(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.expenses.DisputeExpense, "share disputed")
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, apply transitionFunc, message string) {
	actor, _ := userID(r.Context())

	id, err := pathUUID(r, "expenseID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var req noteRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	e, err := apply(r.Context(), actor, id, req.Note)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, message, e)
}
