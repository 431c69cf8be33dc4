package http

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tripledger/internal/core"
)

type createGroupRequest struct {
	Name        string `json:"name"`
	Destination string `json:"destination"`
	Currency    string `json:"currency"`
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondJSON(w, http.StatusBadRequest, "group name is required", nil)
		return
	}
	if req.Currency == "" {
		req.Currency = "EUR"
	}

	group, err := s.accounts.CreateGroup(r.Context(), req.Name, req.Destination, req.Currency, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, "group created", group)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	group, err := s.accounts.FindGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !group.IsMember(actor) {
		respondError(w, r, core.ErrNotGroupMember)
		return
	}
	respondJSON(w, http.StatusOK, "ok", group)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	actor, _ := userID(r.Context())

	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	group, err := s.accounts.FindGroup(r.Context(), groupID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !group.IsAdmin(actor) {
		respondError(w, r, core.ErrUnauthorized)
		return
	}

	role := core.RoleMember
	if req.Role == string(core.RoleAdmin) {
		role = core.RoleAdmin
	}

	if _, err := s.accounts.FindUser(r.Context(), req.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.accounts.AddMember(r.Context(), groupID, req.UserID, role); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, "member added", nil)
}
