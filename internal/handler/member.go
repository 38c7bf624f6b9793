package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/ledger"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
)

// MemberHandler exposes the parent-only balance operations and a member's
// redemption history.
type MemberHandler struct {
	ledger *ledger.Ledger
	hub    Broadcaster
	logger *slog.Logger
}

func NewMemberHandler(l *ledger.Ledger, hub Broadcaster, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{ledger: l, hub: hub, logger: logger}
}

func (h *MemberHandler) changed(a auth.Actor, m *model.Member) {
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("member", "updated", m.ID, m))
}

// AdjustPoints adds the signed delta in "points" to both balances.
func (h *MemberHandler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Points *int `json:"points"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Points == nil {
		badRequest(w, "points is required")
		return
	}
	if !store.PointsInRange(*req.Points) {
		badRequest(w, "points must be between -1000000000 and 1000000000")
		return
	}

	a, _ := auth.FromContext(r.Context())
	m, err := h.ledger.AdjustPoints(r.Context(), a, r.PathValue("id"), *req.Points)
	if err != nil {
		writeError(w, h.logger, "adjust points", err)
		return
	}
	h.changed(a, m)
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) ResetPoints(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	m, err := h.ledger.ResetPoints(r.Context(), a, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "reset points", err)
		return
	}
	h.changed(a, m)
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) SetStreak(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Streak *int `json:"streak"`
	}
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Streak == nil || *req.Streak < 0 {
		badRequest(w, "streak must be a non-negative number")
		return
	}

	a, _ := auth.FromContext(r.Context())
	m, err := h.ledger.SetStreak(r.Context(), a, r.PathValue("id"), *req.Streak)
	if err != nil {
		writeError(w, h.logger, "set streak", err)
		return
	}
	h.changed(a, m)
	writeJSON(w, http.StatusOK, m)
}

// Delete removes a member from the caller's family.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	id := r.PathValue("id")
	if id == auth.MemberID(r.Context()) {
		badRequest(w, "cannot remove yourself")
		return
	}
	if err := h.ledger.RemoveMember(r.Context(), a, id); err != nil {
		writeError(w, h.logger, "remove member", err)
		return
	}
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("member", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *MemberHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	history, err := h.ledger.Redemptions(r.Context(), a, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "list redemptions", err)
		return
	}
	if history == nil {
		history = []model.RewardRedemption{}
	}
	writeJSON(w, http.StatusOK, history)
}
