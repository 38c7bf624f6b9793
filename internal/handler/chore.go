package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/chore"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
)

// ChoreNotifier is told about chores that need or received a parent's review.
type ChoreNotifier interface {
	ChoreCompleted(ctx context.Context, familyID string, c *model.Chore)
	ChoreApproved(ctx context.Context, familyID string, c *model.Chore)
}

type ChoreHandler struct {
	mgr    *chore.Manager
	hub    Broadcaster
	notify ChoreNotifier
	logger *slog.Logger
}

// NewChoreHandler builds a ChoreHandler. notify may be nil.
func NewChoreHandler(mgr *chore.Manager, hub Broadcaster, notify ChoreNotifier, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{mgr: mgr, hub: hub, notify: notify, logger: logger}
}

// background runs fn outside the request's lifetime.
func (h *ChoreHandler) background(r *http.Request, fn func(ctx context.Context)) {
	if h.notify == nil {
		return
	}
	ctx := context.WithoutCancel(r.Context())
	go fn(ctx)
}

func (h *ChoreHandler) changed(a auth.Actor, action string, c *model.Chore) {
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("chore", action, c.ID, c))
}

type choreRequest struct {
	Emoji        string  `json:"emoji"`
	Title        string  `json:"title"`
	Points       int     `json:"points"`
	AssignedToID *string `json:"assignedToId"`
}

type memberRequest struct {
	MemberID string `json:"memberId"`
}

type assignRequest struct {
	AssignedToID string `json:"assignedToId"`
	AssignedByID string `json:"assignedById"`
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req choreRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		badRequest(w, "title is required")
		return
	}
	if req.Points < 0 || req.Points > store.MaxPoints {
		badRequest(w, "points must be between 0 and 1000000000")
		return
	}
	if req.AssignedToID != nil && *req.AssignedToID == "" {
		req.AssignedToID = nil
	}

	a, _ := auth.FromContext(r.Context())
	c, err := h.mgr.Create(r.Context(), a, chore.NewInput{
		Emoji:        strings.TrimSpace(req.Emoji),
		Title:        req.Title,
		Points:       req.Points,
		AssignedToID: req.AssignedToID,
	})
	if err != nil {
		writeError(w, h.logger, "create chore", err)
		return
	}

	h.changed(a, "created", c)
	writeJSON(w, http.StatusCreated, c)
}

func (h *ChoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	c, err := h.mgr.Get(r.Context(), a, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get chore", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Claim takes an available chore. memberId defaults to the caller.
func (h *ChoreHandler) Claim(w http.ResponseWriter, r *http.Request) {
	a, memberID, ok := h.memberBody(w, r)
	if !ok {
		return
	}
	c, err := h.mgr.Claim(r.Context(), a, r.PathValue("id"), memberID)
	if err != nil {
		writeError(w, h.logger, "claim chore", err)
		return
	}
	h.changed(a, "claimed", c)
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	a, memberID, ok := h.memberBody(w, r)
	if !ok {
		return
	}
	c, err := h.mgr.Complete(r.Context(), a, r.PathValue("id"), memberID)
	if err != nil {
		writeError(w, h.logger, "complete chore", err)
		return
	}
	h.changed(a, "completed", c)
	h.background(r, func(ctx context.Context) { h.notify.ChoreCompleted(ctx, a.FamilyID, c) })
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	c, member, err := h.mgr.Approve(r.Context(), a, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "approve chore", err)
		return
	}
	h.changed(a, "approved", c)
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("member", "updated", member.ID, member))
	h.background(r, func(ctx context.Context) { h.notify.ChoreApproved(ctx, a.FamilyID, c) })
	writeJSON(w, http.StatusOK, c)
}

func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	req.AssignedToID = strings.TrimSpace(req.AssignedToID)
	if req.AssignedToID == "" {
		badRequest(w, "assignedToId is required")
		return
	}

	a, _ := auth.FromContext(r.Context())
	c, err := h.mgr.Assign(r.Context(), a, r.PathValue("id"), req.AssignedToID, strings.TrimSpace(req.AssignedByID))
	if err != nil {
		writeError(w, h.logger, "assign chore", err)
		return
	}
	h.changed(a, "assigned", c)
	writeJSON(w, http.StatusOK, c)
}

// Delete removes a chore at any status. Rejecting a completion is a delete.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	id := r.PathValue("id")
	if err := h.mgr.Delete(r.Context(), a, id); err != nil {
		writeError(w, h.logger, "delete chore", err)
		return
	}
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("chore", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ChoreHandler) memberBody(w http.ResponseWriter, r *http.Request) (auth.Actor, string, bool) {
	a, _ := auth.FromContext(r.Context())
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return a, "", false
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = a.MemberID
	}
	return a, memberID, true
}
