package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/chore"
	"github.com/dukerupert/chorechamp/internal/ledger"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
	"github.com/dukerupert/chorechamp/internal/weekly"
)

// FamilyHandler serves the family-scoped listings and the weekly rollover.
type FamilyHandler struct {
	store  store.Store
	chores *chore.Manager
	ledger *ledger.Ledger
	clock  weekly.Clock
	hub    Broadcaster
	logger *slog.Logger
}

func NewFamilyHandler(s store.Store, chores *chore.Manager, l *ledger.Ledger, clock weekly.Clock, hub Broadcaster, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{store: s, chores: chores, ledger: l, clock: clock, hub: hub, logger: logger}
}

// family returns the caller's actor, or writes a 404 when the path names
// any family other than theirs.
func (h *FamilyHandler) family(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, _ := auth.FromContext(r.Context())
	if r.PathValue("familyId") != auth.FamilyID(r.Context()) {
		writeError(w, h.logger, "family scope", fmt.Errorf("family %w", store.ErrNotFound))
		return a, false
	}
	return a, true
}

func (h *FamilyHandler) Members(w http.ResponseWriter, r *http.Request) {
	a, ok := h.family(w, r)
	if !ok {
		return
	}
	members, err := h.store.ListMembers(r.Context(), a.FamilyID)
	if err != nil {
		writeError(w, h.logger, "list members", err)
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyHandler) Chores(w http.ResponseWriter, r *http.Request) {
	a, ok := h.family(w, r)
	if !ok {
		return
	}
	chores, err := h.chores.List(r.Context(), a)
	if err != nil {
		writeError(w, h.logger, "list chores", err)
		return
	}
	if chores == nil {
		chores = []model.Chore{}
	}
	writeJSON(w, http.StatusOK, chores)
}

func (h *FamilyHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	a, ok := h.family(w, r)
	if !ok {
		return
	}
	rewards, err := h.ledger.Rewards(r.Context(), a)
	if err != nil {
		writeError(w, h.logger, "list rewards", err)
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

type championResponse struct {
	Champion       *model.WeeklyChampion `json:"champion"`
	WeekKey        string                `json:"weekKey"`
	DaysUntilReset int                   `json:"daysUntilReset"`
}

// Champion reports the last crowned champion and the countdown to the next
// rollover.
func (h *FamilyHandler) Champion(w http.ResponseWriter, r *http.Request) {
	a, ok := h.family(w, r)
	if !ok {
		return
	}
	champion, err := weekly.StoreMarkers{Q: h.store}.Champion(r.Context(), a.FamilyID)
	if err != nil {
		writeError(w, h.logger, "get champion", err)
		return
	}

	now := h.clock.Now()
	writeJSON(w, http.StatusOK, championResponse{
		Champion:       champion,
		WeekKey:        weekly.WeekKey(now),
		DaysUntilReset: weekly.DaysUntilReset(now),
	})
}

// ResetWeekly zeroes every member's weekly points.
func (h *FamilyHandler) ResetWeekly(w http.ResponseWriter, r *http.Request) {
	a, ok := h.family(w, r)
	if !ok {
		return
	}
	n, err := h.ledger.ResetWeeklyPoints(r.Context(), a, a.FamilyID)
	if err != nil {
		writeError(w, h.logger, "reset weekly", err)
		return
	}

	broadcast(h.hub, a.FamilyID, websocket.NewMessage("member", "reset_weekly", "", nil))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "membersReset": n})
}
