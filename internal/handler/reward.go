package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/ledger"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
)

type RewardHandler struct {
	ledger *ledger.Ledger
	hub    Broadcaster
	logger *slog.Logger
}

func NewRewardHandler(l *ledger.Ledger, hub Broadcaster, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{ledger: l, hub: hub, logger: logger}
}

type rewardRequest struct {
	Emoji     string `json:"emoji"`
	Title     string `json:"title"`
	PointCost int    `json:"pointCost"`
}

type rewardPatchRequest struct {
	Emoji     *string `json:"emoji"`
	Title     *string `json:"title"`
	PointCost *int    `json:"pointCost"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		badRequest(w, "title is required")
		return
	}
	if req.PointCost < 0 || req.PointCost > store.MaxPoints {
		badRequest(w, "pointCost must be between 0 and 1000000000")
		return
	}

	a, _ := auth.FromContext(r.Context())
	reward, err := h.ledger.CreateReward(r.Context(), a, strings.TrimSpace(req.Emoji), req.Title, req.PointCost)
	if err != nil {
		writeError(w, h.logger, "create reward", err)
		return
	}

	broadcast(h.hub, a.FamilyID, websocket.NewMessage("reward", "created", reward.ID, reward))
	writeJSON(w, http.StatusCreated, reward)
}

// Update applies only the fields present in the body.
func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req rewardPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		if t == "" {
			badRequest(w, "title must not be empty")
			return
		}
		req.Title = &t
	}
	if req.PointCost != nil && (*req.PointCost < 0 || *req.PointCost > store.MaxPoints) {
		badRequest(w, "pointCost must be between 0 and 1000000000")
		return
	}

	a, _ := auth.FromContext(r.Context())
	reward, err := h.ledger.UpdateReward(r.Context(), a, r.PathValue("id"), ledger.RewardPatch{
		Emoji:     req.Emoji,
		Title:     req.Title,
		PointCost: req.PointCost,
	})
	if err != nil {
		writeError(w, h.logger, "update reward", err)
		return
	}

	broadcast(h.hub, a.FamilyID, websocket.NewMessage("reward", "updated", reward.ID, reward))
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	id := r.PathValue("id")
	if err := h.ledger.DeleteReward(r.Context(), a, id); err != nil {
		writeError(w, h.logger, "delete reward", err)
		return
	}
	broadcast(h.hub, a.FamilyID, websocket.NewMessage("reward", "deleted", id, nil))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Redeem spends points on a reward. memberId defaults to the caller.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	a, _ := auth.FromContext(r.Context())
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		memberID = a.MemberID
	}

	rr, member, err := h.ledger.Redeem(r.Context(), a, r.PathValue("id"), memberID)
	if err != nil {
		writeError(w, h.logger, "redeem reward", err)
		return
	}

	broadcast(h.hub, a.FamilyID, websocket.NewMessage("member", "updated", member.ID, member))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redemption": rr})
}
