package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/push"
	"github.com/dukerupert/chorechamp/internal/store"
)

// PushHandler manages a member's Web Push devices.
type PushHandler struct {
	store     store.Queries
	notifier  *push.Notifier
	publicKey string
	logger    *slog.Logger
}

func NewPushHandler(s store.Queries, n *push.Notifier, publicKey string, logger *slog.Logger) *PushHandler {
	return &PushHandler{store: s, notifier: n, publicKey: publicKey, logger: logger}
}

// subscribeRequest mirrors the browser's PushSubscription.toJSON().
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"deviceName"`
}

func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.publicKey})
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if !strings.HasPrefix(req.Endpoint, "https://") || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		badRequest(w, "endpoint, keys.p256dh and keys.auth are required")
		return
	}

	a, _ := auth.FromContext(r.Context())
	sub := &model.PushSubscription{
		MemberID:   a.MemberID,
		FamilyID:   a.FamilyID,
		Endpoint:   req.Endpoint,
		P256dhKey:  req.Keys.P256dh,
		AuthKey:    req.Keys.Auth,
		DeviceName: strings.TrimSpace(req.DeviceName),
	}
	if err := h.store.SavePushSubscription(r.Context(), sub); err != nil {
		writeError(w, h.logger, "save push subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List returns the caller's own devices.
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	subs, err := h.store.ListPushSubscriptions(r.Context(), a.FamilyID)
	if err != nil {
		writeError(w, h.logger, "list push subscriptions", err)
		return
	}
	mine := []model.PushSubscription{}
	for _, s := range subs {
		if s.MemberID == a.MemberID {
			mine = append(mine, s)
		}
	}
	writeJSON(w, http.StatusOK, mine)
}

// Unsubscribe removes one of the caller's devices. Parents may remove any
// device in the family.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	sub, err := h.store.GetPushSubscription(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, "get push subscription", err)
		return
	}
	if sub.FamilyID != a.FamilyID {
		writeError(w, h.logger, "get push subscription", fmt.Errorf("push subscription %w", store.ErrNotFound))
		return
	}
	if err := a.CanActFor(sub.MemberID); err != nil {
		writeError(w, h.logger, "delete push subscription", err)
		return
	}
	if err := h.store.DeletePushSubscription(r.Context(), sub.ID); err != nil {
		writeError(w, h.logger, "delete push subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Test sends a sample notification to every device of the caller.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	sent, err := h.notifier.NotifyMember(r.Context(), a.FamilyID, a.MemberID, push.Payload{
		Title: "ChoreChamp",
		Body:  "Notifications are working!",
		URL:   "/",
		Tag:   "test",
	})
	if err != nil {
		writeError(w, h.logger, "test push", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
