package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/websocket"
)

// AuthHandler signs members up and in with a shared family code and issues
// session tokens.
type AuthHandler struct {
	store        store.Store
	hub          Broadcaster
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(s store.Store, hub Broadcaster, sessionTTL time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:        s,
		hub:          hub,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

type signupRequest struct {
	Name       string `json:"name"`
	FamilyCode string `json:"familyCode"`
	Avatar     string `json:"avatar"`
	IsParent   bool   `json:"isParent"`
}

type loginRequest struct {
	Name       string `json:"name"`
	FamilyCode string `json:"familyCode"`
}

type authResponse struct {
	Success bool          `json:"success"`
	Member  *model.Member `json:"member"`
	Family  *model.Family `json:"family"`
	Token   string        `json:"token"`
}

// Signup joins a family, creating it when the code is new. A code ending in
// BOSS makes the new member a parent.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Avatar = strings.TrimSpace(req.Avatar)
	code, boss := auth.NormalizeFamilyCode(req.FamilyCode)
	if req.Name == "" || req.Avatar == "" || code == "" {
		badRequest(w, "missing required fields")
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		writeError(w, h.logger, "signup token", err)
		return
	}

	var member *model.Member
	var family *model.Family
	err = h.store.InTx(r.Context(), func(q store.Queries) error {
		var err error
		family, err = q.GetFamilyByCode(r.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			family, err = q.CreateFamily(r.Context(), code, code)
		}
		if err != nil {
			return err
		}

		member, err = q.CreateMember(r.Context(), family.ID, req.Name, req.Avatar, req.IsParent || boss)
		if err != nil {
			return err
		}
		_, err = q.CreateSession(r.Context(), member.ID, family.ID, auth.HashToken(token), time.Now().Add(h.sessionTTL))
		return err
	})
	if err != nil {
		writeError(w, h.logger, "signup", err)
		return
	}

	h.logger.Info("member signed up", "member_id", member.ID, "family_id", family.ID, "parent", member.IsParent)
	broadcast(h.hub, family.ID, websocket.NewMessage("member", "created", member.ID, member))

	h.setCookie(w, token)
	writeJSON(w, http.StatusCreated, authResponse{Success: true, Member: member, Family: family, Token: token})
}

// Login finds a member by exact name within the family.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	code, _ := auth.NormalizeFamilyCode(req.FamilyCode)
	if req.Name == "" || code == "" {
		badRequest(w, "missing required fields")
		return
	}

	family, err := h.store.GetFamilyByCode(r.Context(), code)
	if err != nil {
		writeError(w, h.logger, "login family", err)
		return
	}
	member, err := h.store.FindMemberByName(r.Context(), family.ID, req.Name)
	if err != nil {
		writeError(w, h.logger, "login member", err)
		return
	}

	token, err := auth.NewToken()
	if err != nil {
		writeError(w, h.logger, "login token", err)
		return
	}
	if _, err := h.store.CreateSession(r.Context(), member.ID, family.ID, auth.HashToken(token), time.Now().Add(h.sessionTTL)); err != nil {
		writeError(w, h.logger, "login session", err)
		return
	}

	h.logger.Info("member logged in", "member_id", member.ID, "family_id", family.ID)

	h.setCookie(w, token)
	writeJSON(w, http.StatusOK, authResponse{Success: true, Member: member, Family: family, Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())
	if err := h.store.DeleteSession(r.Context(), a.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, h.logger, "logout", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the authenticated member and their family.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	a, _ := auth.FromContext(r.Context())

	member, err := h.store.GetMember(r.Context(), a.MemberID)
	if err != nil {
		writeError(w, h.logger, "me member", err)
		return
	}
	family, err := h.store.GetFamily(r.Context(), a.FamilyID)
	if err != nil {
		writeError(w, h.logger, "me family", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"member": member, "family": family})
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
