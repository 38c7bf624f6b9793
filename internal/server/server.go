package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorechamp/internal/chore"
	"github.com/dukerupert/chorechamp/internal/handler"
	"github.com/dukerupert/chorechamp/internal/ledger"
	"github.com/dukerupert/chorechamp/internal/middleware"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/push"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/weekly"
	ws "github.com/dukerupert/chorechamp/internal/websocket"
)

// Options tunes a Server. Zero values fall back to the defaults below.
type Options struct {
	SessionTTL     time.Duration
	SecureCookie   bool
	AuthRateLimit  int
	OriginPatterns []string
	Clock          weekly.Clock

	// Web Push is enabled when both VAPID keys are set.
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	// PushSender replaces the VAPID sender, mainly in tests.
	PushSender push.Sender
}

type Server struct {
	store       store.Store
	hub         *ws.Hub
	authH       *handler.AuthHandler
	familyH     *handler.FamilyHandler
	choreH      *handler.ChoreHandler
	rewardH     *handler.RewardHandler
	memberH     *handler.MemberHandler
	pushH       *handler.PushHandler
	pushNotify  *push.Notifier
	rateLimiter *middleware.RateLimiter
	origins     []string
	logger      *slog.Logger
}

func New(s store.Store, opts Options, logger *slog.Logger) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	if opts.Clock == nil {
		opts.Clock = weekly.SystemClock(time.Local)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	chores := chore.NewManager(s, logger)
	l := ledger.New(s, logger)

	srv := &Server{
		store:       s,
		hub:         hub,
		authH:       handler.NewAuthHandler(s, hub, opts.SessionTTL, opts.SecureCookie, logger.With("component", "auth")),
		familyH:     handler.NewFamilyHandler(s, chores, l, opts.Clock, hub, logger.With("component", "family")),
		rewardH:     handler.NewRewardHandler(l, hub, logger.With("component", "reward_handler")),
		memberH:     handler.NewMemberHandler(l, hub, logger.With("component", "member_handler")),
		rateLimiter: middleware.NewRateLimiter(opts.AuthRateLimit, time.Minute),
		origins:     opts.OriginPatterns,
		logger:      logger,
	}

	var choreNotify handler.ChoreNotifier
	if sender := pushSender(opts); sender != nil {
		pushLogger := logger.With("component", "push")
		srv.pushNotify = push.NewNotifier(s, sender, pushLogger)
		srv.pushH = handler.NewPushHandler(s, srv.pushNotify, opts.VAPIDPublicKey, pushLogger)
		choreNotify = srv.pushNotify
	}
	srv.choreH = handler.NewChoreHandler(chores, hub, choreNotify, logger.With("component", "chore_handler"))
	return srv
}

func pushSender(opts Options) push.Sender {
	if opts.PushSender != nil {
		return opts.PushSender
	}
	if opts.VAPIDPublicKey == "" || opts.VAPIDPrivateKey == "" {
		return nil
	}
	return push.NewService(opts.VAPIDPublicKey, opts.VAPIDPrivateKey, opts.VAPIDSubject)
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Notifier returns a weekly.Notifier that announces crowned champions to
// the family's live clients and, when enabled, their push devices.
func (s *Server) Notifier() weekly.Notifier {
	return championNotifier{hub: s.hub, push: s.pushNotify}
}

type championNotifier struct {
	hub  *ws.Hub
	push *push.Notifier
}

func (n championNotifier) ChampionCrowned(ctx context.Context, familyID string, c *model.WeeklyChampion) {
	n.hub.Broadcast(familyID, ws.NewMessage("champion", "crowned", c.MemberID, c))
	if n.push != nil {
		n.push.ChampionCrowned(ctx, familyID, c)
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/signup", s.rateLimited(s.authH.Signup))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.store)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	return middleware.RateLimit(s.rateLimiter)(h).ServeHTTP
}

func parentOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireParent(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Family listings
	mux.HandleFunc("GET /api/families/{familyId}/members", s.familyH.Members)
	mux.HandleFunc("GET /api/families/{familyId}/chores", s.familyH.Chores)
	mux.HandleFunc("GET /api/families/{familyId}/rewards", s.familyH.Rewards)
	mux.HandleFunc("GET /api/families/{familyId}/champion", s.familyH.Champion)
	mux.Handle("POST /api/families/{familyId}/reset-weekly", parentOnly(s.familyH.ResetWeekly))

	// Chores
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("PATCH /api/chores/{id}/claim", s.choreH.Claim)
	mux.HandleFunc("PATCH /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("PATCH /api/chores/{id}/approve", s.choreH.Approve)
	mux.HandleFunc("PATCH /api/chores/{id}/assign", s.choreH.Assign)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)

	// Rewards
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("PATCH /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)

	// Members
	mux.Handle("PATCH /api/members/{id}/points", parentOnly(s.memberH.AdjustPoints))
	mux.Handle("POST /api/members/{id}/reset-points", parentOnly(s.memberH.ResetPoints))
	mux.Handle("PATCH /api/members/{id}/streak", parentOnly(s.memberH.SetStreak))
	mux.HandleFunc("GET /api/members/{id}/redemptions", s.memberH.Redemptions)
	mux.Handle("DELETE /api/members/{id}", parentOnly(s.memberH.Delete))

	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.Test)
	}

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins, s.logger.With("component", "websocket")))
}
