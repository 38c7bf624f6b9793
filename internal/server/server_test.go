package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/chorechamp/internal/database"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
	"github.com/dukerupert/chorechamp/internal/weekly"
)

type testEnv struct {
	t      *testing.T
	router http.Handler
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	return newTestEnvStore(t, store.NewMemStore(), opts)
}

func newTestEnvStore(t *testing.T, s store.Store, opts Options) *testEnv {
	t.Helper()
	if opts.Clock == nil {
		// A Wednesday at noon.
		opts.Clock = weekly.ClockFunc(func() time.Time {
			return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
		})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(s, opts, logger)
	return &testEnv{t: t, router: srv.Router()}
}

// eachStore runs fn against a server backed by an in-memory store and one
// backed by a file-backed SQLite store.
func eachStore(t *testing.T, fn func(t *testing.T, e *testEnv)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, newTestEnv(t, Options{}))
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		s := store.NewSQLStore(db)
		t.Cleanup(func() { s.Close() })
		fn(t, newTestEnvStore(t, s, Options{}))
	})
}

// do sends a JSON request and decodes the JSON response into out when out
// is non-nil.
func (e *testEnv) do(method, path, token string, body any, out any) int {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			e.t.Fatalf("%s %s: decode response (status %d): %v", method, path, rec.Code, err)
		}
	}
	return rec.Code
}

type session struct {
	Success bool         `json:"success"`
	Member  model.Member `json:"member"`
	Family  model.Family `json:"family"`
	Token   string       `json:"token"`
}

func (e *testEnv) signup(name, code string) session {
	e.t.Helper()
	var s session
	body := map[string]any{"name": name, "familyCode": code, "avatar": "🙂"}
	if status := e.do("POST", "/api/auth/signup", "", body, &s); status != http.StatusCreated {
		e.t.Fatalf("signup %s/%s: status = %d", name, code, status)
	}
	return s
}

func (e *testEnv) member(token, familyID, memberID string) model.Member {
	e.t.Helper()
	var members []model.Member
	if status := e.do("GET", "/api/families/"+familyID+"/members", token, nil, &members); status != http.StatusOK {
		e.t.Fatalf("list members: status = %d", status)
	}
	for _, m := range members {
		if m.ID == memberID {
			return m
		}
	}
	e.t.Fatalf("member %s not listed", memberID)
	return model.Member{}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Options{})
	var body map[string]string
	if status := e.do("GET", "/health", "", nil, &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSignupBossCodeCreatesParent(t *testing.T) {
	e := newTestEnv(t, Options{})

	mom := e.signup("Mom", "smithBOSS")
	if !mom.Success || mom.Token == "" {
		t.Fatalf("signup = %+v", mom)
	}
	if !mom.Member.IsParent {
		t.Error("BOSS signup should create a parent")
	}
	if mom.Family.Code != "SMITH" || mom.Family.Name != "SMITH" {
		t.Errorf("family = %+v, want code SMITH", mom.Family)
	}

	kid := e.signup("Alex", " smith ")
	if kid.Member.IsParent {
		t.Error("plain signup should create a child")
	}
	if kid.Family.ID != mom.Family.ID {
		t.Errorf("family id = %s, want %s", kid.Family.ID, mom.Family.ID)
	}
}

func TestSignupValidation(t *testing.T) {
	e := newTestEnv(t, Options{})
	e.signup("Mom", "SMITHBOSS")

	var errBody map[string]string
	if status := e.do("POST", "/api/auth/signup", "", map[string]any{"name": "Alex", "familyCode": "SMITH"}, &errBody); status != http.StatusBadRequest {
		t.Errorf("missing avatar: status = %d, want 400", status)
	}
	if errBody["error"] == "" {
		t.Error("expected error message")
	}
	if status := e.do("POST", "/api/auth/signup", "", map[string]any{"name": "Mom", "familyCode": "SMITH", "avatar": "👩"}, nil); status != http.StatusConflict {
		t.Errorf("duplicate name: status = %d, want 409", status)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")

	var s session
	if status := e.do("POST", "/api/auth/login", "", map[string]string{"name": "Mom", "familyCode": "smith"}, &s); status != http.StatusOK {
		t.Fatalf("login status = %d", status)
	}
	if s.Member.ID != mom.Member.ID || s.Family.ID != mom.Family.ID || s.Token == "" {
		t.Errorf("login = %+v", s)
	}

	if status := e.do("POST", "/api/auth/login", "", map[string]string{"name": "Mom", "familyCode": "JONES"}, nil); status != http.StatusNotFound {
		t.Errorf("unknown family: status = %d, want 404", status)
	}
	if status := e.do("POST", "/api/auth/login", "", map[string]string{"name": "mom", "familyCode": "SMITH"}, nil); status != http.StatusNotFound {
		t.Errorf("name is matched exactly: status = %d, want 404", status)
	}
}

func TestMeAndLogout(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")

	if status := e.do("GET", "/api/auth/me", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", status)
	}

	var me struct {
		Member model.Member `json:"member"`
		Family model.Family `json:"family"`
	}
	if status := e.do("GET", "/api/auth/me", mom.Token, nil, &me); status != http.StatusOK {
		t.Fatalf("me status = %d", status)
	}
	if me.Member.ID != mom.Member.ID || me.Family.Code != "SMITH" {
		t.Errorf("me = %+v", me)
	}

	if status := e.do("POST", "/api/auth/logout", mom.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout status = %d", status)
	}
	if status := e.do("GET", "/api/auth/me", mom.Token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("after logout: status = %d, want 401", status)
	}
}

func TestChoreLifecycleAndRewards(t *testing.T) {
	eachStore(t, func(t *testing.T, e *testEnv) {
		mom := e.signup("Mom", "SMITHBOSS")
		alex := e.signup("Alex", "SMITH")
		fam := mom.Family.ID

		if status := e.do("POST", "/api/chores", alex.Token, map[string]any{"emoji": "🧹", "title": "Sweep", "points": 50}, nil); status != http.StatusForbidden {
			t.Errorf("child create chore: status = %d, want 403", status)
		}
		if status := e.do("POST", "/api/chores", mom.Token, map[string]any{"title": "  ", "points": 5}, nil); status != http.StatusBadRequest {
			t.Errorf("blank title: status = %d, want 400", status)
		}

		var c model.Chore
		if status := e.do("POST", "/api/chores", mom.Token, map[string]any{"emoji": "🧹", "title": "Sweep", "points": 50}, &c); status != http.StatusCreated {
			t.Fatalf("create chore: status = %d", status)
		}
		if c.Status != model.ChoreAvailable || c.FamilyID != fam {
			t.Errorf("created chore = %+v", c)
		}

		if status := e.do("PATCH", "/api/chores/"+c.ID+"/claim", alex.Token, nil, &c); status != http.StatusOK {
			t.Fatalf("claim: status = %d", status)
		}
		if c.Status != model.ChoreClaimed || c.AssignedToID == nil || *c.AssignedToID != alex.Member.ID {
			t.Errorf("claimed chore = %+v", c)
		}

		if status := e.do("PATCH", "/api/chores/"+c.ID+"/complete", alex.Token, map[string]string{"memberId": alex.Member.ID}, &c); status != http.StatusOK {
			t.Fatalf("complete: status = %d", status)
		}
		if c.Status != model.ChorePending {
			t.Errorf("status = %q, want pending", c.Status)
		}

		if status := e.do("PATCH", "/api/chores/"+c.ID+"/approve", alex.Token, nil, nil); status != http.StatusForbidden {
			t.Errorf("child approve: status = %d, want 403", status)
		}
		if status := e.do("PATCH", "/api/chores/"+c.ID+"/approve", mom.Token, nil, &c); status != http.StatusOK {
			t.Fatalf("approve: status = %d", status)
		}
		if c.Status != model.ChoreCompleted {
			t.Errorf("status = %q, want completed", c.Status)
		}
		if status := e.do("PATCH", "/api/chores/"+c.ID+"/approve", mom.Token, nil, nil); status != http.StatusConflict {
			t.Errorf("double approve: status = %d, want 409", status)
		}

		m := e.member(mom.Token, fam, alex.Member.ID)
		if m.WeeklyPoints != 50 || m.TotalPoints != 50 {
			t.Fatalf("points after approve = %d/%d, want 50/50", m.WeeklyPoints, m.TotalPoints)
		}

		var reward model.Reward
		if status := e.do("POST", "/api/rewards", mom.Token, map[string]any{"emoji": "🍦", "title": "Ice cream", "pointCost": 30}, &reward); status != http.StatusCreated {
			t.Fatalf("create reward: status = %d", status)
		}

		var redeemed struct {
			Success    bool                   `json:"success"`
			Redemption model.RewardRedemption `json:"redemption"`
		}
		if status := e.do("POST", "/api/rewards/"+reward.ID+"/redeem", alex.Token, map[string]string{"memberId": alex.Member.ID}, &redeemed); status != http.StatusOK {
			t.Fatalf("redeem: status = %d", status)
		}
		if !redeemed.Success || redeemed.Redemption.PointsSpent != 30 {
			t.Errorf("redeem = %+v", redeemed)
		}

		var errBody map[string]string
		if status := e.do("POST", "/api/rewards/"+reward.ID+"/redeem", alex.Token, nil, &errBody); status != http.StatusBadRequest {
			t.Errorf("insufficient points: status = %d, want 400", status)
		}
		if errBody["error"] != "insufficient points" {
			t.Errorf("error = %q", errBody["error"])
		}

		m = e.member(mom.Token, fam, alex.Member.ID)
		if m.WeeklyPoints != 50 || m.TotalPoints != 20 {
			t.Errorf("points after redeem = %d/%d, want 50/20", m.WeeklyPoints, m.TotalPoints)
		}

		var history []model.RewardRedemption
		if status := e.do("GET", "/api/members/"+alex.Member.ID+"/redemptions", alex.Token, nil, &history); status != http.StatusOK {
			t.Fatalf("redemptions: status = %d", status)
		}
		if len(history) != 1 {
			t.Errorf("redemptions = %d, want 1", len(history))
		}
	})
}

func TestConcurrentRedeemOverHTTP(t *testing.T) {
	eachStore(t, func(t *testing.T, e *testEnv) {
		mom := e.signup("Mom", "SMITHBOSS")
		alex := e.signup("Alex", "SMITH")

		if status := e.do("PATCH", "/api/members/"+alex.Member.ID+"/points", mom.Token, map[string]int{"points": 100}, nil); status != http.StatusOK {
			t.Fatalf("adjust: status = %d", status)
		}
		var reward model.Reward
		if status := e.do("POST", "/api/rewards", mom.Token, map[string]any{"title": "Movie night", "pointCost": 30}, &reward); status != http.StatusCreated {
			t.Fatalf("create reward: status = %d", status)
		}

		const n = 20
		codes := make([]int, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				req := httptest.NewRequest("POST", "/api/rewards/"+reward.ID+"/redeem", bytes.NewBufferString(`{"memberId":"`+alex.Member.ID+`"}`))
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("Authorization", "Bearer "+alex.Token)
				rec := httptest.NewRecorder()
				e.router.ServeHTTP(rec, req)
				codes[i] = rec.Code
			}(i)
		}
		wg.Wait()

		var ok, refused int
		for _, code := range codes {
			switch code {
			case http.StatusOK:
				ok++
			case http.StatusBadRequest:
				refused++
			default:
				t.Errorf("unexpected status %d", code)
			}
		}
		if ok != 3 || refused != n-3 {
			t.Errorf("ok = %d, refused = %d, want 3 and %d", ok, refused, n-3)
		}

		m := e.member(mom.Token, mom.Family.ID, alex.Member.ID)
		if m.TotalPoints != 10 {
			t.Errorf("total = %d, want 10", m.TotalPoints)
		}
		var history []model.RewardRedemption
		if status := e.do("GET", "/api/members/"+alex.Member.ID+"/redemptions", alex.Token, nil, &history); status != http.StatusOK {
			t.Fatalf("redemptions: status = %d", status)
		}
		if len(history) != 3 {
			t.Errorf("redemptions = %d, want 3", len(history))
		}
	})
}

func TestDeleteChoreThenGet(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")

	var c model.Chore
	e.do("POST", "/api/chores", mom.Token, map[string]any{"title": "Dishes", "points": 5}, &c)

	if status := e.do("DELETE", "/api/chores/"+c.ID, mom.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status = %d", status)
	}
	var errBody map[string]string
	if status := e.do("GET", "/api/chores/"+c.ID, mom.Token, nil, &errBody); status != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", status)
	}
	if errBody["error"] != "chore not found" {
		t.Errorf("error = %q, want %q", errBody["error"], "chore not found")
	}
}

func TestCrossFamilyIsNotFound(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")
	dad := e.signup("Dad", "JONESBOSS")

	var c model.Chore
	e.do("POST", "/api/chores", mom.Token, map[string]any{"title": "Dishes", "points": 5}, &c)

	if status := e.do("GET", "/api/families/"+mom.Family.ID+"/members", dad.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("other family members: status = %d, want 404", status)
	}
	if status := e.do("GET", "/api/chores/"+c.ID, dad.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("other family chore: status = %d, want 404", status)
	}
	if status := e.do("PATCH", "/api/members/"+mom.Member.ID+"/points", dad.Token, map[string]int{"points": 100}, nil); status != http.StatusNotFound {
		t.Errorf("other family points: status = %d, want 404", status)
	}
	if status := e.do("POST", "/api/families/"+mom.Family.ID+"/reset-weekly", dad.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("other family reset: status = %d, want 404", status)
	}
}

func TestPointsAndWeeklyReset(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")
	alex := e.signup("Alex", "SMITH")
	fam := mom.Family.ID

	if status := e.do("PATCH", "/api/members/"+alex.Member.ID+"/points", alex.Token, map[string]int{"points": 100}, nil); status != http.StatusForbidden {
		t.Errorf("child adjust: status = %d, want 403", status)
	}
	if status := e.do("PATCH", "/api/members/"+alex.Member.ID+"/points", mom.Token, map[string]any{}, nil); status != http.StatusBadRequest {
		t.Errorf("missing points: status = %d, want 400", status)
	}

	var m model.Member
	if status := e.do("PATCH", "/api/members/"+alex.Member.ID+"/points", mom.Token, map[string]int{"points": 40}, &m); status != http.StatusOK {
		t.Fatalf("adjust: status = %d", status)
	}
	if m.WeeklyPoints != 40 || m.TotalPoints != 40 {
		t.Errorf("after adjust = %d/%d, want 40/40", m.WeeklyPoints, m.TotalPoints)
	}

	if status := e.do("PATCH", "/api/members/"+alex.Member.ID+"/streak", mom.Token, map[string]int{"streak": 3}, &m); status != http.StatusOK {
		t.Fatalf("streak: status = %d", status)
	}
	if m.Streak != 3 {
		t.Errorf("streak = %d, want 3", m.Streak)
	}

	if status := e.do("POST", "/api/families/"+fam+"/reset-weekly", alex.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("child reset weekly: status = %d, want 403", status)
	}
	var reset struct {
		Success      bool  `json:"success"`
		MembersReset int64 `json:"membersReset"`
	}
	if status := e.do("POST", "/api/families/"+fam+"/reset-weekly", mom.Token, nil, &reset); status != http.StatusOK {
		t.Fatalf("reset weekly: status = %d", status)
	}
	if !reset.Success || reset.MembersReset != 2 {
		t.Errorf("reset = %+v", reset)
	}
	m = e.member(mom.Token, fam, alex.Member.ID)
	if m.WeeklyPoints != 0 || m.TotalPoints != 40 {
		t.Errorf("after weekly reset = %d/%d, want 0/40", m.WeeklyPoints, m.TotalPoints)
	}

	if status := e.do("POST", "/api/members/"+alex.Member.ID+"/reset-points", mom.Token, nil, &m); status != http.StatusOK {
		t.Fatalf("reset points: status = %d", status)
	}
	if m.WeeklyPoints != 0 || m.TotalPoints != 0 {
		t.Errorf("after reset points = %d/%d, want 0/0", m.WeeklyPoints, m.TotalPoints)
	}
}

func TestPointsBounds(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")
	alex := e.signup("Alex", "SMITH")
	path := "/api/members/" + alex.Member.ID + "/points"

	if status := e.do("PATCH", path, mom.Token, map[string]int{"points": store.MaxPoints + 1}, nil); status != http.StatusBadRequest {
		t.Errorf("oversized delta: status = %d, want 400", status)
	}
	if status := e.do("PATCH", path, mom.Token, map[string]int{"points": store.MaxPoints}, nil); status != http.StatusOK {
		t.Fatalf("max delta: status = %d", status)
	}
	if status := e.do("PATCH", path, mom.Token, map[string]int{"points": 1}, nil); status != http.StatusBadRequest {
		t.Errorf("balance past max: status = %d, want 400", status)
	}
	if status := e.do("POST", "/api/chores", mom.Token, map[string]any{"title": "Dishes", "points": store.MaxPoints + 1}, nil); status != http.StatusBadRequest {
		t.Errorf("oversized chore points: status = %d, want 400", status)
	}
	if status := e.do("POST", "/api/rewards", mom.Token, map[string]any{"title": "Pony", "pointCost": store.MaxPoints + 1}, nil); status != http.StatusBadRequest {
		t.Errorf("oversized reward cost: status = %d, want 400", status)
	}
}

func TestDeleteMember(t *testing.T) {
	eachStore(t, func(t *testing.T, e *testEnv) {
		mom := e.signup("Mom", "SMITHBOSS")
		alex := e.signup("Alex", "SMITH")
		jamie := e.signup("Jamie", "SMITH")

		var c model.Chore
		body := map[string]any{"title": "Dishes", "points": 5, "assignedToId": alex.Member.ID}
		if status := e.do("POST", "/api/chores", mom.Token, body, &c); status != http.StatusCreated {
			t.Fatalf("create chore: status = %d", status)
		}

		if status := e.do("DELETE", "/api/members/"+jamie.Member.ID, alex.Token, nil, nil); status != http.StatusForbidden {
			t.Errorf("child delete: status = %d, want 403", status)
		}
		if status := e.do("DELETE", "/api/members/"+mom.Member.ID, mom.Token, nil, nil); status != http.StatusBadRequest {
			t.Errorf("delete self: status = %d, want 400", status)
		}
		if status := e.do("DELETE", "/api/members/"+alex.Member.ID, mom.Token, nil, nil); status != http.StatusOK {
			t.Fatalf("delete: status = %d", status)
		}

		var members []model.Member
		e.do("GET", "/api/families/"+mom.Family.ID+"/members", mom.Token, nil, &members)
		if len(members) != 2 {
			t.Errorf("members = %d, want 2", len(members))
		}
		var got model.Chore
		if status := e.do("GET", "/api/chores/"+c.ID, mom.Token, nil, &got); status != http.StatusOK {
			t.Fatalf("get chore: status = %d", status)
		}
		if got.AssignedToID != nil {
			t.Errorf("assignedToId = %v, want nil", *got.AssignedToID)
		}
		// The removed member's session no longer resolves.
		if status := e.do("GET", "/api/auth/me", alex.Token, nil, nil); status != http.StatusUnauthorized {
			t.Errorf("removed member me: status = %d, want 401", status)
		}
	})
}

func TestChampionCountdown(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")

	var body struct {
		Champion       *model.WeeklyChampion `json:"champion"`
		WeekKey        string                `json:"weekKey"`
		DaysUntilReset int                   `json:"daysUntilReset"`
	}
	if status := e.do("GET", "/api/families/"+mom.Family.ID+"/champion", mom.Token, nil, &body); status != http.StatusOK {
		t.Fatalf("champion: status = %d", status)
	}
	if body.Champion != nil {
		t.Errorf("champion = %+v, want none", body.Champion)
	}
	if body.WeekKey != "2024-01-07" {
		t.Errorf("weekKey = %q, want 2024-01-07", body.WeekKey)
	}
	if body.DaysUntilReset != 4 {
		t.Errorf("daysUntilReset = %d, want 4", body.DaysUntilReset)
	}
}

func TestAuthRateLimit(t *testing.T) {
	e := newTestEnv(t, Options{AuthRateLimit: 2})
	e.signup("Mom", "SMITHBOSS")

	body := map[string]string{"name": "Mom", "familyCode": "SMITH"}
	if status := e.do("POST", "/api/auth/login", "", body, nil); status != http.StatusOK {
		t.Fatalf("second request: status = %d", status)
	}
	if status := e.do("POST", "/api/auth/login", "", body, nil); status != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", status)
	}
}
