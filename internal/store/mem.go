package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

// MemStore is an in-memory Store. Transactions run under the store mutex
// against a copy of the state that replaces the original only on success.
type MemStore struct {
	memQueries
	mu sync.Mutex
}

func NewMemStore() *MemStore {
	s := &MemStore{}
	s.memQueries = memQueries{mu: &s.mu, st: newMemState()}
	return s
}

func (s *MemStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&memQueries{mu: noLock{}, st: work}); err != nil {
		return err
	}
	*s.st = *work
	return nil
}

func (s *MemStore) Close() error { return nil }

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type memState struct {
	families    map[string]model.Family
	members     map[string]model.Member
	chores      map[string]model.Chore
	rewards     map[string]model.Reward
	redemptions map[string]model.RewardRedemption
	sessions    map[string]model.Session
	weekly      map[string]model.WeeklyState
	push        map[string]model.PushSubscription

	// seq records insertion order so listings are stable when timestamps tie.
	seq  map[string]int64
	next int64
}

func newMemState() *memState {
	return &memState{
		families:    map[string]model.Family{},
		members:     map[string]model.Member{},
		chores:      map[string]model.Chore{},
		rewards:     map[string]model.Reward{},
		redemptions: map[string]model.RewardRedemption{},
		sessions:    map[string]model.Session{},
		weekly:      map[string]model.WeeklyState{},
		push:        map[string]model.PushSubscription{},
		seq:         map[string]int64{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		families:    maps.Clone(s.families),
		members:     maps.Clone(s.members),
		chores:      maps.Clone(s.chores),
		rewards:     maps.Clone(s.rewards),
		redemptions: maps.Clone(s.redemptions),
		sessions:    maps.Clone(s.sessions),
		weekly:      maps.Clone(s.weekly),
		push:        maps.Clone(s.push),
		seq:         maps.Clone(s.seq),
		next:        s.next,
	}
}

func (s *memState) newID() string {
	id := uuid.NewString()
	s.next++
	s.seq[id] = s.next
	return id
}

// sorted returns the values of m accepted by keep, in insertion order.
func sorted[T any](s *memState, m map[string]T, keep func(T) bool) []T {
	ids := make([]string, 0, len(m))
	for id, v := range m {
		if keep(v) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b string) int { return int(s.seq[a] - s.seq[b]) })

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

type memQueries struct {
	mu sync.Locker
	st *memState
}

// --- Families ---

func (q *memQueries) CreateFamily(ctx context.Context, code, name string) (*model.Family, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, f := range q.st.families {
		if f.Code == code {
			return nil, fmt.Errorf("family %q: %w", code, ErrConflict)
		}
	}
	f := model.Family{ID: q.st.newID(), Code: code, Name: name, CreatedAt: now()}
	q.st.families[f.ID] = f
	return &f, nil
}

func (q *memQueries) GetFamily(ctx context.Context, id string) (*model.Family, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, ok := q.st.families[id]
	if !ok {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	return &f, nil
}

func (q *memQueries) GetFamilyByCode(ctx context.Context, code string) (*model.Family, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, f := range q.st.families {
		if f.Code == code {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("family %w", ErrNotFound)
}

func (q *memQueries) ListFamilyIDs(ctx context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ids []string
	for _, f := range sorted(q.st, q.st.families, func(model.Family) bool { return true }) {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

// --- Members ---

func (q *memQueries) CreateMember(ctx context.Context, familyID, name, avatar string, isParent bool) (*model.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.families[familyID]; !ok {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	for _, m := range q.st.members {
		if m.FamilyID == familyID && m.Name == name {
			return nil, fmt.Errorf("member %q: %w", name, ErrConflict)
		}
	}
	m := model.Member{
		ID:        q.st.newID(),
		FamilyID:  familyID,
		Name:      name,
		Avatar:    avatar,
		IsParent:  isParent,
		CreatedAt: now(),
	}
	q.st.members[m.ID] = m
	return &m, nil
}

func (q *memQueries) GetMember(ctx context.Context, id string) (*model.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.st.members[id]
	if !ok {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	return &m, nil
}

func (q *memQueries) FindMemberByName(ctx context.Context, familyID, name string) (*model.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, m := range q.st.members {
		if m.FamilyID == familyID && m.Name == name {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("member %w", ErrNotFound)
}

func (q *memQueries) ListMembers(ctx context.Context, familyID string) ([]model.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return sorted(q.st, q.st.members, func(m model.Member) bool { return m.FamilyID == familyID }), nil
}

// updateMember applies fn to the stored member and returns the result.
func (q *memQueries) updateMember(id string, fn func(m *model.Member) error) (*model.Member, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	m, ok := q.st.members[id]
	if !ok {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	if err := fn(&m); err != nil {
		return nil, err
	}
	q.st.members[id] = m
	return &m, nil
}

func (q *memQueries) AddPoints(ctx context.Context, id string, weeklyDelta, totalDelta int) (*model.Member, error) {
	if !PointsInRange(weeklyDelta) || !PointsInRange(totalDelta) {
		return nil, ErrPointsOutOfRange
	}
	return q.updateMember(id, func(m *model.Member) error {
		if !PointsInRange(m.WeeklyPoints+weeklyDelta) || !PointsInRange(m.TotalPoints+totalDelta) {
			return ErrPointsOutOfRange
		}
		m.WeeklyPoints += weeklyDelta
		m.TotalPoints += totalDelta
		return nil
	})
}

func (q *memQueries) SpendPoints(ctx context.Context, id string, amount int) (*model.Member, error) {
	return q.updateMember(id, func(m *model.Member) error {
		if m.TotalPoints < amount {
			return ErrInsufficientFunds
		}
		m.TotalPoints -= amount
		return nil
	})
}

func (q *memQueries) ResetMemberPoints(ctx context.Context, id string) (*model.Member, error) {
	return q.updateMember(id, func(m *model.Member) error {
		m.WeeklyPoints = 0
		m.TotalPoints = 0
		return nil
	})
}

func (q *memQueries) SetStreak(ctx context.Context, id string, streak int) (*model.Member, error) {
	return q.updateMember(id, func(m *model.Member) error {
		m.Streak = streak
		return nil
	})
}

func (q *memQueries) ResetWeeklyPoints(ctx context.Context, familyID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	for id, m := range q.st.members {
		if m.FamilyID != familyID {
			continue
		}
		m.WeeklyPoints = 0
		q.st.members[id] = m
		n++
	}
	return n, nil
}

func (q *memQueries) DeleteMember(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.members[id]; !ok {
		return fmt.Errorf("member %w", ErrNotFound)
	}
	delete(q.st.members, id)

	for rid, rr := range q.st.redemptions {
		if rr.MemberID == id {
			delete(q.st.redemptions, rid)
		}
	}
	for sid, s := range q.st.sessions {
		if s.MemberID == id {
			delete(q.st.sessions, sid)
		}
	}
	for pid, p := range q.st.push {
		if p.MemberID == id {
			delete(q.st.push, pid)
		}
	}
	for cid, c := range q.st.chores {
		c.AssignedToID = clearRef(c.AssignedToID, id)
		c.AssignedByID = clearRef(c.AssignedByID, id)
		c.CompletedByID = clearRef(c.CompletedByID, id)
		q.st.chores[cid] = c
	}
	return nil
}

func clearRef(ref *string, id string) *string {
	if ref != nil && *ref == id {
		return nil
	}
	return ref
}

// --- Chores ---

func (q *memQueries) CreateChore(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.families[c.FamilyID]; !ok {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	out := *c
	out.ID = q.st.newID()
	out.CreatedAt = now()
	if out.Status == "" {
		out.Status = model.ChoreAvailable
	}
	q.st.chores[out.ID] = out
	return &out, nil
}

func (q *memQueries) GetChore(ctx context.Context, id string) (*model.Chore, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	c, ok := q.st.chores[id]
	if !ok {
		return nil, fmt.Errorf("chore %w", ErrNotFound)
	}
	return &c, nil
}

func (q *memQueries) ListChores(ctx context.Context, familyID string) ([]model.Chore, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return sorted(q.st, q.st.chores, func(c model.Chore) bool { return c.FamilyID == familyID }), nil
}

func (q *memQueries) UpdateChore(ctx context.Context, c *model.Chore) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, ok := q.st.chores[c.ID]
	if !ok {
		return fmt.Errorf("chore %w", ErrNotFound)
	}
	cur.Status = c.Status
	cur.AssignedToID = c.AssignedToID
	cur.AssignedByID = c.AssignedByID
	cur.CompletedByID = c.CompletedByID
	cur.CompletedAt = c.CompletedAt
	q.st.chores[c.ID] = cur
	return nil
}

func (q *memQueries) DeleteChore(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.chores[id]; !ok {
		return fmt.Errorf("chore %w", ErrNotFound)
	}
	delete(q.st.chores, id)
	return nil
}

// --- Rewards ---

func (q *memQueries) CreateReward(ctx context.Context, familyID, emoji, title string, pointCost int) (*model.Reward, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.families[familyID]; !ok {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	r := model.Reward{
		ID:        q.st.newID(),
		FamilyID:  familyID,
		Emoji:     emoji,
		Title:     title,
		PointCost: pointCost,
		CreatedAt: now(),
	}
	q.st.rewards[r.ID] = r
	return &r, nil
}

func (q *memQueries) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.st.rewards[id]
	if !ok {
		return nil, fmt.Errorf("reward %w", ErrNotFound)
	}
	return &r, nil
}

func (q *memQueries) ListRewards(ctx context.Context, familyID string) ([]model.Reward, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return sorted(q.st, q.st.rewards, func(r model.Reward) bool { return r.FamilyID == familyID }), nil
}

func (q *memQueries) UpdateReward(ctx context.Context, r *model.Reward) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur, ok := q.st.rewards[r.ID]
	if !ok {
		return fmt.Errorf("reward %w", ErrNotFound)
	}
	cur.Emoji = r.Emoji
	cur.Title = r.Title
	cur.PointCost = r.PointCost
	q.st.rewards[r.ID] = cur
	return nil
}

func (q *memQueries) DeleteReward(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.rewards[id]; !ok {
		return fmt.Errorf("reward %w", ErrNotFound)
	}
	delete(q.st.rewards, id)
	for rid, rr := range q.st.redemptions {
		if rr.RewardID == id {
			delete(q.st.redemptions, rid)
		}
	}
	return nil
}

// --- Redemptions ---

func (q *memQueries) CreateRedemption(ctx context.Context, rewardID, memberID string, pointsSpent int) (*model.RewardRedemption, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.rewards[rewardID]; !ok {
		return nil, fmt.Errorf("reward %w", ErrNotFound)
	}
	if _, ok := q.st.members[memberID]; !ok {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	rr := model.RewardRedemption{
		ID:          q.st.newID(),
		RewardID:    rewardID,
		MemberID:    memberID,
		PointsSpent: pointsSpent,
		RedeemedAt:  now(),
	}
	q.st.redemptions[rr.ID] = rr
	return &rr, nil
}

func (q *memQueries) ListRedemptions(ctx context.Context, memberID string) ([]model.RewardRedemption, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := sorted(q.st, q.st.redemptions, func(rr model.RewardRedemption) bool { return rr.MemberID == memberID })
	slices.Reverse(out)
	return out, nil
}

// --- Sessions ---

func (q *memQueries) CreateSession(ctx context.Context, memberID, familyID, tokenHash string, expiresAt time.Time) (*model.Session, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := model.Session{
		ID:        q.st.newID(),
		MemberID:  memberID,
		FamilyID:  familyID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC().Truncate(time.Microsecond),
		CreatedAt: now(),
	}
	q.st.sessions[s.ID] = s
	return &s, nil
}

func (q *memQueries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, s := range q.st.sessions {
		if s.TokenHash == tokenHash {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("session %w", ErrNotFound)
}

func (q *memQueries) DeleteSession(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.st.sessions, id)
	return nil
}

func (q *memQueries) DeleteExpiredSessions(ctx context.Context, at time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var n int64
	for id, s := range q.st.sessions {
		if s.ExpiresAt.Before(at) {
			delete(q.st.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- Weekly state ---

func (q *memQueries) GetWeeklyState(ctx context.Context, familyID string) (*model.WeeklyState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.st.weekly[familyID]
	if !ok {
		return nil, fmt.Errorf("weekly state %w", ErrNotFound)
	}
	if st.Champion != nil {
		c := *st.Champion
		st.Champion = &c
	}
	return &st, nil
}

func (q *memQueries) SaveWeeklyState(ctx context.Context, st *model.WeeklyState) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	st.UpdatedAt = now()
	saved := *st
	if st.Champion != nil {
		c := *st.Champion
		saved.Champion = &c
	}
	q.st.weekly[st.FamilyID] = saved
	return nil
}

// --- Push subscriptions ---

func (q *memQueries) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, existing := range q.st.push {
		if existing.Endpoint == sub.Endpoint {
			sub.ID = id
			sub.CreatedAt = existing.CreatedAt
			q.st.push[id] = *sub
			return nil
		}
	}
	sub.ID = q.st.newID()
	sub.CreatedAt = now()
	q.st.push[sub.ID] = *sub
	return nil
}

func (q *memQueries) GetPushSubscription(ctx context.Context, id string) (*model.PushSubscription, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, ok := q.st.push[id]
	if !ok {
		return nil, fmt.Errorf("push subscription %w", ErrNotFound)
	}
	return &sub, nil
}

func (q *memQueries) ListPushSubscriptions(ctx context.Context, familyID string) ([]model.PushSubscription, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return sorted(q.st, q.st.push, func(p model.PushSubscription) bool { return p.FamilyID == familyID }), nil
}

func (q *memQueries) DeletePushSubscription(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.st.push[id]; !ok {
		return fmt.Errorf("push subscription %w", ErrNotFound)
	}
	delete(q.st.push, id)
	return nil
}

func (q *memQueries) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, p := range q.st.push {
		if p.Endpoint == endpoint {
			delete(q.st.push, id)
		}
	}
	return nil
}
