package store

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/chorechamp/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientFunds is returned when a spend would take a balance below zero.
	ErrInsufficientFunds = errors.New("insufficient points")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("already exists")
	// ErrPointsOutOfRange is returned when a balance would leave
	// [-MaxPoints, MaxPoints].
	ErrPointsOutOfRange = errors.New("points out of range")
)

// MaxPoints bounds every point value and balance so that arithmetic stays
// within what all three SQL backends store as an integer.
const MaxPoints = 1_000_000_000

// PointsInRange reports whether n is a storable point value or balance.
func PointsInRange(n int) bool {
	return n >= -MaxPoints && n <= MaxPoints
}

// Queries is the set of reads and writes available both directly on a Store
// and inside a transaction.
type Queries interface {
	CreateFamily(ctx context.Context, code, name string) (*model.Family, error)
	GetFamily(ctx context.Context, id string) (*model.Family, error)
	GetFamilyByCode(ctx context.Context, code string) (*model.Family, error)
	ListFamilyIDs(ctx context.Context) ([]string, error)

	CreateMember(ctx context.Context, familyID, name, avatar string, isParent bool) (*model.Member, error)
	GetMember(ctx context.Context, id string) (*model.Member, error)
	FindMemberByName(ctx context.Context, familyID, name string) (*model.Member, error)
	ListMembers(ctx context.Context, familyID string) ([]model.Member, error)
	// AddPoints applies both deltas in a single update. Balances may go negative.
	AddPoints(ctx context.Context, id string, weeklyDelta, totalDelta int) (*model.Member, error)
	// SpendPoints decrements total points only, failing with
	// ErrInsufficientFunds when the balance is lower than amount.
	SpendPoints(ctx context.Context, id string, amount int) (*model.Member, error)
	ResetMemberPoints(ctx context.Context, id string) (*model.Member, error)
	SetStreak(ctx context.Context, id string, streak int) (*model.Member, error)
	ResetWeeklyPoints(ctx context.Context, familyID string) (int64, error)
	DeleteMember(ctx context.Context, id string) error

	CreateChore(ctx context.Context, c *model.Chore) (*model.Chore, error)
	GetChore(ctx context.Context, id string) (*model.Chore, error)
	ListChores(ctx context.Context, familyID string) ([]model.Chore, error)
	UpdateChore(ctx context.Context, c *model.Chore) error
	DeleteChore(ctx context.Context, id string) error

	CreateReward(ctx context.Context, familyID, emoji, title string, pointCost int) (*model.Reward, error)
	GetReward(ctx context.Context, id string) (*model.Reward, error)
	ListRewards(ctx context.Context, familyID string) ([]model.Reward, error)
	UpdateReward(ctx context.Context, r *model.Reward) error
	DeleteReward(ctx context.Context, id string) error

	CreateRedemption(ctx context.Context, rewardID, memberID string, pointsSpent int) (*model.RewardRedemption, error)
	ListRedemptions(ctx context.Context, memberID string) ([]model.RewardRedemption, error)

	CreateSession(ctx context.Context, memberID, familyID, tokenHash string, expiresAt time.Time) (*model.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	GetWeeklyState(ctx context.Context, familyID string) (*model.WeeklyState, error)
	SaveWeeklyState(ctx context.Context, st *model.WeeklyState) error

	// SavePushSubscription upserts on endpoint, so a browser that
	// resubscribes under another member moves to that member.
	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetPushSubscription(ctx context.Context, id string) (*model.PushSubscription, error)
	ListPushSubscriptions(ctx context.Context, familyID string) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, id string) error
	DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// Store is the persistence boundary. InTx runs fn atomically: either every
// write made through q is kept or none is.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
	Close() error
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
