package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
)

// Ledger owns every balance change that is not a chore approval: reward
// redemption, manual adjustment and resets.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

func New(s store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{store: s, logger: logger.With("component", "ledger")}
}

// Redeem spends a reward's cost from memberID's total points and records the
// redemption. Nothing changes when the balance is too low.
func (l *Ledger) Redeem(ctx context.Context, a auth.Actor, rewardID, memberID string) (*model.RewardRedemption, *model.Member, error) {
	if err := a.CanActFor(memberID); err != nil {
		return nil, nil, err
	}

	var rr *model.RewardRedemption
	var member *model.Member
	err := l.store.InTx(ctx, func(q store.Queries) error {
		reward, err := familyReward(ctx, q, a.FamilyID, rewardID)
		if err != nil {
			return err
		}
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}

		member, err = q.SpendPoints(ctx, memberID, reward.PointCost)
		if err != nil {
			return err
		}
		rr, err = q.CreateRedemption(ctx, reward.ID, memberID, reward.PointCost)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	l.logger.Info("reward redeemed", "reward_id", rewardID, "member_id", memberID, "points", rr.PointsSpent)
	return rr, member, nil
}

// Redemptions lists a member's redemption history, newest first. Children
// may only see their own.
func (l *Ledger) Redemptions(ctx context.Context, a auth.Actor, memberID string) ([]model.RewardRedemption, error) {
	if err := a.CanActFor(memberID); err != nil {
		return nil, err
	}
	if _, err := familyMember(ctx, l.store, a.FamilyID, memberID); err != nil {
		return nil, err
	}
	return l.store.ListRedemptions(ctx, memberID)
}

// AdjustPoints adds delta to both balances. Negative results are allowed.
func (l *Ledger) AdjustPoints(ctx context.Context, a auth.Actor, memberID string, delta int) (*model.Member, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}

	var m *model.Member
	err := l.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		var err error
		m, err = q.AddPoints(ctx, memberID, delta, delta)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("points adjusted", "member_id", memberID, "delta", delta, "by", a.MemberID)
	return m, nil
}

// ResetPoints zeroes both of a member's balances.
func (l *Ledger) ResetPoints(ctx context.Context, a auth.Actor, memberID string) (*model.Member, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}

	var m *model.Member
	err := l.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		var err error
		m, err = q.ResetMemberPoints(ctx, memberID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("points reset", "member_id", memberID, "by", a.MemberID)
	return m, nil
}

// ResetWeeklyPoints zeroes weekly points for every member of the actor's
// family. Total points are kept.
func (l *Ledger) ResetWeeklyPoints(ctx context.Context, a auth.Actor, familyID string) (int64, error) {
	if err := a.RequireParent(); err != nil {
		return 0, err
	}
	if familyID != a.FamilyID {
		return 0, fmt.Errorf("family %w", store.ErrNotFound)
	}

	n, err := l.store.ResetWeeklyPoints(ctx, familyID)
	if err != nil {
		return 0, err
	}
	l.logger.Info("weekly points reset", "family_id", familyID, "members", n)
	return n, nil
}

func (l *Ledger) SetStreak(ctx context.Context, a auth.Actor, memberID string, streak int) (*model.Member, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}

	var m *model.Member
	err := l.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		var err error
		m, err = q.SetStreak(ctx, memberID, streak)
		return err
	})
	return m, err
}

// RemoveMember deletes a member of the actor's family along with their
// redemption history. Chores they touched stay, with those references cleared.
// A parent cannot remove themselves.
func (l *Ledger) RemoveMember(ctx context.Context, a auth.Actor, memberID string) error {
	if err := a.RequireParent(); err != nil {
		return err
	}
	if memberID == a.MemberID {
		return auth.ErrForbidden
	}

	err := l.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		return q.DeleteMember(ctx, memberID)
	})
	if err != nil {
		return err
	}

	l.logger.Info("member removed", "member_id", memberID, "by", a.MemberID)
	return nil
}

func familyMember(ctx context.Context, q store.Queries, familyID, id string) (*model.Member, error) {
	m, err := q.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.FamilyID != familyID {
		return nil, fmt.Errorf("member %w", store.ErrNotFound)
	}
	return m, nil
}

func familyReward(ctx context.Context, q store.Queries, familyID, id string) (*model.Reward, error) {
	r, err := q.GetReward(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.FamilyID != familyID {
		return nil, fmt.Errorf("reward %w", store.ErrNotFound)
	}
	return r, nil
}
