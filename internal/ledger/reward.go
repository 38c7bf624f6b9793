package ledger

import (
	"context"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
)

// RewardPatch holds the fields of a partial reward update. Nil fields are left as they are.
type RewardPatch struct {
	Emoji     *string
	Title     *string
	PointCost *int
}

func (l *Ledger) Rewards(ctx context.Context, a auth.Actor) ([]model.Reward, error) {
	return l.store.ListRewards(ctx, a.FamilyID)
}

func (l *Ledger) CreateReward(ctx context.Context, a auth.Actor, emoji, title string, pointCost int) (*model.Reward, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}
	r, err := l.store.CreateReward(ctx, a.FamilyID, emoji, title, pointCost)
	if err != nil {
		return nil, err
	}
	l.logger.Info("reward created", "reward_id", r.ID, "family_id", r.FamilyID)
	return r, nil
}

func (l *Ledger) UpdateReward(ctx context.Context, a auth.Actor, id string, p RewardPatch) (*model.Reward, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}

	var out *model.Reward
	err := l.store.InTx(ctx, func(q store.Queries) error {
		r, err := familyReward(ctx, q, a.FamilyID, id)
		if err != nil {
			return err
		}
		if p.Emoji != nil {
			r.Emoji = *p.Emoji
		}
		if p.Title != nil {
			r.Title = *p.Title
		}
		if p.PointCost != nil {
			r.PointCost = *p.PointCost
		}
		if err := q.UpdateReward(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

func (l *Ledger) DeleteReward(ctx context.Context, a auth.Actor, id string) error {
	if err := a.RequireParent(); err != nil {
		return err
	}
	return l.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyReward(ctx, q, a.FamilyID, id); err != nil {
			return err
		}
		return q.DeleteReward(ctx, id)
	})
}
