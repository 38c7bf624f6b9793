package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

func scanReward(s scanner) (*model.Reward, error) {
	var r model.Reward
	if err := s.Scan(&r.ID, &r.FamilyID, &r.Emoji, &r.Title, &r.PointCost, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const rewardCols = `id, family_id, emoji, title, point_cost, created_at`

func (q *sqlQueries) CreateReward(ctx context.Context, familyID, emoji, title string, pointCost int) (*model.Reward, error) {
	r := &model.Reward{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Emoji:     emoji,
		Title:     title,
		PointCost: pointCost,
		CreatedAt: now(),
	}
	_, err := q.exec(ctx,
		`INSERT INTO rewards (`+rewardCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.FamilyID, r.Emoji, r.Title, r.PointCost, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return r, nil
}

func (q *sqlQueries) GetReward(ctx context.Context, id string) (*model.Reward, error) {
	r, err := scanReward(q.queryRow(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reward %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (q *sqlQueries) ListRewards(ctx context.Context, familyID string) ([]model.Reward, error) {
	rows, err := q.query(ctx,
		`SELECT `+rewardCols+` FROM rewards WHERE family_id = ? ORDER BY created_at ASC, id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []model.Reward{}
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

func (q *sqlQueries) UpdateReward(ctx context.Context, r *model.Reward) error {
	_, err := q.exec(ctx,
		`UPDATE rewards SET emoji = ?, title = ?, point_cost = ? WHERE id = ?`,
		r.Emoji, r.Title, r.PointCost, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update reward: %w", err)
	}
	return nil
}

func (q *sqlQueries) DeleteReward(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reward %w", ErrNotFound)
	}
	return nil
}

// --- Redemptions ---

const redemptionCols = `id, reward_id, member_id, points_spent, redeemed_at`

func (q *sqlQueries) CreateRedemption(ctx context.Context, rewardID, memberID string, pointsSpent int) (*model.RewardRedemption, error) {
	rr := &model.RewardRedemption{
		ID:          uuid.NewString(),
		RewardID:    rewardID,
		MemberID:    memberID,
		PointsSpent: pointsSpent,
		RedeemedAt:  now(),
	}
	_, err := q.exec(ctx,
		`INSERT INTO reward_redemptions (`+redemptionCols+`) VALUES (?, ?, ?, ?, ?)`,
		rr.ID, rr.RewardID, rr.MemberID, rr.PointsSpent, rr.RedeemedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	return rr, nil
}

func (q *sqlQueries) ListRedemptions(ctx context.Context, memberID string) ([]model.RewardRedemption, error) {
	rows, err := q.query(ctx,
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE member_id = ? ORDER BY redeemed_at DESC, id DESC`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	out := []model.RewardRedemption{}
	for rows.Next() {
		var rr model.RewardRedemption
		if err := rows.Scan(&rr.ID, &rr.RewardID, &rr.MemberID, &rr.PointsSpent, &rr.RedeemedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}
