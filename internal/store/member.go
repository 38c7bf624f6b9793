package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

func scanMember(s scanner) (*model.Member, error) {
	var m model.Member
	err := s.Scan(
		&m.ID, &m.FamilyID, &m.Name, &m.Avatar, &m.IsParent,
		&m.WeeklyPoints, &m.TotalPoints, &m.Streak, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, family_id, name, avatar, is_parent, weekly_points, total_points, streak, created_at`

func (q *sqlQueries) CreateMember(ctx context.Context, familyID, name, avatar string, isParent bool) (*model.Member, error) {
	if _, err := q.FindMemberByName(ctx, familyID, name); err == nil {
		return nil, fmt.Errorf("member %q: %w", name, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	m := &model.Member{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Name:      name,
		Avatar:    avatar,
		IsParent:  isParent,
		CreatedAt: now(),
	}
	_, err := q.exec(ctx,
		`INSERT INTO members (id, family_id, name, avatar, is_parent, weekly_points, total_points, streak, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, 0, 0, ?)`,
		m.ID, m.FamilyID, m.Name, m.Avatar, m.IsParent, m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("member %q: %w", name, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

func (q *sqlQueries) GetMember(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(q.queryRow(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`+q.lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (q *sqlQueries) FindMemberByName(ctx context.Context, familyID, name string) (*model.Member, error) {
	m, err := scanMember(q.queryRow(ctx,
		`SELECT `+memberCols+` FROM members WHERE family_id = ? AND name = ?`, familyID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find member: %w", err)
	}
	return m, nil
}

func (q *sqlQueries) ListMembers(ctx context.Context, familyID string) ([]model.Member, error) {
	rows, err := q.query(ctx,
		`SELECT `+memberCols+` FROM members WHERE family_id = ? ORDER BY created_at ASC, id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (q *sqlQueries) AddPoints(ctx context.Context, id string, weeklyDelta, totalDelta int) (*model.Member, error) {
	if !PointsInRange(weeklyDelta) || !PointsInRange(totalDelta) {
		return nil, ErrPointsOutOfRange
	}
	cur, err := q.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if !PointsInRange(cur.WeeklyPoints+weeklyDelta) || !PointsInRange(cur.TotalPoints+totalDelta) {
		return nil, ErrPointsOutOfRange
	}

	_, err = q.exec(ctx,
		`UPDATE members SET weekly_points = weekly_points + ?, total_points = total_points + ? WHERE id = ?`,
		weeklyDelta, totalDelta, id,
	)
	if err != nil {
		return nil, fmt.Errorf("add points: %w", err)
	}
	return q.GetMember(ctx, id)
}

func (q *sqlQueries) SpendPoints(ctx context.Context, id string, amount int) (*model.Member, error) {
	res, err := q.exec(ctx,
		`UPDATE members SET total_points = total_points - ? WHERE id = ? AND total_points >= ?`,
		amount, id, amount,
	)
	if err != nil {
		return nil, fmt.Errorf("spend points: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	m, err := q.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	// MySQL reports zero affected rows for a zero-cost spend.
	if n == 0 && m.TotalPoints < amount {
		return nil, ErrInsufficientFunds
	}
	return m, nil
}

func (q *sqlQueries) ResetMemberPoints(ctx context.Context, id string) (*model.Member, error) {
	_, err := q.exec(ctx, `UPDATE members SET weekly_points = 0, total_points = 0 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("reset member points: %w", err)
	}
	return q.GetMember(ctx, id)
}

func (q *sqlQueries) SetStreak(ctx context.Context, id string, streak int) (*model.Member, error) {
	_, err := q.exec(ctx, `UPDATE members SET streak = ? WHERE id = ?`, streak, id)
	if err != nil {
		return nil, fmt.Errorf("set streak: %w", err)
	}
	return q.GetMember(ctx, id)
}

func (q *sqlQueries) ResetWeeklyPoints(ctx context.Context, familyID string) (int64, error) {
	res, err := q.exec(ctx, `UPDATE members SET weekly_points = 0 WHERE family_id = ?`, familyID)
	if err != nil {
		return 0, fmt.Errorf("reset weekly points: %w", err)
	}
	return res.RowsAffected()
}

func (q *sqlQueries) DeleteMember(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %w", ErrNotFound)
	}
	return nil
}
