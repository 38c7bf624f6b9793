package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

func scanChore(s scanner) (*model.Chore, error) {
	var c model.Chore
	var status string
	var assignedTo, assignedBy, completedBy sql.NullString
	var completedAt sql.NullTime

	err := s.Scan(
		&c.ID, &c.FamilyID, &c.Emoji, &c.Title, &c.Points,
		&assignedTo, &assignedBy, &completedBy,
		&status, &c.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = model.ChoreStatus(status)
	c.AssignedToID = stringPtr(assignedTo)
	c.AssignedByID = stringPtr(assignedBy)
	c.CompletedByID = stringPtr(completedBy)
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return &c, nil
}

const choreCols = `id, family_id, emoji, title, points, assigned_to_id, assigned_by_id, completed_by_id, status, created_at, completed_at`

func (q *sqlQueries) CreateChore(ctx context.Context, c *model.Chore) (*model.Chore, error) {
	out := *c
	out.ID = uuid.NewString()
	out.CreatedAt = now()
	if out.Status == "" {
		out.Status = model.ChoreAvailable
	}

	_, err := q.exec(ctx,
		`INSERT INTO chores (`+choreCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.FamilyID, out.Emoji, out.Title, out.Points,
		nullString(out.AssignedToID), nullString(out.AssignedByID), nullString(out.CompletedByID),
		string(out.Status), out.CreatedAt, nullTime(out.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore: %w", err)
	}
	return &out, nil
}

func (q *sqlQueries) GetChore(ctx context.Context, id string) (*model.Chore, error) {
	c, err := scanChore(q.queryRow(ctx, `SELECT `+choreCols+` FROM chores WHERE id = ?`+q.lock, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chore %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get chore: %w", err)
	}
	return c, nil
}

func (q *sqlQueries) ListChores(ctx context.Context, familyID string) ([]model.Chore, error) {
	rows, err := q.query(ctx,
		`SELECT `+choreCols+` FROM chores WHERE family_id = ? ORDER BY created_at ASC, id ASC`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list chores: %w", err)
	}
	defer rows.Close()

	chores := []model.Chore{}
	for rows.Next() {
		c, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore: %w", err)
		}
		chores = append(chores, *c)
	}
	return chores, rows.Err()
}

// UpdateChore writes the mutable lifecycle columns of c.
func (q *sqlQueries) UpdateChore(ctx context.Context, c *model.Chore) error {
	_, err := q.exec(ctx,
		`UPDATE chores SET status = ?, assigned_to_id = ?, assigned_by_id = ?, completed_by_id = ?, completed_at = ?
		 WHERE id = ?`,
		string(c.Status), nullString(c.AssignedToID), nullString(c.AssignedByID), nullString(c.CompletedByID),
		nullTime(c.CompletedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("update chore: %w", err)
	}
	return nil
}

func (q *sqlQueries) DeleteChore(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chore %w", ErrNotFound)
	}
	return nil
}
