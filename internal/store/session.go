package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

const sessionCols = `id, member_id, family_id, token_hash, expires_at, created_at`

func (q *sqlQueries) CreateSession(ctx context.Context, memberID, familyID, tokenHash string, expiresAt time.Time) (*model.Session, error) {
	s := &model.Session{
		ID:        uuid.NewString(),
		MemberID:  memberID,
		FamilyID:  familyID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC().Truncate(time.Microsecond),
		CreatedAt: now(),
	}
	_, err := q.exec(ctx,
		`INSERT INTO sessions (`+sessionCols+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.MemberID, s.FamilyID, s.TokenHash, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func (q *sqlQueries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	var s model.Session
	err := q.queryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE token_hash = ?`, tokenHash).
		Scan(&s.ID, &s.MemberID, &s.FamilyID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (q *sqlQueries) DeleteSession(ctx context.Context, id string) error {
	if _, err := q.exec(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (q *sqlQueries) DeleteExpiredSessions(ctx context.Context, at time.Time) (int64, error) {
	res, err := q.exec(ctx, `DELETE FROM sessions WHERE expires_at < ?`, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
