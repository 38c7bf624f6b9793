package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/model"
)

func scanFamily(s scanner) (*model.Family, error) {
	var f model.Family
	if err := s.Scan(&f.ID, &f.Code, &f.Name, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

const familyCols = `id, code, name, created_at`

func (q *sqlQueries) CreateFamily(ctx context.Context, code, name string) (*model.Family, error) {
	f := &model.Family{ID: uuid.NewString(), Code: code, Name: name, CreatedAt: now()}
	if _, err := q.GetFamilyByCode(ctx, code); err == nil {
		return nil, fmt.Errorf("family %q: %w", code, ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	_, err := q.exec(ctx,
		`INSERT INTO families (id, code, name, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.Code, f.Name, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("family %q: %w", code, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}
	return f, nil
}

func (q *sqlQueries) GetFamily(ctx context.Context, id string) (*model.Family, error) {
	f, err := scanFamily(q.queryRow(ctx, `SELECT `+familyCols+` FROM families WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	return f, nil
}

func (q *sqlQueries) GetFamilyByCode(ctx context.Context, code string) (*model.Family, error) {
	f, err := scanFamily(q.queryRow(ctx, `SELECT `+familyCols+` FROM families WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("family %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get family by code: %w", err)
	}
	return f, nil
}

func (q *sqlQueries) ListFamilyIDs(ctx context.Context) ([]string, error) {
	rows, err := q.query(ctx, `SELECT id FROM families ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list families: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan family id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
