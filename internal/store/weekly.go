package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/chorechamp/internal/database"
	"github.com/dukerupert/chorechamp/internal/model"
)

const weeklyCols = `family_id, week_key, champion_member_id, champion_name, champion_avatar, champion_points, champion_week_ending, updated_at`

func (q *sqlQueries) GetWeeklyState(ctx context.Context, familyID string) (*model.WeeklyState, error) {
	var st model.WeeklyState
	var memberID, name, avatar sql.NullString
	var points sql.NullInt64
	var weekEnding sql.NullTime

	err := q.queryRow(ctx, `SELECT `+weeklyCols+` FROM weekly_state WHERE family_id = ?`+q.lock, familyID).
		Scan(&st.FamilyID, &st.WeekKey, &memberID, &name, &avatar, &points, &weekEnding, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("weekly state %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly state: %w", err)
	}

	if memberID.Valid {
		st.Champion = &model.WeeklyChampion{
			MemberID:     memberID.String,
			Name:         name.String,
			Avatar:       avatar.String,
			WeeklyPoints: int(points.Int64),
			WeekEnding:   weekEnding.Time,
		}
	}
	return &st, nil
}

// SaveWeeklyState inserts or replaces the row for st.FamilyID.
func (q *sqlQueries) SaveWeeklyState(ctx context.Context, st *model.WeeklyState) error {
	var memberID, name, avatar sql.NullString
	var points sql.NullInt64
	var weekEnding sql.NullTime
	if c := st.Champion; c != nil {
		memberID = sql.NullString{String: c.MemberID, Valid: true}
		name = sql.NullString{String: c.Name, Valid: true}
		avatar = sql.NullString{String: c.Avatar, Valid: true}
		points = sql.NullInt64{Int64: int64(c.WeeklyPoints), Valid: true}
		weekEnding = sql.NullTime{Time: c.WeekEnding.UTC(), Valid: true}
	}
	st.UpdatedAt = now()

	_, err := q.exec(ctx, q.upsertWeekly(),
		st.FamilyID, st.WeekKey, memberID, name, avatar, points, weekEnding, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save weekly state: %w", err)
	}
	return nil
}

func (q *sqlQueries) upsertWeekly() string {
	insert := `INSERT INTO weekly_state (` + weeklyCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if q.dialect == database.MySQL {
		return insert + ` ON DUPLICATE KEY UPDATE
			week_key = VALUES(week_key),
			champion_member_id = VALUES(champion_member_id),
			champion_name = VALUES(champion_name),
			champion_avatar = VALUES(champion_avatar),
			champion_points = VALUES(champion_points),
			champion_week_ending = VALUES(champion_week_ending),
			updated_at = VALUES(updated_at)`
	}
	return insert + ` ON CONFLICT (family_id) DO UPDATE SET
		week_key = excluded.week_key,
		champion_member_id = excluded.champion_member_id,
		champion_name = excluded.champion_name,
		champion_avatar = excluded.champion_avatar,
		champion_points = excluded.champion_points,
		champion_week_ending = excluded.champion_week_ending,
		updated_at = excluded.updated_at`
}
