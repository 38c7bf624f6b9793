package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/chorechamp/internal/database"
	"github.com/dukerupert/chorechamp/internal/model"
)

const pushCols = `id, member_id, family_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// SavePushSubscription stores sub, replacing the owner and keys of an
// existing row with the same endpoint. ID and CreatedAt are filled in.
func (q *sqlQueries) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	sub.ID = uuid.NewString()
	sub.CreatedAt = now()

	_, err := q.exec(ctx, q.upsertPush(),
		sub.ID, sub.MemberID, sub.FamilyID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.DeviceName, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}

	// On conflict the original id survives.
	err = q.queryRow(ctx, `SELECT id, created_at FROM push_subscriptions WHERE endpoint = ?`, sub.Endpoint).
		Scan(&sub.ID, &sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("reload push subscription: %w", err)
	}
	return nil
}

func (q *sqlQueries) upsertPush() string {
	insert := `INSERT INTO push_subscriptions (` + pushCols + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if q.dialect == database.MySQL {
		return insert + ` ON DUPLICATE KEY UPDATE
			member_id = VALUES(member_id),
			family_id = VALUES(family_id),
			p256dh_key = VALUES(p256dh_key),
			auth_key = VALUES(auth_key),
			device_name = VALUES(device_name)`
	}
	return insert + ` ON CONFLICT (endpoint) DO UPDATE SET
		member_id = excluded.member_id,
		family_id = excluded.family_id,
		p256dh_key = excluded.p256dh_key,
		auth_key = excluded.auth_key,
		device_name = excluded.device_name`
}

func (q *sqlQueries) ListPushSubscriptions(ctx context.Context, familyID string) ([]model.PushSubscription, error) {
	rows, err := q.query(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE family_id = ? ORDER BY created_at, id`, familyID)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []model.PushSubscription{}
	for rows.Next() {
		sub, err := scanPush(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func (q *sqlQueries) GetPushSubscription(ctx context.Context, id string) (*model.PushSubscription, error) {
	sub, err := scanPush(q.queryRow(ctx, `SELECT `+pushCols+` FROM push_subscriptions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("push subscription %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (q *sqlQueries) DeletePushSubscription(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("push subscription %w", ErrNotFound)
	}
	return nil
}

func (q *sqlQueries) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	if _, err := q.exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanPush(row scanner) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := row.Scan(&sub.ID, &sub.MemberID, &sub.FamilyID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
