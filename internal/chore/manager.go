package chore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/chorechamp/internal/auth"
	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
)

// Manager runs the chore lifecycle. Every transition happens inside a single
// store transaction and is scoped to the actor's family.
type Manager struct {
	store  store.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewManager(s store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  s,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With("component", "chore"),
	}
}

// NewInput describes a chore to create.
type NewInput struct {
	Emoji        string
	Title        string
	Points       int
	AssignedToID *string
}

// Create adds a chore to the actor's family. A chore created with an assignee
// starts out assigned, by the actor.
func (m *Manager) Create(ctx context.Context, a auth.Actor, in NewInput) (*model.Chore, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}

	var created *model.Chore
	err := m.store.InTx(ctx, func(q store.Queries) error {
		c := &model.Chore{
			FamilyID: a.FamilyID,
			Emoji:    in.Emoji,
			Title:    in.Title,
			Points:   in.Points,
			Status:   model.ChoreAvailable,
		}
		if in.AssignedToID != nil {
			if _, err := familyMember(ctx, q, a.FamilyID, *in.AssignedToID); err != nil {
				return err
			}
			assignedTo, assignedBy := *in.AssignedToID, a.MemberID
			c.AssignedToID = &assignedTo
			c.AssignedByID = &assignedBy
			c.Status = model.ChoreAssigned
		}

		var err error
		created, err = q.CreateChore(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("chore created", "chore_id", created.ID, "family_id", created.FamilyID, "status", created.Status)
	return created, nil
}

func (m *Manager) List(ctx context.Context, a auth.Actor) ([]model.Chore, error) {
	return m.store.ListChores(ctx, a.FamilyID)
}

func (m *Manager) Get(ctx context.Context, a auth.Actor, id string) (*model.Chore, error) {
	return familyChore(ctx, m.store, a.FamilyID, id)
}

// Claim moves an available chore to claimed by memberID.
func (m *Manager) Claim(ctx context.Context, a auth.Actor, id, memberID string) (*model.Chore, error) {
	if err := a.CanActFor(memberID); err != nil {
		return nil, err
	}
	return m.transition(ctx, a, id, ActionClaim, func(q store.Queries, c *model.Chore) error {
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		c.AssignedToID = &memberID
		return nil
	})
}

// Assign hands an available chore to assignedToID. An empty assignedByID
// records the actor as the assigner.
func (m *Manager) Assign(ctx context.Context, a auth.Actor, id, assignedToID, assignedByID string) (*model.Chore, error) {
	if err := a.RequireParent(); err != nil {
		return nil, err
	}
	if assignedByID == "" {
		assignedByID = a.MemberID
	}
	return m.transition(ctx, a, id, ActionAssign, func(q store.Queries, c *model.Chore) error {
		if _, err := familyMember(ctx, q, a.FamilyID, assignedToID); err != nil {
			return err
		}
		if _, err := familyMember(ctx, q, a.FamilyID, assignedByID); err != nil {
			return err
		}
		c.AssignedToID = &assignedToID
		c.AssignedByID = &assignedByID
		return nil
	})
}

// Complete marks a chore as done by memberID and waiting for approval.
// Children may only complete for themselves, and not a chore held by someone else.
func (m *Manager) Complete(ctx context.Context, a auth.Actor, id, memberID string) (*model.Chore, error) {
	if err := a.CanActFor(memberID); err != nil {
		return nil, err
	}
	return m.transition(ctx, a, id, ActionComplete, func(q store.Queries, c *model.Chore) error {
		if !a.IsParent && c.AssignedToID != nil && *c.AssignedToID != memberID {
			return auth.ErrForbidden
		}
		if _, err := familyMember(ctx, q, a.FamilyID, memberID); err != nil {
			return err
		}
		done := m.now()
		c.CompletedByID = &memberID
		c.CompletedAt = &done
		return nil
	})
}

// Approve completes a pending chore and awards its points to the member who
// completed it. Approving a chore twice fails with ErrInvalidTransition.
func (m *Manager) Approve(ctx context.Context, a auth.Actor, id string) (*model.Chore, *model.Member, error) {
	if err := a.RequireParent(); err != nil {
		return nil, nil, err
	}

	var awarded *model.Member
	c, err := m.transition(ctx, a, id, ActionApprove, func(q store.Queries, c *model.Chore) error {
		if c.CompletedByID == nil {
			return fmt.Errorf("completer %w", store.ErrNotFound)
		}
		if _, err := familyMember(ctx, q, a.FamilyID, *c.CompletedByID); err != nil {
			return err
		}

		var err error
		awarded, err = q.AddPoints(ctx, *c.CompletedByID, c.Points, c.Points)
		if err != nil {
			return err
		}
		done := m.now()
		c.CompletedAt = &done
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	m.logger.Info("chore approved", "chore_id", c.ID, "member_id", awarded.ID, "points", c.Points)
	return c, awarded, nil
}

// Delete removes a chore at any status without touching points.
func (m *Manager) Delete(ctx context.Context, a auth.Actor, id string) error {
	if err := a.RequireParent(); err != nil {
		return err
	}
	return m.store.InTx(ctx, func(q store.Queries) error {
		if _, err := familyChore(ctx, q, a.FamilyID, id); err != nil {
			return err
		}
		return q.DeleteChore(ctx, id)
	})
}

func (m *Manager) transition(ctx context.Context, a auth.Actor, id string, action Action, apply func(q store.Queries, c *model.Chore) error) (*model.Chore, error) {
	var out *model.Chore
	err := m.store.InTx(ctx, func(q store.Queries) error {
		c, err := familyChore(ctx, q, a.FamilyID, id)
		if err != nil {
			return err
		}
		to, err := Next(c.Status, action)
		if err != nil {
			return err
		}
		if err := apply(q, c); err != nil {
			return err
		}
		c.Status = to
		if err := q.UpdateChore(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// familyChore loads a chore, reporting chores from other families as missing.
func familyChore(ctx context.Context, q store.Queries, familyID, id string) (*model.Chore, error) {
	c, err := q.GetChore(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.FamilyID != familyID {
		return nil, fmt.Errorf("chore %w", store.ErrNotFound)
	}
	return c, nil
}

func familyMember(ctx context.Context, q store.Queries, familyID, id string) (*model.Member, error) {
	mem, err := q.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if mem.FamilyID != familyID {
		return nil, fmt.Errorf("member %w", store.ErrNotFound)
	}
	return mem, nil
}
