package auth

import (
	"context"
	"errors"
)

// ErrForbidden is returned when an actor lacks the role or ownership an
// operation requires.
var ErrForbidden = errors.New("forbidden")

type contextKey struct{}

// Actor is the authenticated member making a request.
type Actor struct {
	MemberID  string
	FamilyID  string
	SessionID string
	IsParent  bool
}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	return a, ok
}

func FamilyID(ctx context.Context) string {
	a, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return a.FamilyID
}

func MemberID(ctx context.Context) string {
	a, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return a.MemberID
}

func IsParent(ctx context.Context) bool {
	a, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return a.IsParent
}

// RequireParent returns ErrForbidden unless a is a parent.
func (a Actor) RequireParent() error {
	if !a.IsParent {
		return ErrForbidden
	}
	return nil
}

// CanActFor reports whether a may act on behalf of memberID. Parents may act
// for anyone in their family; children only for themselves.
func (a Actor) CanActFor(memberID string) error {
	if a.IsParent || a.MemberID == memberID {
		return nil
	}
	return ErrForbidden
}
