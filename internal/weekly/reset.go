package weekly

import (
	"context"
	"errors"
	"time"

	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/store"
)

type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reports the current time in loc.
func SystemClock(loc *time.Location) Clock {
	return ClockFunc(func() time.Time { return time.Now().In(loc) })
}

// MarkerStore remembers, per family, the week key of the last rollover.
type MarkerStore interface {
	Marker(ctx context.Context, familyID string) (weekKey string, ok bool, err error)
	// Mark records weekKey. A nil champion keeps the previously stored one.
	Mark(ctx context.Context, familyID, weekKey string, champion *model.WeeklyChampion) error
}

// Notifier is told when a family crowns a new champion.
type Notifier interface {
	ChampionCrowned(ctx context.Context, familyID string, champion *model.WeeklyChampion)
}

// Result describes the outcome of a Check.
type Result struct {
	Reset    bool
	WeekKey  string
	Champion *model.WeeklyChampion
}

// Reset decides when a family's week rolls over and who won it.
type Reset struct {
	clock    Clock
	markers  MarkerStore
	notifier Notifier
}

// NewReset builds a Reset. notifier may be nil.
func NewReset(clock Clock, markers MarkerStore, notifier Notifier) *Reset {
	return &Reset{clock: clock, markers: markers, notifier: notifier}
}

// ShouldReset reports whether the stored marker belongs to an earlier week.
// The first call for a family seeds the marker and returns false.
func (r *Reset) ShouldReset(ctx context.Context, familyID string) (bool, string, error) {
	current := WeekKey(r.clock.Now())

	marker, ok, err := r.markers.Marker(ctx, familyID)
	if err != nil {
		return false, current, err
	}
	if !ok {
		return false, current, r.markers.Mark(ctx, familyID, current, nil)
	}
	return marker != current, current, nil
}

// Check runs ShouldReset and, on a rollover, crowns a champion from members,
// notifies, and moves the marker to the current week.
func (r *Reset) Check(ctx context.Context, familyID string, members []model.Member) (Result, error) {
	reset, key, err := r.ShouldReset(ctx, familyID)
	if err != nil || !reset {
		return Result{WeekKey: key}, err
	}

	champion := PickChampion(members, r.clock.Now())
	if err := r.markers.Mark(ctx, familyID, key, champion); err != nil {
		return Result{WeekKey: key}, err
	}
	if champion != nil && r.notifier != nil {
		r.notifier.ChampionCrowned(ctx, familyID, champion)
	}
	return Result{Reset: true, WeekKey: key, Champion: champion}, nil
}

// StoreMarkers keeps markers in the weekly_state rows of a store.
type StoreMarkers struct {
	Q store.Queries
}

func (m StoreMarkers) Marker(ctx context.Context, familyID string) (string, bool, error) {
	st, err := m.Q.GetWeeklyState(ctx, familyID)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st.WeekKey, true, nil
}

func (m StoreMarkers) Mark(ctx context.Context, familyID, weekKey string, champion *model.WeeklyChampion) error {
	st, err := m.Q.GetWeeklyState(ctx, familyID)
	if errors.Is(err, store.ErrNotFound) {
		st = &model.WeeklyState{FamilyID: familyID}
	} else if err != nil {
		return err
	}

	st.WeekKey = weekKey
	if champion != nil {
		st.Champion = champion
	}
	return m.Q.SaveWeeklyState(ctx, st)
}

// Champion returns the last crowned champion, or nil if there is none yet.
func (m StoreMarkers) Champion(ctx context.Context, familyID string) (*model.WeeklyChampion, error) {
	st, err := m.Q.GetWeeklyState(ctx, familyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st.Champion, nil
}
