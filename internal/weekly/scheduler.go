package weekly

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/chorechamp/internal/store"
)

// Scheduler periodically rolls every family over to the new week: it crowns
// the champion and zeroes weekly points in the same transaction.
type Scheduler struct {
	mu       sync.RWMutex
	store    store.Store
	clock    Clock
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a weekly scheduler. notifier may be nil.
func NewScheduler(s store.Store, clock Clock, notifier Notifier, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:    s,
		clock:    clock,
		notifier: notifier,
		interval: interval,
		logger:   logger.With("component", "weekly"),
	}
}

// Start runs one pass immediately and then one per interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.RunOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce checks every family and returns how many rolled over.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	ids, err := s.store.ListFamilyIDs(ctx)
	if err != nil {
		s.logger.Error("list families", "error", err)
		return 0
	}

	n := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res, err := s.checkFamily(ctx, id)
		if err != nil {
			s.logger.Error("weekly check", "family_id", id, "error", err)
			continue
		}
		if !res.Reset {
			continue
		}
		n++
		if res.Champion != nil && s.notifier != nil {
			s.notifier.ChampionCrowned(ctx, id, res.Champion)
		}
		s.logger.Info("week rolled over", "family_id", id, "week", res.WeekKey, "champion", championName(res))
	}
	return n
}

func (s *Scheduler) checkFamily(ctx context.Context, familyID string) (Result, error) {
	var res Result
	err := s.store.InTx(ctx, func(q store.Queries) error {
		members, err := q.ListMembers(ctx, familyID)
		if err != nil {
			return err
		}
		res, err = NewReset(s.clock, StoreMarkers{Q: q}, nil).Check(ctx, familyID, members)
		if err != nil || !res.Reset {
			return err
		}
		_, err = q.ResetWeeklyPoints(ctx, familyID)
		return err
	})
	return res, err
}

func championName(res Result) string {
	if res.Champion == nil {
		return ""
	}
	return res.Champion.Name
}
