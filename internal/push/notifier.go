package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/chorechamp/internal/model"
)

// Store is the subset of store.Queries the notifier reads.
type Store interface {
	ListMembers(ctx context.Context, familyID string) ([]model.Member, error)
	ListPushSubscriptions(ctx context.Context, familyID string) ([]model.PushSubscription, error)
	DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error
}

// Notifier turns family events into push notifications. Expired
// subscriptions are removed as they are found.
type Notifier struct {
	store  Store
	sender Sender
	logger *slog.Logger
}

func NewNotifier(s Store, sender Sender, logger *slog.Logger) *Notifier {
	return &Notifier{store: s, sender: sender, logger: logger}
}

// ChampionCrowned tells every subscribed device in the family.
func (n *Notifier) ChampionCrowned(ctx context.Context, familyID string, c *model.WeeklyChampion) {
	payload := Payload{
		Title: "Weekly champion",
		Body:  fmt.Sprintf("%s %s won the week with %d points!", c.Avatar, c.Name, c.WeeklyPoints),
		URL:   "/",
		Tag:   "champion",
	}
	n.send(ctx, familyID, payload, func(string) bool { return true })
}

// ChoreCompleted asks the family's parents to review a finished chore.
func (n *Notifier) ChoreCompleted(ctx context.Context, familyID string, c *model.Chore) {
	members, err := n.store.ListMembers(ctx, familyID)
	if err != nil {
		n.logger.Error("list members for push", "family_id", familyID, "error", err)
		return
	}
	parents := map[string]bool{}
	who := "Someone"
	for _, m := range members {
		if m.IsParent {
			parents[m.ID] = true
		}
		if c.CompletedByID != nil && m.ID == *c.CompletedByID {
			who = m.Name
		}
	}

	payload := Payload{
		Title: "Chore awaiting approval",
		Body:  fmt.Sprintf("%s finished %s %s", who, c.Emoji, c.Title),
		URL:   "/",
		Tag:   "chore-" + c.ID,
	}
	n.send(ctx, familyID, payload, func(memberID string) bool {
		return parents[memberID] && (c.CompletedByID == nil || memberID != *c.CompletedByID)
	})
}

// ChoreApproved tells the member who did the chore that points landed.
func (n *Notifier) ChoreApproved(ctx context.Context, familyID string, c *model.Chore) {
	if c.CompletedByID == nil {
		return
	}
	payload := Payload{
		Title: "Chore approved",
		Body:  fmt.Sprintf("+%d points for %s %s", c.Points, c.Emoji, c.Title),
		URL:   "/",
		Tag:   "chore-" + c.ID,
	}
	completer := *c.CompletedByID
	n.send(ctx, familyID, payload, func(memberID string) bool { return memberID == completer })
}

// NotifyMember sends payload to every device of one member and reports how
// many deliveries succeeded.
func (n *Notifier) NotifyMember(ctx context.Context, familyID, memberID string, payload Payload) (int, error) {
	subs, err := n.store.ListPushSubscriptions(ctx, familyID)
	if err != nil {
		return 0, fmt.Errorf("list push subscriptions: %w", err)
	}
	var sent int
	for i := range subs {
		if subs[i].MemberID != memberID {
			continue
		}
		if n.deliver(ctx, &subs[i], payload) {
			sent++
		}
	}
	return sent, nil
}

func (n *Notifier) send(ctx context.Context, familyID string, payload Payload, want func(memberID string) bool) {
	subs, err := n.store.ListPushSubscriptions(ctx, familyID)
	if err != nil {
		n.logger.Error("list push subscriptions", "family_id", familyID, "error", err)
		return
	}
	for i := range subs {
		if want(subs[i].MemberID) {
			n.deliver(ctx, &subs[i], payload)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, sub *model.PushSubscription, payload Payload) bool {
	err := n.sender.Send(ctx, sub, payload)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrExpired) {
		n.logger.Info("removing expired push subscription", "subscription_id", sub.ID)
		if err := n.store.DeletePushSubscriptionByEndpoint(ctx, sub.Endpoint); err != nil {
			n.logger.Error("delete expired subscription", "subscription_id", sub.ID, "error", err)
		}
		return false
	}
	n.logger.Error("send push", "subscription_id", sub.ID, "tag", payload.Tag, "error", err)
	return false
}
