package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/chorechamp/internal/model"
	"github.com/dukerupert/chorechamp/internal/push"
)

type delivery struct {
	memberID string
	payload  push.Payload
}

// chanSender records deliveries on a channel since chore notifications are
// sent after the response is written.
type chanSender chan delivery

func (c chanSender) Send(ctx context.Context, sub *model.PushSubscription, p push.Payload) error {
	c <- delivery{sub.MemberID, p}
	return nil
}

func (c chanSender) next(t *testing.T) delivery {
	t.Helper()
	select {
	case d := <-c:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return delivery{}
	}
}

func subscribeBody(endpoint string) map[string]any {
	return map[string]any{
		"endpoint":   endpoint,
		"keys":       map[string]string{"p256dh": "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM", "auth": "tBHItJI5svbpez7KI4CCXg"},
		"deviceName": "Kitchen tablet",
	}
}

func TestPushRoutesDisabledWithoutKeys(t *testing.T) {
	e := newTestEnv(t, Options{})
	mom := e.signup("Mom", "SMITHBOSS")

	if status := e.do("GET", "/api/push/vapid-key", mom.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("vapid-key: status = %d, want 404", status)
	}
}

func TestPushSubscriptions(t *testing.T) {
	sender := make(chanSender, 8)
	e := newTestEnv(t, Options{VAPIDPublicKey: "pub", PushSender: sender})
	mom := e.signup("Mom", "SMITHBOSS")
	alex := e.signup("Alex", "SMITH")

	var key map[string]string
	if status := e.do("GET", "/api/push/vapid-key", alex.Token, nil, &key); status != http.StatusOK {
		t.Fatalf("vapid-key: status = %d", status)
	}
	if key["publicKey"] != "pub" {
		t.Errorf("publicKey = %q", key["publicKey"])
	}

	if status := e.do("POST", "/api/push/subscribe", alex.Token, map[string]any{"endpoint": "http://insecure"}, nil); status != http.StatusBadRequest {
		t.Errorf("bad subscribe: status = %d, want 400", status)
	}

	var momSub model.PushSubscription
	if status := e.do("POST", "/api/push/subscribe", mom.Token, subscribeBody("https://push.example.com/mom"), &momSub); status != http.StatusCreated {
		t.Fatalf("subscribe mom: status = %d", status)
	}
	if momSub.MemberID != mom.Member.ID || momSub.DeviceName != "Kitchen tablet" {
		t.Errorf("subscription = %+v", momSub)
	}
	var alexSub model.PushSubscription
	if status := e.do("POST", "/api/push/subscribe", alex.Token, subscribeBody("https://push.example.com/alex"), &alexSub); status != http.StatusCreated {
		t.Fatalf("subscribe alex: status = %d", status)
	}

	var mine []model.PushSubscription
	if status := e.do("GET", "/api/push/subscriptions", alex.Token, nil, &mine); status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	if len(mine) != 1 || mine[0].ID != alexSub.ID {
		t.Errorf("alex sees %+v, want only their own device", mine)
	}

	var result map[string]int
	if status := e.do("POST", "/api/push/test", alex.Token, nil, &result); status != http.StatusOK {
		t.Fatalf("test push: status = %d", status)
	}
	if result["sent"] != 1 {
		t.Errorf("sent = %d, want 1", result["sent"])
	}
	if d := sender.next(t); d.memberID != alex.Member.ID {
		t.Errorf("test push went to %s", d.memberID)
	}

	if status := e.do("DELETE", "/api/push/subscriptions/"+momSub.ID, alex.Token, nil, nil); status != http.StatusForbidden {
		t.Errorf("child deletes parent device: status = %d, want 403", status)
	}
	if status := e.do("DELETE", "/api/push/subscriptions/"+alexSub.ID, mom.Token, nil, nil); status != http.StatusOK {
		t.Errorf("parent deletes child device: status = %d", status)
	}
	if status := e.do("DELETE", "/api/push/subscriptions/"+alexSub.ID, mom.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("delete again: status = %d, want 404", status)
	}

	other := e.signup("Pat", "JONESBOSS")
	if status := e.do("DELETE", "/api/push/subscriptions/"+momSub.ID, other.Token, nil, nil); status != http.StatusNotFound {
		t.Errorf("cross-family delete: status = %d, want 404", status)
	}
}

func TestChorePushNotifications(t *testing.T) {
	sender := make(chanSender, 8)
	e := newTestEnv(t, Options{VAPIDPublicKey: "pub", PushSender: sender})
	mom := e.signup("Mom", "SMITHBOSS")
	alex := e.signup("Alex", "SMITH")

	for _, s := range []session{mom, alex} {
		if status := e.do("POST", "/api/push/subscribe", s.Token, subscribeBody("https://push.example.com/"+s.Member.Name), nil); status != http.StatusCreated {
			t.Fatalf("subscribe %s: status = %d", s.Member.Name, status)
		}
	}

	var c model.Chore
	if status := e.do("POST", "/api/chores", mom.Token, map[string]any{"emoji": "🧹", "title": "Sweep", "points": 10}, &c); status != http.StatusCreated {
		t.Fatalf("create chore: status = %d", status)
	}
	if status := e.do("PATCH", "/api/chores/"+c.ID+"/complete", alex.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("complete: status = %d", status)
	}
	if d := sender.next(t); d.memberID != mom.Member.ID || d.payload.Title != "Chore awaiting approval" {
		t.Errorf("complete push = %+v, want parent review", d)
	}

	if status := e.do("PATCH", "/api/chores/"+c.ID+"/approve", mom.Token, nil, nil); status != http.StatusOK {
		t.Fatalf("approve: status = %d", status)
	}
	if d := sender.next(t); d.memberID != alex.Member.ID || d.payload.Body != "+10 points for 🧹 Sweep" {
		t.Errorf("approve push = %+v, want completer", d)
	}
}
