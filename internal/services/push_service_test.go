package services

import (
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func newTestPushService() *fcmPushService {
	return &fcmPushService{
		limiter: rate.NewLimiter(rate.Inf, 1),
		cfg:     PushConfig{},
		log:     zerolog.Nop(),
	}
}

func TestMulticastMessageFields(t *testing.T) {
	t.Parallel()
	svc := newTestPushService()

	payload := &PushPayload{
		Title:       "[Acme] #general",
		Body:        "[mention] Alice: hey there",
		Link:        "/servers/s1/channels/c1",
		CollapseKey: "channel-c1",
		Badge:       3,
		Data:        map[string]string{"serverId": "s1", "channelId": "c1"},
	}
	msg := svc.multicastMessage([]string{"tok1", "tok2"}, payload)

	if len(msg.Tokens) != 2 {
		t.Fatalf("tokens = %v", msg.Tokens)
	}
	if msg.Notification.Title != payload.Title || msg.Notification.Body != payload.Body {
		t.Fatalf("notification = %+v", msg.Notification)
	}
	if msg.Data["serverId"] != "s1" {
		t.Fatalf("data = %v", msg.Data)
	}

	if msg.Android.Priority != "high" || msg.Android.CollapseKey != "channel-c1" {
		t.Fatalf("android = %+v", msg.Android)
	}
	if msg.Android.Notification.Tag != "channel-c1" {
		t.Fatalf("android notification = %+v", msg.Android.Notification)
	}

	if msg.APNS.Headers["apns-collapse-id"] != "channel-c1" || msg.APNS.Headers["apns-push-type"] != "alert" {
		t.Fatalf("apns headers = %v", msg.APNS.Headers)
	}
	aps := msg.APNS.Payload.Aps
	if aps.Badge == nil || *aps.Badge != 3 {
		t.Fatalf("badge = %v", aps.Badge)
	}
	if aps.ThreadID != "channel-c1" {
		t.Fatalf("threadID = %q", aps.ThreadID)
	}
}

func TestMulticastMessageBadge(t *testing.T) {
	t.Parallel()
	svc := newTestPushService()

	// Zero is meaningful, it clears the app badge. Negative means the count
	// could not be read and the badge must stay untouched.
	zero := svc.multicastMessage([]string{"tok"}, &PushPayload{Badge: 0})
	if b := zero.APNS.Payload.Aps.Badge; b == nil || *b != 0 {
		t.Fatalf("badge = %v, want 0", b)
	}

	unknown := svc.multicastMessage([]string{"tok"}, &PushPayload{Badge: -1})
	if b := unknown.APNS.Payload.Aps.Badge; b != nil {
		t.Fatalf("badge = %v, want nil", b)
	}
}
