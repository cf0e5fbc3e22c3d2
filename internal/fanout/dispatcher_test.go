package fanout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/services"
)

func nativeToken(uid, token string) models.DeviceToken {
	return models.DeviceToken{UID: uid, Channel: models.PushChannelNative, Token: token, Enabled: true, PermissionGranted: true}
}

func webpushToken(uid, endpoint string) models.DeviceToken {
	sub := `{"endpoint":"` + endpoint + `","keys":{"auth":"a","p256dh":"p"}}`
	return models.DeviceToken{UID: uid, Channel: models.PushChannelWebpush, Token: endpoint, Subscription: datatypes.JSON(sub), Enabled: true, PermissionGranted: true}
}

func directTarget(uid string, settings models.NotificationSettings) models.DeliveryTarget {
	return models.DeliveryTarget{
		CandidateTarget: models.CandidateTarget{UID: uid, Kind: models.KindDirect},
		Settings:        settings,
	}
}

func TestDeliverWritesEntryAndPushes(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.users.users["a"] = &models.User{UID: "a", DisplayName: "Alice"}
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}
	env.activity.unread["u1"] = 3

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey there"}
	targets := []models.DeliveryTarget{directTarget("u1", withDefaults(nil))}
	env.engine.deliver(context.Background(), channelOrigin, msg, targets, zerolog.Nop())

	entries := env.activity.entriesFor("u1")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.MessageID != "m1" || entry.Origin != models.OriginChannel {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Title != "[Acme] #general" {
		t.Fatalf("title = %q", entry.Title)
	}
	if entry.Body != "[mention] Alice: hey there" {
		t.Fatalf("body = %q", entry.Body)
	}
	if entry.Link != "/servers/s1/channels/c1" {
		t.Fatalf("link = %q", entry.Link)
	}
	if !entry.PushAttempted {
		t.Fatal("entry must record the push attempt")
	}
	if entry.ServerID != "s1" || entry.ChannelID != "c1" {
		t.Fatalf("origin ids = %q/%q", entry.ServerID, entry.ChannelID)
	}

	if env.push.multicastCount() != 1 {
		t.Fatalf("multicasts = %d, want 1", env.push.multicastCount())
	}
	payload := env.push.lastPayload()
	if payload.Badge != 3 {
		t.Fatalf("badge = %d, want 3", payload.Badge)
	}
	if payload.CollapseKey != "channel-c1" {
		t.Fatalf("collapse key = %q", payload.CollapseKey)
	}
	if payload.Data["serverId"] != "s1" || payload.Data["channelId"] != "c1" {
		t.Fatalf("data = %+v", payload.Data)
	}
	if payload.Data["messageId"] != "m1" || payload.Data["activityId"] == "" {
		t.Fatalf("data = %+v", payload.Data)
	}
	if payload.Data["kind"] != "direct" {
		t.Fatalf("data kind = %q", payload.Data["kind"])
	}
}

func TestDeliverWithoutTokensStillWritesEntry(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	targets := []models.DeliveryTarget{directTarget("u1", withDefaults(nil))}
	env.engine.deliver(context.Background(), channelOrigin, msg, targets, zerolog.Nop())

	entries := env.activity.entriesFor("u1")
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].PushAttempted {
		t.Fatal("no reachable endpoint, push must not be recorded as attempted")
	}
	if env.push.multicastCount() != 0 {
		t.Fatal("multicast called without tokens")
	}
}

func TestDeliverSkipsDisabledTokens(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	off := nativeToken("u1", "tok-off")
	off.Enabled = false
	revoked := nativeToken("u1", "tok-revoked")
	revoked.PermissionGranted = false
	env.tokens.byUID["u1"] = []models.DeviceToken{off, revoked}

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", withDefaults(nil))}, zerolog.Nop())

	if env.push.multicastCount() != 0 {
		t.Fatal("multicast called for unreachable tokens")
	}
}

func TestDeliverDuplicateSkipsPushAndEmail(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.activity.markSeen("u1", "m1")
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}
	env.email.enabled = true

	settings := withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", settings)}, zerolog.Nop())

	if env.push.multicastCount() != 0 {
		t.Fatal("push sent for an already notified recipient")
	}
	if len(env.email.sentMails()) != 0 {
		t.Fatal("email sent for an already notified recipient")
	}
}

func TestDeliverFeedWriteFailureStillPushes(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.activity.createErr = errors.New("mongo down")
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", withDefaults(nil))}, zerolog.Nop())

	if env.push.multicastCount() != 1 {
		t.Fatal("feed outage must not cost the recipient the push")
	}
}

func TestDeliverDisablesUnregisteredTokens(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1"), nativeToken("u1", "tok2")}
	env.push.results["tok2"] = services.PushResult{Unregistered: true, Err: errors.New("unregistered")}

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", withDefaults(nil))}, zerolog.Nop())

	disabled := env.tokens.disabledTokens()
	if len(disabled) != 1 || disabled[0] != "tok2" {
		t.Fatalf("disabled = %v, want [tok2]", disabled)
	}
}

func TestDeliverDisablesGoneWebpushSubscription(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.tokens.byUID["u1"] = []models.DeviceToken{webpushToken("u1", "https://push.example/ep1")}
	env.push.webpushErr = services.ErrSubscriptionGone

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", withDefaults(nil))}, zerolog.Nop())

	disabled := env.tokens.disabledTokens()
	if len(disabled) != 1 || disabled[0] != "https://push.example/ep1" {
		t.Fatalf("disabled = %v, want the gone endpoint", disabled)
	}
}

func TestDeliverSendsEmailWhenNoPushPossible(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.email.enabled = true
	env.users.users["u1"] = &models.User{UID: "u1", Email: "u1@example.com"}
	env.users.users["a"] = &models.User{UID: "a", DisplayName: "Alice"}

	settings := withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", settings)}, zerolog.Nop())

	mails := env.email.sentMails()
	if len(mails) != 1 {
		t.Fatalf("got %d mails, want 1", len(mails))
	}
	if mails[0].To != "u1@example.com" {
		t.Fatalf("to = %q", mails[0].To)
	}
	if mails[0].Subject != "[Acme] #general" {
		t.Fatalf("subject = %q", mails[0].Subject)
	}
	if !strings.Contains(mails[0].Text, "/servers/s1/channels/c1") {
		t.Fatalf("text = %q, want the conversation link", mails[0].Text)
	}
	if !strings.Contains(mails[0].HTML, "Alice") {
		t.Fatalf("html misses the body: %q", mails[0].HTML)
	}
}

func TestDeliverEmailSuppressedWhenPushWasAttempted(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.email.enabled = true
	env.users.users["u1"] = &models.User{UID: "u1", Email: "u1@example.com"}
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}

	// EmailOnlyWhenNoPush is on by default; a reachable device wins.
	settings := withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", settings)}, zerolog.Nop())

	if len(env.email.sentMails()) != 0 {
		t.Fatal("email sent although a push went out")
	}
}

func TestDeliverEmailSkippedForActiveRecipient(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.email.enabled = true
	env.users.users["u1"] = &models.User{UID: "u1", Email: "u1@example.com"}
	env.presence.states["u1"] = models.PresenceOnline

	settings := withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", settings)}, zerolog.Nop())

	if len(env.email.sentMails()) != 0 {
		t.Fatal("email sent to a recipient who is looking at the app")
	}
}

func TestDeliverEmailSkippedWithoutAddress(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.email.enabled = true

	settings := withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", settings)}, zerolog.Nop())

	if len(env.email.sentMails()) != 0 {
		t.Fatal("email sent without a known address")
	}
}

func TestDeliverEmailOnlyTargetGetsEmailNotPush(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.email.enabled = true
	env.users.users["u1"] = &models.User{UID: "u1", Email: "u1@example.com"}
	// Reachable device, but the target is retention-only.
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}

	settings := withDefaults(func(s *models.NotificationSettings) {
		s.AllowChannelMessagePush = false
		s.EmailEnabled = true
		s.EmailForAllChannelMessages = true
	})
	target := models.DeliveryTarget{
		CandidateTarget: models.CandidateTarget{UID: "u1", Kind: models.KindChannel},
		Settings:        settings,
		EmailOnly:       true,
	}
	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg, []models.DeliveryTarget{target}, zerolog.Nop())

	if env.push.multicastCount() != 0 {
		t.Fatal("push sent for an email-only target")
	}
	entries := env.activity.entriesFor("u1")
	if len(entries) != 1 || entries[0].PushAttempted {
		t.Fatalf("entries = %+v, want one without push attempt", entries)
	}
	if len(env.email.sentMails()) != 1 {
		t.Fatalf("got %d mails, want 1", len(env.email.sentMails()))
	}
}

func TestDeliverBadgeUnknownOnCountFailure(t *testing.T) {
	t.Parallel()
	channelOrigin, _, _ := testOrigins()
	env := newTestEnv()
	env.tokens.byUID["u1"] = []models.DeviceToken{nativeToken("u1", "tok1")}
	env.activity.unreadErr = errors.New("mongo down")

	msg := &models.Message{ID: "m1", AuthorUID: "a", Text: "hey"}
	env.engine.deliver(context.Background(), channelOrigin, msg,
		[]models.DeliveryTarget{directTarget("u1", withDefaults(nil))}, zerolog.Nop())

	if payload := env.push.lastPayload(); payload == nil || payload.Badge != -1 {
		t.Fatalf("payload = %+v, want badge -1", payload)
	}
}

func TestEmailSuppressReason(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name          string
		target        models.DeliveryTarget
		pushAttempted bool
		want          models.SuppressReason
	}{
		{
			name:          "push reachable blocks email",
			target:        directTarget("u", withDefaults(func(s *models.NotificationSettings) { s.EmailEnabled = true })),
			pushAttempted: true,
			want:          models.ReasonEmailPushReachable,
		},
		{
			name: "opt out of only-when-no-push",
			target: directTarget("u", withDefaults(func(s *models.NotificationSettings) {
				s.EmailEnabled = true
				s.EmailOnlyWhenNoPush = false
			})),
			pushAttempted: true,
			want:          "",
		},
		{
			name: "dm kind disabled",
			target: models.DeliveryTarget{
				CandidateTarget: models.CandidateTarget{UID: "u", Kind: models.KindDM},
				Settings: withDefaults(func(s *models.NotificationSettings) {
					s.EmailEnabled = true
					s.EmailForDMs = false
				}),
			},
			want: models.ReasonEmailKindDisabled,
		},
		{
			name: "mention kind disabled",
			target: directTarget("u", withDefaults(func(s *models.NotificationSettings) {
				s.EmailEnabled = true
				s.EmailForMentions = false
			})),
			want: models.ReasonEmailKindDisabled,
		},
		{
			name: "channel email mentions only",
			target: models.DeliveryTarget{
				CandidateTarget: models.CandidateTarget{UID: "u", Kind: models.KindChannel},
				Settings: withDefaults(func(s *models.NotificationSettings) {
					s.EmailEnabled = true
					s.EmailChannelMentionsOnly = true
				}),
			},
			want: models.ReasonEmailKindDisabled,
		},
		{
			name: "retention target needs the all-channel opt-in",
			target: models.DeliveryTarget{
				CandidateTarget: models.CandidateTarget{UID: "u", Kind: models.KindChannel},
				Settings: withDefaults(func(s *models.NotificationSettings) {
					s.EmailEnabled = true
				}),
				EmailOnly: true,
			},
			want: models.ReasonEmailKindDisabled,
		},
		{
			name: "retention target with the all-channel opt-in",
			target: models.DeliveryTarget{
				CandidateTarget: models.CandidateTarget{UID: "u", Kind: models.KindChannel},
				Settings: withDefaults(func(s *models.NotificationSettings) {
					s.EmailEnabled = true
					s.EmailForAllChannelMessages = true
				}),
				EmailOnly: true,
			},
			want: "",
		},
		{
			name: "plain channel message follows its own toggle",
			target: models.DeliveryTarget{
				CandidateTarget: models.CandidateTarget{UID: "u", Kind: models.KindChannel},
				Settings: withDefaults(func(s *models.NotificationSettings) {
					s.EmailEnabled = true
					s.EmailForChannelMessages = false
				}),
			},
			want: models.ReasonEmailKindDisabled,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := emailSuppressReason(tt.target, tt.pushAttempted)
			if got != tt.want {
				t.Fatalf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}
