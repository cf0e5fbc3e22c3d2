package fanout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/services"
)

// messageContent is the rendered notification, computed once per invocation
// and shared by every recipient.
type messageContent struct {
	authorName string
	title      string
	preview    string
	link       string
	collapse   string
}

// deliver dispatches to every surviving target concurrently on the worker
// pool. No recipient's failure touches another's: each dispatch is isolated
// down to a recover guard.
func (e *Engine) deliver(ctx context.Context, origin *Origin, msg *models.Message, targets []models.DeliveryTarget, log zerolog.Logger) {
	if len(targets) == 0 {
		return
	}
	authorName := e.displayName(ctx, msg.Author())
	content := messageContent{
		authorName: authorName,
		title:      originTitle(origin, authorName),
		preview:    messagePreview(msg),
		link:       originLink(origin),
		collapse:   originCollapseKey(origin),
	}

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(t models.DeliveryTarget) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("uid", t.UID).Msg("recipient dispatch panicked")
				}
			}()
			e.deliverOne(ctx, origin, msg, t, content, log)
		}(targets[i])
	}
	wg.Wait()
}

// deliverOne handles one recipient: activity entry, push, email. The entry
// write is the idempotency point; when it reports the recipient was already
// notified for this message, push and email are skipped.
func (e *Engine) deliverOne(ctx context.Context, origin *Origin, msg *models.Message, t models.DeliveryTarget, content messageContent, log zerolog.Logger) {
	log = log.With().Str("uid", t.UID).Str("kind", t.Kind.String()).Logger()

	tokens, err := e.deps.Tokens.GetByUser(ctx, t.UID)
	if err != nil {
		log.Warn().Err(err).Msg("device token lookup failed")
		tokens = nil
	}
	var native []string
	var webpushSubs []models.DeviceToken
	for _, tok := range tokens {
		if !tok.Reachable() {
			continue
		}
		if tok.Channel == models.PushChannelWebpush {
			webpushSubs = append(webpushSubs, tok)
		} else {
			native = append(native, tok.Token)
		}
	}
	pushPlanned := !t.EmailOnly && len(native)+len(webpushSubs) > 0

	entry := &models.ActivityEntry{
		ID:            uuid.NewString(),
		RecipientUID:  t.UID,
		MessageID:     msg.ID,
		Origin:        origin.Type,
		ActorUID:      msg.Author(),
		ActorName:     content.authorName,
		Kind:          t.Kind.String(),
		RoleID:        t.RoleID,
		Title:         content.title,
		Body:          t.Kind.Label() + content.authorName + ": " + content.preview,
		Link:          content.link,
		PushAttempted: pushPlanned,
		CreatedAt:     time.Now(),
	}
	if origin.Server != nil {
		entry.ServerID, entry.ServerName = origin.Server.ID, origin.Server.Name
	}
	if origin.Channel != nil {
		entry.ChannelID, entry.ChannelName = origin.Channel.ID, origin.Channel.Name
	}
	if origin.Thread != nil {
		entry.ThreadID, entry.ThreadName = origin.Thread.ID, origin.Thread.Name
	}
	if origin.DM != nil {
		entry.DMID = origin.DM.ID
	}

	inserted, err := e.deps.Activity.CreateIfAbsent(ctx, entry)
	if err != nil {
		// The feed write failing must not cost the recipient the push.
		log.Error().Err(err).Msg("activity entry write failed")
	} else if !inserted {
		log.Debug().Str("reason", string(models.ReasonDuplicateTrigger)).Msg("already notified for this message")
		return
	}

	if pushPlanned {
		e.sendPush(ctx, t, entry, content.collapse, native, webpushSubs, log)
	}
	e.maybeEmail(ctx, t, entry, pushPlanned, log)
}

// sendPush pushes the rendered entry to the recipient's reachable endpoints:
// one multicast for the native tokens, individual concurrent sends for the
// webpush subscriptions. Endpoints the provider reports gone are disabled.
func (e *Engine) sendPush(ctx context.Context, t models.DeliveryTarget, entry *models.ActivityEntry, collapse string, native []string, webpushSubs []models.DeviceToken, log zerolog.Logger) {
	badge := -1
	if count, err := e.deps.Activity.GetUnreadCount(ctx, t.UID); err != nil {
		log.Warn().Err(err).Msg("unread count lookup failed")
	} else {
		badge = int(count)
	}

	data := map[string]string{
		"title":      entry.Title,
		"body":       entry.Body,
		"kind":       entry.Kind,
		"messageId":  entry.MessageID,
		"activityId": entry.ID,
		"link":       entry.Link,
	}
	if entry.ServerID != "" {
		data["serverId"] = entry.ServerID
	}
	if entry.ChannelID != "" {
		data["channelId"] = entry.ChannelID
	}
	if entry.ThreadID != "" {
		data["threadId"] = entry.ThreadID
	}
	if entry.DMID != "" {
		data["dmId"] = entry.DMID
	}
	if entry.RoleID != "" {
		data["roleId"] = entry.RoleID
	}

	payload := &services.PushPayload{
		Title:       entry.Title,
		Body:        entry.Body,
		Link:        entry.Link,
		CollapseKey: collapse,
		Badge:       badge,
		Data:        data,
	}

	if len(native) > 0 {
		results, err := e.deps.Push.SendMulticast(ctx, native, payload)
		if err != nil {
			log.Warn().Err(err).Msg("push multicast aborted")
		}
		var gone []string
		sent := 0
		for _, r := range results {
			switch {
			case r.Success:
				sent++
			case r.Unregistered:
				gone = append(gone, r.Token)
			case r.Err != nil:
				log.Debug().Err(r.Err).Msg("push token failed")
			}
		}
		log.Info().Int("sent", sent).Int("failed", len(results)-sent).Msg("push dispatched")
		if len(gone) > 0 {
			if err := e.deps.Tokens.DisableTokens(ctx, gone); err != nil {
				log.Warn().Err(err).Msg("disable unregistered tokens failed")
			} else {
				log.Info().Int("tokens", len(gone)).Msg("disabled unregistered tokens")
			}
		}
	}

	if len(webpushSubs) > 0 {
		var wg sync.WaitGroup
		for _, sub := range webpushSubs {
			wg.Add(1)
			go func(tok models.DeviceToken) {
				defer wg.Done()
				err := e.deps.Push.SendWebpush(ctx, []byte(tok.Subscription), payload)
				switch {
				case err == nil:
				case errors.Is(err, services.ErrSubscriptionGone):
					if derr := e.deps.Tokens.DisableTokens(ctx, []string{tok.Token}); derr != nil {
						log.Warn().Err(derr).Msg("disable gone subscription failed")
					}
				default:
					log.Warn().Err(err).Msg("webpush send failed")
				}
			}(sub)
		}
		wg.Wait()
	}
}

// maybeEmail applies the email eligibility rules and sends when they pass.
func (e *Engine) maybeEmail(ctx context.Context, t models.DeliveryTarget, entry *models.ActivityEntry, pushAttempted bool, log zerolog.Logger) {
	if !t.Settings.EmailEnabled || !e.deps.Email.Enabled() {
		return
	}
	if reason := emailSuppressReason(t, pushAttempted); reason != "" {
		log.Debug().Str("reason", string(reason)).Msg("email skipped")
		return
	}

	// Someone actively using the app does not need the same message twice.
	state, err := e.deps.Presence.GetPresence(ctx, t.UID)
	if err != nil {
		log.Warn().Err(err).Msg("presence lookup failed")
		state = models.PresenceUnknown
	}
	if state.Active() {
		log.Debug().Str("reason", string(models.ReasonEmailRecipientActive)).Msg("email skipped")
		return
	}

	address := e.emailAddress(ctx, t.UID)
	if address == "" {
		log.Debug().Str("reason", string(models.ReasonNoAddress)).Msg("email skipped")
		return
	}

	html, err := services.RenderMessageEmail(entry.Title, entry.Body, entry.Link)
	if err != nil {
		log.Error().Err(err).Msg("email render failed")
		return
	}
	req := &services.EmailRequest{
		To:      address,
		Subject: entry.Title,
		Text:    entry.Body + "\n\n" + entry.Link,
		HTML:    html,
	}
	if err := e.deps.Email.Send(ctx, req); err != nil {
		log.Warn().Err(err).Msg("email send failed")
		return
	}
	log.Info().Msg("email dispatched")
}

// emailSuppressReason applies the eligibility rules that need no I/O:
// the only-when-no-push restriction and the kind-specific toggles. An
// email-only retention target is exempt from the no-push restriction since
// its push was deliberately suppressed.
func emailSuppressReason(t models.DeliveryTarget, pushAttempted bool) models.SuppressReason {
	s := t.Settings
	if s.EmailOnlyWhenNoPush && pushAttempted {
		return models.ReasonEmailPushReachable
	}
	switch t.Kind {
	case models.KindDM:
		if !s.EmailForDMs {
			return models.ReasonEmailKindDisabled
		}
	case models.KindDirect, models.KindRole, models.KindHere, models.KindEveryone:
		if !s.EmailForMentions {
			return models.ReasonEmailKindDisabled
		}
	case models.KindChannel:
		if s.EmailChannelMentionsOnly {
			return models.ReasonEmailKindDisabled
		}
		if t.EmailOnly {
			if !s.EmailForAllChannelMessages {
				return models.ReasonEmailKindDisabled
			}
		} else if !s.EmailForChannelMessages {
			return models.ReasonEmailKindDisabled
		}
	}
	return ""
}
