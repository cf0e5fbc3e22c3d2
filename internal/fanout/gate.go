package fanout

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/models"
)

// filterCandidates resolves settings for every candidate and applies the
// suppression rules, each candidate independently on the worker pool.
func (e *Engine) filterCandidates(ctx context.Context, origin *Origin, candidates []models.CandidateTarget, log zerolog.Logger) []models.DeliveryTarget {
	if len(candidates) == 0 {
		return nil
	}

	var (
		mu      sync.Mutex
		targets []models.DeliveryTarget
	)
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, c := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(c models.CandidateTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			target, reason := e.evaluateCandidate(ctx, origin, c, log)
			if target == nil {
				log.Debug().Str("uid", c.UID).Str("kind", c.Kind.String()).
					Str("reason", string(reason)).Msg("candidate suppressed")
				return
			}
			if target.EmailOnly {
				log.Debug().Str("uid", c.UID).Str("reason", string(reason)).
					Msg("push suppressed, retained for email")
			}
			mu.Lock()
			targets = append(targets, *target)
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	sort.Slice(targets, func(i, j int) bool { return targets[i].UID < targets[j].UID })
	return targets
}

// evaluateCandidate runs one candidate through the settings rules and, when
// required, the presence gate. A nil target means suppressed for the given
// reason. A non-nil target with EmailOnly set is the channel-kind retention
// case: push stays suppressed but email delivery is still wanted.
func (e *Engine) evaluateCandidate(ctx context.Context, origin *Origin, c models.CandidateTarget, log zerolog.Logger) (*models.DeliveryTarget, models.SuppressReason) {
	settings, err := e.deps.Settings.GetSettings(ctx, c.UID)
	if err != nil {
		log.Warn().Err(err).Str("uid", c.UID).Msg("settings lookup failed, using defaults")
		settings = models.DefaultNotificationSettings()
	}

	reason := pushSuppressReason(origin, c, settings, time.Now())

	if reason == "" && c.RequirePresence {
		state, perr := e.deps.Presence.GetPresence(ctx, c.UID)
		if perr != nil {
			log.Warn().Err(perr).Str("uid", c.UID).Msg("presence lookup failed")
			state = models.PresenceUnknown
		}
		if !state.Present() {
			reason = models.ReasonNotPresent
		}
	}

	if reason == "" {
		return &models.DeliveryTarget{CandidateTarget: c, Settings: settings}, ""
	}
	if c.Kind == models.KindChannel && emailRetainable(reason) &&
		settings.EmailEnabled && settings.EmailForAllChannelMessages {
		return &models.DeliveryTarget{CandidateTarget: c, Settings: settings, EmailOnly: true}, reason
	}
	return nil, reason
}

// pushSuppressReason applies the suppression rules in order and returns the
// first that fires, or empty when the candidate passes. Pure: presence needs
// I/O and is checked separately after these rules pass.
func pushSuppressReason(origin *Origin, c models.CandidateTarget, s models.NotificationSettings, now time.Time) models.SuppressReason {
	if s.GlobalMute {
		return models.ReasonGlobalMute
	}
	if s.DoNotDisturbActive(now) {
		return models.ReasonDoNotDisturb
	}

	if origin.IsDM() {
		if s.MuteDMs {
			return models.ReasonDMMuted
		}
		return ""
	}

	if s.ServerMuted(origin.Server.ID) {
		return models.ReasonServerMuted
	}
	if s.ChannelMuted(origin.Server.ID, origin.Channel.ID) {
		return models.ReasonChannelMuted
	}
	if origin.InThread() && !s.AllowThreadPush {
		return models.ReasonThreadPushDisabled
	}

	switch c.Kind {
	case models.KindDirect:
		if !s.AllowMentionPush {
			return models.ReasonMentionPushDisabled
		}
	case models.KindRole:
		if !s.AllowMentionPush {
			return models.ReasonMentionPushDisabled
		}
		if !s.AllowRoleMentionPush {
			return models.ReasonRoleMentionPushDisabled
		}
		if s.RoleMuted(origin.Server.ID, c.RoleID) {
			return models.ReasonRoleMuted
		}
	case models.KindHere:
		if !s.AllowMentionPush {
			return models.ReasonMentionPushDisabled
		}
		if !s.AllowHereMentionPush {
			return models.ReasonHerePushDisabled
		}
	case models.KindEveryone:
		if !s.AllowMentionPush {
			return models.ReasonMentionPushDisabled
		}
		if !s.AllowEveryoneMentionPush {
			return models.ReasonEveryonePushDisabled
		}
	case models.KindChannel:
		if !s.AllowChannelMessagePush {
			return models.ReasonChannelPushDisabled
		}
		if s.PushChannelMentionsOnly {
			return models.ReasonChannelMentionsOnly
		}
	}
	return ""
}

// emailRetainable reports whether a suppression was a push preference rather
// than a conversation mute. Mutes silence email too; push preferences leave
// the email-for-all-channel-messages retention open.
func emailRetainable(reason models.SuppressReason) bool {
	return reason == models.ReasonChannelPushDisabled || reason == models.ReasonChannelMentionsOnly
}
