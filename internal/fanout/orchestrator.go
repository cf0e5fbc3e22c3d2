package fanout

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/models"
)

// Origin describes the conversation a message was created in, with its
// directory documents already resolved.
type Origin struct {
	Type    models.OriginType
	Server  *models.ChatServer
	Channel *models.Channel
	Thread  *models.Thread
	DM      *models.DMConversation
}

func (o *Origin) IsDM() bool     { return o.Type == models.OriginDM }
func (o *Origin) InThread() bool { return o.Thread != nil }

// HandleChannelMessage runs the fan-out for a message created in a channel.
// Events with missing ids or nothing to notify about are consumed silently;
// the trigger is at-least-once and must never see a failure.
func (e *Engine) HandleChannelMessage(ctx context.Context, ev *models.ChannelMessageEvent) {
	msg := &ev.Message
	if ev.ServerID == "" || ev.ChannelID == "" || msg.ID == "" || msg.Author() == "" || msg.Empty() {
		return
	}
	log := e.invocationLogger(models.OriginChannel, msg.ID)

	dir := newDirectoryCache(e.deps.Chat, log)
	server := dir.Server(ctx, ev.ServerID)
	channel := dir.Channel(ctx, ev.ChannelID)
	if server == nil || channel == nil {
		log.Warn().Str("serverId", ev.ServerID).Str("channelId", ev.ChannelID).Msg("origin not found, skipping fan-out")
		return
	}
	if channel.Type == models.ChannelTypeVoice {
		log.Debug().Str("channelId", channel.ID).Msg("voice channel, skipping fan-out")
		return
	}

	origin := &Origin{Type: models.OriginChannel, Server: server, Channel: channel}
	e.fanOut(ctx, origin, msg, dir, log)
}

// HandleThreadMessage runs the fan-out for a message created in a thread.
func (e *Engine) HandleThreadMessage(ctx context.Context, ev *models.ThreadMessageEvent) {
	msg := &ev.Message
	if ev.ServerID == "" || ev.ChannelID == "" || ev.ThreadID == "" || msg.ID == "" || msg.Author() == "" || msg.Empty() {
		return
	}
	log := e.invocationLogger(models.OriginThread, msg.ID)

	dir := newDirectoryCache(e.deps.Chat, log)
	server := dir.Server(ctx, ev.ServerID)
	channel := dir.Channel(ctx, ev.ChannelID)
	thread := dir.Thread(ctx, ev.ThreadID)
	if server == nil || channel == nil || thread == nil {
		log.Warn().Str("serverId", ev.ServerID).Str("channelId", ev.ChannelID).Str("threadId", ev.ThreadID).
			Msg("origin not found, skipping fan-out")
		return
	}
	if channel.Type == models.ChannelTypeVoice {
		log.Debug().Str("channelId", channel.ID).Msg("voice channel, skipping fan-out")
		return
	}

	origin := &Origin{Type: models.OriginThread, Server: server, Channel: channel, Thread: thread}
	e.fanOut(ctx, origin, msg, dir, log)
}

// HandleDMMessage runs the fan-out for a message created in a direct
// conversation.
func (e *Engine) HandleDMMessage(ctx context.Context, ev *models.DMMessageEvent) {
	msg := &ev.Message
	if ev.DMID == "" || msg.ID == "" || msg.Author() == "" || msg.Empty() {
		return
	}
	log := e.invocationLogger(models.OriginDM, msg.ID)

	dir := newDirectoryCache(e.deps.Chat, log)
	dm := dir.DM(ctx, ev.DMID)
	if dm == nil {
		log.Warn().Str("dmId", ev.DMID).Msg("origin not found, skipping fan-out")
		return
	}

	origin := &Origin{Type: models.OriginDM, DM: dm}
	e.fanOut(ctx, origin, msg, dir, log)
}

// fanOut is the shared resolve, filter, deliver sequence.
func (e *Engine) fanOut(ctx context.Context, origin *Origin, msg *models.Message, dir *directoryCache, log zerolog.Logger) {
	candidates := e.resolveCandidates(ctx, origin, msg, dir)
	if len(candidates) == 0 {
		log.Debug().Msg("no candidates resolved")
		return
	}
	targets := e.filterCandidates(ctx, origin, candidates, log)
	log.Info().Int("candidates", len(candidates)).Int("targets", len(targets)).Msg("fan-out resolved")
	if len(targets) == 0 {
		return
	}
	e.deliver(ctx, origin, msg, targets, log)
}

func (e *Engine) invocationLogger(origin models.OriginType, messageID string) zerolog.Logger {
	return e.deps.Log.With().
		Str("invocation", uuid.NewString()).
		Str("origin", string(origin)).
		Str("messageId", messageID).
		Logger()
}
