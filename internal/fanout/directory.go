package fanout

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/relaychat/notifier/internal/models"
	"github.com/relaychat/notifier/internal/repositories"
)

// directoryCache is a per-invocation read-through cache over the chat store.
// Role checks across many candidates would otherwise re-read the same member
// list N times. Lookup errors are logged and cached as absent; fan-out then
// proceeds degraded rather than failing the invocation. Safe for concurrent
// use; a racing pair of goroutines may fetch the same key twice, which is
// wasteful but harmless.
type directoryCache struct {
	chat repositories.ChatRepository
	log  zerolog.Logger

	mu       sync.Mutex
	servers  map[string]*models.ChatServer
	channels map[string]*models.Channel
	threads  map[string]*models.Thread
	dms      map[string]*models.DMConversation
	members  map[string][]models.Member
}

func newDirectoryCache(chat repositories.ChatRepository, log zerolog.Logger) *directoryCache {
	return &directoryCache{
		chat:     chat,
		log:      log,
		servers:  make(map[string]*models.ChatServer),
		channels: make(map[string]*models.Channel),
		threads:  make(map[string]*models.Thread),
		dms:      make(map[string]*models.DMConversation),
		members:  make(map[string][]models.Member),
	}
}

// Server returns the server doc or nil when absent or unreadable.
func (d *directoryCache) Server(ctx context.Context, id string) *models.ChatServer {
	d.mu.Lock()
	if s, ok := d.servers[id]; ok {
		d.mu.Unlock()
		return s
	}
	d.mu.Unlock()

	s, err := d.chat.GetServer(ctx, id)
	if err != nil {
		d.log.Warn().Err(err).Str("serverId", id).Msg("server lookup failed")
		s = nil
	}
	d.mu.Lock()
	d.servers[id] = s
	d.mu.Unlock()
	return s
}

// Channel returns the channel doc or nil when absent or unreadable.
func (d *directoryCache) Channel(ctx context.Context, id string) *models.Channel {
	d.mu.Lock()
	if c, ok := d.channels[id]; ok {
		d.mu.Unlock()
		return c
	}
	d.mu.Unlock()

	c, err := d.chat.GetChannel(ctx, id)
	if err != nil {
		d.log.Warn().Err(err).Str("channelId", id).Msg("channel lookup failed")
		c = nil
	}
	d.mu.Lock()
	d.channels[id] = c
	d.mu.Unlock()
	return c
}

// Thread returns the thread doc or nil when absent or unreadable.
func (d *directoryCache) Thread(ctx context.Context, id string) *models.Thread {
	d.mu.Lock()
	if t, ok := d.threads[id]; ok {
		d.mu.Unlock()
		return t
	}
	d.mu.Unlock()

	t, err := d.chat.GetThread(ctx, id)
	if err != nil {
		d.log.Warn().Err(err).Str("threadId", id).Msg("thread lookup failed")
		t = nil
	}
	d.mu.Lock()
	d.threads[id] = t
	d.mu.Unlock()
	return t
}

// DM returns the conversation doc or nil when absent or unreadable.
func (d *directoryCache) DM(ctx context.Context, id string) *models.DMConversation {
	d.mu.Lock()
	if dm, ok := d.dms[id]; ok {
		d.mu.Unlock()
		return dm
	}
	d.mu.Unlock()

	dm, err := d.chat.GetDM(ctx, id)
	if err != nil {
		d.log.Warn().Err(err).Str("dmId", id).Msg("dm lookup failed")
		dm = nil
	}
	d.mu.Lock()
	d.dms[id] = dm
	d.mu.Unlock()
	return dm
}

// Members returns the server's member records, empty when the lookup fails.
func (d *directoryCache) Members(ctx context.Context, serverID string) []models.Member {
	d.mu.Lock()
	if m, ok := d.members[serverID]; ok {
		d.mu.Unlock()
		return m
	}
	d.mu.Unlock()

	m, err := d.chat.GetMembers(ctx, serverID)
	if err != nil {
		d.log.Warn().Err(err).Str("serverId", serverID).Msg("member lookup failed")
		m = nil
	}
	d.mu.Lock()
	d.members[serverID] = m
	d.mu.Unlock()
	return m
}
