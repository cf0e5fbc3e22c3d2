package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/relaychat/notifier/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ChatRepository reads the chat layer's directory collections. This service
// never writes them. A lookup that finds nothing returns (nil, nil) so
// callers can tell "absent" from a store failure.
type ChatRepository interface {
	GetServer(ctx context.Context, serverID string) (*models.ChatServer, error)
	GetChannel(ctx context.Context, channelID string) (*models.Channel, error)
	GetThread(ctx context.Context, threadID string) (*models.Thread, error)
	GetDM(ctx context.Context, dmID string) (*models.DMConversation, error)
	GetMembers(ctx context.Context, serverID string) ([]models.Member, error)
}

// MongoChatRepository implements ChatRepository against the chat database.
type MongoChatRepository struct {
	servers  *mongo.Collection
	channels *mongo.Collection
	threads  *mongo.Collection
	dms      *mongo.Collection
	members  *mongo.Collection
	timeout  time.Duration
}

// NewMongoChatRepository creates a new MongoChatRepository. Every lookup is
// bounded by the given timeout on top of the caller's context.
func NewMongoChatRepository(db *mongo.Database, timeout time.Duration) *MongoChatRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoChatRepository{
		servers:  db.Collection("servers"),
		channels: db.Collection("channels"),
		threads:  db.Collection("threads"),
		dms:      db.Collection("dms"),
		members:  db.Collection("members"),
		timeout:  timeout,
	}
}

func (r *MongoChatRepository) GetServer(ctx context.Context, serverID string) (*models.ChatServer, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var server models.ChatServer
	err := r.servers.FindOne(ctx, bson.M{"_id": serverID}).Decode(&server)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get server %s: %w", serverID, err)
	}
	return &server, nil
}

func (r *MongoChatRepository) GetChannel(ctx context.Context, channelID string) (*models.Channel, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var channel models.Channel
	err := r.channels.FindOne(ctx, bson.M{"_id": channelID}).Decode(&channel)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel %s: %w", channelID, err)
	}
	return &channel, nil
}

func (r *MongoChatRepository) GetThread(ctx context.Context, threadID string) (*models.Thread, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var thread models.Thread
	err := r.threads.FindOne(ctx, bson.M{"_id": threadID}).Decode(&thread)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread %s: %w", threadID, err)
	}
	return &thread, nil
}

func (r *MongoChatRepository) GetDM(ctx context.Context, dmID string) (*models.DMConversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var dm models.DMConversation
	err := r.dms.FindOne(ctx, bson.M{"_id": dmID}).Decode(&dm)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("get dm %s: %w", dmID, err)
	}
	return &dm, nil
}

func (r *MongoChatRepository) GetMembers(ctx context.Context, serverID string) ([]models.Member, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cursor, err := r.members.Find(ctx, bson.M{"server_id": serverID})
	if err != nil {
		return nil, fmt.Errorf("get members of %s: %w", serverID, err)
	}
	defer cursor.Close(ctx)

	var members []models.Member
	if err = cursor.All(ctx, &members); err != nil {
		return nil, fmt.Errorf("decode members of %s: %w", serverID, err)
	}
	return members, nil
}
