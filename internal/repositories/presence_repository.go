package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/relaychat/notifier/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// PresenceRepository reads the realtime layer's presence docs. A user with
// no doc is simply unknown, not an error.
type PresenceRepository interface {
	GetPresence(ctx context.Context, uid string) (models.PresenceState, error)
}

// MongoPresenceRepository implements PresenceRepository for MongoDB.
type MongoPresenceRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoPresenceRepository creates a new MongoPresenceRepository.
func NewMongoPresenceRepository(db *mongo.Database, timeout time.Duration) *MongoPresenceRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoPresenceRepository{collection: db.Collection("presence"), timeout: timeout}
}

func (r *MongoPresenceRepository) GetPresence(ctx context.Context, uid string) (models.PresenceState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var presence models.Presence
	err := r.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&presence)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return models.PresenceUnknown, nil
		}
		return models.PresenceUnknown, fmt.Errorf("get presence of %s: %w", uid, err)
	}
	return presence.State, nil
}
