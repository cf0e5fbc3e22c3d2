package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaychat/notifier/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrEntryNotFound is returned when a feed mutation matches no entry.
var ErrEntryNotFound = errors.New("activity entry not found")

// ActivityRepository stores and serves the per-user notification feed.
type ActivityRepository interface {
	// CreateIfAbsent inserts the entry unless one already exists for the same
	// (recipient, message). It reports whether this call did the insert;
	// false with a nil error means a previous invocation already notified
	// this recipient about this message.
	CreateIfAbsent(ctx context.Context, entry *models.ActivityEntry) (bool, error)
	GetByRecipient(ctx context.Context, uid string, page, limit int64) ([]models.ActivityEntry, int64, error)
	GetUnreadCount(ctx context.Context, uid string) (int64, error)
	MarkRead(ctx context.Context, uid, entryID string) error
	MarkAllRead(ctx context.Context, uid string) error
	EnsureIndexes(ctx context.Context) error
}

// MongoActivityRepository implements ActivityRepository for MongoDB.
type MongoActivityRepository struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoActivityRepository creates a new MongoActivityRepository.
func NewMongoActivityRepository(db *mongo.Database, timeout time.Duration) *MongoActivityRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MongoActivityRepository{collection: db.Collection("activity_entries"), timeout: timeout}
}

// EnsureIndexes creates the indexes the feed depends on. The unique
// (recipient_uid, message_id) index is what makes CreateIfAbsent safe under
// concurrent retries of the same event.
func (r *MongoActivityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recipient_uid", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "recipient_uid", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "recipient_uid", Value: 1}, {Key: "read", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create activity indexes: %w", err)
	}
	return nil
}

// CreateIfAbsent upserts the entry keyed by (recipient, message). Concurrent
// duplicates lose the race on the unique index and come back as not-inserted.
func (r *MongoActivityRepository) CreateIfAbsent(ctx context.Context, entry *models.ActivityEntry) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"recipient_uid": entry.RecipientUID, "message_id": entry.MessageID}
	update := bson.M{"$setOnInsert": entry}
	res, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// A concurrent upsert for the same key can surface as a duplicate-key
		// error instead of a matched document. Same meaning: already there.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("create activity entry: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// GetByRecipient returns one page of the user's feed, newest first, plus the
// total entry count for pagination.
func (r *MongoActivityRepository) GetByRecipient(ctx context.Context, uid string, page, limit int64) ([]models.ActivityEntry, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{"recipient_uid": uid}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count activity entries: %w", err)
	}

	skip := (page - 1) * limit
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.ActivityEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decode activity entries: %w", err)
	}
	return entries, total, nil
}

// GetUnreadCount returns how many feed entries the user has not read yet.
func (r *MongoActivityRepository) GetUnreadCount(ctx context.Context, uid string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"recipient_uid": uid, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread activity entries: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the user's entries as read.
func (r *MongoActivityRepository) MarkRead(ctx context.Context, uid, entryID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": entryID, "recipient_uid": uid},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark activity entry read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// MarkAllRead marks every unread entry of the user as read.
func (r *MongoActivityRepository) MarkAllRead(ctx context.Context, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"recipient_uid": uid, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark all activity entries read: %w", err)
	}
	return nil
}
