package models

import "time"

// OriginType tells which kind of conversation produced a notification.
type OriginType string

const (
	OriginChannel OriginType = "channel"
	OriginThread  OriginType = "thread"
	OriginDM      OriginType = "dm"
)

// ActivityEntry is one row of a user's notification feed, stored in Mongo.
// The (recipient_uid, message_id) pair is unique; the feed insert doubles as
// the dedup point for push and email, so retried events cannot notify twice.
type ActivityEntry struct {
	ID           string     `bson:"_id" json:"id"`
	RecipientUID string     `bson:"recipient_uid" json:"recipient_uid"`
	MessageID    string     `bson:"message_id" json:"message_id"`
	Origin       OriginType `bson:"origin" json:"origin"`

	ServerID    string `bson:"server_id,omitempty" json:"server_id,omitempty"`
	ServerName  string `bson:"server_name,omitempty" json:"server_name,omitempty"`
	ChannelID   string `bson:"channel_id,omitempty" json:"channel_id,omitempty"`
	ChannelName string `bson:"channel_name,omitempty" json:"channel_name,omitempty"`
	ThreadID    string `bson:"thread_id,omitempty" json:"thread_id,omitempty"`
	ThreadName  string `bson:"thread_name,omitempty" json:"thread_name,omitempty"`
	DMID        string `bson:"dm_id,omitempty" json:"dm_id,omitempty"`

	ActorUID  string `bson:"actor_uid" json:"actor_uid"`
	ActorName string `bson:"actor_name" json:"actor_name"`
	Kind      string `bson:"kind" json:"kind"`
	RoleID    string `bson:"role_id,omitempty" json:"role_id,omitempty"`

	Title string `bson:"title" json:"title"`
	Body  string `bson:"body" json:"body"`
	Link  string `bson:"link" json:"link"`

	PushAttempted bool      `bson:"push_attempted" json:"push_attempted"`
	Read          bool      `bson:"read" json:"read"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
