package models

import "time"

// PresenceState is the last state the realtime layer reported for a user.
type PresenceState string

const (
	PresenceOnline  PresenceState = "online"
	PresenceActive  PresenceState = "active"
	PresenceIdle    PresenceState = "idle"
	PresenceAway    PresenceState = "away"
	PresenceOffline PresenceState = "offline"
	PresenceUnknown PresenceState = ""
)

// Present reports whether the user counts as connected for @here pings.
func (s PresenceState) Present() bool {
	return s == PresenceOnline || s == PresenceActive || s == PresenceIdle
}

// Active reports whether the user is actually looking at the app right now.
// Used to skip emails that would only duplicate what is already on screen.
func (s PresenceState) Active() bool {
	return s == PresenceOnline || s == PresenceActive
}

// Presence is the per-user presence doc kept in Mongo by the realtime layer.
// This service only reads it.
type Presence struct {
	UID       string        `bson:"_id" json:"uid"`
	State     PresenceState `bson:"state" json:"state"`
	UpdatedAt time.Time     `bson:"updated_at" json:"updated_at"`
}
