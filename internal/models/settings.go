package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// NotificationSettings is a user's delivery preference document. Stored as a
// single JSON blob so the app can add knobs without schema migrations;
// absent fields fall back to the defaults when the doc is resolved.
type NotificationSettings struct {
	GlobalMute        bool  `json:"globalMute"`
	DoNotDisturbUntil int64 `json:"doNotDisturbUntil"` // unix millis, 0 = off

	MuteDMs        bool            `json:"muteDMs"`
	MuteServerIDs  []string        `json:"muteServerIds"`
	PerChannelMute map[string]bool `json:"perChannelMute"` // key: serverId/channelId
	PerRoleMute    map[string]bool `json:"perRoleMute"`    // key: serverId/roleId

	AllowThreadPush          bool `json:"allowThreadPush"`
	AllowMentionPush         bool `json:"allowMentionPush"`
	AllowRoleMentionPush     bool `json:"allowRoleMentionPush"`
	AllowHereMentionPush     bool `json:"allowHereMentionPush"`
	AllowEveryoneMentionPush bool `json:"allowEveryoneMentionPush"`
	AllowChannelMessagePush  bool `json:"allowChannelMessagePush"`
	PushChannelMentionsOnly  bool `json:"pushChannelMentionsOnly"`

	EmailEnabled               bool `json:"emailEnabled"`
	EmailOnlyWhenNoPush        bool `json:"emailOnlyWhenNoPush"`
	EmailForDMs                bool `json:"emailForDMs"`
	EmailForMentions           bool `json:"emailForMentions"`
	EmailForChannelMessages    bool `json:"emailForChannelMessages"`
	EmailForAllChannelMessages bool `json:"emailForAllChannelMessages"`
	EmailChannelMentionsOnly   bool `json:"emailChannelMentionsOnly"`
}

// DefaultNotificationSettings returns the preferences applied to users who
// never saved a settings document. Push is opt-out, email is opt-in.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		AllowThreadPush:          true,
		AllowMentionPush:         true,
		AllowRoleMentionPush:     true,
		AllowHereMentionPush:     true,
		AllowEveryoneMentionPush: true,
		AllowChannelMessagePush:  true,

		EmailEnabled:            false,
		EmailOnlyWhenNoPush:     true,
		EmailForDMs:             true,
		EmailForMentions:        true,
		EmailForChannelMessages: true,
	}
}

// DoNotDisturbActive reports whether a DND window covers the given instant.
func (s NotificationSettings) DoNotDisturbActive(now time.Time) bool {
	return s.DoNotDisturbUntil > 0 && s.DoNotDisturbUntil > now.UnixMilli()
}

// ServerMuted reports whether the user muted the whole server.
func (s NotificationSettings) ServerMuted(serverID string) bool {
	for _, id := range s.MuteServerIDs {
		if id == serverID {
			return true
		}
	}
	return false
}

// ChannelMuted reports whether the user muted one channel inside a server.
func (s NotificationSettings) ChannelMuted(serverID, channelID string) bool {
	return s.PerChannelMute[ChannelMuteKey(serverID, channelID)]
}

// RoleMuted reports whether the user muted pings for one role inside a server.
func (s NotificationSettings) RoleMuted(serverID, roleID string) bool {
	return s.PerRoleMute[RoleMuteKey(serverID, roleID)]
}

// ChannelMuteKey builds the PerChannelMute map key.
func ChannelMuteKey(serverID, channelID string) string {
	return serverID + "/" + channelID
}

// RoleMuteKey builds the PerRoleMute map key.
func RoleMuteKey(serverID, roleID string) string {
	return serverID + "/" + roleID
}

// NotificationSettingsRecord is the persisted row wrapping the settings doc.
type NotificationSettingsRecord struct {
	UID       string         `gorm:"primaryKey;size:128" json:"uid"`
	Doc       datatypes.JSON `gorm:"type:jsonb" json:"doc"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (NotificationSettingsRecord) TableName() string {
	return "notification_settings"
}

// ResolveSettings merges a stored settings doc over the defaults. A missing
// record or an unreadable doc yields plain defaults, never an error; the
// engine must always end up with usable preferences.
func ResolveSettings(rec *NotificationSettingsRecord) NotificationSettings {
	settings := DefaultNotificationSettings()
	if rec == nil || len(rec.Doc) == 0 {
		return settings
	}
	if err := json.Unmarshal(rec.Doc, &settings); err != nil {
		return DefaultNotificationSettings()
	}
	return settings
}
