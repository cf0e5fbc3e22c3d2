package models

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a named role inside a server, embedded in the server document.
type Role struct {
	ID   string `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// ChatServer is a server (guild) document from the chat store.
type ChatServer struct {
	ID            string `bson:"_id" json:"id"`
	Name          string `bson:"name" json:"name"`
	DefaultRoleID string `bson:"default_role_id,omitempty" json:"default_role_id,omitempty"`
	Roles         []Role `bson:"roles,omitempty" json:"roles,omitempty"`
}

// RoleName resolves a role id to its display name, empty when unknown.
func (s *ChatServer) RoleName(id string) string {
	for _, r := range s.Roles {
		if r.ID == id {
			return r.Name
		}
	}
	return ""
}

const (
	ChannelTypeText  = "text"
	ChannelTypeVoice = "voice"
)

// Channel is a channel document. An empty AllowRoleIDs list means the
// channel is public to every server member.
type Channel struct {
	ID           string   `bson:"_id" json:"id"`
	ServerID     string   `bson:"server_id" json:"server_id"`
	Name         string   `bson:"name" json:"name"`
	Type         string   `bson:"type,omitempty" json:"type,omitempty"`
	AllowRoleIDs []string `bson:"allow_role_ids,omitempty" json:"allow_role_ids,omitempty"`
}

// Thread is a thread document under a channel.
type Thread struct {
	ID        string `bson:"_id" json:"id"`
	ChannelID string `bson:"channel_id" json:"channel_id"`
	Name      string `bson:"name" json:"name"`
}

// Member is one server membership record.
type Member struct {
	ServerID string   `bson:"server_id" json:"server_id"`
	UID      string   `bson:"uid" json:"uid"`
	RoleIDs  []string `bson:"role_ids,omitempty" json:"role_ids,omitempty"`
}

func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// DMConversation is a direct-message conversation document. Historical
// writers stored participants in different shapes, so the raw fields are kept
// and ParticipantUIDs picks the first usable one.
type DMConversation struct {
	ID             string          `bson:"_id" json:"id"`
	Participants   interface{}     `bson:"participants,omitempty" json:"participants,omitempty"`
	ParticipantIDs []string        `bson:"participant_ids,omitempty" json:"participant_ids,omitempty"`
	Members        map[string]bool `bson:"members,omitempty" json:"members,omitempty"`
}

// ParticipantUIDs resolves the conversation's participants from whichever of
// the four known representations is populated, in fixed preference order:
// participant object array, plain uid list, membership map (true entries
// only), then the underscore-joined composite document id.
func (d *DMConversation) ParticipantUIDs() []string {
	if uids := participantUIDsFromArray(d.Participants); len(uids) > 0 {
		return uids
	}
	if len(d.ParticipantIDs) > 0 {
		return append([]string(nil), d.ParticipantIDs...)
	}
	if len(d.Members) > 0 {
		uids := make([]string, 0, len(d.Members))
		for uid, in := range d.Members {
			if in {
				uids = append(uids, uid)
			}
		}
		if len(uids) > 0 {
			return uids
		}
	}
	if strings.Contains(d.ID, "_") {
		return strings.Split(d.ID, "_")
	}
	return nil
}

// participantUIDsFromArray pulls uids out of a participants array that may
// contain either participant objects or bare uid strings. The JSON decoder
// hands the array over as []interface{}, the BSON decoder as primitive.A
// with primitive.D/primitive.M elements.
func participantUIDsFromArray(v interface{}) []string {
	var arr []interface{}
	switch t := v.(type) {
	case []interface{}:
		arr = t
	case primitive.A:
		arr = t
	default:
		return nil
	}
	var uids []string
	for _, item := range arr {
		if uid := participantUID(item); uid != "" {
			uids = append(uids, uid)
		}
	}
	return uids
}

func participantUID(item interface{}) string {
	switch p := item.(type) {
	case string:
		return p
	case map[string]interface{}:
		if uid, ok := p["uid"].(string); ok && uid != "" {
			return uid
		}
		uid, _ := p["id"].(string)
		return uid
	case primitive.M:
		return participantUID(map[string]interface{}(p))
	case primitive.D:
		return participantUID(p.Map())
	}
	return ""
}
