package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageKind mirrors the message types the chat layer produces.
type MessageKind string

const (
	MessageKindText MessageKind = "text"
	MessageKindFile MessageKind = "file"
	MessageKindGif  MessageKind = "gif"
	MessageKindPoll MessageKind = "poll"
	MessageKindForm MessageKind = "form"
)

// Reserved mention marker ids. A mention entry whose id or handle equals one
// of these is a special mention rather than a direct one.
const (
	MentionEveryone = "everyone"
	MentionHere     = "here"
)

// Message is the chat message that triggered a fan-out. It arrives embedded
// in the creation event and is read-only to this service.
type Message struct {
	ID        string          `json:"id,omitempty"`
	AuthorUID string          `json:"author_uid,omitempty"`
	UID       string          `json:"uid,omitempty"` // older clients put the author here
	Kind      MessageKind     `json:"kind,omitempty"`
	Text      string          `json:"text,omitempty"`
	Content   string          `json:"content,omitempty"` // legacy text field
	Mentions  json.RawMessage `json:"mentions,omitempty"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// Author returns the author uid, falling back to the legacy field.
func (m *Message) Author() string {
	if m.AuthorUID != "" {
		return m.AuthorUID
	}
	return m.UID
}

// Body returns the message text, falling back to the legacy content field.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Content
}

// Empty reports whether the message carries nothing to notify about: a text
// message with no text. Non-text kinds (file, gif, poll, form) always have a
// presentable placeholder body.
func (m *Message) Empty() bool {
	if strings.TrimSpace(m.Body()) != "" {
		return false
	}
	switch m.Kind {
	case MessageKindFile, MessageKindGif, MessageKindPoll, MessageKindForm:
		return false
	}
	return true
}

// MentionEntryKind classifies a single mention token.
type MentionEntryKind string

const (
	MentionEntryDirect  MentionEntryKind = "direct"
	MentionEntryRole    MentionEntryKind = "role"
	MentionEntrySpecial MentionEntryKind = "special"
)

// MentionEntry is one normalized mention token extracted from a message.
// Target holds a uid, a role id, or one of the reserved marker ids.
type MentionEntry struct {
	Target string
	Kind   MentionEntryKind
	Handle string
}
