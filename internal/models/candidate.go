package models

// MentionKind classifies why a user is being considered for notification.
// When one uid qualifies under several kinds in the same message, the kind
// with the higher priority wins the merge.
type MentionKind uint8

const (
	KindChannel MentionKind = iota + 1 // plain channel membership
	KindEveryone
	KindHere
	KindRole
	KindDirect
	KindDM
)

// Priority returns the merge rank: dm > direct > role > here > everyone > channel.
func (k MentionKind) Priority() int {
	switch k {
	case KindDM:
		return 60
	case KindDirect:
		return 50
	case KindRole:
		return 40
	case KindHere:
		return 30
	case KindEveryone:
		return 20
	case KindChannel:
		return 10
	}
	return 0
}

func (k MentionKind) String() string {
	switch k {
	case KindDM:
		return "dm"
	case KindDirect:
		return "direct"
	case KindRole:
		return "role"
	case KindHere:
		return "here"
	case KindEveryone:
		return "everyone"
	case KindChannel:
		return "channel"
	}
	return "unknown"
}

// Label is the prefix rendered into the notification body, e.g.
// "[here] Alice: hey everyone". DM and plain channel messages carry none.
func (k MentionKind) Label() string {
	switch k {
	case KindDirect:
		return "[mention] "
	case KindRole:
		return "[role] "
	case KindHere:
		return "[here] "
	case KindEveryone:
		return "[everyone] "
	case KindDM, KindChannel:
		return ""
	}
	return ""
}

// CandidateTarget is a recipient under consideration for one fan-out
// invocation. It exists only for the duration of the invocation.
type CandidateTarget struct {
	UID             string
	Kind            MentionKind
	RoleID          string // set when Kind == KindRole
	RequirePresence bool   // set only for KindHere
}

// DeliveryTarget is a candidate that survived the settings gate, paired with
// the settings that were resolved for it.
type DeliveryTarget struct {
	CandidateTarget
	Settings NotificationSettings

	// EmailOnly marks a channel-kind candidate whose push was suppressed but
	// which is retained because the recipient opted into email for all
	// channel messages.
	EmailOnly bool
}

// SuppressReason is a machine-readable code attached to every suppression or
// skipped delivery, for log-based observability.
type SuppressReason string

const (
	ReasonGlobalMute              SuppressReason = "global_mute"
	ReasonDoNotDisturb            SuppressReason = "dnd"
	ReasonDMMuted                 SuppressReason = "dm_muted"
	ReasonServerMuted             SuppressReason = "server_muted"
	ReasonChannelMuted            SuppressReason = "channel_muted"
	ReasonThreadPushDisabled      SuppressReason = "thread_push_disabled"
	ReasonMentionPushDisabled     SuppressReason = "mention_push_disabled"
	ReasonRoleMentionPushDisabled SuppressReason = "role_mention_push_disabled"
	ReasonRoleMuted               SuppressReason = "role_muted"
	ReasonHerePushDisabled        SuppressReason = "here_push_disabled"
	ReasonEveryonePushDisabled    SuppressReason = "everyone_push_disabled"
	ReasonChannelPushDisabled     SuppressReason = "channel_push_disabled"
	ReasonChannelMentionsOnly     SuppressReason = "channel_mentions_only"
	ReasonNotPresent              SuppressReason = "not_present"
	ReasonDuplicateTrigger        SuppressReason = "duplicate_trigger"
	ReasonNoAddress               SuppressReason = "no_address"
	ReasonEmailDisabled           SuppressReason = "email_disabled"
	ReasonEmailKindDisabled       SuppressReason = "email_kind_disabled"
	ReasonEmailPushReachable      SuppressReason = "email_push_reachable"
	ReasonEmailRecipientActive    SuppressReason = "email_recipient_active"
)
