package models

// Message-created events posted by the chat persistence layer. Delivery is
// at least once: the same message may arrive more than once and must never
// notify a recipient twice.

type ChannelMessageEvent struct {
	ServerID  string  `json:"serverId" validate:"required"`
	ChannelID string  `json:"channelId" validate:"required"`
	Message   Message `json:"message" validate:"required"`
}

type ThreadMessageEvent struct {
	ServerID  string  `json:"serverId" validate:"required"`
	ChannelID string  `json:"channelId" validate:"required"`
	ThreadID  string  `json:"threadId" validate:"required"`
	Message   Message `json:"message" validate:"required"`
}

type DMMessageEvent struct {
	DMID    string  `json:"dmId" validate:"required"`
	Message Message `json:"message" validate:"required"`
}
