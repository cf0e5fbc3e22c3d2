package fanout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/relaychat/notifier/internal/models"
)

// previewMaxLen caps the preview text rendered into titles, bodies and
// push payloads.
const previewMaxLen = 120

// messagePreview renders the one-line preview for a message: its text
// truncated on a rune boundary, or a kind placeholder when there is none.
func messagePreview(msg *models.Message) string {
	body := strings.TrimSpace(msg.Body())
	if body == "" {
		switch msg.Kind {
		case models.MessageKindGif:
			return "Shared a GIF"
		case models.MessageKindFile:
			return "Shared a file"
		case models.MessageKindPoll:
			return "Started a poll"
		case models.MessageKindForm:
			return "Shared a form"
		default:
			return "Sent a message"
		}
	}
	return truncate(body, previewMaxLen)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "…"
}

// originTitle renders the notification title. DMs are titled by the author;
// server messages by their conversation path.
func originTitle(origin *Origin, authorName string) string {
	switch {
	case origin.IsDM():
		return authorName
	case origin.InThread():
		return fmt.Sprintf("[%s] #%s › %s", origin.Server.Name, origin.Channel.Name, origin.Thread.Name)
	default:
		return fmt.Sprintf("[%s] #%s", origin.Server.Name, origin.Channel.Name)
	}
}

// originLink renders the client deep-link path for the conversation.
func originLink(origin *Origin) string {
	switch {
	case origin.IsDM():
		return "/dms/" + origin.DM.ID
	case origin.InThread():
		return fmt.Sprintf("/servers/%s/channels/%s/threads/%s", origin.Server.ID, origin.Channel.ID, origin.Thread.ID)
	default:
		return fmt.Sprintf("/servers/%s/channels/%s", origin.Server.ID, origin.Channel.ID)
	}
}

// originCollapseKey groups pushes from one conversation so repeated
// notifications coalesce on the client.
func originCollapseKey(origin *Origin) string {
	switch {
	case origin.IsDM():
		return "dm-" + origin.DM.ID
	case origin.InThread():
		return "thread-" + origin.Thread.ID
	default:
		return "channel-" + origin.Channel.ID
	}
}
