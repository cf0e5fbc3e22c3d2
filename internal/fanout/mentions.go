package fanout

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/relaychat/notifier/internal/models"
)

// mentionInput is the wire shape of one mention entry. Clients have written
// a few spellings over time; every one of them normalizes into MentionEntry.
type mentionInput struct {
	UID    string `json:"uid"`
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Kind   string `json:"kind"`
	RoleID string `json:"role_id"`
}

// ExtractMentions normalizes a message's raw mentions into an ordered entry
// list. The container is either a plain list or a map keyed by target id.
// Malformed input yields an empty list, never an error.
func ExtractMentions(msg *models.Message) []models.MentionEntry {
	if msg == nil || len(msg.Mentions) == 0 {
		return nil
	}

	var inputs []mentionInput
	if err := json.Unmarshal(msg.Mentions, &inputs); err != nil {
		inputs = mentionInputsFromMap(msg.Mentions)
	}

	entries := make([]models.MentionEntry, 0, len(inputs))
	for _, in := range inputs {
		if entry, ok := normalizeMention(in); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// mentionInputsFromMap handles the map-keyed container: the key is the
// target id, the value is either an entry object or a bare handle string.
// Keys are sorted so extraction order is stable.
func mentionInputsFromMap(raw json.RawMessage) []mentionInput {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return nil
	}

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inputs := make([]mentionInput, 0, len(keys))
	for _, k := range keys {
		var in mentionInput
		if err := json.Unmarshal(keyed[k], &in); err != nil {
			var handle string
			if err := json.Unmarshal(keyed[k], &handle); err != nil {
				continue
			}
			in = mentionInput{Handle: handle}
		}
		if in.UID == "" && in.ID == "" {
			in.ID = k
		}
		inputs = append(inputs, in)
	}
	return inputs
}

func normalizeMention(in mentionInput) (models.MentionEntry, bool) {
	target := in.UID
	if target == "" {
		target = in.ID
	}
	handle := strings.TrimPrefix(strings.TrimSpace(in.Handle), "@")

	// The reserved markers may arrive as the id or as the handle.
	if target == models.MentionEveryone || handle == models.MentionEveryone {
		return models.MentionEntry{Target: models.MentionEveryone, Kind: models.MentionEntrySpecial, Handle: handle}, true
	}
	if target == models.MentionHere || handle == models.MentionHere {
		return models.MentionEntry{Target: models.MentionHere, Kind: models.MentionEntrySpecial, Handle: handle}, true
	}

	if in.Kind == "role" {
		roleID := in.RoleID
		if roleID == "" {
			roleID = target
		}
		if roleID == "" {
			return models.MentionEntry{}, false
		}
		return models.MentionEntry{Target: roleID, Kind: models.MentionEntryRole, Handle: handle}, true
	}

	if target == "" {
		return models.MentionEntry{}, false
	}
	return models.MentionEntry{Target: target, Kind: models.MentionEntryDirect, Handle: handle}, true
}
