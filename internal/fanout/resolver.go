package fanout

import (
	"context"
	"sort"

	"github.com/relaychat/notifier/internal/models"
)

// candidateSet merges candidates by uid. When one uid qualifies under
// several mention kinds, the higher-priority kind wins; the author never
// enters the set.
type candidateSet struct {
	author string
	byUID  map[string]models.CandidateTarget
}

func newCandidateSet(author string) *candidateSet {
	return &candidateSet{author: author, byUID: make(map[string]models.CandidateTarget)}
}

func (s *candidateSet) add(c models.CandidateTarget) {
	if c.UID == "" || c.UID == s.author {
		return
	}
	if cur, ok := s.byUID[c.UID]; ok && cur.Kind.Priority() >= c.Kind.Priority() {
		return
	}
	s.byUID[c.UID] = c
}

// list returns the merged candidates ordered by uid, so downstream work and
// logs are deterministic.
func (s *candidateSet) list() []models.CandidateTarget {
	out := make([]models.CandidateTarget, 0, len(s.byUID))
	for _, c := range s.byUID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// resolveCandidates expands a message into the set of users who might be
// notified, before any settings are consulted.
func (e *Engine) resolveCandidates(ctx context.Context, origin *Origin, msg *models.Message, dir *directoryCache) []models.CandidateTarget {
	set := newCandidateSet(msg.Author())

	if origin.IsDM() {
		for _, uid := range origin.DM.ParticipantUIDs() {
			set.add(models.CandidateTarget{UID: uid, Kind: models.KindDM})
		}
		return set.list()
	}

	members := dir.Members(ctx, origin.Server.ID)
	if len(members) == 0 {
		return nil
	}
	memberUIDs := make(map[string]struct{}, len(members))
	for i := range members {
		memberUIDs[members[i].UID] = struct{}{}
	}

	var (
		directUIDs           []string
		roleIDs              []string
		hasEveryone, hasHere bool
	)
	for _, m := range ExtractMentions(msg) {
		switch m.Kind {
		case models.MentionEntrySpecial:
			if m.Target == models.MentionEveryone {
				hasEveryone = true
			} else if m.Target == models.MentionHere {
				hasHere = true
			}
		case models.MentionEntryRole:
			roleIDs = append(roleIDs, m.Target)
		case models.MentionEntryDirect:
			directUIDs = append(directUIDs, m.Target)
		}
	}

	// A direct mention of a non-member is dropped.
	for _, uid := range directUIDs {
		if _, ok := memberUIDs[uid]; !ok {
			continue
		}
		set.add(models.CandidateTarget{UID: uid, Kind: models.KindDirect})
	}

	// Role mentions expand by scanning the full member list.
	for _, roleID := range roleIDs {
		for i := range members {
			if members[i].HasRole(roleID) {
				set.add(models.CandidateTarget{UID: members[i].UID, Kind: models.KindRole, RoleID: roleID})
			}
		}
	}

	if hasEveryone {
		for i := range members {
			set.add(models.CandidateTarget{UID: members[i].UID, Kind: models.KindEveryone})
		}
	}
	if hasHere {
		for i := range members {
			set.add(models.CandidateTarget{UID: members[i].UID, Kind: models.KindHere, RequirePresence: true})
		}
	}

	// Plain membership keeps non-mention messages flowing to everyone who
	// can see the channel.
	for i := range members {
		if memberHasAccess(&members[i], origin.Channel, origin.Server) {
			set.add(models.CandidateTarget{UID: members[i].UID, Kind: models.KindChannel})
		}
	}

	return set.list()
}

// memberHasAccess applies the channel allow-list. No allow-list means the
// channel is public. Every member implicitly holds the server default role.
func memberHasAccess(m *models.Member, ch *models.Channel, server *models.ChatServer) bool {
	if ch == nil || len(ch.AllowRoleIDs) == 0 {
		return true
	}
	for _, allowed := range ch.AllowRoleIDs {
		if m.HasRole(allowed) {
			return true
		}
		if server != nil && server.DefaultRoleID != "" && allowed == server.DefaultRoleID {
			return true
		}
	}
	return false
}
