package sidebar

import (
	"strings"

	"research-chat-be/pkg/chatclient"
)

// Optimistic message id prefixes.
const (
	TempPrefix      = "temp-"
	StreamingPrefix = "streaming-"
)

// IsTemporaryID reports whether id was minted locally and awaits a server id.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, TempPrefix) || strings.HasPrefix(id, StreamingPrefix)
}

// MatchByRoleContent is the default merge predicate.
func MatchByRoleContent(local, remote chatclient.Message) bool {
	return local.Role == remote.Role && local.Content == remote.Content
}

// MergeMessages reconciles a local list holding optimistic entries with the server list.
//
// Each temporary local message is matched against at most one unconsumed server
// message. The result is the server list in server order followed by the
// temporary messages that found no match, in their prior order. Local messages
// with real ids that the server no longer returns are dropped.
func MergeMessages(prev, server []chatclient.Message, match func(local, remote chatclient.Message) bool) []chatclient.Message {
	if match == nil {
		match = MatchByRoleContent
	}

	consumed := make([]bool, len(server))
	var unmatched []chatclient.Message

	for _, local := range prev {
		if !IsTemporaryID(local.ID) {
			continue
		}
		found := false
		for j, remote := range server {
			if consumed[j] || !match(local, remote) {
				continue
			}
			consumed[j] = true
			found = true
			break
		}
		if !found {
			unmatched = append(unmatched, local)
		}
	}

	merged := make([]chatclient.Message, 0, len(server)+len(unmatched))
	merged = append(merged, server...)
	merged = append(merged, unmatched...)
	return merged
}

func hasTemporary(messages []chatclient.Message) bool {
	for _, m := range messages {
		if IsTemporaryID(m.ID) {
			return true
		}
	}
	return false
}
