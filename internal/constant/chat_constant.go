package constant

const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
	MessageRoleSystem    = "system"

	ContextTypeDocument      = "document"
	ContextTypeProject       = "project"
	ContextTypeKnowledgeBase = "knowledgeBase"

	StreamFrameChunk = "chunk"
	StreamFrameDone  = "done"
	StreamFrameError = "error"

	// Initial contexts are re-checked after the bulk insert and re-written one by one this many times.
	ContextPersistAttempts = 3

	ConversationSystemPromptV1 = `You are a market-research assistant embedded in a reporting dashboard.
Answer using the attached context entities when they are relevant. The user sees ICP profiles, niche
evaluations and outbound strategies rendered from structured reports.

RULES:
- Prefer facts from the attached contexts; say so when a question cannot be answered from them.
- Keep answers concise and use short markdown lists for multi-part answers.
- Never invent report sections that were not provided.`

	ConversationTitlePromptV1 = `Write a title of at most six words for a conversation that starts with the message below.
Reply with the title only, no quotes and no trailing punctuation.

MESSAGE:
%s`
)

// IsContextType reports whether t can be persisted as a conversation context.
func IsContextType(t string) bool {
	switch t {
	case ContextTypeDocument, ContextTypeProject, ContextTypeKnowledgeBase:
		return true
	}
	return false
}

// Event types published on the NATS "events.>" subjects.
const (
	EventConversationCreated = "CONVERSATION_CREATED"
	EventConversationDeleted = "CONVERSATION_DELETED"
	EventMessageSent         = "MESSAGE_SENT"
	EventPresetChanged       = "PRESET_CHANGED"
)
