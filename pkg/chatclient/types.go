package chatclient

import "time"

// Persisted context types. The sidebar adds its own display-only types on top.
const (
	ContextTypeDocument      = "document"
	ContextTypeProject       = "project"
	ContextTypeKnowledgeBase = "knowledgeBase"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Stream frame types.
const (
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

type ContextRef struct {
	ContextType string `json:"context_type"`
	ContextID   string `json:"context_id"`
}

type ConversationContext struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ContextType    string    `json:"context_type"`
	ContextID      string    `json:"context_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContextDetails struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Icon        string                 `json:"icon"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type SearchResult struct {
	Items   []ContextDetails `json:"items"`
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
	HasMore bool             `json:"has_more"`
}

type CatalogItem struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Subtype     string                 `json:"subtype,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at"`
}

type Citation struct {
	ContextType string `json:"context_type"`
	ContextID   string `json:"context_id"`
	Title       string `json:"title"`
}

type MessageAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}

type Message struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Citations []Citation      `json:"citations,omitempty"`
	Actions   []MessageAction `json:"actions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Conversation struct {
	ID           string                `json:"id"`
	Title        *string               `json:"title"`
	MessageCount int64                 `json:"message_count"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    *time.Time            `json:"updated_at"`
	Contexts     []ConversationContext `json:"contexts,omitempty"`
	Messages     []Message             `json:"messages,omitempty"`
}

type CreateConversationRequest struct {
	Title    *string      `json:"title,omitempty"`
	Contexts []ContextRef `json:"contexts,omitempty"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

// StreamFrame is the JSON carried by one `data:` line of a send response.
type StreamFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}
