package entity

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Role           string
	Content        string
	Metadata       *MessageMetadata
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

// MessageMetadata holds optional citations and suggested actions attached to an assistant reply.
type MessageMetadata struct {
	Citations []Citation      `json:"citations,omitempty"`
	Actions   []MessageAction `json:"actions,omitempty"`
}

type Citation struct {
	ContextType string    `json:"context_type"`
	ContextId   uuid.UUID `json:"context_id"`
	Title       string    `json:"title"`
}

type MessageAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}
