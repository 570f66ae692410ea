package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationContext struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	ContextType    string
	ContextId      uuid.UUID
	CreatedAt      time.Time
}

// SameReference reports whether both rows point at the same entity.
func (c *ConversationContext) SameReference(contextType string, contextId uuid.UUID) bool {
	return c.ContextType == contextType && c.ContextId == contextId
}
