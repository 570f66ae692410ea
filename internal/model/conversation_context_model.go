package model

import (
	"time"

	"github.com/google/uuid"
)

// ConversationContext links a conversation to one catalog entity.
// The unique index makes repeated adds of the same entity idempotent.
type ConversationContext struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_conversation_context,priority:1"`
	ContextType    string    `gorm:"type:varchar(30);not null;uniqueIndex:uq_conversation_context,priority:2"`
	ContextId      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_conversation_context,priority:3"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`

	Conversation Conversation `gorm:"foreignKey:ConversationId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ConversationContext) TableName() string {
	return "chat_conversation_contexts"
}
