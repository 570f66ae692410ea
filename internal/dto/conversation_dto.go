package dto

import (
	"time"

	"github.com/google/uuid"
)

type ContextRefDTO struct {
	ContextType string    `json:"context_type" validate:"required,oneof=document project knowledgeBase"`
	ContextId   uuid.UUID `json:"context_id" validate:"required"`
}

type CreateConversationRequest struct {
	Title    *string         `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Contexts []ContextRefDTO `json:"contexts,omitempty" validate:"omitempty,max=20,dive"`
}

type UpdateConversationRequest struct {
	Id    uuid.UUID `json:"-"`
	Title string    `json:"title" validate:"required,min=1,max=200"`
}

type ConversationResponse struct {
	Id           uuid.UUID                      `json:"id"`
	Title        *string                        `json:"title"`
	MessageCount int64                          `json:"message_count"`
	CreatedAt    time.Time                      `json:"created_at"`
	UpdatedAt    *time.Time                     `json:"updated_at"`
	Contexts     []*ConversationContextResponse `json:"contexts,omitempty"`
}

type ConversationDetailResponse struct {
	ConversationResponse
	Messages []*MessageResponse `json:"messages"`
}

type CitationDTO struct {
	ContextType string    `json:"context_type"`
	ContextId   uuid.UUID `json:"context_id"`
	Title       string    `json:"title"`
}

type MessageActionDTO struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Href  string `json:"href,omitempty"`
}

type MessageResponse struct {
	Id        uuid.UUID          `json:"id"`
	Role      string             `json:"role"`
	Content   string             `json:"content"`
	Citations []CitationDTO      `json:"citations,omitempty"`
	Actions   []MessageActionDTO `json:"actions,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type SendMessageRequest struct {
	ConversationId uuid.UUID `json:"-"`
	Content        string    `json:"content" validate:"required"`
}

// StreamFrame is one `data: <json>` line of the message-send event stream.
type StreamFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	MessageId string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PublishTitleMessage is the payload of the background auto-title job.
type PublishTitleMessage struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	UserId         uuid.UUID `json:"user_id"`
	FirstMessage   string    `json:"first_message"`
}
