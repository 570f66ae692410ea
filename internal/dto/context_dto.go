package dto

import (
	"time"

	"github.com/google/uuid"
)

type AddContextRequest struct {
	ConversationId uuid.UUID `json:"-"`
	ContextRefDTO
}

type ConversationContextResponse struct {
	Id             uuid.UUID `json:"id"`
	ConversationId uuid.UUID `json:"conversation_id"`
	ContextType    string    `json:"context_type"`
	ContextId      uuid.UUID `json:"context_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type ContextDetailsRequest struct {
	Type string    `query:"type" validate:"required,oneof=document project knowledgeBase"`
	Id   uuid.UUID `query:"id" validate:"required"`
}

type ContextDetailsResponse struct {
	Id          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Icon        string                 `json:"icon"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type ContextSearchRequest struct {
	Query string   `json:"q"`
	Types []string `json:"types" validate:"omitempty,dive,oneof=document project knowledgeBase"`
	Page  int      `json:"page" validate:"gte=0"`
	Limit int      `json:"limit" validate:"gte=0,lte=50"`
}

type ContextSearchResponse struct {
	Items   []*ContextDetailsResponse `json:"items"`
	Total   int64                     `json:"total"`
	Page    int                       `json:"page"`
	Limit   int                       `json:"limit"`
	HasMore bool                      `json:"has_more"`
}

type CatalogItemResponse struct {
	Id          uuid.UUID              `json:"id"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Subtype     string                 `json:"subtype,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   *time.Time             `json:"updated_at"`
}
