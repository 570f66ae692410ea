package mapper

import (
	"encoding/json"
	"time"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

// Conversation Mappers

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) *entity.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: c.DeletedAt.Valid,
	}
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) *model.Conversation {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:        c.Id,
		UserId:    c.UserId,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

// Message Mappers

func (m *ConversationMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var updatedAt *time.Time
	if !msg.UpdatedAt.IsZero() {
		t := msg.UpdatedAt
		updatedAt = &t
	}

	var metadata *entity.MessageMetadata
	if len(msg.Metadata) > 0 {
		var md entity.MessageMetadata
		// Unreadable metadata is dropped rather than failing the whole history read
		if err := json.Unmarshal(msg.Metadata, &md); err == nil {
			metadata = &md
		}
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *ConversationMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var updatedAt time.Time
	if msg.UpdatedAt != nil {
		updatedAt = *msg.UpdatedAt
	}

	var metadata datatypes.JSON
	if msg.Metadata != nil {
		if raw, err := json.Marshal(msg.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Role:           msg.Role,
		Content:        msg.Content,
		Metadata:       metadata,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *ConversationMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}

// Context Mappers

func (m *ConversationMapper) ContextToEntity(c *model.ConversationContext) *entity.ConversationContext {
	if c == nil {
		return nil
	}
	return &entity.ConversationContext{
		Id:             c.Id,
		ConversationId: c.ConversationId,
		ContextType:    c.ContextType,
		ContextId:      c.ContextId,
		CreatedAt:      c.CreatedAt,
	}
}

func (m *ConversationMapper) ContextToModel(c *entity.ConversationContext) *model.ConversationContext {
	if c == nil {
		return nil
	}
	return &model.ConversationContext{
		Id:             c.Id,
		ConversationId: c.ConversationId,
		ContextType:    c.ContextType,
		ContextId:      c.ContextId,
		CreatedAt:      c.CreatedAt,
	}
}
