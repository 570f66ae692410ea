package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByContextRef struct {
	ContextType string
	ContextID   uuid.UUID
}

func (s ByContextRef) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("context_type = ? AND context_id = ?", s.ContextType, s.ContextID)
}

// ByContextRowOrEntityID matches either the context row id or the referenced entity id,
// so callers holding only the entity id can still remove it.
type ByContextRowOrEntityID struct {
	ID uuid.UUID
}

func (s ByContextRowOrEntityID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ? OR context_id = ?", s.ID, s.ID)
}
