package entity

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	Id           uuid.UUID
	UserId       uuid.UUID
	Title        *string
	MessageCount int64
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DeletedAt    *time.Time
	IsDeleted    bool
}
