package entity

import (
	"time"

	"github.com/google/uuid"
)

// CatalogItem is the common projection of a document, project or knowledge base.
type CatalogItem struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	Type        string
	Title       string
	Description string
	Subtype     string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
