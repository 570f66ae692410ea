package contract

import (
	"context"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// CatalogRepository reads documents, projects and knowledge bases through one projection.
type CatalogRepository interface {
	FindOne(ctx context.Context, contextType string, specs ...specification.Specification) (*entity.CatalogItem, error)
	FindAll(ctx context.Context, contextType string, specs ...specification.Specification) ([]*entity.CatalogItem, error)
	Search(ctx context.Context, userId uuid.UUID, contextType, query string, limit, offset int) ([]*entity.CatalogItem, int64, error)
}
