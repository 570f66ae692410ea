package contract

import (
	"context"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationContextRepository interface {
	// Create is idempotent on (conversation, type, context id); an existing row is loaded into c.
	Create(ctx context.Context, c *entity.ConversationContext) error
	// CreateBatch inserts all rows, silently skipping ones that already exist.
	CreateBatch(ctx context.Context, contexts []*entity.ConversationContext) error
	Delete(ctx context.Context, specs ...specification.Specification) (int64, error)
	DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationContext, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationContext, error)
}
