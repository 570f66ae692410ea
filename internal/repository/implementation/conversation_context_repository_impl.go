package implementation

import (
	"context"
	"errors"

	"research-chat-be/internal/entity"
	"research-chat-be/internal/mapper"
	"research-chat-be/internal/model"
	"research-chat-be/internal/repository/contract"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationContextRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationContextRepository(db *gorm.DB) contract.ConversationContextRepository {
	return &ConversationContextRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationContextRepositoryImpl) Create(ctx context.Context, c *entity.ConversationContext) error {
	m := r.mapper.ContextToModel(c)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m).Error
	if err != nil {
		return err
	}

	// Re-read so a conflicting insert hands back the row that already existed
	var stored model.ConversationContext
	err = r.db.WithContext(ctx).
		Where("conversation_id = ? AND context_type = ? AND context_id = ?", c.ConversationId, c.ContextType, c.ContextId).
		First(&stored).Error
	if err != nil {
		return err
	}
	*c = *r.mapper.ContextToEntity(&stored)
	return nil
}

func (r *ConversationContextRepositoryImpl) CreateBatch(ctx context.Context, contexts []*entity.ConversationContext) error {
	if len(contexts) == 0 {
		return nil
	}
	models := make([]*model.ConversationContext, len(contexts))
	for i, c := range contexts {
		models[i] = r.mapper.ContextToModel(c)
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models).Error
}

func (r *ConversationContextRepositoryImpl) Delete(ctx context.Context, specs ...specification.Specification) (int64, error) {
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	result := query.Delete(&model.ConversationContext{})
	return result.RowsAffected, result.Error
}

func (r *ConversationContextRepositoryImpl) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).Delete(&model.ConversationContext{}).Error
}

func (r *ConversationContextRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationContext, error) {
	var m model.ConversationContext
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ContextToEntity(&m), nil
}

func (r *ConversationContextRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationContext, error) {
	var models []*model.ConversationContext
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ConversationContext, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ContextToEntity(m)
	}
	return entities, nil
}
