package implementation

import (
	"context"
	"fmt"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/mapper"
	"research-chat-be/internal/model"
	"research-chat-be/internal/repository/contract"
	"research-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CatalogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CatalogMapper
}

func NewCatalogRepository(db *gorm.DB) contract.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:     db,
		mapper: mapper.NewCatalogMapper(),
	}
}

func titleColumn(contextType string) string {
	if contextType == constant.ContextTypeDocument {
		return "title"
	}
	return "name"
}

func (r *CatalogRepositoryImpl) FindOne(ctx context.Context, contextType string, specs ...specification.Specification) (*entity.CatalogItem, error) {
	items, err := r.FindAll(ctx, contextType, append(specs, specification.Pagination{Limit: 1})...)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *CatalogRepositoryImpl) FindAll(ctx context.Context, contextType string, specs ...specification.Specification) ([]*entity.CatalogItem, error) {
	query := applySpecifications(r.db.WithContext(ctx), specs...)

	switch contextType {
	case constant.ContextTypeDocument:
		var models []*model.Document
		if err := query.Find(&models).Error; err != nil {
			return nil, err
		}
		items := make([]*entity.CatalogItem, len(models))
		for i, m := range models {
			items[i] = r.mapper.DocumentToEntity(m)
		}
		return items, nil

	case constant.ContextTypeProject:
		var models []*model.Project
		if err := query.Find(&models).Error; err != nil {
			return nil, err
		}
		items := make([]*entity.CatalogItem, len(models))
		for i, m := range models {
			items[i] = r.mapper.ProjectToEntity(m)
		}
		return items, nil

	case constant.ContextTypeKnowledgeBase:
		var models []*model.KnowledgeBase
		if err := query.Find(&models).Error; err != nil {
			return nil, err
		}
		items := make([]*entity.CatalogItem, len(models))
		for i, m := range models {
			items[i] = r.mapper.KnowledgeBaseToEntity(m)
		}
		return items, nil
	}

	return nil, fmt.Errorf("unsupported catalog type: %s", contextType)
}

func (r *CatalogRepositoryImpl) Search(ctx context.Context, userId uuid.UUID, contextType, query string, limit, offset int) ([]*entity.CatalogItem, int64, error) {
	var target interface{}
	switch contextType {
	case constant.ContextTypeDocument:
		target = &model.Document{}
	case constant.ContextTypeProject:
		target = &model.Project{}
	case constant.ContextTypeKnowledgeBase:
		target = &model.KnowledgeBase{}
	default:
		return nil, 0, fmt.Errorf("unsupported catalog type: %s", contextType)
	}

	filters := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.ColumnContains{Column: titleColumn(contextType), Query: query},
	}

	var total int64
	countQuery := applySpecifications(r.db.WithContext(ctx).Model(target), filters...)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items, err := r.FindAll(ctx, contextType, append(filters,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
