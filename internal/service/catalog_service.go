package service

import (
	"context"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// ICatalogService lists the entities a user can attach as chat context.
type ICatalogService interface {
	List(ctx context.Context, userId uuid.UUID, contextType string) ([]*dto.CatalogItemResponse, error)
}

type catalogService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewCatalogService(uowFactory unitofwork.RepositoryFactory) ICatalogService {
	return &catalogService{uowFactory: uowFactory}
}

func (s *catalogService) List(ctx context.Context, userId uuid.UUID, contextType string) ([]*dto.CatalogItemResponse, error) {
	if !constant.IsContextType(contextType) {
		return nil, serverutils.BadRequest("unsupported catalog type %q", contextType)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	items, err := uow.CatalogRepository().FindAll(ctx, contextType,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.CatalogItemResponse, 0, len(items))
	for _, item := range items {
		result = append(result, &dto.CatalogItemResponse{
			Id:          item.Id,
			Type:        item.Type,
			Title:       item.Title,
			Description: item.Description,
			Subtype:     item.Subtype,
			Metadata:    item.Metadata,
			CreatedAt:   item.CreatedAt,
			UpdatedAt:   item.UpdatedAt,
		})
	}
	return result, nil
}
