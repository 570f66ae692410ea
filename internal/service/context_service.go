package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/memory"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

var contextIcons = map[string]string{
	constant.ContextTypeDocument:      "file-text",
	constant.ContextTypeProject:       "folder",
	constant.ContextTypeKnowledgeBase: "book-open",
}

type IContextService interface {
	Add(ctx context.Context, userId uuid.UUID, req *dto.AddContextRequest) (*dto.ConversationContextResponse, error)
	Remove(ctx context.Context, userId, conversationId, contextId uuid.UUID) error
	List(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.ConversationContextResponse, error)
	Details(ctx context.Context, userId uuid.UUID, req *dto.ContextDetailsRequest) (*dto.ContextDetailsResponse, error)
	Search(ctx context.Context, userId uuid.UUID, req *dto.ContextSearchRequest) (*dto.ContextSearchResponse, error)
}

type contextService struct {
	uowFactory   unitofwork.RepositoryFactory
	detailsCache *memory.DetailsCache
	logger       logger.ILogger
}

func NewContextService(
	uowFactory unitofwork.RepositoryFactory,
	detailsCache *memory.DetailsCache,
	logger logger.ILogger,
) IContextService {
	return &contextService{
		uowFactory:   uowFactory,
		detailsCache: detailsCache,
		logger:       logger,
	}
}

func (s *contextService) Add(ctx context.Context, userId uuid.UUID, req *dto.AddContextRequest) (*dto.ConversationContextResponse, error) {
	if !constant.IsContextType(req.ContextType) {
		return nil, serverutils.BadRequest("unsupported context type %q", req.ContextType)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedConversation(ctx, uow, userId, req.ConversationId); err != nil {
		return nil, err
	}

	if _, err := s.resolve(ctx, uow, userId, req.ContextType, req.ContextId); err != nil {
		return nil, err
	}

	row := &entity.ConversationContext{
		Id:             uuid.New(),
		ConversationId: req.ConversationId,
		ContextType:    req.ContextType,
		ContextId:      req.ContextId,
	}
	if err := uow.ConversationContextRepository().Create(ctx, row); err != nil {
		return nil, err
	}
	if err := uow.ConversationRepository().Touch(ctx, req.ConversationId); err != nil {
		s.logger.Warn("CONTEXT", "Failed to touch conversation", map[string]interface{}{"conversation_id": req.ConversationId, "error": err.Error()})
	}

	return contextToResponse(row), nil
}

// Remove accepts either the context row id or the referenced entity id.
func (s *contextService) Remove(ctx context.Context, userId, conversationId, contextId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return err
	}

	affected, err := uow.ConversationContextRepository().Delete(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.ByContextRowOrEntityID{ID: contextId},
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return serverutils.NotFound("context %s is not attached to this conversation", contextId)
	}
	return nil
}

func (s *contextService) List(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.ConversationContextResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedConversation(ctx, uow, userId, conversationId); err != nil {
		return nil, err
	}

	rows, err := listContexts(ctx, uow, conversationId)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.ConversationContextResponse, 0, len(rows))
	for _, row := range rows {
		result = append(result, contextToResponse(row))
	}
	return result, nil
}

func (s *contextService) Details(ctx context.Context, userId uuid.UUID, req *dto.ContextDetailsRequest) (*dto.ContextDetailsResponse, error) {
	if !constant.IsContextType(req.Type) {
		return nil, serverutils.BadRequest("unsupported context type %q", req.Type)
	}

	item, err := s.resolve(ctx, s.uowFactory.NewUnitOfWork(ctx), userId, req.Type, req.Id)
	if err != nil {
		return nil, err
	}
	return catalogToDetails(item), nil
}

func (s *contextService) Search(ctx context.Context, userId uuid.UUID, req *dto.ContextSearchRequest) (*dto.ContextSearchResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	limit := req.Limit
	if limit < 1 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	types := req.Types
	if len(types) == 0 {
		types = []string{constant.ContextTypeDocument, constant.ContextTypeProject, constant.ContextTypeKnowledgeBase}
	}
	for _, t := range types {
		if !constant.IsContextType(t) {
			return nil, serverutils.BadRequest("unsupported context type %q", t)
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	query := strings.TrimSpace(req.Query)
	offset := (page - 1) * limit

	// Each type is searched up to offset+limit so the merged window is exact.
	var (
		merged []*entity.CatalogItem
		total  int64
	)
	for _, t := range types {
		items, count, err := uow.CatalogRepository().Search(ctx, userId, t, query, offset+limit, 0)
		if err != nil {
			return nil, err
		}
		merged = append(merged, items...)
		total += count
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return lastTouched(merged[i]).After(lastTouched(merged[j]))
	})

	window := make([]*dto.ContextDetailsResponse, 0, limit)
	for i := offset; i < len(merged) && len(window) < limit; i++ {
		window = append(window, catalogToDetails(merged[i]))
	}

	return &dto.ContextSearchResponse{
		Items:   window,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: int64(offset+len(window)) < total,
	}, nil
}

// resolve reads a catalog entity through the details cache, scoped to the caller.
func (s *contextService) resolve(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, contextType string, id uuid.UUID) (*entity.CatalogItem, error) {
	if item, ok := s.detailsCache.Get(userId, contextType, id); ok {
		return item, nil
	}

	item, err := uow.CatalogRepository().FindOne(ctx, contextType,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, serverutils.NotFound("%s %s not found", contextType, id)
	}

	s.detailsCache.Save(userId, item)
	return item, nil
}

func listContexts(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID) ([]*entity.ConversationContext, error) {
	return uow.ConversationContextRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at"},
	)
}

func lastTouched(item *entity.CatalogItem) time.Time {
	if item.UpdatedAt != nil {
		return *item.UpdatedAt
	}
	return item.CreatedAt
}

func contextToResponse(row *entity.ConversationContext) *dto.ConversationContextResponse {
	return &dto.ConversationContextResponse{
		Id:             row.Id,
		ConversationId: row.ConversationId,
		ContextType:    row.ContextType,
		ContextId:      row.ContextId,
		CreatedAt:      row.CreatedAt,
	}
}

func catalogToDetails(item *entity.CatalogItem) *dto.ContextDetailsResponse {
	metadata := make(map[string]interface{}, len(item.Metadata)+1)
	for k, v := range item.Metadata {
		metadata[k] = v
	}
	if item.Subtype != "" {
		metadata["subtype"] = item.Subtype
	}
	return &dto.ContextDetailsResponse{
		Id:          item.Id,
		Type:        item.Type,
		Title:       item.Title,
		Icon:        contextIcons[item.Type],
		Description: item.Description,
		Metadata:    metadata,
	}
}
