package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"
	"research-chat-be/internal/tracer"
	"research-chat-be/pkg/events"
	"research-chat-be/pkg/llm"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type IConversationService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error)
	Show(ctx context.Context, userId, id uuid.UUID) (*dto.ConversationDetailResponse, error)
	Messages(ctx context.Context, userId, id uuid.UUID) ([]*dto.MessageResponse, error)
	Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error)
	Delete(ctx context.Context, userId, id uuid.UUID) error
	// SendMessage persists the user message and returns the reply as a frame stream.
	// Errors returned directly happen before streaming starts; later failures arrive as an error frame.
	SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (<-chan dto.StreamFrame, error)
}

type ConversationServiceOptions struct {
	MaxMessageLength int
	HistoryWindow    int
}

type conversationService struct {
	uowFactory       unitofwork.RepositoryFactory
	contextService   IContextService
	llmProvider      llm.LLMProvider
	publisherService IPublisherService
	eventPublisher   events.Publisher
	logger           logger.ILogger
	opts             ConversationServiceOptions
}

func NewConversationService(
	uowFactory unitofwork.RepositoryFactory,
	contextService IContextService,
	llmProvider llm.LLMProvider,
	publisherService IPublisherService,
	eventPublisher events.Publisher,
	logger logger.ILogger,
	opts ConversationServiceOptions,
) IConversationService {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 8000
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 20
	}
	if eventPublisher == nil {
		eventPublisher = events.NopPublisher{}
	}
	return &conversationService{
		uowFactory:       uowFactory,
		contextService:   contextService,
		llmProvider:      llmProvider,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           logger,
		opts:             opts,
	}
}

func (s *conversationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	for _, ref := range req.Contexts {
		if !constant.IsContextType(ref.ContextType) {
			return nil, serverutils.BadRequest("unsupported context type %q", ref.ContextType)
		}
	}

	var title *string
	if req.Title != nil {
		if t := strings.TrimSpace(*req.Title); t != "" {
			title = &t
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation := &entity.Conversation{
		Id:     uuid.New(),
		UserId: userId,
		Title:  title,
	}
	if err := uow.ConversationRepository().Create(ctx, conversation); err != nil {
		return nil, err
	}

	wanted := dedupeRefs(req.Contexts)
	batch := make([]*entity.ConversationContext, 0, len(wanted))
	for _, ref := range wanted {
		batch = append(batch, &entity.ConversationContext{
			Id:             uuid.New(),
			ConversationId: conversation.Id,
			ContextType:    ref.ContextType,
			ContextId:      ref.ContextId,
		})
	}
	if err := uow.ConversationContextRepository().CreateBatch(ctx, batch); err != nil {
		s.logger.Warn("CONVERSATION", "Bulk context insert failed, falling back to single writes", map[string]interface{}{
			"conversation_id": conversation.Id,
			"error":           err.Error(),
		})
	}

	persisted, err := s.ensureContexts(ctx, uow, conversation.Id, wanted)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, constant.EventConversationCreated, map[string]interface{}{
		"conversation_id": conversation.Id.String(),
		"user_id":         userId.String(),
		"context_count":   len(persisted),
	})

	res := conversationToResponse(conversation)
	res.Contexts = make([]*dto.ConversationContextResponse, 0, len(persisted))
	for _, row := range persisted {
		res.Contexts = append(res.Contexts, contextToResponse(row))
	}
	return res, nil
}

// ensureContexts re-reads what was stored and re-writes missing references one by one.
// The bulk insert skips conflicts silently, so verification is the only way to notice a dropped row.
func (s *conversationService) ensureContexts(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID, wanted []dto.ContextRefDTO) ([]*entity.ConversationContext, error) {
	persisted, err := listContexts(ctx, uow, conversationId)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= constant.ContextPersistAttempts; attempt++ {
		missing := missingRefs(wanted, persisted)
		if len(missing) == 0 {
			return persisted, nil
		}

		s.logger.Warn("CONVERSATION", "Initial contexts missing after write, retrying", map[string]interface{}{
			"conversation_id": conversationId,
			"missing":         len(missing),
			"attempt":         attempt,
		})
		for _, ref := range missing {
			row := &entity.ConversationContext{
				Id:             uuid.New(),
				ConversationId: conversationId,
				ContextType:    ref.ContextType,
				ContextId:      ref.ContextId,
			}
			if err := uow.ConversationContextRepository().Create(ctx, row); err != nil {
				s.logger.Warn("CONVERSATION", "Context retry write failed", map[string]interface{}{
					"context_id": ref.ContextId,
					"error":      err.Error(),
				})
			}
		}

		if persisted, err = listContexts(ctx, uow, conversationId); err != nil {
			return nil, err
		}
	}

	if missing := missingRefs(wanted, persisted); len(missing) > 0 {
		s.logger.Error("CONVERSATION", "Initial contexts could not be persisted", map[string]interface{}{
			"conversation_id": conversationId,
			"missing":         len(missing),
		})
	}
	return persisted, nil
}

func (s *conversationService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ConversationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.Id)
	}
	counts, err := uow.MessageRepository().CountByConversationIds(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		c.MessageCount = counts[c.Id]
		result = append(result, conversationToResponse(c))
	}
	return result, nil
}

func (s *conversationService) Show(ctx context.Context, userId, id uuid.UUID) (*dto.ConversationDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	conversation, err := ownedConversation(ctx, uow, userId, id)
	if err != nil {
		return nil, err
	}

	messages, err := orderedMessages(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	conversation.MessageCount = int64(len(messages))

	contexts, err := listContexts(ctx, uow, id)
	if err != nil {
		return nil, err
	}

	res := &dto.ConversationDetailResponse{
		ConversationResponse: *conversationToResponse(conversation),
		Messages:             make([]*dto.MessageResponse, 0, len(messages)),
	}
	for _, row := range contexts {
		res.Contexts = append(res.Contexts, contextToResponse(row))
	}
	for _, m := range messages {
		res.Messages = append(res.Messages, messageToResponse(m))
	}
	return res, nil
}

func (s *conversationService) Messages(ctx context.Context, userId, id uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedConversation(ctx, uow, userId, id); err != nil {
		return nil, err
	}

	messages, err := orderedMessages(ctx, uow, id)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		result = append(result, messageToResponse(m))
	}
	return result, nil
}

func (s *conversationService) Update(ctx context.Context, userId uuid.UUID, req *dto.UpdateConversationRequest) (*dto.ConversationResponse, error) {
	title := strings.TrimSpace(req.Title)
	if n := utf8.RuneCountInString(title); n == 0 || n > 200 {
		return nil, serverutils.BadRequest("title must be between 1 and 200 characters")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := ownedConversation(ctx, uow, userId, req.Id)
	if err != nil {
		return nil, err
	}

	conversation.Title = &title
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return nil, err
	}

	count, err := uow.MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conversation.Id})
	if err != nil {
		return nil, err
	}
	conversation.MessageCount = count

	return conversationToResponse(conversation), nil
}

func (s *conversationService) Delete(ctx context.Context, userId, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := ownedConversation(ctx, uow, userId, id); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ConversationContextRepository().DeleteByConversationId(ctx, id); err != nil {
		return err
	}
	if err := uow.MessageRepository().DeleteByConversationId(ctx, id); err != nil {
		return err
	}
	if err := uow.ConversationRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.publish(ctx, constant.EventConversationDeleted, map[string]interface{}{
		"conversation_id": id.String(),
		"user_id":         userId.String(),
	})
	return nil
}

func (s *conversationService) SendMessage(ctx context.Context, userId uuid.UUID, req *dto.SendMessageRequest) (<-chan dto.StreamFrame, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, serverutils.BadRequest("message content is required")
	}
	if utf8.RuneCountInString(content) > s.opts.MaxMessageLength {
		return nil, serverutils.BadRequest("message exceeds %d characters", s.opts.MaxMessageLength)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversation, err := ownedConversation(ctx, uow, userId, req.ConversationId)
	if err != nil {
		return nil, err
	}

	priorCount, err := uow.MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conversation.Id})
	if err != nil {
		return nil, err
	}

	userMessage := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Role:           constant.MessageRoleUser,
		Content:        content,
	}
	if err := uow.MessageRepository().Create(ctx, userMessage); err != nil {
		return nil, err
	}

	history, err := s.historyWindow(ctx, uow, conversation.Id)
	if err != nil {
		return nil, err
	}
	preamble, citations := s.contextPreamble(ctx, uow, userId, conversation.Id)

	prompt := make([]llm.Message, 0, len(history)+1)
	prompt = append(prompt, llm.Message{Role: constant.MessageRoleSystem, Content: constant.ConversationSystemPromptV1 + preamble})
	for _, m := range history {
		prompt = append(prompt, llm.Message{Role: m.Role, Content: m.Content})
	}

	ctx, span := tracer.Tracer("conversation").Start(ctx, "ConversationService.SendMessage")
	span.SetAttributes(
		attribute.String("conversation.id", conversation.Id.String()),
		attribute.Int("prompt.messages", len(prompt)),
	)

	frames := make(chan dto.StreamFrame)
	go func() {
		defer close(frames)
		defer span.End()

		emit := func(f dto.StreamFrame) bool {
			select {
			case frames <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}
		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error("CONVERSATION", "Assistant reply failed", map[string]interface{}{
				"conversation_id": conversation.Id,
				"error":           err.Error(),
			})
			emit(dto.StreamFrame{Type: constant.StreamFrameError, Error: "The assistant could not complete the reply. Please try again."})
		}

		chunks, err := s.llmProvider.StreamChat(ctx, prompt)
		if err != nil {
			fail(err)
			return
		}

		var reply strings.Builder
		for chunk := range chunks {
			switch {
			case chunk.Err != nil:
				fail(chunk.Err)
				return
			case chunk.Done:
				s.finishReply(ctx, emit, fail, conversation, userMessage, reply.String(), citations, priorCount == 0)
				return
			default:
				reply.WriteString(chunk.Content)
				if !emit(dto.StreamFrame{Type: constant.StreamFrameChunk, Content: chunk.Content}) {
					return
				}
			}
		}

		// Channel closed without a terminal chunk: the client went away.
		if ctx.Err() == nil {
			fail(fmt.Errorf("llm stream ended without completion"))
		}
	}()

	return frames, nil
}

func (s *conversationService) finishReply(
	ctx context.Context,
	emit func(dto.StreamFrame) bool,
	fail func(error),
	conversation *entity.Conversation,
	userMessage *entity.Message,
	reply string,
	citations []entity.Citation,
	firstExchange bool,
) {
	if strings.TrimSpace(reply) == "" {
		fail(fmt.Errorf("llm returned an empty reply"))
		return
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	assistant := &entity.Message{
		Id:             uuid.New(),
		ConversationId: conversation.Id,
		Role:           constant.MessageRoleAssistant,
		Content:        reply,
	}
	if len(citations) > 0 {
		assistant.Metadata = &entity.MessageMetadata{Citations: citations}
	}
	if err := uow.MessageRepository().Create(ctx, assistant); err != nil {
		fail(fmt.Errorf("persist assistant message: %w", err))
		return
	}
	if err := uow.ConversationRepository().Touch(ctx, conversation.Id); err != nil {
		s.logger.Warn("CONVERSATION", "Failed to touch conversation", map[string]interface{}{"error": err.Error()})
	}

	emit(dto.StreamFrame{Type: constant.StreamFrameDone, MessageId: assistant.Id.String()})

	s.publish(ctx, constant.EventMessageSent, map[string]interface{}{
		"conversation_id":      conversation.Id.String(),
		"user_id":              conversation.UserId.String(),
		"user_message_id":      userMessage.Id.String(),
		"assistant_message_id": assistant.Id.String(),
	})

	if firstExchange && conversation.Title == nil && s.publisherService != nil {
		err := s.publisherService.PublishTitleJob(ctx, dto.PublishTitleMessage{
			ConversationId: conversation.Id,
			UserId:         conversation.UserId,
			FirstMessage:   userMessage.Content,
		})
		if err != nil {
			s.logger.Warn("CONVERSATION", "Failed to queue title job", map[string]interface{}{"error": err.Error()})
		}
	}
}

// historyWindow returns the newest messages in chronological order.
func (s *conversationService) historyWindow(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID) ([]*entity.Message, error) {
	newest, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.Pagination{Limit: s.opts.HistoryWindow},
	)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(newest)-1; i < j; i, j = i+1, j-1 {
		newest[i], newest[j] = newest[j], newest[i]
	}
	return newest, nil
}

// contextPreamble describes the attached entities for the system prompt.
// Unresolvable contexts are skipped; the reply still goes out without them.
func (s *conversationService) contextPreamble(ctx context.Context, uow unitofwork.UnitOfWork, userId, conversationId uuid.UUID) (string, []entity.Citation) {
	rows, err := listContexts(ctx, uow, conversationId)
	if err != nil {
		s.logger.Warn("CONVERSATION", "Failed to load contexts for prompt", map[string]interface{}{"error": err.Error()})
		return "", nil
	}
	if len(rows) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("\n\nATTACHED CONTEXT:\n")
	citations := make([]entity.Citation, 0, len(rows))
	for _, row := range rows {
		details, err := s.contextService.Details(ctx, userId, &dto.ContextDetailsRequest{Type: row.ContextType, Id: row.ContextId})
		if err != nil {
			s.logger.Warn("CONVERSATION", "Skipping unresolvable context", map[string]interface{}{
				"context_type": row.ContextType,
				"context_id":   row.ContextId,
				"error":        err.Error(),
			})
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s", details.Type, details.Title)
		if details.Description != "" {
			fmt.Fprintf(&b, ": %s", details.Description)
		}
		b.WriteString("\n")
		citations = append(citations, entity.Citation{ContextType: details.Type, ContextId: details.Id, Title: details.Title})
	}
	if len(citations) == 0 {
		return "", nil
	}
	return b.String(), citations
}

func (s *conversationService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if err := s.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("CONVERSATION", "Event publish failed", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

// ownedConversation loads a conversation only when it belongs to userId; anything else is a 404.
func ownedConversation(ctx context.Context, uow unitofwork.UnitOfWork, userId, id uuid.UUID) (*entity.Conversation, error) {
	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, serverutils.NotFound("conversation %s not found", id)
	}
	return conversation, nil
}

func orderedMessages(ctx context.Context, uow unitofwork.UnitOfWork, conversationId uuid.UUID) ([]*entity.Message, error) {
	return uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "created_at"},
		specification.OrderBy{Field: "id"},
	)
}

func dedupeRefs(refs []dto.ContextRefDTO) []dto.ContextRefDTO {
	seen := make(map[dto.ContextRefDTO]bool, len(refs))
	out := make([]dto.ContextRefDTO, 0, len(refs))
	for _, ref := range refs {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		out = append(out, ref)
	}
	return out
}

func missingRefs(wanted []dto.ContextRefDTO, persisted []*entity.ConversationContext) []dto.ContextRefDTO {
	var missing []dto.ContextRefDTO
	for _, ref := range wanted {
		found := false
		for _, row := range persisted {
			if row.SameReference(ref.ContextType, ref.ContextId) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, ref)
		}
	}
	return missing
}

func conversationToResponse(c *entity.Conversation) *dto.ConversationResponse {
	return &dto.ConversationResponse{
		Id:           c.Id,
		Title:        c.Title,
		MessageCount: c.MessageCount,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func messageToResponse(m *entity.Message) *dto.MessageResponse {
	res := &dto.MessageResponse{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Metadata != nil {
		for _, c := range m.Metadata.Citations {
			res.Citations = append(res.Citations, dto.CitationDTO{ContextType: c.ContextType, ContextId: c.ContextId, Title: c.Title})
		}
		for _, a := range m.Metadata.Actions {
			res.Actions = append(res.Actions, dto.MessageActionDTO{Type: a.Type, Label: a.Label, Href: a.Href})
		}
	}
	return res
}
