package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"
	"research-chat-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill/message"
)

const maxTitleWords = 6

// IConsumerService runs the auto-title worker.
type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber  message.Subscriber
	topicName   string
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider
	logger      logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	logger logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:  subscriber,
		topicName:   topicName,
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: gochannel redelivers a nacked message immediately,
// and a missing title is not worth a hot retry loop.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.PublishTitleMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("TITLE_WORKER", "Failed to unmarshal title job", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := cs.generateTitle(ctx, payload); err != nil {
		cs.logger.Warn("TITLE_WORKER", "Title generation failed", map[string]interface{}{
			"conversation_id": payload.ConversationId,
			"error":           err.Error(),
		})
	}
}

func (cs *consumerService) generateTitle(ctx context.Context, payload dto.PublishTitleMessage) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	conversation, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: payload.ConversationId},
		specification.UserOwnedBy{UserID: payload.UserId},
	)
	if err != nil {
		return err
	}
	if conversation == nil || conversation.Title != nil {
		// Deleted, or renamed by the user while the job was queued
		return nil
	}

	raw, err := cs.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.ConversationTitlePromptV1, payload.FirstMessage),
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(24),
	)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	title := CleanTitle(raw)
	if title == "" {
		return fmt.Errorf("model returned an empty title")
	}

	conversation.Title = &title
	if err := uow.ConversationRepository().Update(ctx, conversation); err != nil {
		return err
	}

	cs.logger.Info("TITLE_WORKER", "Conversation titled", map[string]interface{}{
		"conversation_id": conversation.Id,
		"title":           title,
	})
	return nil
}

// CleanTitle keeps the first line of a model reply, strips quotes and trailing
// punctuation, and caps it at six words and 200 characters.
func CleanTitle(raw string) string {
	line := strings.TrimSpace(raw)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	line = strings.TrimPrefix(line, "Title:")
	line = strings.Trim(line, " \t\"'`*")
	line = strings.TrimRight(line, ".!?:;,")

	words := strings.Fields(line)
	if len(words) > maxTitleWords {
		words = words[:maxTitleWords]
	}
	title := strings.Join(words, " ")

	if r := []rune(title); len(r) > 200 {
		title = string(r[:200])
	}
	return title
}
