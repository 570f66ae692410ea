package service

import (
	"context"
	"encoding/json"

	"research-chat-be/internal/dto"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// IPublisherService queues in-process background jobs.
type IPublisherService interface {
	PublishTitleJob(ctx context.Context, payload dto.PublishTitleMessage) error
}

type publisherService struct {
	publisher message.Publisher
	topicName string
}

func NewPublisherService(publisher message.Publisher, topicName string) IPublisherService {
	return &publisherService{
		publisher: publisher,
		topicName: topicName,
	}
}

func (p *publisherService) PublishTitleJob(ctx context.Context, payload dto.PublishTitleMessage) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.SetContext(ctx)
	return p.publisher.Publish(p.topicName, msg)
}
