package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"Pricing strategy for EU", "Pricing strategy for EU"},
		{"\"Pricing strategy for EU.\"", "Pricing strategy for EU"},
		{"Title: Outbound plan review!", "Outbound plan review"},
		{"One two three four five six seven eight", "One two three four five six"},
		{"First line\nsecond line", "First line"},
		{"  **Bold title**  ", "Bold title"},
		{"...", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTitle(tt.raw))
		})
	}
}

func TestTitleWorker(t *testing.T) {
	renamed := "Picked by user"
	tests := []struct {
		name      string
		title     *string
		reply     string
		replyErr  error
		wantTitle *string
		wantErr   bool
	}{
		{name: "untitled gets a title", reply: "\"ICP review for fintech.\"", wantTitle: strPtr("ICP review for fintech")},
		{name: "user title wins", title: &renamed, reply: "Something else", wantTitle: &renamed},
		{name: "model failure leaves it untitled", replyErr: errors.New("offline"), wantErr: true},
		{name: "empty reply leaves it untitled", reply: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			model := &fakeLLM{reply: tt.reply, replyErr: tt.replyErr}
			user := uuid.New()
			conv := &entity.Conversation{Id: uuid.New(), UserId: user, Title: tt.title}
			require.NoError(t, memConversations{db}.Create(context.Background(), conv))

			cs := &consumerService{uowFactory: memFactory{db}, llmProvider: model, logger: logger.NewNopLogger()}
			err := cs.generateTitle(context.Background(), dto.PublishTitleMessage{ConversationId: conv.Id, UserId: user, FirstMessage: "Review the fintech ICP"})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantTitle, db.conversations[conv.Id].Title)
		})
	}
}

func TestTitleJobRoundTripThroughGoChannel(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 4}, watermill.NopLogger{})
	t.Cleanup(func() { pubSub.Close() })

	db := newMemDB()
	user := uuid.New()
	conv := &entity.Conversation{Id: uuid.New(), UserId: user}
	require.NoError(t, memConversations{db}.Create(context.Background(), conv))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	consumer := NewConsumerService(pubSub, "title_jobs", memFactory{db}, &fakeLLM{reply: "Fintech ICP"}, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService(pubSub, "title_jobs")
	require.NoError(t, publisher.PublishTitleJob(ctx, dto.PublishTitleMessage{ConversationId: conv.Id, UserId: user, FirstMessage: "hi"}))

	assert.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		title := db.conversations[conv.Id].Title
		return title != nil && *title == "Fintech ICP"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessMessageAcksBadPayload(t *testing.T) {
	cs := &consumerService{uowFactory: memFactory{newMemDB()}, llmProvider: &fakeLLM{}, logger: logger.NewNopLogger()}
	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))

	cs.processMessage(context.Background(), msg)

	select {
	case <-msg.Acked():
	default:
		t.Fatal("message was not acked")
	}
}

func TestBusPresetNotifierFallsBackToHub(t *testing.T) {
	direct := &recordingNotifier{}
	event := dto.PresetChangeEvent{Event: constant.PresetEventUpdate, PresetId: uuid.New(), Preset: &dto.PresetResponse{Name: "Slate"}}

	bus := &recordingPublisher{}
	NewBusPresetNotifier(bus, direct, logger.NewNopLogger()).NotifyPresetChange(context.Background(), event)
	assert.Equal(t, []string{constant.EventPresetChanged}, bus.types())
	assert.Empty(t, direct.kinds())

	decoded, err := PresetEventFromPayload(bus.events[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, event.PresetId, decoded.PresetId)
	assert.Equal(t, "Slate", decoded.Preset.Name)

	down := &recordingPublisher{err: errors.New("nats down")}
	NewBusPresetNotifier(down, direct, logger.NewNopLogger()).NotifyPresetChange(context.Background(), event)
	assert.Equal(t, []string{constant.PresetEventUpdate}, direct.kinds())
}

func TestPresetEventFromPayloadRejectsUnknownKinds(t *testing.T) {
	raw, err := json.Marshal(dto.PresetChangeEvent{Event: "TRUNCATE", PresetId: uuid.New()})
	require.NoError(t, err)
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &data))

	_, err = PresetEventFromPayload(data)
	assert.Error(t, err)
}
