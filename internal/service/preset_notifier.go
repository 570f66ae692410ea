package service

import (
	"context"
	"encoding/json"
	"fmt"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/pkg/events"
)

// PresetNotifier pushes preset mutations to subscribed admin screens.
type PresetNotifier interface {
	NotifyPresetChange(ctx context.Context, event dto.PresetChangeEvent)
}

// PresetBroadcaster is implemented by the websocket hub.
type PresetBroadcaster interface {
	BroadcastPresetChange(event dto.PresetChangeEvent)
}

type hubPresetNotifier struct {
	hub PresetBroadcaster
}

func NewHubPresetNotifier(hub PresetBroadcaster) PresetNotifier {
	return &hubPresetNotifier{hub: hub}
}

func (n *hubPresetNotifier) NotifyPresetChange(_ context.Context, event dto.PresetChangeEvent) {
	n.hub.BroadcastPresetChange(event)
}

// busPresetNotifier routes changes through the event bus so one consumer fans them out.
// When publishing fails the fallback delivers directly.
type busPresetNotifier struct {
	publisher events.Publisher
	fallback  PresetNotifier
	logger    logger.ILogger
}

func NewBusPresetNotifier(publisher events.Publisher, fallback PresetNotifier, logger logger.ILogger) PresetNotifier {
	return &busPresetNotifier{publisher: publisher, fallback: fallback, logger: logger}
}

func (n *busPresetNotifier) NotifyPresetChange(ctx context.Context, event dto.PresetChangeEvent) {
	data, err := presetEventPayload(event)
	if err == nil {
		err = n.publisher.Publish(ctx, events.New(constant.EventPresetChanged, data))
	}
	if err != nil {
		n.logger.Warn("PRESET", "Event bus unavailable, delivering preset change directly", map[string]interface{}{"error": err.Error()})
		n.fallback.NotifyPresetChange(ctx, event)
	}
}

func presetEventPayload(event dto.PresetChangeEvent) (map[string]interface{}, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// PresetEventFromPayload decodes a bus payload back into the change event.
func PresetEventFromPayload(data map[string]interface{}) (dto.PresetChangeEvent, error) {
	var event dto.PresetChangeEvent
	raw, err := json.Marshal(data)
	if err != nil {
		return event, err
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return event, err
	}
	switch event.Event {
	case constant.PresetEventInsert, constant.PresetEventUpdate, constant.PresetEventDelete:
		return event, nil
	}
	return event, fmt.Errorf("unknown preset event %q", event.Event)
}
