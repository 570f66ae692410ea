package sidebar

import (
	"context"
	"fmt"

	"research-chat-be/pkg/chatclient"

	"go.uber.org/zap"
)

// maxPersistAttempts bounds the verify-and-rewrite loop for staged contexts.
const maxPersistAttempts = 3

// ContextAPI is the part of chatclient.Client the sync path needs.
type ContextAPI interface {
	AddContextToConversation(ctx context.Context, conversationID string, ref chatclient.ContextRef) (*chatclient.ConversationContext, error)
	RemoveContextFromConversation(ctx context.Context, conversationID, contextID string) error
	GetConversationContexts(ctx context.Context, conversationID string) ([]chatclient.ConversationContext, error)
	GetContextDetails(ctx context.Context, contextType, id string) (*chatclient.ContextDetails, error)
}

var defaultIcons = map[string]string{
	chatclient.ContextTypeDocument:      "file-text",
	chatclient.ContextTypeProject:       "folder",
	chatclient.ContextTypeKnowledgeBase: "book-open",
	ContextTypeGeneral:                  "message-circle",
	ContextTypeSubject:                  "tag",
}

// IconFor returns the display icon for a context type.
func IconFor(contextType string) string {
	if icon, ok := defaultIcons[contextType]; ok {
		return icon
	}
	return "circle"
}

// Persistable reports whether a context type is stored server side.
func Persistable(contextType string) bool {
	switch contextType {
	case chatclient.ContextTypeDocument, chatclient.ContextTypeProject, chatclient.ContextTypeKnowledgeBase:
		return true
	}
	return false
}

// Syncer keeps the store's context list a projection of the server's.
// Every write goes through the server and is followed by SyncFromSource.
type Syncer struct {
	api    ContextAPI
	store  *Store
	logger *zap.Logger
}

func NewSyncer(api ContextAPI, store *Store, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{api: api, store: store, logger: logger}
}

// SyncFromSource re-reads the conversation's contexts, enriches each through the
// details endpoint and commits the result in one SetContexts. On failure the
// store is left untouched. Results for a conversation that is no longer current
// are discarded.
func (s *Syncer) SyncFromSource(ctx context.Context, conversationID string) error {
	return s.syncFromSource(ctx, conversationID, nil)
}

// syncFromSource commits the server rows followed by local, display-only items.
func (s *Syncer) syncFromSource(ctx context.Context, conversationID string, localOnly []ContextItem) error {
	refs, err := s.api.GetConversationContexts(ctx, conversationID)
	if err != nil {
		s.logger.Warn("context sync failed", zap.String("conversation_id", conversationID), zap.Error(err))
		return fmt.Errorf("list contexts: %w", err)
	}

	items := make([]ContextItem, 0, len(refs)+len(localOnly))
	for _, ref := range refs {
		items = append(items, s.enrich(ctx, ref))
	}
	items = append(items, localOnly...)

	if s.store.CurrentConversationID() != conversationID {
		s.logger.Debug("dropping sync for stale conversation", zap.String("conversation_id", conversationID))
		return nil
	}
	s.store.SetContexts(items)
	return nil
}

// enrich never fails: without details the item shows its raw id.
func (s *Syncer) enrich(ctx context.Context, ref chatclient.ConversationContext) ContextItem {
	item := ContextItem{
		ID:    ref.ContextID,
		Type:  ref.ContextType,
		Icon:  IconFor(ref.ContextType),
		Title: ref.ContextID,
	}

	details, err := s.api.GetContextDetails(ctx, ref.ContextType, ref.ContextID)
	if err != nil {
		s.logger.Debug("context details unavailable", zap.String("type", ref.ContextType), zap.String("id", ref.ContextID), zap.Error(err))
		return item
	}
	item.Title = details.Title
	item.Description = details.Description
	item.Metadata = details.Metadata
	if details.Icon != "" {
		item.Icon = details.Icon
	}
	return item
}

// Add writes one context and resyncs.
func (s *Syncer) Add(ctx context.Context, conversationID string, item ContextItem) error {
	if !Persistable(item.Type) {
		return fmt.Errorf("context type %q is not stored", item.Type)
	}
	ref := chatclient.ContextRef{ContextType: item.Type, ContextID: item.ID}
	if _, err := s.api.AddContextToConversation(ctx, conversationID, ref); err != nil {
		return err
	}
	return s.SyncFromSource(ctx, conversationID)
}

// Remove deletes one context by entity id and resyncs.
func (s *Syncer) Remove(ctx context.Context, conversationID, contextID string) error {
	if err := s.api.RemoveContextFromConversation(ctx, conversationID, contextID); err != nil {
		return err
	}
	return s.SyncFromSource(ctx, conversationID)
}

// ReplaceAll removes every persisted context and writes item as the only one.
func (s *Syncer) ReplaceAll(ctx context.Context, conversationID string, item ContextItem) error {
	existing, err := s.api.GetConversationContexts(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("list contexts: %w", err)
	}
	for _, c := range existing {
		if c.ContextType == item.Type && c.ContextID == item.ID {
			continue
		}
		if err := s.api.RemoveContextFromConversation(ctx, conversationID, c.ID); err != nil {
			return fmt.Errorf("remove context %s: %w", c.ContextID, err)
		}
	}
	return s.Add(ctx, conversationID, item)
}

// PersistStaged writes locally staged contexts into a new conversation, then
// verifies them against the server and rewrites any that went missing.
// Staged items the server does not store stay in the store after the sync.
func (s *Syncer) PersistStaged(ctx context.Context, conversationID string, staged []ContextItem) error {
	var refs []chatclient.ContextRef
	var localOnly []ContextItem
	for _, it := range staged {
		if Persistable(it.Type) {
			refs = append(refs, chatclient.ContextRef{ContextType: it.Type, ContextID: it.ID})
		} else {
			localOnly = append(localOnly, it)
		}
	}

	pending := refs
	for attempt := 1; len(pending) > 0 && attempt <= maxPersistAttempts; attempt++ {
		for _, ref := range pending {
			if _, err := s.api.AddContextToConversation(ctx, conversationID, ref); err != nil {
				s.logger.Warn("failed to persist staged context",
					zap.String("type", ref.ContextType), zap.String("id", ref.ContextID),
					zap.Int("attempt", attempt), zap.Error(err))
			}
		}

		persisted, err := s.api.GetConversationContexts(ctx, conversationID)
		if err != nil {
			s.logger.Warn("failed to verify staged contexts", zap.Error(err))
			break
		}
		pending = missingRefs(refs, persisted)
	}

	if len(pending) > 0 {
		s.logger.Warn("staged contexts not persisted", zap.Int("missing", len(pending)))
	}
	return s.syncFromSource(ctx, conversationID, localOnly)
}

func missingRefs(want []chatclient.ContextRef, have []chatclient.ConversationContext) []chatclient.ContextRef {
	var missing []chatclient.ContextRef
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.ContextType == w.ContextType && h.ContextID == w.ContextID {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, w)
		}
	}
	return missing
}
