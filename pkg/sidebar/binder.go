package sidebar

import (
	"context"
	"sync"

	"research-chat-be/pkg/chatclient"

	"go.uber.org/zap"
)

type EntityKind string

const (
	KindReport        EntityKind = "report"
	KindProject       EntityKind = "project"
	KindKnowledgeBase EntityKind = "knowledgeBase"
)

// ContextType maps a page entity to the persisted context type.
func (k EntityKind) ContextType() string {
	switch k {
	case KindReport:
		return chatclient.ContextTypeDocument
	case KindProject:
		return chatclient.ContextTypeProject
	case KindKnowledgeBase:
		return chatclient.ContextTypeKnowledgeBase
	}
	return ContextTypeGeneral
}

type EntityRef struct {
	ID          string
	Name        string
	Description string
}

// EntityBinder pins the active conversation's context set to the entity on
// the current page while it is mounted.
type EntityBinder struct {
	kind   EntityKind
	store  *Store
	syncer *Syncer
	logger *zap.Logger

	mu      sync.Mutex
	applied *EntityRef
	item    *ContextItem
}

func NewEntityBinder(kind EntityKind, store *Store, syncer *Syncer, logger *zap.Logger) *EntityBinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityBinder{kind: kind, store: store, syncer: syncer, logger: logger}
}

// Mount makes ref the only context. Re-mounting the same (id, name, description) is a no-op.
// On a server failure the item is kept locally and the error returned.
func (b *EntityBinder) Mount(ctx context.Context, ref EntityRef) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.applied != nil && *b.applied == ref {
		return nil
	}

	contextType := b.kind.ContextType()
	item := ContextItem{
		ID:          ref.ID,
		Type:        contextType,
		Icon:        IconFor(contextType),
		Title:       ref.Name,
		Description: ref.Description,
	}
	applied := ref
	b.applied = &applied
	b.item = &item

	conversationID := b.store.CurrentConversationID()
	if conversationID == "" {
		b.store.SetContexts([]ContextItem{item})
		return nil
	}

	if err := b.syncer.ReplaceAll(ctx, conversationID, item); err != nil {
		b.logger.Warn("context bind failed, keeping it local",
			zap.String("kind", string(b.kind)), zap.String("id", ref.ID), zap.Error(err))
		b.store.SetContexts([]ContextItem{item})
		return err
	}
	return nil
}

// Unmount removes the bound context from the conversation, or from local state when there is none.
func (b *EntityBinder) Unmount(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.item == nil {
		return nil
	}
	item := *b.item
	b.item = nil
	b.applied = nil

	conversationID := b.store.CurrentConversationID()
	if conversationID == "" {
		b.store.RemoveContext(item.ID, item.Type)
		return nil
	}

	if err := b.syncer.Remove(ctx, conversationID, item.ID); err != nil {
		b.logger.Warn("context unbind failed, removing it locally",
			zap.String("kind", string(b.kind)), zap.String("id", item.ID), zap.Error(err))
		b.store.RemoveContext(item.ID, item.Type)
		return err
	}
	return nil
}
