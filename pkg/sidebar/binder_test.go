package sidebar

import (
	"context"
	"testing"

	"research-chat-be/pkg/chatclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityKindContextType(t *testing.T) {
	tests := []struct {
		kind EntityKind
		want string
	}{
		{KindReport, chatclient.ContextTypeDocument},
		{KindProject, chatclient.ContextTypeProject},
		{KindKnowledgeBase, chatclient.ContextTypeKnowledgeBase},
		{EntityKind("dashboard"), ContextTypeGeneral},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.ContextType())
		})
	}
}

func TestBinderMountWithoutConversationStagesLocally(t *testing.T) {
	backend, client := newFakeBackend(t)
	store := NewStore(NewMemoryAdapter(), nil)
	store.AddContext(item("old", "project"))
	binder := NewEntityBinder(KindReport, store, NewSyncer(client, store, nil), nil)

	require.NoError(t, binder.Mount(context.Background(), EntityRef{ID: "r1", Name: "ICP report"}))

	assert.Equal(t, []ContextItem{{ID: "r1", Type: "document", Icon: "file-text", Title: "ICP report"}}, store.Snapshot().ActiveContexts)
	adds, _ := backend.calls()
	assert.Zero(t, adds)
}

func TestBinderMountReplacesConversationContexts(t *testing.T) {
	backend, client := newFakeBackend(t)
	convID := backend.seedConversation()
	backend.addDetails(chatclient.ContextDetails{ID: "r1", Type: "document", Title: "ICP report", Icon: "file-text"})

	store := NewStore(NewMemoryAdapter(), nil)
	store.SetCurrentConversationID(convID)
	syncer := NewSyncer(client, store, nil)
	ctx := context.Background()
	require.NoError(t, syncer.Add(ctx, convID, item("p1", "project")))

	binder := NewEntityBinder(KindReport, store, syncer, nil)
	ref := EntityRef{ID: "r1", Name: "ICP report"}
	require.NoError(t, binder.Mount(ctx, ref))

	rows := backend.storedContexts(convID)
	require.Len(t, rows, 1)
	assert.Equal(t, "document", rows[0].ContextType)
	assert.Equal(t, "r1", rows[0].ContextID)

	active := store.Snapshot().ActiveContexts
	require.Len(t, active, 1)
	assert.Equal(t, "r1", active[0].ID)

	// Same ref again is a no-op.
	before, _ := backend.calls()
	require.NoError(t, binder.Mount(ctx, ref))
	after, _ := backend.calls()
	assert.Equal(t, before, after)

	// A changed name is a new binding.
	require.NoError(t, binder.Mount(ctx, EntityRef{ID: "r1", Name: "ICP report v2"}))
	after, _ = backend.calls()
	assert.Greater(t, after, before)
}

func TestBinderUnmountRemovesContext(t *testing.T) {
	backend, client := newFakeBackend(t)
	convID := backend.seedConversation()
	backend.addDetails(chatclient.ContextDetails{ID: "kb1", Type: "knowledgeBase", Title: "Playbooks", Icon: "book-open"})

	store := NewStore(NewMemoryAdapter(), nil)
	store.SetCurrentConversationID(convID)
	binder := NewEntityBinder(KindKnowledgeBase, store, NewSyncer(client, store, nil), nil)
	ctx := context.Background()

	require.NoError(t, binder.Mount(ctx, EntityRef{ID: "kb1", Name: "Playbooks"}))
	require.Len(t, backend.storedContexts(convID), 1)

	require.NoError(t, binder.Unmount(ctx))
	assert.Empty(t, backend.storedContexts(convID))
	assert.Empty(t, store.Snapshot().ActiveContexts)

	// Nothing bound any more.
	require.NoError(t, binder.Unmount(ctx))
	_, removes := backend.calls()
	assert.Equal(t, 1, removes)
}

func TestBinderFallsBackToLocalStateOnFailure(t *testing.T) {
	client := chatclient.New("http://127.0.0.1:1/api")
	store := NewStore(NewMemoryAdapter(), nil)
	store.SetCurrentConversationID("conv-1")
	store.AddContext(item("p1", "project"))
	binder := NewEntityBinder(KindProject, store, NewSyncer(client, store, nil), nil)
	ctx := context.Background()

	err := binder.Mount(ctx, EntityRef{ID: "p2", Name: "Atlas"})
	require.Error(t, err)
	active := store.Snapshot().ActiveContexts
	require.Len(t, active, 1)
	assert.Equal(t, "p2", active[0].ID)
	assert.Equal(t, "Atlas", active[0].Title)

	require.Error(t, binder.Unmount(ctx))
	assert.Empty(t, store.Snapshot().ActiveContexts)
}
