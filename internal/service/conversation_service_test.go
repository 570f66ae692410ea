package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"research-chat-be/internal/constant"
	"research-chat-be/internal/dto"
	"research-chat-be/internal/pkg/logger"
	"research-chat-be/internal/pkg/serverutils"
	"research-chat-be/internal/repository/memory"
	"research-chat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conversationFixture struct {
	db     *memDB
	llm    *fakeLLM
	events *recordingPublisher
	titles *recordingTitleJobs
	svc    IConversationService
	user   uuid.UUID
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()
	f := &conversationFixture{
		db:     newMemDB(),
		llm:    &fakeLLM{},
		events: &recordingPublisher{},
		titles: &recordingTitleJobs{},
		user:   uuid.New(),
	}
	log := logger.NewNopLogger()
	factory := memFactory{f.db}
	contexts := NewContextService(factory, memory.NewDetailsCache(time.Minute), log)
	f.svc = NewConversationService(factory, contexts, f.llm, f.titles, f.events, log, ConversationServiceOptions{MaxMessageLength: 50})
	return f
}

func drain(t *testing.T, frames <-chan dto.StreamFrame) []dto.StreamFrame {
	t.Helper()
	var out []dto.StreamFrame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func appErrorCode(t *testing.T, err error) int {
	t.Helper()
	var appErr *serverutils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestCreateConversationRetriesDroppedContexts(t *testing.T) {
	f := newConversationFixture(t)
	doc := f.db.addCatalog(f.user, constant.ContextTypeDocument, "ICP report", time.Now())
	proj := f.db.addCatalog(f.user, constant.ContextTypeProject, "Atlas", time.Now())
	f.db.dropBatch = true
	f.db.dropCreates = 1

	docRef := dto.ContextRefDTO{ContextType: constant.ContextTypeDocument, ContextId: doc.Id}
	projRef := dto.ContextRefDTO{ContextType: constant.ContextTypeProject, ContextId: proj.Id}
	res, err := f.svc.Create(context.Background(), f.user, &dto.CreateConversationRequest{
		Contexts: []dto.ContextRefDTO{docRef, projRef, docRef},
	})
	require.NoError(t, err)

	assert.Nil(t, res.Title)
	require.Len(t, res.Contexts, 2)
	got := map[uuid.UUID]string{}
	for _, c := range res.Contexts {
		got[c.ContextId] = c.ContextType
	}
	assert.Equal(t, map[uuid.UUID]string{doc.Id: constant.ContextTypeDocument, proj.Id: constant.ContextTypeProject}, got)
	assert.Equal(t, []string{constant.EventConversationCreated}, f.events.types())
}

func TestCreateConversationGivesUpAfterRetries(t *testing.T) {
	f := newConversationFixture(t)
	f.db.dropBatch = true
	f.db.dropCreates = 100

	res, err := f.svc.Create(context.Background(), f.user, &dto.CreateConversationRequest{
		Contexts: []dto.ContextRefDTO{{ContextType: constant.ContextTypeDocument, ContextId: uuid.New()}},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Contexts)
	assert.Equal(t, 100-constant.ContextPersistAttempts, f.db.dropCreates)
}

func TestCreateConversationValidation(t *testing.T) {
	blank := "   "
	title := "  Pricing  "
	tests := []struct {
		name      string
		req       *dto.CreateConversationRequest
		wantCode  int
		wantTitle *string
	}{
		{name: "unknown context type", req: &dto.CreateConversationRequest{Contexts: []dto.ContextRefDTO{{ContextType: "general", ContextId: uuid.New()}}}, wantCode: 400},
		{name: "blank title becomes nil", req: &dto.CreateConversationRequest{Title: &blank}},
		{name: "title is trimmed", req: &dto.CreateConversationRequest{Title: &title}, wantTitle: strPtr("Pricing")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConversationFixture(t)
			res, err := f.svc.Create(context.Background(), f.user, tt.req)
			if tt.wantCode != 0 {
				assert.Equal(t, tt.wantCode, appErrorCode(t, err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitle, res.Title)
		})
	}
}

func strPtr(s string) *string { return &s }

func TestSendMessageStreamsAndPersists(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	doc := f.db.addCatalog(f.user, constant.ContextTypeDocument, "ICP report", time.Now())
	conv, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{
		Contexts: []dto.ContextRefDTO{{ContextType: constant.ContextTypeDocument, ContextId: doc.Id}},
	})
	require.NoError(t, err)

	f.llm.chunks = []llm.StreamChunk{{Content: "Hel"}, {Content: "lo"}, {Done: true}}
	frames, err := f.svc.SendMessage(ctx, f.user, &dto.SendMessageRequest{ConversationId: conv.Id, Content: "  hello "})
	require.NoError(t, err)
	got := drain(t, frames)

	require.Len(t, got, 3)
	assert.Equal(t, dto.StreamFrame{Type: constant.StreamFrameChunk, Content: "Hel"}, got[0])
	assert.Equal(t, dto.StreamFrame{Type: constant.StreamFrameChunk, Content: "lo"}, got[1])
	assert.Equal(t, constant.StreamFrameDone, got[2].Type)

	messages, err := f.svc.Messages(ctx, f.user, conv.Id)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, constant.MessageRoleUser, messages[0].Role)
	assert.Equal(t, "Hello", messages[1].Content)
	assert.Equal(t, got[2].MessageId, messages[1].Id.String())
	require.Len(t, messages[1].Citations, 1)
	assert.Equal(t, "ICP report", messages[1].Citations[0].Title)

	prompt := f.llm.lastPrompt()
	require.Len(t, prompt, 2)
	assert.Equal(t, constant.MessageRoleSystem, prompt[0].Role)
	assert.Contains(t, prompt[0].Content, "[document] ICP report")
	assert.Equal(t, llm.Message{Role: constant.MessageRoleUser, Content: "hello"}, prompt[1])

	jobs := f.titles.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, conv.Id, jobs[0].ConversationId)
	assert.Equal(t, "hello", jobs[0].FirstMessage)
	assert.Equal(t, []string{constant.EventConversationCreated, constant.EventMessageSent}, f.events.types())

	// Only the first exchange queues a title.
	frames, err = f.svc.SendMessage(ctx, f.user, &dto.SendMessageRequest{ConversationId: conv.Id, Content: "again"})
	require.NoError(t, err)
	drain(t, frames)
	assert.Len(t, f.titles.all(), 1)

	detail, err := f.svc.Show(ctx, f.user, conv.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(4), detail.MessageCount)
	assert.Len(t, detail.Contexts, 1)
}

func TestSendMessageFailuresEndWithErrorFrame(t *testing.T) {
	tests := []struct {
		name      string
		chunks    []llm.StreamChunk
		streamErr error
		wantChunk int
	}{
		{name: "provider error mid-stream", chunks: []llm.StreamChunk{{Content: "a"}, {Err: errors.New("connection reset")}}, wantChunk: 1},
		{name: "provider refuses", streamErr: errors.New("model not loaded")},
		{name: "stream ends without done", chunks: []llm.StreamChunk{{Content: "a"}}, wantChunk: 1},
		{name: "empty reply", chunks: []llm.StreamChunk{{Done: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConversationFixture(t)
			ctx := context.Background()
			conv, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{})
			require.NoError(t, err)
			f.llm.chunks = tt.chunks
			f.llm.streamErr = tt.streamErr

			frames, err := f.svc.SendMessage(ctx, f.user, &dto.SendMessageRequest{ConversationId: conv.Id, Content: "hi"})
			require.NoError(t, err)
			got := drain(t, frames)

			require.Len(t, got, tt.wantChunk+1)
			last := got[len(got)-1]
			assert.Equal(t, constant.StreamFrameError, last.Type)
			assert.NotEmpty(t, last.Error)

			messages, err := f.svc.Messages(ctx, f.user, conv.Id)
			require.NoError(t, err)
			require.Len(t, messages, 1, "only the user message is stored")
			assert.Empty(t, f.titles.all())
		})
	}
}

func TestSendMessageRejectsBeforeStreaming(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		userId   uuid.UUID
		content  string
		wantCode int
	}{
		{"blank", f.user, "  \n ", 400},
		{"too long", f.user, strings.Repeat("x", 51), 400},
		{"someone else's conversation", uuid.New(), "hi", 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, tt.userId, &dto.SendMessageRequest{ConversationId: conv.Id, Content: tt.content})
			assert.Equal(t, tt.wantCode, appErrorCode(t, err))
		})
	}
	assert.Empty(t, f.db.messages)
}

func TestUpdateConversationTitle(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.user, &dto.UpdateConversationRequest{Id: conv.Id, Title: "   "})
	assert.Equal(t, 400, appErrorCode(t, err))

	_, err = f.svc.Update(ctx, f.user, &dto.UpdateConversationRequest{Id: conv.Id, Title: strings.Repeat("é", 201)})
	assert.Equal(t, 400, appErrorCode(t, err))

	res, err := f.svc.Update(ctx, f.user, &dto.UpdateConversationRequest{Id: conv.Id, Title: " Market sizing "})
	require.NoError(t, err)
	require.NotNil(t, res.Title)
	assert.Equal(t, "Market sizing", *res.Title)
	assert.NotNil(t, res.UpdatedAt)
}

func TestDeleteConversationRemovesMessagesAndContexts(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	doc := f.db.addCatalog(f.user, constant.ContextTypeDocument, "ICP report", time.Now())
	conv, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{
		Contexts: []dto.ContextRefDTO{{ContextType: constant.ContextTypeDocument, ContextId: doc.Id}},
	})
	require.NoError(t, err)
	f.llm.chunks = []llm.StreamChunk{{Content: "ok"}, {Done: true}}
	frames, err := f.svc.SendMessage(ctx, f.user, &dto.SendMessageRequest{ConversationId: conv.Id, Content: "hi"})
	require.NoError(t, err)
	drain(t, frames)

	assert.Equal(t, 404, appErrorCode(t, f.svc.Delete(ctx, uuid.New(), conv.Id)))

	require.NoError(t, f.svc.Delete(ctx, f.user, conv.Id))
	assert.Empty(t, f.db.messages)
	assert.Empty(t, f.db.contexts)
	_, err = f.svc.Show(ctx, f.user, conv.Id)
	assert.Equal(t, 404, appErrorCode(t, err))
	assert.Contains(t, f.events.types(), constant.EventConversationDeleted)
}

func TestListConversationsCountsMessages(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, f.user, &dto.CreateConversationRequest{})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, uuid.New(), &dto.CreateConversationRequest{})
	require.NoError(t, err)

	f.llm.chunks = []llm.StreamChunk{{Content: "ok"}, {Done: true}}
	frames, err := f.svc.SendMessage(ctx, f.user, &dto.SendMessageRequest{ConversationId: first.Id, Content: "hi"})
	require.NoError(t, err)
	drain(t, frames)

	list, err := f.svc.List(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.Id, list[0].Id)
	assert.Equal(t, int64(2), list[0].MessageCount)
}
