package sidebar

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"research-chat-be/pkg/chatclient"

	"go.uber.org/zap"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSending
	PhaseStreaming
	PhaseSettled
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSending:
		return "sending"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	case PhaseErrored:
		return "errored"
	}
	return "unknown"
}

var (
	ErrEmptyMessage = errors.New("sidebar: message is empty")
	ErrBusy         = errors.New("sidebar: a reply is still streaming")
)

// ConversationAPI is the part of chatclient.Client the orchestrator needs.
type ConversationAPI interface {
	CreateConversation(ctx context.Context, req chatclient.CreateConversationRequest) (*chatclient.Conversation, error)
	GetConversation(ctx context.Context, id string) (*chatclient.Conversation, error)
	UpdateConversation(ctx context.Context, id, title string) (*chatclient.Conversation, error)
	DeleteConversation(ctx context.Context, id string) error
	SendMessage(ctx context.Context, conversationID string, req chatclient.SendMessageRequest,
		onChunk func(string), onDone func(string), onError func(error)) error
}

type API interface {
	ConversationAPI
	ContextAPI
}

// Viewport is the rendered message list. Optional.
type Viewport interface {
	Scroller
	Metrics() Metrics
}

// View is what a renderer needs to draw the sidebar.
type View struct {
	Phase          Phase
	Messages       []chatclient.Message
	IsTyping       bool
	ConversationID string
}

type Options struct {
	Logger       *zap.Logger
	Toast        func(message string)
	OnUpdate     func(View)
	Viewport     Viewport
	ScrollConfig *ScrollConfig
	// Match overrides the merge predicate.
	Match func(local, remote chatclient.Message) bool
}

// Sidebar owns the optimistic message list of the active conversation.
type Sidebar struct {
	api      API
	store    *Store
	syncer   *Syncer
	scroll   *ScrollController
	viewport Viewport
	logger   *zap.Logger
	toast    func(string)
	onUpdate func(View)
	match    func(local, remote chatclient.Message) bool

	mu       sync.Mutex
	phase    Phase
	messages []chatclient.Message
	typing   bool
	seq      int
	// gen increments whenever the in-flight send is superseded; late frames
	// carrying an older gen are dropped.
	gen        int
	cancelSend context.CancelFunc
}

func New(api API, store *Store, opts Options) *Sidebar {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultScrollConfig()
	if opts.ScrollConfig != nil {
		cfg = *opts.ScrollConfig
	}

	var scroller Scroller
	if opts.Viewport != nil {
		scroller = opts.Viewport
	}

	return &Sidebar{
		api:      api,
		store:    store,
		syncer:   NewSyncer(api, store, logger),
		scroll:   NewScrollController(cfg, scroller),
		viewport: opts.Viewport,
		logger:   logger,
		toast:    opts.Toast,
		onUpdate: opts.OnUpdate,
		match:    opts.Match,
	}
}

func (s *Sidebar) Store() *Store { return s.store }

func (s *Sidebar) Syncer() *Syncer { return s.syncer }

func (s *Sidebar) ScrollController() *ScrollController { return s.scroll }

func (s *Sidebar) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Sidebar) viewLocked() View {
	msgs := make([]chatclient.Message, len(s.messages))
	copy(msgs, s.messages)
	return View{
		Phase:          s.phase,
		Messages:       msgs,
		IsTyping:       s.typing,
		ConversationID: s.store.CurrentConversationID(),
	}
}

func (s *Sidebar) notify() {
	if s.onUpdate != nil {
		s.onUpdate(s.View())
	}
}

func (s *Sidebar) metrics() Metrics {
	if s.viewport == nil {
		return Metrics{}
	}
	return s.viewport.Metrics()
}

// Send posts content to the current conversation, creating one first when needed,
// and streams the reply into a placeholder. It blocks until the reply settles.
func (s *Sidebar) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.typing {
		s.mu.Unlock()
		return ErrBusy
	}
	s.typing = true
	s.phase = PhaseSending
	s.seq++
	s.gen++
	gen := s.gen
	userMsg := chatclient.Message{ID: TempPrefix + strconv.Itoa(s.seq), Role: chatclient.RoleUser, Content: content}
	placeholder := chatclient.Message{ID: StreamingPrefix + strconv.Itoa(s.seq), Role: chatclient.RoleAssistant}
	s.messages = append(s.messages, userMsg, placeholder)
	sendCtx, cancel := context.WithCancel(ctx)
	s.cancelSend = cancel
	s.mu.Unlock()
	defer cancel()

	s.notify()
	s.scroll.OnMessageAdded(userMsg, s.metrics())
	s.scroll.OnMessageAdded(placeholder, s.metrics())

	conversationID, err := s.ensureConversation(sendCtx)
	if err != nil {
		s.fail(gen, placeholder.ID, err)
		return err
	}

	var sendErr error
	err = s.api.SendMessage(sendCtx, conversationID, chatclient.SendMessageRequest{Content: content},
		func(chunk string) { s.appendChunk(gen, placeholder.ID, chunk) },
		func(messageID string) { s.settle(gen, placeholder.ID, messageID) },
		func(err error) { sendErr = err; s.fail(gen, placeholder.ID, err) },
	)
	if err == nil {
		err = sendErr
	}
	if err != nil {
		if !s.current(gen) {
			return context.Canceled
		}
		return err
	}

	if !s.current(gen) {
		return nil
	}
	if err := s.LoadConversation(ctx, conversationID); err != nil {
		s.logger.Warn("reload after send failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
	return nil
}

// ensureConversation creates the conversation on first send and moves the
// locally staged contexts into it.
func (s *Sidebar) ensureConversation(ctx context.Context) (string, error) {
	if id := s.store.CurrentConversationID(); id != "" {
		return id, nil
	}

	conv, err := s.api.CreateConversation(ctx, chatclient.CreateConversationRequest{})
	if err != nil {
		return "", err
	}
	staged := s.store.Snapshot().ActiveContexts
	s.store.SetCurrentConversationID(conv.ID)

	if err := s.syncer.PersistStaged(ctx, conv.ID, staged); err != nil {
		// The staged list stays in the store, so the user still sees it.
		s.logger.Warn("staged contexts not synced", zap.String("conversation_id", conv.ID), zap.Error(err))
	}
	return conv.ID, nil
}

func (s *Sidebar) current(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Sidebar) appendChunk(gen int, placeholderID, chunk string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseStreaming
	for i := range s.messages {
		if s.messages[i].ID == placeholderID {
			s.messages[i].Content += chunk
			break
		}
	}
	s.mu.Unlock()

	s.notify()
	s.scroll.OnContentGrow(s.metrics())
}

func (s *Sidebar) settle(gen int, placeholderID, messageID string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if messageID != "" {
		for i := range s.messages {
			if s.messages[i].ID == placeholderID {
				s.messages[i].ID = messageID
				break
			}
		}
	}
	s.phase = PhaseSettled
	s.typing = false
	s.cancelSend = nil
	s.mu.Unlock()

	s.scroll.OnStreamEnd()
	s.notify()
}

func (s *Sidebar) fail(gen int, placeholderID string, err error) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	kept := s.messages[:0:0]
	for _, m := range s.messages {
		if m.ID != placeholderID {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	s.phase = PhaseErrored
	s.typing = false
	s.cancelSend = nil
	s.mu.Unlock()

	s.scroll.OnStreamEnd()
	s.logger.Warn("send failed", zap.Error(err))
	if s.toast != nil {
		s.toast(err.Error())
	}
	s.notify()
}

// LoadConversation fetches id and applies it only if id is still current.
// While optimistic messages are on screen the server list is merged in.
func (s *Sidebar) LoadConversation(ctx context.Context, id string) error {
	conv, err := s.api.GetConversation(ctx, id)
	if err != nil {
		return err
	}
	if s.store.CurrentConversationID() != id {
		return nil
	}

	s.mu.Lock()
	if hasTemporary(s.messages) {
		s.messages = MergeMessages(s.messages, conv.Messages, s.match)
	} else {
		s.messages = append([]chatclient.Message(nil), conv.Messages...)
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// abandonSend drops the in-flight send. Its stream is cancelled and any late
// frames are ignored.
func (s *Sidebar) abandonSend() {
	s.mu.Lock()
	if s.cancelSend != nil {
		s.cancelSend()
		s.cancelSend = nil
	}
	s.gen++
	s.typing = false
	s.phase = PhaseIdle
	s.messages = nil
	s.mu.Unlock()
	s.scroll.OnStreamEnd()
}

func (s *Sidebar) SwitchConversation(ctx context.Context, id string) error {
	if id == s.store.CurrentConversationID() {
		return s.LoadConversation(ctx, id)
	}
	s.abandonSend()
	s.store.SetCurrentConversationID(id)
	s.notify()

	if err := s.LoadConversation(ctx, id); err != nil {
		return err
	}
	if err := s.syncer.SyncFromSource(ctx, id); err != nil {
		s.logger.Warn("context sync after switch failed", zap.String("conversation_id", id), zap.Error(err))
	}
	return nil
}

// NewConversation resets to the empty state; the conversation is created on first send.
func (s *Sidebar) NewConversation() {
	s.abandonSend()
	s.store.SetCurrentConversationID("")
	s.store.ClearContexts()
	s.notify()
}

func (s *Sidebar) DeleteConversation(ctx context.Context, id string) error {
	if err := s.api.DeleteConversation(ctx, id); err != nil {
		if s.toast != nil {
			s.toast(err.Error())
		}
		return err
	}
	if s.store.CurrentConversationID() == id {
		s.NewConversation()
	}
	return nil
}

func (s *Sidebar) RenameConversation(ctx context.Context, id, title string) (*chatclient.Conversation, error) {
	conv, err := s.api.UpdateConversation(ctx, id, strings.TrimSpace(title))
	if err != nil {
		if s.toast != nil {
			s.toast(err.Error())
		}
		return nil, err
	}
	return conv, nil
}
