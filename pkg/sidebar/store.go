package sidebar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Persistence keys. They match what the web client keeps in local storage.
const (
	KeySidebarOpen         = "chat-sidebar-open"
	KeyCurrentConversation = "chat-current-conversation-id"
	KeyActiveContexts      = "chat-active-contexts"
)

// Display-only context types. They are never written to the server.
const (
	ContextTypeGeneral = "general"
	ContextTypeSubject = "subject"
)

type ContextItem struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	Icon        string                 `json:"icon"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type State struct {
	IsOpen                bool
	ActiveContexts        []ContextItem
	CurrentConversationID string
}

func (s State) clone() State {
	out := s
	out.ActiveContexts = make([]ContextItem, len(s.ActiveContexts))
	copy(out.ActiveContexts, s.ActiveContexts)
	return out
}

// PersistenceAdapter is a string key/value store. Missing keys report ok=false.
type PersistenceAdapter interface {
	Load(key string) (value string, ok bool, err error)
	Save(key, value string) error
}

// Store holds the sidebar's client state and mirrors it to the adapter on every change.
type Store struct {
	adapter PersistenceAdapter
	logger  *zap.Logger

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextSubId   int
}

// NewStore hydrates from the adapter. Unreadable values fall back to zero state.
func NewStore(adapter PersistenceAdapter, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if adapter == nil {
		adapter = NewMemoryAdapter()
	}
	s := &Store{adapter: adapter, logger: logger, subscribers: map[int]func(State){}}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	if v, ok, err := s.adapter.Load(KeySidebarOpen); err == nil && ok {
		s.state.IsOpen, _ = strconv.ParseBool(v)
	}
	if v, ok, err := s.adapter.Load(KeyCurrentConversation); err == nil && ok {
		s.state.CurrentConversationID = v
	}
	if v, ok, err := s.adapter.Load(KeyActiveContexts); err == nil && ok && v != "" {
		var items []ContextItem
		if err := json.Unmarshal([]byte(v), &items); err != nil {
			s.logger.Warn("discarding unreadable persisted contexts", zap.Error(err))
		} else {
			s.state.ActiveContexts = dedupe(items)
		}
	}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) CurrentConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentConversationID
}

// Subscribe registers fn for every change and returns its cancel func.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubId
	s.nextSubId++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// AddContext is a no-op when an item with the same id and type is present.
func (s *Store) AddContext(item ContextItem) {
	s.mutate(func(st *State) bool {
		if indexOf(st.ActiveContexts, item.ID, item.Type) >= 0 {
			return false
		}
		st.ActiveContexts = append(st.ActiveContexts, item)
		return true
	})
}

// RemoveContext drops items with the id; a non-empty contextType narrows the match.
func (s *Store) RemoveContext(id, contextType string) {
	s.mutate(func(st *State) bool {
		kept := st.ActiveContexts[:0:0]
		for _, it := range st.ActiveContexts {
			if it.ID == id && (contextType == "" || it.Type == contextType) {
				continue
			}
			kept = append(kept, it)
		}
		changed := len(kept) != len(st.ActiveContexts)
		st.ActiveContexts = kept
		return changed
	})
}

func (s *Store) ClearContexts() {
	s.mutate(func(st *State) bool {
		if len(st.ActiveContexts) == 0 {
			return false
		}
		st.ActiveContexts = nil
		return true
	})
}

// SetContexts swaps the whole list in one change. Duplicates collapse, first wins.
func (s *Store) SetContexts(items []ContextItem) {
	s.mutate(func(st *State) bool {
		st.ActiveContexts = dedupe(items)
		return true
	})
}

func (s *Store) SetOpen(open bool) {
	s.mutate(func(st *State) bool {
		if st.IsOpen == open {
			return false
		}
		st.IsOpen = open
		return true
	})
}

func (s *Store) Toggle() {
	s.mutate(func(st *State) bool {
		st.IsOpen = !st.IsOpen
		return true
	})
}

func (s *Store) SetCurrentConversationID(id string) {
	s.mutate(func(st *State) bool {
		if st.CurrentConversationID == id {
			return false
		}
		st.CurrentConversationID = id
		return true
	})
}

// mutate applies fn under the lock, persists, then notifies outside the lock.
func (s *Store) mutate(fn func(*State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snapshot := s.state.clone()
	s.persist(snapshot)
	subs := make([]func(State), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot.clone())
	}
}

func (s *Store) persist(st State) {
	contexts := st.ActiveContexts
	if contexts == nil {
		contexts = []ContextItem{}
	}
	raw, err := json.Marshal(contexts)
	if err != nil {
		s.logger.Error("failed to encode contexts", zap.Error(err))
		return
	}

	for key, value := range map[string]string{
		KeySidebarOpen:         strconv.FormatBool(st.IsOpen),
		KeyCurrentConversation: st.CurrentConversationID,
		KeyActiveContexts:      string(raw),
	} {
		if err := s.adapter.Save(key, value); err != nil {
			s.logger.Warn("failed to persist sidebar state", zap.String("key", key), zap.Error(err))
		}
	}
}

func indexOf(items []ContextItem, id, contextType string) int {
	for i, it := range items {
		if it.ID == id && it.Type == contextType {
			return i
		}
	}
	return -1
}

func dedupe(items []ContextItem) []ContextItem {
	out := make([]ContextItem, 0, len(items))
	for _, it := range items {
		if indexOf(out, it.ID, it.Type) < 0 {
			out = append(out, it)
		}
	}
	return out
}

// MemoryAdapter keeps values in process. Safe for concurrent use.
type MemoryAdapter struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{values: map[string]string{}}
}

func (m *MemoryAdapter) Load(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryAdapter) Save(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// FileAdapter stores all keys in one JSON object on disk.
type FileAdapter struct {
	path string
	mu   sync.Mutex
}

func NewFileAdapter(path string) *FileAdapter {
	return &FileAdapter{path: path}
}

func (f *FileAdapter) readAll() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if len(raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileAdapter) Load(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	values, err := f.readAll()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Save rewrites the whole file via a temp file and rename.
func (f *FileAdapter) Save(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.readAll()
	if err != nil {
		return err
	}
	values[key] = value

	raw, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
