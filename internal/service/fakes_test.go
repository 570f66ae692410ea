package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"research-chat-be/internal/dto"
	"research-chat-be/internal/entity"
	"research-chat-be/internal/repository/contract"
	"research-chat-be/internal/repository/specification"
	"research-chat-be/internal/repository/unitofwork"
	"research-chat-be/pkg/events"
	"research-chat-be/pkg/llm"

	"github.com/google/uuid"
)

// memDB backs every fake repository. Specifications are interpreted by type.
type memDB struct {
	mu    sync.Mutex
	clock time.Time

	conversations map[uuid.UUID]*entity.Conversation
	messages      []*entity.Message
	contexts      []*entity.ConversationContext
	catalog       []*entity.CatalogItem
	presets       map[uuid.UUID]*entity.Preset
	settings      []*entity.WebsiteSettings

	// dropBatch makes CreateBatch report success without storing.
	dropBatch bool
	// dropCreates makes the next n context Create calls report success without storing.
	dropCreates int
	// settingsRace inserts a competing row and fails the next settings Create.
	settingsRace bool
}

func newMemDB() *memDB {
	return &memDB{
		clock:         time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		conversations: map[uuid.UUID]*entity.Conversation{},
		presets:       map[uuid.UUID]*entity.Preset{},
	}
}

func (db *memDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

type memFactory struct{ db *memDB }

func (f memFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return &memUoW{db: f.db} }

// memUoW has no real transactions; writes land immediately.
type memUoW struct {
	db *memDB
}

func (u *memUoW) Begin(context.Context) error { return nil }
func (u *memUoW) Commit() error               { return nil }
func (u *memUoW) Rollback() error             { return nil }

func (u *memUoW) ConversationRepository() contract.ConversationRepository {
	return memConversations{u.db}
}
func (u *memUoW) MessageRepository() contract.MessageRepository { return memMessages{u.db} }
func (u *memUoW) ConversationContextRepository() contract.ConversationContextRepository {
	return memContexts{u.db}
}
func (u *memUoW) CatalogRepository() contract.CatalogRepository { return memCatalog{u.db} }
func (u *memUoW) PresetRepository() contract.PresetRepository   { return memPresets{u.db} }
func (u *memUoW) WebsiteSettingsRepository() contract.WebsiteSettingsRepository {
	return memSettings{u.db}
}

// filter collects the criteria the services use.
type filter struct {
	id, userID, conversationID, rowOrEntity *uuid.UUID
	envRoute                                *specification.ByEnvironmentRoute
	fields                                  map[string]interface{}
	limit                                   int
	newestFirst                             bool
}

func readSpecs(specs []specification.Specification) filter {
	f := filter{fields: map[string]interface{}{}}
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			f.id = &v.ID
		case specification.UserOwnedBy:
			f.userID = &v.UserID
		case specification.ByConversationID:
			f.conversationID = &v.ConversationID
		case specification.ByContextRowOrEntityID:
			f.rowOrEntity = &v.ID
		case specification.ByEnvironmentRoute:
			f.envRoute = &v
		case specification.FilterBy:
			f.fields[v.Field] = v.Value
		case specification.Pagination:
			f.limit = v.Limit
		case specification.OrderBy:
			if v.Field == "created_at" && v.Desc {
				f.newestFirst = true
			}
		}
	}
	return f
}

type memConversations struct{ db *memDB }

func (r memConversations) Create(_ context.Context, c *entity.Conversation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	c.CreatedAt = r.db.tick()
	cp := *c
	r.db.conversations[c.Id] = &cp
	return nil
}

func (r memConversations) Update(_ context.Context, c *entity.Conversation) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.tick()
	c.UpdatedAt = &now
	cp := *c
	r.db.conversations[c.Id] = &cp
	return nil
}

func (r memConversations) Touch(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if c, ok := r.db.conversations[id]; ok {
		now := r.db.tick()
		c.UpdatedAt = &now
	}
	return nil
}

func (r memConversations) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.conversations, id)
	return nil
}

func (r memConversations) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Conversation, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Conversation
	for _, c := range r.db.conversations {
		if f.id != nil && c.Id != *f.id || f.userID != nil && c.UserId != *f.userID {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memConversations) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memConversations) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

type memMessages struct{ db *memDB }

func (r memMessages) Create(_ context.Context, m *entity.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m.CreatedAt = r.db.tick()
	cp := *m
	r.db.messages = append(r.db.messages, &cp)
	return nil
}

func (r memMessages) DeleteByConversationId(_ context.Context, conversationId uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	kept := r.db.messages[:0:0]
	for _, m := range r.db.messages {
		if m.ConversationId != conversationId {
			kept = append(kept, m)
		}
	}
	r.db.messages = kept
	return nil
}

func (r memMessages) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Message
	for _, m := range r.db.messages {
		if f.conversationID != nil && m.ConversationId != *f.conversationID {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	if f.newestFirst {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if f.limit > 0 && len(out) > f.limit {
		out = out[:f.limit]
	}
	return out, nil
}

func (r memMessages) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, _ := r.FindAll(ctx, specs...)
	return int64(len(all)), nil
}

func (r memMessages) CountByConversationIds(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	counts := map[uuid.UUID]int64{}
	for _, m := range r.db.messages {
		for _, id := range ids {
			if m.ConversationId == id {
				counts[id]++
			}
		}
	}
	return counts, nil
}

type memContexts struct{ db *memDB }

func (r memContexts) findLocked(c *entity.ConversationContext) *entity.ConversationContext {
	for _, row := range r.db.contexts {
		if row.ConversationId == c.ConversationId && row.SameReference(c.ContextType, c.ContextId) {
			return row
		}
	}
	return nil
}

func (r memContexts) Create(_ context.Context, c *entity.ConversationContext) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.dropCreates > 0 {
		r.db.dropCreates--
		return nil
	}
	if existing := r.findLocked(c); existing != nil {
		*c = *existing
		return nil
	}
	c.CreatedAt = r.db.tick()
	cp := *c
	r.db.contexts = append(r.db.contexts, &cp)
	return nil
}

func (r memContexts) CreateBatch(_ context.Context, rows []*entity.ConversationContext) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.dropBatch {
		return nil
	}
	for _, c := range rows {
		if r.findLocked(c) != nil {
			continue
		}
		c.CreatedAt = r.db.tick()
		cp := *c
		r.db.contexts = append(r.db.contexts, &cp)
	}
	return nil
}

func (r memContexts) Delete(_ context.Context, specs ...specification.Specification) (int64, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var affected int64
	kept := r.db.contexts[:0:0]
	for _, row := range r.db.contexts {
		match := (f.conversationID == nil || row.ConversationId == *f.conversationID) &&
			(f.rowOrEntity == nil || row.Id == *f.rowOrEntity || row.ContextId == *f.rowOrEntity)
		if match {
			affected++
			continue
		}
		kept = append(kept, row)
	}
	r.db.contexts = kept
	return affected, nil
}

func (r memContexts) DeleteByConversationId(ctx context.Context, conversationId uuid.UUID) error {
	_, err := r.Delete(ctx, specification.ByConversationID{ConversationID: conversationId})
	return err
}

func (r memContexts) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.ConversationContext, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.ConversationContext
	for _, row := range r.db.contexts {
		if f.conversationID != nil && row.ConversationId != *f.conversationID {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	return out, nil
}

func (r memContexts) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationContext, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

type memCatalog struct{ db *memDB }

func (r memCatalog) FindAll(_ context.Context, contextType string, specs ...specification.Specification) ([]*entity.CatalogItem, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.CatalogItem
	for _, it := range r.db.catalog {
		if it.Type != contextType || f.id != nil && it.Id != *f.id || f.userID != nil && it.UserId != *f.userID {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (r memCatalog) FindOne(ctx context.Context, contextType string, specs ...specification.Specification) (*entity.CatalogItem, error) {
	all, _ := r.FindAll(ctx, contextType, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r memCatalog) Search(ctx context.Context, userId uuid.UUID, contextType, query string, limit, offset int) ([]*entity.CatalogItem, int64, error) {
	all, _ := r.FindAll(ctx, contextType, specification.UserOwnedBy{UserID: userId})
	var hits []*entity.CatalogItem
	for _, it := range all {
		if strings.Contains(strings.ToLower(it.Title), strings.ToLower(query)) {
			hits = append(hits, it)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return lastTouched(hits[i]).After(lastTouched(hits[j])) })
	total := int64(len(hits))
	if offset > len(hits) {
		offset = len(hits)
	}
	hits = hits[offset:]
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, total, nil
}

func (db *memDB) addCatalog(userId uuid.UUID, contextType, title string, updated time.Time) *entity.CatalogItem {
	db.mu.Lock()
	defer db.mu.Unlock()
	it := &entity.CatalogItem{Id: uuid.New(), UserId: userId, Type: contextType, Title: title, CreatedAt: updated.Add(-time.Hour), UpdatedAt: &updated}
	db.catalog = append(db.catalog, it)
	return it
}

type memPresets struct{ db *memDB }

func (r memPresets) Create(_ context.Context, p *entity.Preset) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.CreatedAt = r.db.tick()
	cp := *p
	r.db.presets[p.Id] = &cp
	return nil
}

func (r memPresets) Update(_ context.Context, p *entity.Preset) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.tick()
	p.UpdatedAt = &now
	cp := *p
	r.db.presets[p.Id] = &cp
	return nil
}

func (r memPresets) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.presets, id)
	return nil
}

func (r memPresets) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.Preset, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.Preset
	for _, p := range r.db.presets {
		if f.id != nil && p.Id != *f.id {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsFavorite != out[j].IsFavorite {
			return out[i].IsFavorite
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r memPresets) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Preset, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

type memSettings struct{ db *memDB }

func (r memSettings) Create(_ context.Context, s *entity.WebsiteSettings) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.settingsRace {
		r.db.settingsRace = false
		rival := &entity.WebsiteSettings{Id: uuid.New(), Environment: s.Environment, Route: s.Route, PresetId: uuid.New(), CreatedAt: r.db.tick()}
		r.db.settings = append(r.db.settings, rival)
		return contract.ErrUniqueViolation
	}
	for _, existing := range r.db.settings {
		if existing.Environment == s.Environment && existing.Route == s.Route {
			return contract.ErrUniqueViolation
		}
	}
	s.CreatedAt = r.db.tick()
	cp := *s
	cp.Preset = nil
	r.db.settings = append(r.db.settings, &cp)
	return nil
}

func (r memSettings) Update(_ context.Context, s *entity.WebsiteSettings) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, existing := range r.db.settings {
		if existing.Id == s.Id {
			now := r.db.tick()
			s.UpdatedAt = &now
			cp := *s
			cp.Preset = nil
			r.db.settings[i] = &cp
			return nil
		}
	}
	return errors.New("settings row not found")
}

func (r memSettings) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.WebsiteSettings, error) {
	f := readSpecs(specs)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*entity.WebsiteSettings
	for _, s := range r.db.settings {
		if f.envRoute != nil && (s.Environment != f.envRoute.Environment || s.Route != f.envRoute.Route) {
			continue
		}
		if v, ok := f.fields["preset_id"]; ok && s.PresetId != v.(uuid.UUID) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r memSettings) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.WebsiteSettings, error) {
	all, _ := r.FindAll(ctx, specs...)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

// fakeLLM streams a fixed script and answers Generate with a fixed reply.
type fakeLLM struct {
	mu        sync.Mutex
	chunks    []llm.StreamChunk
	streamErr error
	reply     string
	replyErr  error
	prompts   [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	return f.Generate(ctx, "")
}

func (f *fakeLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.reply, f.replyErr
}

func (f *fakeLLM) StreamChat(ctx context.Context, history []llm.Message, _ ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, history)
	f.mu.Unlock()
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan llm.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (f *fakeLLM) lastPrompt() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return nil
	}
	return f.prompts[len(f.prompts)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type recordingTitleJobs struct {
	mu   sync.Mutex
	jobs []dto.PublishTitleMessage
}

func (r *recordingTitleJobs) PublishTitleJob(_ context.Context, payload dto.PublishTitleMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, payload)
	return nil
}

func (r *recordingTitleJobs) all() []dto.PublishTitleMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dto.PublishTitleMessage(nil), r.jobs...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []dto.PresetChangeEvent
}

func (n *recordingNotifier) NotifyPresetChange(_ context.Context, e dto.PresetChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Event)
	}
	return out
}
