package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentStaging     = "staging"
	EnvironmentProduction  = "production"

	// ActiveRouteKey is where the admin screen remembers the route being edited.
	ActiveRouteKey = "website-settings-active-route"
)

// Preset change kinds pushed by the feed.
const (
	PresetInsert = "INSERT"
	PresetUpdate = "UPDATE"
	PresetDelete = "DELETE"
)

// ErrApplyCancelled is returned when the operator declines a production apply.
var ErrApplyCancelled = errors.New("chatclient: apply cancelled")

type Preset struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	PrimaryColor    string     `json:"primary_color"`
	SecondaryColor  string     `json:"secondary_color"`
	AccentColor     string     `json:"accent_color"`
	BackgroundColor string     `json:"background_color"`
	ForegroundColor string     `json:"foreground_color"`
	Theme           string     `json:"theme"`
	HeadingFont     string     `json:"heading_font,omitempty"`
	BodyFont        string     `json:"body_font,omitempty"`
	BorderRadius    string     `json:"border_radius,omitempty"`
	IsFavorite      bool       `json:"is_favorite"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

type WebsiteSettings struct {
	ID          string     `json:"id"`
	Environment string     `json:"environment"`
	Route       string     `json:"route"`
	PresetID    string     `json:"preset_id"`
	Preset      *Preset    `json:"preset,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type ApplyPresetRequest struct {
	PresetID    string `json:"preset_id"`
	Environment string `json:"environment"`
	Route       string `json:"route,omitempty"`
	Confirmed   bool   `json:"confirmed"`
}

type PresetChangeEvent struct {
	Event    string  `json:"event"`
	PresetID string  `json:"preset_id"`
	Preset   *Preset `json:"preset,omitempty"`
}

// Confirmer asks the operator before a production apply.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// KeyValueStore persists small client settings. sidebar adapters satisfy it.
type KeyValueStore interface {
	Load(key string) (string, bool, error)
	Save(key, value string) error
}

func (c *Client) ListPresets(ctx context.Context) ([]Preset, error) {
	var res []Preset
	if err := c.do(ctx, http.MethodGet, "/admin/presets", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetPreset(ctx context.Context, id string) (*Preset, error) {
	var res Preset
	if err := c.do(ctx, http.MethodGet, "/admin/presets/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreatePreset sends the preset fields; ID and timestamps are ignored by the server.
func (c *Client) CreatePreset(ctx context.Context, preset Preset) (*Preset, error) {
	var res Preset
	if err := c.do(ctx, http.MethodPost, "/admin/presets", preset, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdatePreset patches only the given fields, keyed by their JSON names.
func (c *Client) UpdatePreset(ctx context.Context, id string, fields map[string]interface{}) (*Preset, error) {
	var res Preset
	if err := c.do(ctx, http.MethodPatch, "/admin/presets/"+url.PathEscape(id), fields, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeletePreset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/presets/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ToggleFavorite(ctx context.Context, id string) (*Preset, error) {
	var res Preset
	if err := c.do(ctx, http.MethodPost, "/admin/presets/"+url.PathEscape(id)+"/favorite", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GeneratePreset(ctx context.Context, prompt string) (*Preset, error) {
	var res Preset
	if err := c.do(ctx, http.MethodPost, "/admin/presets/generate", map[string]string{"prompt": prompt}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SuggestPresetName(ctx context.Context, preset Preset) (string, error) {
	var res struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/presets/name", preset, &res); err != nil {
		return "", err
	}
	return res.Name, nil
}

func (c *Client) GetWebsiteSettings(ctx context.Context, environment, route string) (*WebsiteSettings, error) {
	q := url.Values{}
	q.Set("environment", environment)
	if route != "" {
		q.Set("route", route)
	}
	var res WebsiteSettings
	if err := c.do(ctx, http.MethodGet, "/admin/website-settings?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ApplyPreset binds a preset to (environment, route). Production requires the
// confirmer to agree first; the request is sent at most once.
func (c *Client) ApplyPreset(ctx context.Context, req ApplyPresetRequest, confirmer Confirmer) (*WebsiteSettings, error) {
	if req.Environment == EnvironmentProduction {
		if confirmer == nil {
			return nil, errors.New("chatclient: production apply needs a confirmer")
		}
		route := req.Route
		if route == "" {
			route = "/"
		}
		ok, err := confirmer.Confirm(ctx, fmt.Sprintf("Apply this preset to production route %s?", route))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrApplyCancelled
		}
		req.Confirmed = true
	}

	var res WebsiteSettings
	if err := c.do(ctx, http.MethodPost, "/admin/website-settings/apply", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetActiveRoute remembers the route the admin screen is editing.
func SetActiveRoute(store KeyValueStore, route string) error {
	return store.Save(ActiveRouteKey, route)
}

// ActiveRoute returns the remembered route, or "/".
func ActiveRoute(store KeyValueStore) string {
	route, ok, err := store.Load(ActiveRouteKey)
	if err != nil || !ok || route == "" {
		return "/"
	}
	return route
}

// PresetLister is the slice of Client the feed reloads from.
type PresetLister interface {
	ListPresets(ctx context.Context) ([]Preset, error)
}

// PresetFeed keeps a local preset list current from the push channel.
type PresetFeed struct {
	lister   PresetLister
	logger   *zap.Logger
	onChange func([]Preset)

	mu      sync.Mutex
	presets []Preset
}

func NewPresetFeed(lister PresetLister, logger *zap.Logger, onChange func([]Preset)) *PresetFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresetFeed{lister: lister, logger: logger, onChange: onChange}
}

func (f *PresetFeed) Presets() []Preset {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Preset, len(f.presets))
	copy(out, f.presets)
	return out
}

// Reload replaces the local list with the server's.
func (f *PresetFeed) Reload(ctx context.Context) error {
	presets, err := f.lister.ListPresets(ctx)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.presets = presets
	f.mu.Unlock()
	f.notify()
	return nil
}

// Apply patches the changed row on UPDATE and reloads on anything else.
func (f *PresetFeed) Apply(ctx context.Context, event PresetChangeEvent) error {
	if event.Event == PresetUpdate && event.Preset != nil {
		f.mu.Lock()
		patched := false
		for i := range f.presets {
			if f.presets[i].ID == event.Preset.ID {
				f.presets[i] = *event.Preset
				patched = true
				break
			}
		}
		f.mu.Unlock()
		if patched {
			f.notify()
			return nil
		}
		// Unknown row: our list is stale.
	}
	return f.Reload(ctx)
}

func (f *PresetFeed) notify() {
	if f.onChange != nil {
		f.onChange(f.Presets())
	}
}

type feedMessage struct {
	Type string            `json:"type"`
	Data PresetChangeEvent `json:"data"`
}

// Subscribe dials the preset websocket and applies events until ctx ends or the
// connection drops. The caller decides whether to reconnect.
func (f *PresetFeed) Subscribe(ctx context.Context, c *Client) error {
	wsURL, err := c.feedURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial preset feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := f.Reload(ctx); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read preset feed: %w", err)
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "preset_change" {
			f.logger.Debug("skipping feed message", zap.ByteString("raw", data))
			continue
		}
		if err := f.Apply(ctx, msg.Data); err != nil {
			f.logger.Warn("failed to apply preset change", zap.String("event", msg.Data.Event), zap.Error(err))
		}
	}
}

func (c *Client) feedURL() (string, error) {
	u, err := url.Parse(c.baseURL + "/admin/presets/ws")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if c.token != "" {
		q := u.Query()
		q.Set("token", c.token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
