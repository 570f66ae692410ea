package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applyRecorder struct {
	mu       sync.Mutex
	requests []ApplyPresetRequest
}

func (a *applyRecorder) handler(w http.ResponseWriter, r *http.Request) {
	var req ApplyPresetRequest
	json.NewDecoder(r.Body).Decode(&req)
	a.mu.Lock()
	a.requests = append(a.requests, req)
	a.mu.Unlock()
	fmt.Fprintf(w, `{"success":true,"code":200,"message":"ok","data":{"id":"ws1","environment":%q,"route":%q,"preset_id":%q}}`,
		req.Environment, req.Route, req.PresetID)
}

func (a *applyRecorder) all() []ApplyPresetRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]ApplyPresetRequest(nil), a.requests...)
}

func TestApplyPreset(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		confirmer  Confirmer
		wantErr    error
		wantCalls  int
		wantPrompt bool
	}{
		{
			name:      "staging needs no confirmation",
			env:       EnvironmentStaging,
			confirmer: nil,
			wantCalls: 1,
		},
		{
			name:       "production confirmed",
			env:        EnvironmentProduction,
			confirmer:  ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil }),
			wantCalls:  1,
			wantPrompt: true,
		},
		{
			name:       "production declined",
			env:        EnvironmentProduction,
			confirmer:  ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil }),
			wantErr:    ErrApplyCancelled,
			wantPrompt: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &applyRecorder{}
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/admin/website-settings/apply", rec.handler)
			c := newTestClient(t, mux)

			settings, err := c.ApplyPreset(context.Background(), ApplyPresetRequest{
				PresetID:    "p1",
				Environment: tt.env,
				Route:       "/pricing",
			}, tt.confirmer)

			reqs := rec.all()
			require.Len(t, reqs, tt.wantCalls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.env, settings.Environment)
			assert.Equal(t, "/pricing", settings.Route)
			assert.Equal(t, tt.wantPrompt, reqs[0].Confirmed)
			assert.Equal(t, "p1", reqs[0].PresetID)
		})
	}
}

func TestApplyPresetProductionWithoutConfirmer(t *testing.T) {
	rec := &applyRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/website-settings/apply", rec.handler)
	c := newTestClient(t, mux)

	_, err := c.ApplyPreset(context.Background(), ApplyPresetRequest{PresetID: "p1", Environment: EnvironmentProduction}, nil)
	require.Error(t, err)
	assert.Empty(t, rec.all())
}

func TestApplyPresetPromptNamesRoute(t *testing.T) {
	rec := &applyRecorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/website-settings/apply", rec.handler)
	c := newTestClient(t, mux)

	var prompt string
	confirm := ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, errors.New("terminal closed")
	})
	_, err := c.ApplyPreset(context.Background(), ApplyPresetRequest{PresetID: "p1", Environment: EnvironmentProduction}, confirm)

	assert.EqualError(t, err, "terminal closed")
	assert.Contains(t, prompt, "production route /")
	assert.Empty(t, rec.all())
}

type memKV map[string]string

func (m memKV) Load(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memKV) Save(key, value string) error {
	m[key] = value
	return nil
}

func TestActiveRoute(t *testing.T) {
	kv := memKV{}
	assert.Equal(t, "/", ActiveRoute(kv))

	require.NoError(t, SetActiveRoute(kv, "/blog"))
	assert.Equal(t, "/blog", ActiveRoute(kv))
	assert.Equal(t, "/blog", kv[ActiveRouteKey])

	require.NoError(t, SetActiveRoute(kv, ""))
	assert.Equal(t, "/", ActiveRoute(kv))
}

type fakeLister struct {
	mu      sync.Mutex
	presets []Preset
	calls   int
}

func (f *fakeLister) ListPresets(context.Context) ([]Preset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]Preset(nil), f.presets...), nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPresetFeedApply(t *testing.T) {
	ctx := context.Background()
	lister := &fakeLister{presets: []Preset{{ID: "p1", Name: "Ocean"}, {ID: "p2", Name: "Forest"}}}
	var notified [][]Preset
	feed := NewPresetFeed(lister, nil, func(p []Preset) { notified = append(notified, p) })
	require.NoError(t, feed.Reload(ctx))
	require.Equal(t, 1, lister.callCount())

	// Known row: patched in place, no reload.
	require.NoError(t, feed.Apply(ctx, PresetChangeEvent{Event: PresetUpdate, PresetID: "p2", Preset: &Preset{ID: "p2", Name: "Moss"}}))
	assert.Equal(t, 1, lister.callCount())
	assert.Equal(t, "Moss", feed.Presets()[1].Name)

	// Unknown row on update: reload.
	require.NoError(t, feed.Apply(ctx, PresetChangeEvent{Event: PresetUpdate, PresetID: "p9", Preset: &Preset{ID: "p9"}}))
	assert.Equal(t, 2, lister.callCount())

	lister.mu.Lock()
	lister.presets = append(lister.presets, Preset{ID: "p3", Name: "Dusk"})
	lister.mu.Unlock()
	require.NoError(t, feed.Apply(ctx, PresetChangeEvent{Event: PresetInsert, PresetID: "p3"}))
	assert.Equal(t, 3, lister.callCount())
	assert.Len(t, feed.Presets(), 3)

	require.NoError(t, feed.Apply(ctx, PresetChangeEvent{Event: PresetDelete, PresetID: "p1"}))
	assert.Equal(t, 4, lister.callCount())

	assert.Len(t, notified, 5)
}

func TestPresetFeedSubscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/presets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"code":200,"message":"ok","data":[{"id":"p1","name":"Ocean"}]}`)
	})
	mux.HandleFunc("GET /api/admin/presets/ws", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"preset_change","data":{"event":"UPDATE","preset_id":"p1","preset":{"id":"p1","name":"Deep Ocean"}}}`))
		// Hold the connection until the client goes away.
		conn.ReadMessage()
	})
	c := newTestClient(t, mux)

	changes := make(chan []Preset, 4)
	feed := NewPresetFeed(c, nil, func(p []Preset) { changes <- p })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Subscribe(ctx, c) }()

	waitFor := func(name string) {
		t.Helper()
		select {
		case p := <-changes:
			require.Len(t, p, 1)
			assert.Equal(t, name, p[0].Name)
		case <-time.After(5 * time.Second):
			t.Fatalf("no change for %s", name)
		}
	}
	waitFor("Ocean")
	waitFor("Deep Ocean")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe did not stop")
	}
}

func TestPresetFeedSubscribeReleasesDroppedConnections(t *testing.T) {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/presets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success":true,"code":200,"message":"ok","data":[]}`)
	})
	mux.HandleFunc("GET /api/admin/presets/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	})
	c := newTestClient(t, mux)
	feed := NewPresetFeed(c, nil, nil)

	// One long-lived context across reconnects, as a reconnect loop would use.
	ctx := context.Background()
	require.Error(t, feed.Subscribe(ctx, c))
	before := runtime.NumGoroutine()

	for i := 0; i < 20; i++ {
		err := feed.Subscribe(ctx, c)
		require.Error(t, err)
		assert.NotErrorIs(t, err, context.Canceled)
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+3
	}, 5*time.Second, 20*time.Millisecond, "goroutines grew with each dropped connection")
}
