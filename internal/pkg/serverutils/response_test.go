package serverutils

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorLog struct {
	mu      sync.Mutex
	entries []map[string]interface{}
}

func (l *errorLog) Debug(string, string, map[string]interface{}) {}
func (l *errorLog) Info(string, string, map[string]interface{})  {}
func (l *errorLog) Warn(string, string, map[string]interface{})  {}
func (l *errorLog) Sync() error                                  { return nil }

func (l *errorLog) Error(_, _ string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, details)
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
		wantLogged  bool
	}{
		{name: "app error", err: NotFound("conversation not found"), wantCode: 404, wantMessage: "conversation not found"},
		{name: "wrapped app error", err: errors.Join(errors.New("ctx"), BadRequest("content is required")), wantCode: 400, wantMessage: "content is required"},
		{name: "fiber error", err: fiber.ErrMethodNotAllowed, wantCode: 405, wantMessage: "Method Not Allowed"},
		{
			name:        "database error is not exposed",
			err:         errors.New(`ERROR: relation "chat_conversations" does not exist (SQLSTATE 42P01)`),
			wantCode:    500,
			wantMessage: "internal server error",
			wantLogged:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &errorLog{}
			app := fiber.New()
			app.Use(ErrorHandlerMiddleware(log))
			app.Get("/boom", func(ctx *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/boom", nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			var body Response[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)

			if tt.wantLogged {
				require.Len(t, log.entries, 1)
				assert.Equal(t, "/boom", log.entries[0]["path"])
				assert.Contains(t, log.entries[0]["error"], "SQLSTATE")
			} else {
				assert.Empty(t, log.entries)
			}
		})
	}
}

func TestResponseEnvelopeCodes(t *testing.T) {
	assert.Equal(t, fiber.StatusOK, SuccessResponse("ok", 1).Code)

	created := CreatedResponse("Success create conversation", "c1")
	assert.True(t, created.Success)
	assert.Equal(t, fiber.StatusCreated, created.Code)
	assert.Equal(t, "c1", created.Data)
}
