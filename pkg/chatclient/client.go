package chatclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// maxFrameSize bounds a single SSE line.
const maxFrameSize = 1 << 20

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatclient: %d %s", e.Status, e.Message)
}

// ErrStreamClosed is reported when a send stream ends without a done or error frame.
var ErrStreamClosed = errors.New("chatclient: stream closed before done")

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the chat backend. BaseURL includes the /api prefix.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends a JSON request and decodes the envelope's data into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func decodeAPIError(status int, raw []byte) *APIError {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Message != "" {
		return &APIError{Status: status, Message: env.Message}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Status: status, Message: msg}
}

// --- Conversations ---

func (c *Client) CreateConversation(ctx context.Context, req CreateConversationRequest) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/chat/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var res []Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetConversation returns the conversation with its messages in server order.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) GetMessages(ctx context.Context, id string) ([]Message, error) {
	var res []Message
	if err := c.do(ctx, http.MethodGet, "/chat/conversations/"+url.PathEscape(id)+"/messages", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) UpdateConversation(ctx context.Context, id, title string) (*Conversation, error) {
	var conv Conversation
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPatch, "/chat/conversations/"+url.PathEscape(id), body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/chat/conversations/"+url.PathEscape(id), nil, nil)
}

// SendMessage posts a message and reads the event stream until done, error or EOF.
// Exactly one of onDone or onError is called; the same error is also returned.
func (c *Client) SendMessage(
	ctx context.Context,
	conversationID string,
	req SendMessageRequest,
	onChunk func(content string),
	onDone func(messageID string),
	onError func(err error),
) error {
	fail := func(err error) error {
		if onError != nil {
			onError(err)
		}
		return err
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/chat/conversations/"+url.PathEscape(conversationID)+"/messages", req)
	if err != nil {
		return fail(err)
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return fail(decodeAPIError(resp.StatusCode, raw))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	for scanner.Scan() {
		frame, ok := parseFrame(scanner.Text())
		if !ok {
			continue
		}

		switch frame.Type {
		case FrameChunk:
			if onChunk != nil {
				onChunk(frame.Content)
			}
		case FrameDone:
			if onDone != nil {
				onDone(frame.MessageID)
			}
			return nil
		case FrameError:
			msg := frame.Error
			if msg == "" {
				msg = "stream error"
			}
			return fail(&APIError{Status: resp.StatusCode, Message: msg})
		default:
			c.logger.Debug("ignoring unknown frame type", zap.String("type", frame.Type))
		}
	}

	if ctx.Err() != nil {
		return fail(ctx.Err())
	}
	if err := scanner.Err(); err != nil {
		return fail(fmt.Errorf("read stream: %w", err))
	}
	return fail(ErrStreamClosed)
}

// parseFrame extracts the JSON envelope from one line; anything else is noise.
func parseFrame(line string) (StreamFrame, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "data:") {
		return StreamFrame{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return StreamFrame{}, false
	}
	var frame StreamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil || frame.Type == "" {
		return StreamFrame{}, false
	}
	return frame, true
}

// --- Contexts ---

func (c *Client) AddContextToConversation(ctx context.Context, conversationID string, ref ContextRef) (*ConversationContext, error) {
	var res ConversationContext
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/contexts"
	if err := c.do(ctx, http.MethodPost, path, ref, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RemoveContextFromConversation accepts either the context row id or the entity id.
func (c *Client) RemoveContextFromConversation(ctx context.Context, conversationID, contextID string) error {
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/contexts/" + url.PathEscape(contextID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) GetConversationContexts(ctx context.Context, conversationID string) ([]ConversationContext, error) {
	var res []ConversationContext
	path := "/chat/conversations/" + url.PathEscape(conversationID) + "/contexts"
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetContextDetails(ctx context.Context, contextType, id string) (*ContextDetails, error) {
	q := url.Values{}
	q.Set("type", contextType)
	q.Set("id", id)

	var res ContextDetails
	if err := c.do(ctx, http.MethodGet, "/chat/contexts/details?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchContexts matches titles across types; zero page or limit lets the server pick.
func (c *Client) SearchContexts(ctx context.Context, query string, types []string, page, limit int) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	if len(types) > 0 {
		q.Set("types", strings.Join(types, ","))
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var res SearchResult
	if err := c.do(ctx, http.MethodGet, "/chat/contexts/search?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Catalogs ---

func (c *Client) ListDocuments(ctx context.Context) ([]CatalogItem, error) {
	return c.listCatalog(ctx, "/chat/documents")
}

func (c *Client) ListProjects(ctx context.Context) ([]CatalogItem, error) {
	return c.listCatalog(ctx, "/chat/projects")
}

func (c *Client) ListKnowledgeBases(ctx context.Context) ([]CatalogItem, error) {
	return c.listCatalog(ctx, "/chat/knowledge-bases")
}

func (c *Client) listCatalog(ctx context.Context, path string) ([]CatalogItem, error) {
	var res []CatalogItem
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
