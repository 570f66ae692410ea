package sidebar

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"research-chat-be/pkg/chatclient"
)

// fakeBackend is an in-memory stand-in for the chat API, served over httptest
// so the tests exercise the real client and wire format.
type fakeBackend struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]*chatclient.Conversation
	contexts      map[string][]chatclient.ConversationContext
	details       map[string]chatclient.ContextDetails

	// dropAdds makes the next n context adds report success without storing.
	dropAdds int
	// failDetails makes the details endpoint return 500.
	failDetails bool
	// reply is streamed back as one chunk per element.
	reply []string
	// streamError, when set, is sent as an error frame after the chunks.
	streamError string
	// hold, when non-nil, pauses the stream after the first chunk until closed.
	hold chan struct{}

	addCalls    int
	removeCalls int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *chatclient.Client) {
	t.Helper()
	b := &fakeBackend{
		conversations: map[string]*chatclient.Conversation{},
		contexts:      map[string][]chatclient.ConversationContext{},
		details:       map[string]chatclient.ContextDetails{},
		reply:         []string{"Hel", "lo", "!"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/conversations", b.createConversation)
	mux.HandleFunc("GET /api/chat/conversations/{id}", b.getConversation)
	mux.HandleFunc("PATCH /api/chat/conversations/{id}", b.renameConversation)
	mux.HandleFunc("DELETE /api/chat/conversations/{id}", b.deleteConversation)
	mux.HandleFunc("POST /api/chat/conversations/{id}/messages", b.sendMessage)
	mux.HandleFunc("POST /api/chat/conversations/{id}/contexts", b.addContext)
	mux.HandleFunc("GET /api/chat/conversations/{id}/contexts", b.listContexts)
	mux.HandleFunc("DELETE /api/chat/conversations/{id}/contexts/{contextId}", b.removeContext)
	mux.HandleFunc("GET /api/chat/contexts/details", b.contextDetails)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return b, chatclient.New(srv.URL+"/api", chatclient.WithToken("test-token"))
}

func (b *fakeBackend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s-%d", prefix, b.seq)
}

func (b *fakeBackend) addDetails(d chatclient.ContextDetails) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.details[d.Type+":"+d.ID] = d
}

func (b *fakeBackend) seedConversation(messages ...chatclient.Message) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID("conv")
	b.conversations[id] = &chatclient.Conversation{ID: id, CreatedAt: time.Now(), Messages: messages, MessageCount: int64(len(messages))}
	return id
}

func (b *fakeBackend) storedContexts(conversationID string) []chatclient.ConversationContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]chatclient.ConversationContext(nil), b.contexts[conversationID]...)
}

func (b *fakeBackend) calls() (adds, removes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addCalls, b.removeCalls
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"code":    status,
		"message": http.StatusText(status),
		"data":    data,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "code": status, "message": message})
}

func (b *fakeBackend) createConversation(w http.ResponseWriter, r *http.Request) {
	var req chatclient.CreateConversationRequest
	json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	id := b.nextID("conv")
	conv := &chatclient.Conversation{ID: id, Title: req.Title, CreatedAt: time.Now()}
	b.conversations[id] = conv
	for _, ref := range req.Contexts {
		b.contexts[id] = append(b.contexts[id], chatclient.ConversationContext{
			ID: b.nextID("ctx"), ConversationID: id, ContextType: ref.ContextType, ContextID: ref.ContextID,
		})
	}
	out := *conv
	b.mu.Unlock()

	writeData(w, http.StatusCreated, out)
}

func (b *fakeBackend) getConversation(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	conv, ok := b.conversations[r.PathValue("id")]
	var out chatclient.Conversation
	if ok {
		out = *conv
		out.Messages = append([]chatclient.Message(nil), conv.Messages...)
	}
	b.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeData(w, http.StatusOK, out)
}

func (b *fakeBackend) renameConversation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	conv, ok := b.conversations[r.PathValue("id")]
	if ok {
		conv.Title = &body.Title
	}
	b.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeData(w, http.StatusOK, conv)
}

func (b *fakeBackend) deleteConversation(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	delete(b.conversations, r.PathValue("id"))
	delete(b.contexts, r.PathValue("id"))
	b.mu.Unlock()
	writeData(w, http.StatusOK, nil)
}

func (b *fakeBackend) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req chatclient.SendMessageRequest
	json.NewDecoder(r.Body).Decode(&req)
	// Drain so the server notices a client disconnect while we hold the stream.
	io.Copy(io.Discard, r.Body)
	id := r.PathValue("id")

	b.mu.Lock()
	conv, ok := b.conversations[id]
	if ok {
		conv.Messages = append(conv.Messages, chatclient.Message{ID: b.nextID("msg"), Role: chatclient.RoleUser, Content: req.Content})
	}
	reply, streamError, hold := b.reply, b.streamError, b.hold
	b.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	frame := func(f chatclient.StreamFrame) {
		raw, _ := json.Marshal(f)
		fmt.Fprintf(w, "data: %s\n\n", raw)
		if flusher != nil {
			flusher.Flush()
		}
	}

	for i, chunk := range reply {
		frame(chatclient.StreamFrame{Type: chatclient.FrameChunk, Content: chunk})
		if i == 0 && hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
	}

	if streamError != "" {
		frame(chatclient.StreamFrame{Type: chatclient.FrameError, Error: streamError})
		return
	}

	b.mu.Lock()
	assistant := chatclient.Message{ID: b.nextID("msg"), Role: chatclient.RoleAssistant, Content: strings.Join(reply, "")}
	conv.Messages = append(conv.Messages, assistant)
	b.mu.Unlock()

	frame(chatclient.StreamFrame{Type: chatclient.FrameDone, MessageID: assistant.ID})
}

func (b *fakeBackend) addContext(w http.ResponseWriter, r *http.Request) {
	var ref chatclient.ContextRef
	json.NewDecoder(r.Body).Decode(&ref)
	id := r.PathValue("id")

	b.mu.Lock()
	b.addCalls++
	if _, ok := b.conversations[id]; !ok {
		b.mu.Unlock()
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	row := chatclient.ConversationContext{ConversationID: id, ContextType: ref.ContextType, ContextID: ref.ContextID}
	if b.dropAdds > 0 {
		b.dropAdds--
		row.ID = b.nextID("lost")
		b.mu.Unlock()
		writeData(w, http.StatusCreated, row)
		return
	}
	for _, existing := range b.contexts[id] {
		if existing.ContextType == ref.ContextType && existing.ContextID == ref.ContextID {
			b.mu.Unlock()
			writeData(w, http.StatusCreated, existing)
			return
		}
	}
	row.ID = b.nextID("ctx")
	b.contexts[id] = append(b.contexts[id], row)
	b.mu.Unlock()

	writeData(w, http.StatusCreated, row)
}

func (b *fakeBackend) listContexts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	rows := append([]chatclient.ConversationContext{}, b.contexts[r.PathValue("id")]...)
	b.mu.Unlock()
	writeData(w, http.StatusOK, rows)
}

func (b *fakeBackend) removeContext(w http.ResponseWriter, r *http.Request) {
	id, target := r.PathValue("id"), r.PathValue("contextId")

	b.mu.Lock()
	b.removeCalls++
	rows := b.contexts[id]
	kept := rows[:0:0]
	for _, row := range rows {
		if row.ID == target || row.ContextID == target {
			continue
		}
		kept = append(kept, row)
	}
	removed := len(kept) != len(rows)
	b.contexts[id] = kept
	b.mu.Unlock()

	if !removed {
		writeError(w, http.StatusNotFound, "context not found")
		return
	}
	writeData(w, http.StatusOK, nil)
}

func (b *fakeBackend) contextDetails(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("type") + ":" + r.URL.Query().Get("id")

	b.mu.Lock()
	d, ok := b.details[key]
	fail := b.failDetails
	b.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "details unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "context not found")
		return
	}
	writeData(w, http.StatusOK, d)
}
