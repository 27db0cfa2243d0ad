package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azraeltruthsay/gaia/promptbuilder"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-key", srv.URL, "gpt-test")
	return c
}

func TestCompleteReturnsMessageContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: " hello "}}}})
	})
	out, err := ObserverBackend{c}.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCompleteMissingAPIKeyFails(t *testing.T) {
	c := New("", "http://unused", "gpt-test")
	_, err := ObserverBackend{c}.Complete(context.Background(), "hi")
	assert.Error(t, err)
}

func TestCompleteSurfacesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "rate limited"}})
	})
	_, err := ObserverBackend{c}.Complete(context.Background(), "hi")
	assert.ErrorContains(t, err, "rate limited")
}

func TestStreamEmitsEachDeltaToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", mustChunk("Hel"))
		fmt.Fprintf(w, "data: %s\n\n", mustChunk("lo"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	var got string
	err := c.Stream(context.Background(), []promptbuilder.Message{
		{Role: promptbuilder.RoleSystem, Content: "sys"},
		{Role: promptbuilder.RoleUser, Content: "hi"},
	}, func(tok string) error {
		got += tok
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestStreamOnTokenErrorAbortsStream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", mustChunk("a"))
		fmt.Fprintf(w, "data: %s\n\n", mustChunk("b"))
	})
	calls := 0
	err := c.Stream(context.Background(), []promptbuilder.Message{{Role: promptbuilder.RoleUser, Content: "hi"}}, func(tok string) error {
		calls++
		return fmt.Errorf("stop")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestEmbedReturnsVector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embeddingResponse{Data: []struct {
			Embedding []float64 `json:"embedding"`
		}{{Embedding: []float64{0.1, 0.2, 0.3}}}})
	})
	vec, err := IntentBackend{c}.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
}

func TestHeartbeatBackendUsesLiteModel(t *testing.T) {
	var gotModel string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		_ = json.NewEncoder(w).Encode(chatResponse{Choices: []chatChoice{{Message: chatMessage{Content: "ok"}}}})
	})
	c.Model = "gpt-reasoning"
	c.LiteModel = "gpt-lite"
	_, err := HeartbeatBackend{c}.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "gpt-lite", gotModel)
}

func mustChunk(token string) string {
	data, _ := json.Marshal(chatResponse{Choices: []chatChoice{{Delta: chatMessage{Content: token}}}})
	return string(data)
}
