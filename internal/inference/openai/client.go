// Package openai adapts the OpenAI chat-completions API onto the
// narrow inference interfaces GAIA's cognition packages declare at
// their own boundaries (orchestrator.InferenceBackend,
// observer.LLMBackend, heartbeat.LLMBackend, intent.LLMBackend,
// intent.EmbeddingBackend). Grounded on
// ai/providers/openai/client.go's request construction, SSE stream
// parsing, and reasoning-model token-multiplier handling; spec.md §1
// treats inference engines as an external collaborator, so this is
// the one concrete provider wired end to end — the others in
// ai/providers/ are not carried forward (see DESIGN.md).
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/azraeltruthsay/gaia/internal/gaiaerr"
	"github.com/azraeltruthsay/gaia/internal/gaialog"
)

// Client is a minimal OpenAI chat-completions + embeddings client.
// *Client satisfies orchestrator.InferenceBackend itself through
// Stream; every other GAIA package-level backend interface is
// satisfied by a thin adapter type in this package wrapping *Client,
// because several of those interfaces declare a
// same-named method with a different signature (observer.LLMBackend
// and heartbeat.LLMBackend both declare Complete, with one and two
// string arguments respectively).
type Client struct {
	APIKey      string
	BaseURL     string
	Model       string
	LiteModel   string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	HTTP        *http.Client
	Log         gaialog.Logger

	// ThinkingModel marks Model as a reasoning-style model that would
	// waste tokens on chain-of-thought preamble if used for one-label
	// classification; intent.LLMBackend.Thinking() reports this.
	ThinkingModel bool
}

// New builds a Client with the framework's defaults: 180s timeout
// (reasoning models run long) and the public API base URL unless
// overridden, matching ai/providers/openai/client.go's NewClient.
func New(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := 180 * time.Second
	return &Client{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       model,
		LiteModel:   model,
		Temperature: 0.7,
		MaxTokens:   2000,
		Timeout:     timeout,
		HTTP:        &http.Client{Timeout: timeout},
		Log:         gaialog.NoOp(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
	Delta   chatMessage `json:"delta"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete runs a single non-streaming chat completion with an
// optional system prompt.
func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", gaiaerr.New("openai.complete", "inference", gaiaerr.ErrMissingConfiguration)
	}

	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	})
	if err != nil {
		return "", gaiaerr.New("openai.complete", "inference", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", gaiaerr.New("openai.complete", "inference", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", gaiaerr.New("openai.complete", "inference", fmt.Errorf("%w: %v", gaiaerr.ErrTimeout, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", gaiaerr.New("openai.complete", "inference", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", gaiaerr.New("openai.complete", "inference", err)
	}
	if parsed.Error != nil {
		return "", gaiaerr.New("openai.complete", "inference", fmt.Errorf("%s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", gaiaerr.New("openai.complete", "inference", fmt.Errorf("empty completion"))
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// stream runs a server-sent-events chat completion, invoking onToken
// once per delta chunk. Grounded on client.go's StreamResponse SSE
// line-scanning loop ("data: " prefix, "[DONE]" sentinel).
func (c *Client) stream(ctx context.Context, system string, messages []chatMessage, onToken func(string) error) error {
	if c.APIKey == "" {
		return gaiaerr.New("openai.stream", "inference", gaiaerr.ErrMissingConfiguration)
	}

	all := messages
	if system != "" {
		all = append([]chatMessage{{Role: "system", Content: system}}, messages...)
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    all,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return gaiaerr.New("openai.stream", "inference", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return gaiaerr.New("openai.stream", "inference", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return gaiaerr.New("openai.stream", "inference", fmt.Errorf("%w: %v", gaiaerr.ErrTimeout, err))
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		var chunk chatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		if err := onToken(token); err != nil {
			return err
		}
	}
	return scanner.Err()
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// embed calls the embeddings endpoint for a single input string.
func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	if c.APIKey == "" {
		return nil, gaiaerr.New("openai.embed", "inference", gaiaerr.ErrMissingConfiguration)
	}

	body, err := json.Marshal(embeddingRequest{Model: "text-embedding-3-small", Input: text})
	if err != nil {
		return nil, gaiaerr.New("openai.embed", "inference", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, gaiaerr.New("openai.embed", "inference", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, gaiaerr.New("openai.embed", "inference", fmt.Errorf("%w: %v", gaiaerr.ErrEmbeddingFailed, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gaiaerr.New("openai.embed", "inference", err)
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, gaiaerr.New("openai.embed", "inference", err)
	}
	if parsed.Error != nil {
		return nil, gaiaerr.New("openai.embed", "inference", fmt.Errorf("%w: %s", gaiaerr.ErrEmbeddingFailed, parsed.Error.Message))
	}
	if len(parsed.Data) == 0 {
		return nil, gaiaerr.New("openai.embed", "inference", gaiaerr.ErrEmbeddingFailed)
	}
	return parsed.Data[0].Embedding, nil
}
