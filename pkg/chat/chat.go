// Package chat relays upstream chat-completion streams to the caller
// without buffering the completion. The gateway never interprets the
// stream: bytes go through in arrival order and partial delivery on
// upstream failure is expected behavior.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/issuegate/issuegate/pkg/auth"
)

const (
	// DefaultEndpoint is the default chat-completion endpoint
	DefaultEndpoint = "https://api.githubcopilot.com/chat/completions"

	// relayBufferSize is the read size for one relayed chunk
	relayBufferSize = 32 * 1024

	// relayQueueDepth bounds the producer-consumer channel between the
	// upstream reader and the response writer
	relayQueueDepth = 8
)

// DefaultSystemPrompts are prepended, in order, ahead of the caller's
// conversation history on every completion call.
var DefaultSystemPrompts = []string{
	"You are a helpful assistant that replies like Blackbeard the Pirate.",
	"Start every response with the user's name.",
}

// Message is one entry of a conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UpstreamError is a non-2xx response from the completion endpoint,
// observed before any bytes were relayed.
type UpstreamError struct {
	StatusCode int
	Body       []byte
}

// Error returns the error message
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %d", e.StatusCode)
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithEndpoint sets a custom completion endpoint
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithSystemPrompts overrides the system-role instructions prepended to
// every conversation.
func WithSystemPrompts(prompts []string) ClientOption {
	return func(c *Client) {
		c.systemPrompts = prompts
	}
}

// Client calls the upstream completion endpoint and relays its stream.
type Client struct {
	endpoint      string
	httpClient    *http.Client
	systemPrompts []string
}

// NewClient creates a completion client.
// The HTTP client deliberately has no overall timeout: completions are
// long-lived streams and cancellation comes from the request context.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:      DefaultEndpoint,
		systemPrompts: DefaultSystemPrompts,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// completionRequest is the upstream request payload
type completionRequest struct {
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// StreamCompletion initiates one completion call and relays the response
// stream to dst in arrival order.
//
// The configured system prompts are prepended ahead of the caller-supplied
// history, in fixed order, before dispatch. A non-2xx upstream response is
// returned as *UpstreamError before anything is written to dst. Once
// relaying has begun, an upstream failure terminates the stream abruptly:
// no error payload is injected into dst. Cancelling ctx releases the
// upstream stream.
func (c *Client) StreamCompletion(ctx context.Context, cred auth.Credential, history []Message, dst io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make([]Message, 0, len(c.systemPrompts)+len(history))
	for _, prompt := range c.systemPrompts {
		messages = append(messages, Message{Role: "system", Content: prompt})
	}
	messages = append(messages, history...)

	payload, err := json.Marshal(completionRequest{Messages: messages, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call completion endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return &UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	return relay(ctx, resp.Body, dst)
}

// relay pumps src to dst through a bounded channel: a reader goroutine
// feeds chunks, the caller's goroutine drains and flushes them. Order is
// preserved; the channel bound is the only buffering introduced.
func relay(ctx context.Context, src io.Reader, dst io.Writer) error {
	chunks := make(chan []byte, relayQueueDepth)
	readResult := make(chan error, 1)

	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, relayBufferSize)
			n, err := src.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					readResult <- ctx.Err()
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					readResult <- nil
				} else {
					readResult <- err
				}
				return
			}
		}
	}()

	flusher, _ := dst.(http.Flusher)
	for chunk := range chunks {
		if _, err := dst.Write(chunk); err != nil {
			// Caller gone; the deferred cancel releases the reader.
			return fmt.Errorf("failed to write to caller: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := <-readResult; err != nil {
		return fmt.Errorf("upstream stream ended: %w", err)
	}
	return nil
}
