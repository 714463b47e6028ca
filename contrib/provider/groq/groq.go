// Package groq implements llm.Client against the Groq OpenAI-compatible chat
// API. Groq publishes no official Go SDK, so this speaks the wire format
// directly.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sweetpotato0/ticketpilot/message"
)

const (
	apiURL         = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel   = "mixtral-8x7b-32768"
	requestTimeout = 120 * time.Second
)

// Config holds Groq provider configuration.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the configuration the support pipeline runs with.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       defaultModel,
		MaxTokens:   2048,
		Temperature: 0.7,
	}
}

// Provider is a Groq-backed chat client.
type Provider struct {
	config *Config
	client *http.Client
}

// New creates a Groq provider.
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &Provider{
		config: config,
		client: &http.Client{Timeout: requestTimeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate implements llm.Client.
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	if p.config.APIKey == "" {
		return nil, fmt.Errorf("groq: API key not configured")
	}

	body, err := p.call(ctx, messages)
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("groq: decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("groq: %s (%s)", resp.Error.Message, resp.Error.Type)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("groq: response contained no choices")
	}
	return message.NewMessage(message.RoleAssistant, resp.Choices[0].Message.Content), nil
}

func (p *Provider) call(ctx context.Context, messages []*message.Message) ([]byte, error) {
	wire := make([]chatMessage, len(messages))
	for i, msg := range messages {
		wire[i] = chatMessage{Role: string(msg.Role), Content: msg.Content}
	}

	payload, err := json.Marshal(chatRequest{
		Model:       p.config.Model,
		Messages:    wire,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("groq: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("groq: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq: send request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("groq: read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("groq: status %d: %s", httpResp.StatusCode, string(body))
	}
	return body, nil
}

// SetTemperature updates the sampling temperature.
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = temp
}

// SetMaxTokens updates the completion token budget.
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = int(max)
}

// SetModel updates the model.
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}
