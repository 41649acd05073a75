// Package ai sends table-refinement prompts to interchangeable
// chat-completion providers.
//
// Every adapter makes exactly one HTTP attempt bounded by a client timeout
// and reports failures as *Error values classified as transport failures,
// rate limits or provider errors.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 45 * time.Second
	minTimeout     = time.Second
	maxTimeout     = 300 * time.Second
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// Payload is a single inference request. It is built fresh for every call.
type Payload struct {
	System      string  `json:"system"`
	User        string  `json:"user"`
	Model       string  `json:"model,omitempty"` // overrides the provider default
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// Messages returns the payload as an ordered system/user exchange.
func (p Payload) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if p.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: p.System})
	}
	return append(msgs, Message{Role: "user", Content: p.User})
}

// Reply holds the text of the primary completion.
type Reply struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	InputTokens  int    `json:"inputTokens,omitempty"`
	OutputTokens int    `json:"outputTokens,omitempty"`
}

// Provider is the single capability every backend implements.
type Provider interface {
	// Send delivers the payload once and returns the reply text, or an *Error.
	Send(ctx context.Context, p Payload) (*Reply, error)

	// Name returns the provider identifier.
	Name() string
}

// Settings selects and configures a provider. All values come from the
// caller's configuration.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration

	// HTTPClient replaces the default client; its Timeout is left untouched.
	HTTPClient *http.Client
}

// NewProvider creates the adapter named by s.Provider.
func NewProvider(s Settings) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(s.Provider))
	preset, ok := LookupPreset(name)
	if !ok {
		return nil, fmt.Errorf("unknown AI provider %q — supported providers: %s", s.Provider, strings.Join(PresetNames(), ", "))
	}
	if preset.EnvKey != "" && s.APIKey == "" {
		return nil, fmt.Errorf("%s is not set — export it or run 'sheetkit config set api_keys.%s <key>'", preset.EnvKey, name)
	}

	base := strings.TrimRight(s.BaseURL, "/")
	if base == "" {
		base = preset.BaseURL
	}
	model := s.Model
	if model == "" {
		model = preset.Model
	}
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: ClampTimeout(s.Timeout)}
	}

	switch preset.Style {
	case StyleAnthropic:
		return &AnthropicProvider{apiKey: s.APIKey, model: model, baseURL: base, client: client}, nil
	case StyleOllama:
		return &OllamaProvider{host: base, model: model, client: client}, nil
	default:
		return &OpenAIProvider{name: name, apiKey: s.APIKey, model: model, baseURL: base, client: client}, nil
	}
}

// ClampTimeout applies the default and keeps the timeout within sane bounds.
func ClampTimeout(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultTimeout
	case d < minTimeout:
		return minTimeout
	case d > maxTimeout:
		return maxTimeout
	}
	return d
}
