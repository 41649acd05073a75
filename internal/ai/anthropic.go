package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion     = "2023-06-01"
	defaultAnthropicTokens  = 4096
	anthropicAuthErrorType  = "authentication_error"
	anthropicRateLimitError = "rate_limit_error"
)

// AnthropicProvider speaks the Anthropic Messages API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Name returns the provider identifier.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts the payload to {base}/v1/messages once. The system directive
// travels in the top-level system field.
func (p *AnthropicProvider) Send(ctx context.Context, payload Payload) (*Reply, error) {
	model := p.model
	if payload.Model != "" {
		model = payload.Model
	}
	maxTokens := defaultAnthropicTokens
	if payload.MaxTokens > 0 {
		maxTokens = payload.MaxTokens
	}

	reqBody := anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      payload.System,
		Messages:    []anthropicMessage{{Role: "user", Content: payload.User}},
		Temperature: payload.Temperature,
	}

	body, err := postJSON(ctx, p.client, p.Name(), p.baseURL+"/v1/messages", map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicAPIVersion,
	}, reqBody)
	if err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, providerError(p.Name(), http.StatusOK, "could not parse response", err)
	}
	if apiResp.Error != nil {
		switch apiResp.Error.Type {
		case anthropicRateLimitError:
			return nil, &Error{Kind: KindRateLimited, Provider: p.Name(), Status: http.StatusOK, Message: apiResp.Error.Message}
		case anthropicAuthErrorType:
			return nil, providerError(p.Name(), http.StatusOK, "invalid API key — check your ANTHROPIC_API_KEY environment variable", nil)
		}
		return nil, providerError(p.Name(), http.StatusOK, apiResp.Error.Type+": "+apiResp.Error.Message, nil)
	}
	if len(apiResp.Content) == 0 {
		return nil, providerError(p.Name(), http.StatusOK, "provider returned an empty content list", nil)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "" || block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if apiResp.Model != "" {
		model = apiResp.Model
	}
	return &Reply{
		Text:         text.String(),
		Model:        model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
