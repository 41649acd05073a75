package ai

import (
	"context"
	"encoding/json"
	"net/http"
)

// OpenAIProvider speaks the OpenAI chat-completions shape. It also serves
// OpenAI-compatible vendors such as Groq, OpenRouter and Together, which
// differ only in base URL and key.
type OpenAIProvider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Send posts the payload to {base}/chat/completions once.
func (p *OpenAIProvider) Send(ctx context.Context, payload Payload) (*Reply, error) {
	model := p.model
	if payload.Model != "" {
		model = payload.Model
	}

	msgs := payload.Messages()
	reqBody := openaiRequest{
		Model:       model,
		Messages:    make([]openaiMessage, len(msgs)),
		Temperature: payload.Temperature,
		MaxTokens:   payload.MaxTokens,
	}
	for i, m := range msgs {
		reqBody.Messages[i] = openaiMessage(m)
	}

	body, err := postJSON(ctx, p.client, p.name, p.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.apiKey}, reqBody)
	if err != nil {
		return nil, err
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, providerError(p.name, http.StatusOK, "could not parse response", err)
	}
	if apiResp.Error != nil {
		return nil, providerError(p.name, http.StatusOK, apiResp.Error.Message, nil)
	}
	if len(apiResp.Choices) == 0 {
		return nil, providerError(p.name, http.StatusOK, "provider returned no choices", nil)
	}

	if apiResp.Model != "" {
		model = apiResp.Model
	}
	return &Reply{
		Text:         apiResp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}
