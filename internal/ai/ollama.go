package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// OllamaProvider talks to a local Ollama server.
type OllamaProvider struct {
	host   string
	model  string
	client *http.Client
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message *struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

// Send posts the payload to {host}/api/chat once with streaming disabled.
func (p *OllamaProvider) Send(ctx context.Context, payload Payload) (*Reply, error) {
	model := p.model
	if payload.Model != "" {
		model = payload.Model
	}

	msgs := payload.Messages()
	reqBody := ollamaRequest{
		Model:    model,
		Messages: make([]ollamaMessage, len(msgs)),
		Stream:   false,
		Options: ollamaOptions{
			Temperature: payload.Temperature,
			NumPredict:  payload.MaxTokens,
		},
	}
	for i, m := range msgs {
		reqBody.Messages[i] = ollamaMessage(m)
	}

	body, err := postJSON(ctx, p.client, p.Name(), p.host+"/api/chat", nil, reqBody)
	if err != nil {
		var e *Error
		if errors.As(err, &e) && e.Kind == KindTransport && e.Message == "" {
			e.Message = "could not connect to Ollama at " + p.host + " — is Ollama running? Start it with 'ollama serve'"
		}
		return nil, err
	}

	var apiResp ollamaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, providerError(p.Name(), http.StatusOK, "could not parse response", err)
	}
	if apiResp.Error != "" {
		return nil, providerError(p.Name(), http.StatusOK, apiResp.Error, nil)
	}
	if apiResp.Message == nil {
		return nil, providerError(p.Name(), http.StatusOK, "provider returned no message", nil)
	}

	if apiResp.Model != "" {
		model = apiResp.Model
	}
	return &Reply{
		Text:         apiResp.Message.Content,
		Model:        model,
		InputTokens:  apiResp.PromptEvalCount,
		OutputTokens: apiResp.EvalCount,
	}, nil
}
