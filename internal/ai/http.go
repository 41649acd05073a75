package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// maxResponseBytes caps how much of a reply body is read.
const maxResponseBytes = 8 << 20

// postJSON performs the single HTTP attempt shared by every adapter and
// returns the body of a 2xx response. Failures come back classified.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, providerError(provider, 0, "could not marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, providerError(provider, 0, "could not create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(provider, resp.StatusCode, respBody)
	}
	return respBody, nil
}
