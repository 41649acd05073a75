package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind classifies an inference failure.
type Kind int

const (
	// KindTransport covers connection failures and timeouts.
	KindTransport Kind = iota + 1
	// KindRateLimited means the provider rejected the call for quota or rate reasons.
	KindRateLimited
	// KindProvider covers every other non-success answer.
	KindProvider
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_failure"
	case KindRateLimited:
		return "rate_limited"
	case KindProvider:
		return "provider_error"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrTransport   = errors.New("inference transport failure")
	ErrRateLimited = errors.New("inference rate limited")
	ErrProvider    = errors.New("inference provider error")
)

// Error is the only error type returned by Provider.Send.
type Error struct {
	Kind     Kind
	Provider string
	Status   int    // HTTP status, 0 when no response arrived
	Message  string // provider's own message when available
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	switch e.Kind {
	case KindTransport:
		b.WriteString(": request failed")
	case KindRateLimited:
		b.WriteString(": rate limited")
	default:
		b.WriteString(": provider error")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) and friends work on any *Error.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrRateLimited:
		return e.Kind == KindRateLimited
	case ErrProvider:
		return e.Kind == KindProvider
	}
	return false
}

// KindOf returns the failure kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func transportError(provider string, err error) *Error {
	msg := ""
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "timed out waiting for the provider"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "timed out waiting for the provider"
	case errors.Is(err, context.Canceled):
		msg = "request cancelled"
	}
	return &Error{Kind: KindTransport, Provider: provider, Message: msg, Err: err}
}

func providerError(provider string, status int, msg string, err error) *Error {
	return &Error{Kind: KindProvider, Provider: provider, Status: status, Message: msg, Err: err}
}

// statusError classifies a non-2xx response. 429 is always a rate limit;
// everything else is a provider error carrying whatever message the body
// holds.
func statusError(provider string, status int, body []byte) *Error {
	msg := errorMessage(body)
	if status == http.StatusTooManyRequests {
		if msg == "" {
			msg = "quota or rate limit reached, wait before resubmitting"
		}
		return &Error{Kind: KindRateLimited, Provider: provider, Status: status, Message: msg}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return providerError(provider, status, msg, nil)
}

// errorMessage pulls a human message out of the common vendor error bodies:
// {"error": {"message": "..."}}, {"error": "..."} and {"message": "..."}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return truncate(strings.TrimSpace(string(body)), 300)
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if err := json.Unmarshal(envelope.Error, &flat); err == nil && flat != "" {
			return flat
		}
	}
	return envelope.Message
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
