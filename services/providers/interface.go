package providers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Completer sends a single chat completion to one model
type Completer interface {
	// Complete performs a chat completion request against req.Model
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Catalog lists the models offered by the gateway
type Catalog interface {
	// ListModels returns the full upstream model catalog
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
}

// Gateway is a provider that can both complete and list models
type Gateway interface {
	Completer
	Catalog
}

// Role of a chat message
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message represents a single message in a conversation
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "google/gemma-7b-it:free")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// JSONMode asks the model for a JSON object response
	JSONMode bool `json:"-"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID           string        `json:"id"`
	Model        string        `json:"model"`
	Content      string        `json:"content"`
	FinishReason string        `json:"finish_reason"`
	Usage        Usage         `json:"usage"`
	Latency      time.Duration `json:"latency"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelDescriptor is one entry of the gateway's model catalog
type ModelDescriptor struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Pricing       Pricing `json:"pricing"`
	ContextLength int     `json:"context_length"`
}

// Pricing holds per-token prices
type Pricing struct {
	Prompt     Price `json:"prompt"`
	Completion Price `json:"completion"`
}

// IsFree reports whether both prompt and completion prices are exactly zero
func (m ModelDescriptor) IsFree() bool {
	return m.Pricing.Prompt.IsZero() && m.Pricing.Completion.IsZero()
}

// Price is a per-token price. Upstream sends either a JSON string ("0.000002")
// or a number; anything else decodes to an invalid price, which is never free.
type Price struct {
	Value float64
	Valid bool
}

// IsZero reports whether the price is a valid, exact zero
func (p Price) IsZero() bool {
	return p.Valid && p.Value == 0
}

// UnmarshalJSON accepts strings and numbers. Malformed values are kept as invalid
// rather than failing the whole catalog.
func (p *Price) UnmarshalJSON(data []byte) error {
	*p = Price{}
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	p.Value, p.Valid = v, true
	return nil
}

// MarshalJSON writes the price as a string, matching the upstream format
func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(strconv.FormatFloat(p.Value, 'f', -1, 64))
}

// ProviderError represents an error from the gateway
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the upstream error code or type
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode != 0 {
		msg += ": " + strconv.Itoa(e.StatusCode)
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// StatusCode extracts the HTTP status carried by a provider error, or 0
func StatusCode(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}
