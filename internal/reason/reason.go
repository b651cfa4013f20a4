// Package reason abstracts the external reasoning capability behind a small
// interface. The concrete client speaks to an OpenAI-compatible
// chat-completions endpoint; callers must treat "not configured" and any
// call failure identically and fall back to local analysis.
package reason

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when no reasoning endpoint is configured.
// Callers check Configured() proactively; this sentinel covers the rest.
var ErrNotConfigured = errors.New("reason: not configured")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Options tune a single completion call.
type Options struct {
	MaxTokens    int
	Temperature  float64
	JSONResponse bool
}

// Reasoner is the injectable reasoning capability.
type Reasoner interface {
	// Configured reports whether the capability can be used at all.
	Configured() bool
	// TextCompletion runs a chat completion and returns the reply text.
	TextCompletion(ctx context.Context, messages []Message, opts Options) (string, error)
	// AnalyzeImage sends a base64 frame with a prompt and returns the
	// reply text.
	AnalyzeImage(ctx context.Context, imageBase64, prompt, systemPrompt string, opts Options) (string, error)
}

// Config holds reasoning client parameters.
type Config struct {
	APIURL     string        `yaml:"api_url"`
	APIKey     string        `yaml:"api_key"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// Disabled is a Reasoner that is never configured. Useful as a default and
// in tests exercising fallback paths.
type Disabled struct{}

func (Disabled) Configured() bool { return false }

func (Disabled) TextCompletion(context.Context, []Message, Options) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) AnalyzeImage(context.Context, string, string, string, Options) (string, error) {
	return "", ErrNotConfigured
}
