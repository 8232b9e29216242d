// Package completion talks to hosted completion models. Every call sends one
// prompt and expects one JSON document back, shaped by a schema.Contract.
package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kjstillabower/glancecast/internal/schema"
)

var (
	// ErrEmptyOutput is returned when the model answers with no usable text.
	ErrEmptyOutput = errors.New("model returned no output")
	// ErrUnavailable wraps transport and API failures from the provider.
	ErrUnavailable = errors.New("completion service unavailable")
	// ErrMissingAPIKey is returned by constructors when no key is configured.
	ErrMissingAPIKey = errors.New("completion API key is required")
)

// Supported providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Request is a single structured-output prompt.
type Request struct {
	// Name labels the prompt in logs and metrics (weather, stocks, brief).
	Name     string
	Prompt   string
	Contract *schema.Contract
}

// Model generates a JSON reply for a prompt. Implementations make exactly one
// upstream call per Generate and never retry.
type Model interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string // optional override, used by tests and proxies
	Timeout    time.Duration
	MaxTokens  int
	HTTPClient *http.Client
}

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("completion: unknown provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// jsonInstruction is the system text for providers without a native schema mode.
func jsonInstruction(c *schema.Contract) string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON document and nothing else. Do not wrap it in code fences.")
	if c != nil {
		b.WriteString(" The document must conform to this JSON Schema:\n")
		b.WriteString(c.JSON())
	}
	return b.String()
}

// cleanJSON strips code fences and surrounding prose from a model reply.
func cleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return content
	}
	closer := "}"
	if content[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end > start {
		content = content[start : end+1]
	}
	return content
}
