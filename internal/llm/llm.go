// Package llm talks to hosted completion models. Callers depend on the
// Completer interface; New picks the provider from configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nestquery/nestquery/internal/config"
	"github.com/nestquery/nestquery/internal/observability"
)

type Prompt struct {
	System string
	User   string
}

type Completion struct {
	Text     string
	Provider string
	Model    string
}

type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

var ErrEmptyCompletion = errors.New("completion contained no text")

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s completion failed status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

// Retryable reports whether the provider may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// New builds the completer for cfg.Provider, instrumented with call metrics
// and wrapped in retries when cfg.MaxAttempts is above one.
func New(cfg config.AIConfig) (Completer, error) {
	var (
		completer Completer
		err       error
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		completer, err = NewOpenAICompleter(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	case config.ProviderAnthropic:
		completer, err = NewAnthropicCompleter(AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	completer = instrumented{next: completer, provider: cfg.Provider}
	if cfg.MaxAttempts > 1 {
		completer = WithRetry(completer, RetryConfig{MaxAttempts: cfg.MaxAttempts})
	}
	return completer, nil
}

type instrumented struct {
	next     Completer
	provider string
}

func (i instrumented) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	completion, err := i.next.Complete(ctx, prompt)
	observability.ObserveCompletionCall(i.provider, err)
	return completion, err
}
