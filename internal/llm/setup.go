package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderFake       = "fake"
)

type Options struct {
	Provider string
	Gemini   GeminiConfig
	OpenAI   OpenAIConfig

	// Base, when set, is wrapped instead of building a provider client.
	Base LLMClient

	RPS   float64
	Burst int
	// MaxAttempts of 0 or 1 sends each request once.
	MaxAttempts int
	RetryDelay  time.Duration
	// PromptDir, when set, saves every prompt and response under it.
	PromptDir string
	Logger    *log.Logger
}

// Clients bundles the wrapped text client with the speech backend.
// Speech is nil when no configured provider can synthesize audio.
type Clients struct {
	LLM    LLMClient
	Speech SpeechSynthesizer
}

func (c *Clients) Close() error {
	if c == nil || c.LLM == nil {
		return nil
	}
	return c.LLM.Close()
}

// New builds the provider named by opts.Provider and wraps it with the
// standard middleware chain: logging, retry, rate limit, hooks.
func New(ctx context.Context, opts Options) (*Clients, error) {
	var (
		base   LLMClient
		speech SpeechSynthesizer
	)
	switch provider := strings.ToLower(strings.TrimSpace(opts.Provider)); {
	case opts.Base != nil:
		base = opts.Base
		speech, _ = opts.Base.(SpeechSynthesizer)
	case provider == ProviderFake:
		f := NewFakeClient()
		base, speech = f, f
	case provider == ProviderOpenRouter, provider == "openai":
		base = NewOpenAIClient(opts.OpenAI)
		if opts.Gemini.APIKey != "" {
			g, err := NewGeminiClient(ctx, opts.Gemini)
			if err != nil {
				return nil, err
			}
			speech = g
		}
	case provider == ProviderGemini, provider == "":
		g, err := NewGeminiClient(ctx, opts.Gemini)
		if err != nil {
			return nil, err
		}
		base, speech = g, g
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", opts.Provider)
	}

	cli := Wrap(base,
		WithLogging(opts.Logger),
		Retry(opts.MaxAttempts, opts.RetryDelay),
		RateLimit(opts.RPS, opts.Burst),
		WithHooks(),
	)
	if opts.PromptDir != "" {
		cli = WithHook(cli, &PromptSaver{Dir: opts.PromptDir})
	}
	return &Clients{LLM: cli, Speech: speech}, nil
}
