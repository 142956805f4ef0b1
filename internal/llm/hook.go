package llm

import (
	"context"
	"encoding/json"
)

// PromptHook observes every model call. Chat calls report the system framing
// as prompt, the transcript as input and {"reply": ...} as raw.
type PromptHook interface {
	Before(ctx context.Context, phase, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

type ctxKeyHook struct{}
type ctxKeyPhase struct{}

// ContextWithHook attaches a PromptHook to ctx for the WithHooks middleware.
func ContextWithHook(ctx context.Context, hook PromptHook) context.Context {
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

// WithHook binds hook to every call made through base.
func WithHook(base LLMClient, hook PromptHook) LLMClient {
	return &hookBinder{base: base, hook: hook}
}

type hookBinder struct {
	base LLMClient
	hook PromptHook
}

func (h *hookBinder) Name() string { return h.base.Name() }
func (h *hookBinder) Close() error { return h.base.Close() }

func (h *hookBinder) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	return h.base.GenerateJSON(ContextWithHook(ctx, h.hook), prompt, input)
}

func (h *hookBinder) Chat(ctx context.Context, system string, history []Message) (string, error) {
	return h.base.Chat(ContextWithHook(ctx, h.hook), system, history)
}

// WithPhase tags ctx with the name of the operation being run.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) PromptHook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(PromptHook); ok {
			return h
		}
	}
	return nil
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
