package llm

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
	ErrEmptyReply  = errors.New("llm: empty reply from model")
	ErrNoAudio     = errors.New("llm: no audio in model response")
)

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one text turn of a chat transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// LLMClient is implemented by every provider and by every middleware layer.
type LLMClient interface {
	Name() string
	// GenerateJSON asks for a single JSON object shaped by prompt, with input
	// serialized next to it.
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	// Chat continues history under a fixed system framing and returns the
	// model's text reply.
	Chat(ctx context.Context, system string, history []Message) (string, error)
	Close() error
}

// SpeechSynthesizer turns text into raw PCM (16-bit little endian, mono).
type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) (pcm []byte, sampleRate int, err error)
}
