package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"structai/internal/util/jsonutil"
)

const (
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultGeminiTTSModel = "gemini-2.5-flash-preview-tts"
	DefaultGeminiVoice    = "Algenib"

	// geminiTTSSampleRate is fixed by the TTS models: 24 kHz mono s16le.
	geminiTTSSampleRate = 24000
)

type GeminiConfig struct {
	APIKey   string
	Model    string
	TTSModel string
	Voice    string
}

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API call itself. Cross-cutting concerns
// (rate limiting, retries, logging, hooks) are applied via Middleware.
type GeminiClient struct {
	cli      *genai.Client
	model    string
	ttsModel string
	voice    string
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cc := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g := &GeminiClient{cli: cli, model: cfg.Model, ttsModel: cfg.TTSModel, voice: cfg.Voice}
	if g.model == "" {
		g.model = DefaultGeminiModel
	}
	if g.ttsModel == "" {
		g.ttsModel = DefaultGeminiTTSModel
	}
	if g.voice == "" {
		g.voice = DefaultGeminiVoice
	}
	return g, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON sends the concatenated prompt/input and requests application/json.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := jsonutil.MarshalNoEscape(input)
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, classifyGemini("gemini generate", err)
	}
	txt := responseText(resp)
	if txt == "" {
		return nil, ErrInvalidJSON
	}
	raw, err := jsonutil.Extract(txt)
	if err != nil {
		return nil, ErrInvalidJSON
	}
	return raw, nil
}

// Chat sends the transcript as alternating user/model contents with the
// framing as system instruction.
func (g *GeminiClient) Chat(ctx context.Context, system string, history []Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "user"
		if m.Role == RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(system) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classifyGemini("gemini chat", err)
	}
	txt := strings.TrimSpace(responseText(resp))
	if txt == "" {
		return "", ErrEmptyReply
	}
	return txt, nil
}

// SynthesizeSpeech asks the TTS model for audio and returns the PCM payload.
func (g *GeminiClient) SynthesizeSpeech(ctx context.Context, text string) ([]byte, int, error) {
	cfg := &genai.GenerateContentConfig{
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.voice},
			},
		},
	}
	cfg.ResponseModalities = append(cfg.ResponseModalities, "AUDIO")
	resp, err := g.cli.Models.GenerateContent(ctx, g.ttsModel,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}}, cfg)
	if err != nil {
		return nil, 0, classifyGemini("gemini tts", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, 0, ErrNoAudio
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return p.InlineData.Data, geminiTTSSampleRate, nil
		}
	}
	return nil, 0, ErrNoAudio
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// classifyGemini marks client-side API failures as permanent so Retry skips them.
func classifyGemini(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return NewPermanentError(wrapped)
		}
	}
	return wrapped
}
