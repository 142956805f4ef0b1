// Package speech turns reply text into playable audio.
package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"structai/internal/gateway/repository/audio"
	"structai/internal/llm"
)

var ErrEmptyText = errors.New("speech: text is empty")

// Clip is a narration as a data URI, plus a link when it was archived.
type Clip struct {
	Audio string `json:"audio"`
	URL   string `json:"url,omitempty"`
}

type Narrator struct {
	synth   llm.SpeechSynthesizer
	archive audio.Store
	logger  *log.Logger
}

// NewNarrator builds a narrator. archive may be nil.
func NewNarrator(synth llm.SpeechSynthesizer, archive audio.Store, logger *log.Logger) *Narrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Narrator{synth: synth, archive: archive, logger: logger}
}

// Speak synthesizes text as 16-bit mono WAV. Archiving is best-effort; a
// failed upload only drops the URL.
func (n *Narrator) Speak(ctx context.Context, text string) (Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Clip{}, ErrEmptyText
	}
	pcm, rate, err := n.synth.SynthesizeSpeech(llm.WithPhase(ctx, "speech"), text)
	if err != nil {
		return Clip{}, fmt.Errorf("speech: synthesize: %w", err)
	}
	if len(pcm) == 0 {
		return Clip{}, llm.ErrNoAudio
	}
	wav := EncodeWAV(pcm, rate, 1, 16)
	clip := Clip{Audio: DataURI("audio/wav", wav)}

	if n.archive != nil {
		if u, err := n.store(ctx, wav); err != nil {
			n.logger.Printf("speech: archive failed: %v", err)
		} else {
			clip.URL = u
		}
	}
	return clip, nil
}

// Narrate returns only the data URI.
func (n *Narrator) Narrate(ctx context.Context, text string) (string, error) {
	clip, err := n.Speak(ctx, text)
	return clip.Audio, err
}

func (n *Narrator) store(ctx context.Context, wav []byte) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	key := "speech/" + id.String() + ".wav"
	if err := n.archive.Put(ctx, key, wav, "audio/wav"); err != nil {
		return "", err
	}
	return n.archive.URL(ctx, key)
}
