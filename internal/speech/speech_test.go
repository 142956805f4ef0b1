package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structai/internal/gateway/repository/audio"
	"structai/internal/llm"
)

func TestEncodeWAV_Header(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	wav := EncodeWAV(pcm, 24000, 1, 16)
	require.Len(t, wav, 44+len(pcm))

	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(24000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, pcm, wav[44:])
}

func quiet() *log.Logger { return log.New(&bytes.Buffer{}, "", 0) }

func TestNarrator_Speak(t *testing.T) {
	n := NewNarrator(llm.NewFakeClient(), nil, quiet())
	clip, err := n.Speak(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(clip.Audio, "data:audio/wav;base64,"))
	assert.Empty(t, clip.URL)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(clip.Audio, "data:audio/wav;base64,"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(raw[:4]))

	_, err = n.Speak(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNarrator_Archives(t *testing.T) {
	store := audio.NewMemoryStore()
	n := NewNarrator(llm.NewFakeClient(), store, quiet())
	clip, err := n.Speak(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(clip.URL, "memory://speech/"))

	b, err := store.Get(context.Background(), strings.TrimPrefix(clip.URL, "memory://"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(b[:4]))
}

type failingStore struct{ audio.Store }

func (failingStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return errors.New("bucket offline")
}

func TestNarrator_ArchiveFailureKeepsAudio(t *testing.T) {
	n := NewNarrator(llm.NewFakeClient(), failingStore{}, quiet())
	clip, err := n.Speak(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, clip.Audio)
	assert.Empty(t, clip.URL)
}

type silentSynth struct{}

func (silentSynth) SynthesizeSpeech(ctx context.Context, text string) ([]byte, int, error) {
	return nil, 24000, nil
}

func TestNarrator_NoAudio(t *testing.T) {
	_, err := NewNarrator(silentSynth{}, nil, quiet()).Narrate(context.Background(), "hi")
	assert.ErrorIs(t, err, llm.ErrNoAudio)
}
