package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PromptSaver implements PromptHook and appends prompts and raw responses to
// <Dir>/prompt/<phase>.txt. Media payloads are redacted before writing.
type PromptSaver struct {
	Dir string
	mu  sync.Mutex
}

func (p *PromptSaver) Before(ctx context.Context, phase, prompt string, input any) {
	var buf bytes.Buffer
	buf.WriteString("==== ")
	buf.WriteString(time.Now().Format(time.RFC3339))
	buf.WriteString(" ====\n")
	buf.WriteString(prompt)
	buf.WriteString("\n\n[INPUT JSON]\n")
	jb, _ := json.MarshalIndent(RedactMedia(toGeneric(input)), "", "  ")
	buf.Write(jb)
	buf.WriteString("\n\n")
	p.append(phase, buf.Bytes())
}

func (p *PromptSaver) After(ctx context.Context, phase string, raw json.RawMessage, err error) {
	var buf bytes.Buffer
	buf.WriteString("[RESPONSE]\n")
	if err != nil {
		buf.WriteString("ERROR: " + err.Error() + "\n\n")
	} else {
		buf.Write(raw)
		buf.WriteString("\n\n")
	}
	p.append(phase, buf.Bytes())
}

func (p *PromptSaver) append(phase string, b []byte) {
	if p == nil || p.Dir == "" {
		return
	}
	if phase == "" {
		phase = "unknown"
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	dir := filepath.Join(p.Dir, "prompt")
	_ = os.MkdirAll(dir, 0o755)
	f, _ := os.OpenFile(filepath.Join(dir, phase+".txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if f != nil {
		_, _ = f.Write(b)
		_ = f.Close()
	}
}

// toGeneric round-trips v through JSON so RedactMedia can walk typed structs.
func toGeneric(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
