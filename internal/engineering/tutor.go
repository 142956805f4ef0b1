package engineering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"structai/internal/cache/memory"
	"structai/internal/llm"
	"structai/internal/prompt"
)

// Tutor explains engineering concepts to students. Identical requests are
// served from an in-memory cache.
type Tutor struct {
	client  llm.LLMClient
	catalog *prompt.Catalog
	cache   *memory.LRUTTL[string, Explanation]
}

type TutorOption func(*Tutor)

// WithCache replaces the default cache (256 entries, 1h). Pass 0 entries
// to disable caching.
func WithCache(entries int, ttl time.Duration) TutorOption {
	return func(t *Tutor) {
		if entries <= 0 {
			t.cache = nil
			return
		}
		t.cache = memory.NewLRUTTL[string, Explanation](entries, ttl)
	}
}

func NewTutor(client llm.LLMClient, catalog *prompt.Catalog, opts ...TutorOption) *Tutor {
	if catalog == nil {
		catalog = prompt.MustDefault()
	}
	t := &Tutor{
		client:  client,
		catalog: catalog,
		cache:   memory.NewLRUTTL[string, Explanation](256, time.Hour),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Tutor) Explain(ctx context.Context, in ExplainInput) (Explanation, error) {
	in, err := in.normalize()
	if err != nil {
		return Explanation{}, err
	}
	key := cacheKey(in)
	if ex, ok := t.cache.Get(key); ok {
		return ex, nil
	}

	var out Explanation
	if err := generate(ctx, t.client, t.catalog, prompt.FlowExplain, in, &out); err != nil {
		return Explanation{}, err
	}
	out.Explanation = strings.TrimSpace(out.Explanation)
	if out.Explanation == "" {
		return Explanation{}, fmt.Errorf("%w: explanation is empty", ErrMalformedResponse)
	}
	out.References = compact(out.References)
	out.ProjectIdeas = compact(out.ProjectIdeas)
	t.cache.Set(key, out)
	return out, nil
}

func cacheKey(in ExplainInput) string {
	return strings.ToLower(in.Topic) + "\x00" + string(in.Level) + "\x00" + strings.ToLower(in.Goal)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
