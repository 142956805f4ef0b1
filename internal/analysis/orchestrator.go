package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"structai/internal/prompt"
)

var (
	ErrEmptyDescription  = errors.New("analysis: project description is empty")
	ErrStepFailed        = errors.New("analysis: step failed")
	ErrMalformedResponse = errors.New("analysis: malformed step response")
	ErrMissingContext    = errors.New("analysis: required prior result is empty")
	ErrInvalidStatus     = errors.New("analysis: invalid step status")
	ErrNothingToRun      = errors.New("analysis: no step is loading")
)

// StepRequest is what the single-step operation receives.
type StepRequest struct {
	ProjectDescription string         `json:"projectDescription"`
	ProjectLocation    string         `json:"projectLocation"`
	AnalysisFocus      StepKind       `json:"analysisFocus"`
	Context            map[string]any `json:"context"`
}

// Analyzer performs one step. The returned Result must carry at least the
// field of req.AnalysisFocus.
type Analyzer interface {
	Analyze(ctx context.Context, req StepRequest) (Result, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req StepRequest) (Result, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req StepRequest) (Result, error) {
	return f(ctx, req)
}

// Descriptor binds a step kind to the field it produces and the prior
// fields its prompt depends on.
type Descriptor struct {
	Kind     StepKind
	Field    string
	Requires []string
}

// DefaultDescriptors mirrors the embedded prompt catalog.
func DefaultDescriptors() []Descriptor {
	d, err := DescriptorsFrom(prompt.MustDefault())
	if err != nil {
		panic(err)
	}
	return d
}

// DescriptorsFrom reads descriptors from a catalog and checks that it lists
// exactly the fixed steps, in order, with the expected fields.
func DescriptorsFrom(c *prompt.Catalog) ([]Descriptor, error) {
	kinds := Kinds()
	if len(c.Steps) != len(kinds) {
		return nil, fmt.Errorf("analysis: catalog has %d steps, want %d", len(c.Steps), len(kinds))
	}
	out := make([]Descriptor, 0, len(kinds))
	for i, s := range c.Steps {
		if StepKind(s.Kind) != kinds[i] {
			return nil, fmt.Errorf("analysis: catalog step %d is %q, want %q", i, s.Kind, kinds[i])
		}
		if s.Field != fieldNames[i] {
			return nil, fmt.Errorf("analysis: catalog step %q fills %q, want %q", s.Kind, s.Field, fieldNames[i])
		}
		out = append(out, Descriptor{Kind: kinds[i], Field: s.Field, Requires: append([]string(nil), s.Requires...)})
	}
	return out, nil
}

// Start validates the input and returns the initial state: the first step
// loading, the rest pending, an empty result.
func Start(in Input) (State, error) {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return State{}, ErrEmptyDescription
	}
	st := make(Status, len(Kinds()))
	for i, k := range Kinds() {
		if i == 0 {
			st[k] = Loading
		} else {
			st[k] = Pending
		}
	}
	return State{Input: in, Status: st}, nil
}

// Runner advances a pipeline one step at a time.
type Runner struct {
	analyzer Analyzer
	steps    []Descriptor
}

func NewRunner(a Analyzer, steps []Descriptor) *Runner {
	if len(steps) == 0 {
		steps = DefaultDescriptors()
	}
	return &Runner{analyzer: a, steps: steps}
}

func (r *Runner) descriptor(k StepKind) (Descriptor, bool) {
	for _, d := range r.steps {
		if d.Kind == k {
			return d, true
		}
	}
	return Descriptor{}, false
}

// RunNextStep runs the loading step and returns the merged result and the
// advanced status. The arguments are never modified. On failure the
// original result and status are returned unchanged with the failed step
// still loading.
func (r *Runner) RunNextStep(ctx context.Context, in Input, res Result, st Status) (Result, Status, error) {
	if err := st.Validate(); err != nil {
		return res, st, err
	}
	kind, ok := st.Loading()
	if !ok {
		return res, st, ErrNothingToRun
	}
	d, ok := r.descriptor(kind)
	if !ok {
		return res, st, fmt.Errorf("%w: no descriptor for %s", ErrInvalidStatus, kind)
	}

	req := StepRequest{
		ProjectDescription: in.ProjectDescription,
		ProjectLocation:    locationOrHint(in.ProjectLocation),
		AnalysisFocus:      kind,
		Context:            map[string]any{},
	}
	for _, f := range d.Requires {
		if !res.Has(f) {
			return res, st, fmt.Errorf("%w: %s needs %s", ErrMissingContext, kind, f)
		}
		v, _ := res.Value(f)
		req.Context[f] = v
	}

	partial, err := r.analyzer.Analyze(ctx, req)
	if err != nil {
		return res, st, fmt.Errorf("%w: %s: %w", ErrStepFailed, kind, err)
	}
	if !partial.Has(d.Field) {
		return res, st, fmt.Errorf("%w: %s: %w: %s is empty", ErrStepFailed, kind, ErrMalformedResponse, d.Field)
	}

	out := res.clone()
	out.merge(partial, d.Field)
	next := st.clone()
	next[kind] = Complete
	for i, k := range Kinds() {
		if k == kind && i+1 < len(Kinds()) {
			next[Kinds()[i+1]] = Loading
		}
	}
	return out, next, nil
}

const locationHint = "Not specified, please infer from the project description."

func locationOrHint(loc string) string {
	if strings.TrimSpace(loc) == "" {
		return locationHint
	}
	return strings.TrimSpace(loc)
}
