package analysis

import (
	"context"
	"fmt"

	"structai/internal/llm"
	"structai/internal/prompt"
	"structai/internal/util/jsonutil"
)

// LLMAnalyzer renders the catalog prompt for the requested focus and asks
// the model for a JSON partial result.
type LLMAnalyzer struct {
	client  llm.LLMClient
	catalog *prompt.Catalog
}

func NewLLMAnalyzer(client llm.LLMClient, catalog *prompt.Catalog) *LLMAnalyzer {
	if catalog == nil {
		catalog = prompt.MustDefault()
	}
	return &LLMAnalyzer{client: client, catalog: catalog}
}

func (a *LLMAnalyzer) Analyze(ctx context.Context, req StepRequest) (Result, error) {
	step, ok := a.catalog.Step(string(req.AnalysisFocus))
	if !ok {
		return Result{}, fmt.Errorf("analysis: no prompt for %s", req.AnalysisFocus)
	}
	p, err := prompt.Build(a.catalog.StepSpec(step), nil)
	if err != nil {
		return Result{}, err
	}
	raw, err := a.client.GenerateJSON(llm.WithPhase(ctx, string(req.AnalysisFocus)), p, req)
	if err != nil {
		return Result{}, err
	}
	var partial partialResult
	if err := jsonutil.UnmarshalFlex(raw, &partial); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	res := partial.result()
	if !res.Has(step.Field) {
		return Result{}, fmt.Errorf("%w: %s missing", ErrMalformedResponse, step.Field)
	}
	if len(res.AcademicReferences) > 0 {
		valid := res.AcademicReferences[:0]
		for _, ref := range res.AcademicReferences {
			if err := ref.validate(); err != nil {
				// only the focus step has to be fully valid
				if step.Field == FieldAcademicReferences {
					return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
				}
				continue
			}
			valid = append(valid, ref)
		}
		res.AcademicReferences = valid
		if len(valid) == 0 {
			res.AcademicReferences = nil
		}
	}
	return res, nil
}

// NewLLMRunner wires an LLMAnalyzer to the catalog's descriptors.
func NewLLMRunner(client llm.LLMClient, catalog *prompt.Catalog) (*Runner, error) {
	if catalog == nil {
		catalog = prompt.MustDefault()
	}
	steps, err := DescriptorsFrom(catalog)
	if err != nil {
		return nil, err
	}
	return NewRunner(NewLLMAnalyzer(client, catalog), steps), nil
}
