package engineering

import (
	"context"
	"fmt"
	"strings"

	"structai/internal/llm"
	"structai/internal/prompt"
	"structai/internal/util/jsonutil"
)

// Designer produces conceptual designs and simplified force estimates.
type Designer struct {
	client  llm.LLMClient
	catalog *prompt.Catalog
}

func NewDesigner(client llm.LLMClient, catalog *prompt.Catalog) *Designer {
	if catalog == nil {
		catalog = prompt.MustDefault()
	}
	return &Designer{client: client, catalog: catalog}
}

// Design validates the building code (empty means ACI) and asks the model
// for a conceptual design.
func (d *Designer) Design(ctx context.Context, in DesignInput) (Design, error) {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return Design{}, ErrEmptyDescription
	}
	code, err := ParseBuildingCode(in.BuildingCode)
	if err != nil {
		return Design{}, err
	}
	in.BuildingCode = string(code)
	if strings.TrimSpace(in.ProjectLocation) == "" {
		in.ProjectLocation = "Not specified, please infer from the project description."
	}

	var w wireDesign
	if err := d.generate(ctx, prompt.FlowConceptualDesign, in, &w); err != nil {
		return Design{}, err
	}
	out := w.design()
	if err := out.validate(); err != nil {
		return Design{}, err
	}
	return out, nil
}

// Simulate asks the model for the governing forces of the design.
func (d *Designer) Simulate(ctx context.Context, in SimulationInput) (Simulation, error) {
	if strings.TrimSpace(in.ProjectDescription) == "" {
		return Simulation{}, ErrEmptyDescription
	}
	var w wireSimulation
	if err := d.generate(ctx, prompt.FlowSimulation, in, &w); err != nil {
		return Simulation{}, err
	}
	out := w.simulation()
	if err := out.validate(); err != nil {
		return Simulation{}, err
	}
	return out, nil
}

func (d *Designer) generate(ctx context.Context, flow string, input, out any) error {
	return generate(ctx, d.client, d.catalog, flow, input, out)
}

func generate(ctx context.Context, client llm.LLMClient, catalog *prompt.Catalog, flow string, input, out any) error {
	spec, err := catalog.Flow(flow)
	if err != nil {
		return err
	}
	p, err := prompt.Build(spec, nil)
	if err != nil {
		return err
	}
	raw, err := client.GenerateJSON(llm.WithPhase(ctx, flow), p, input)
	if err != nil {
		return fmt.Errorf("%s: %w", flow, err)
	}
	if err := jsonutil.UnmarshalFlex(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, flow, err)
	}
	return nil
}
