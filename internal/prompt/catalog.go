package prompt

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

const (
	FlowConceptualDesign = "conceptual-design"
	FlowSimulation       = "simulation"
	FlowExplain          = "explain"
)

// Step describes one facet of the preliminary analysis: the field it fills
// and the previously filled fields its prompt needs.
type Step struct {
	Kind     string   `yaml:"kind"`
	Field    string   `yaml:"field"`
	Requires []string `yaml:"requires"`
	Spec     `yaml:",inline"`
}

type Chat struct {
	Framing      string `yaml:"framing"`
	Unknown      string `yaml:"unknown"`
	ErrorMessage string `yaml:"errorMessage"`
}

type Catalog struct {
	Language string          `yaml:"language"`
	Steps    []Step          `yaml:"steps"`
	Flows    map[string]Spec `yaml:"flows"`
	Chat     Chat            `yaml:"chat"`
}

// LoadCatalog parses and validates a catalog document. Steps must have unique
// kinds and fields, and may only require fields of earlier steps.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("prompt: parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Steps) == 0 {
		return errors.New("prompt: catalog has no steps")
	}
	kinds := map[string]bool{}
	seen := map[string]bool{}
	for i, s := range c.Steps {
		if s.Kind == "" || s.Field == "" {
			return fmt.Errorf("prompt: step %d: kind and field are required", i)
		}
		if kinds[s.Kind] {
			return fmt.Errorf("prompt: duplicate step kind %q", s.Kind)
		}
		if seen[s.Field] {
			return fmt.Errorf("prompt: duplicate step field %q", s.Field)
		}
		for _, r := range s.Requires {
			if !seen[r] {
				return fmt.Errorf("prompt: step %q requires %q which no earlier step produces", s.Kind, r)
			}
		}
		if !s.hasOutput(s.Field) {
			return fmt.Errorf("prompt: step %q does not declare its field %q as output", s.Kind, s.Field)
		}
		if err := s.Spec.check(); err != nil {
			return fmt.Errorf("step %q: %w", s.Kind, err)
		}
		kinds[s.Kind] = true
		seen[s.Field] = true
	}
	for name, spec := range c.Flows {
		if err := spec.check(); err != nil {
			return fmt.Errorf("flow %q: %w", name, err)
		}
	}
	return nil
}

func (s Step) hasOutput(name string) bool {
	for _, f := range s.Output {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Step returns the descriptor for kind.
func (c *Catalog) Step(kind string) (Step, bool) {
	for _, s := range c.Steps {
		if s.Kind == kind {
			return s, true
		}
	}
	return Step{}, false
}

// Flow returns the named single-call spec with the catalog language applied.
func (c *Catalog) Flow(name string) (Spec, error) {
	spec, ok := c.Flows[name]
	if !ok {
		return Spec{}, fmt.Errorf("prompt: unknown flow %q", name)
	}
	if spec.Language == "" {
		spec.Language = c.Language
	}
	return spec, nil
}

// StepSpec returns the step's spec with the catalog language applied.
func (c *Catalog) StepSpec(s Step) Spec {
	spec := s.Spec
	if spec.Language == "" {
		spec.Language = c.Language
	}
	return spec
}

// ChatFraming renders the system instruction for a chat session from the
// framing text and the project facts, substituting Unknown for empty values.
func (c *Catalog) ChatFraming(facts []Fact) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(c.Chat.Framing))
	if c.Language != "" {
		fmt.Fprintf(&b, "\nYour responses must always be in clear, well-structured %s.", c.Language)
	}
	b.WriteString("\n\nProject Context:\n")
	for _, f := range facts {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			v = c.Chat.Unknown
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, v)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Fact is one labelled line of chat context.
type Fact struct {
	Label string
	Value string
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = LoadCatalog(defaultCatalog)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for program start-up and tests.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}
