package prompt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"structai/internal/util/jsonutil"
)

// Field describes a single output field in a simple schema.
type Field struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// Example captures an optional input/output example.
type Example struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// Spec defines the sections of a structured prompt.
type Spec struct {
	Purpose      string    `yaml:"purpose"`
	Background   string    `yaml:"background"`
	Output       []Field   `yaml:"output"`
	Constraints  []string  `yaml:"constraints"`
	Rules        []string  `yaml:"rules"`
	Assumptions  []string  `yaml:"assumptions"`
	OutputFormat string    `yaml:"outputFormat"`
	Language     string    `yaml:"language"`
	Examples     []Example `yaml:"examples"`
}

const defaultOutputFormat = "Return a single valid JSON object with exactly the fields listed in [OUTPUT]. No markdown, no commentary."

func (s Spec) check() error {
	if strings.TrimSpace(s.Purpose) == "" {
		return errors.New("prompt: purpose is empty")
	}
	if len(s.Output) == 0 {
		return errors.New("prompt: output fields are empty")
	}
	return nil
}

// Build renders spec into a sectioned prompt. Input may be nil; when given it
// is embedded as the [INPUT] section.
func Build(spec Spec, input any) (string, error) {
	if err := spec.check(); err != nil {
		return "", err
	}
	var inputJSON string
	if input != nil {
		b, err := jsonutil.MarshalNoEscape(input)
		if err != nil {
			return "", fmt.Errorf("prompt: encode input: %w", err)
		}
		inputJSON = string(b)
	}
	format := spec.OutputFormat
	if format == "" {
		format = defaultOutputFormat
	}
	lang := ""
	if spec.Language != "" {
		lang = "Write every text value in clear, well-structured " + spec.Language + "."
	}

	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", spec.Purpose)
	writeSection(&buf, "BACKGROUND", spec.Background)
	writeSection(&buf, "INPUT", inputJSON)
	writeSection(&buf, "OUTPUT", formatFields(spec.Output))
	writeSection(&buf, "CONSTRAINTS", formatList(spec.Constraints))
	writeSection(&buf, "RULES", formatList(spec.Rules))
	writeSection(&buf, "ASSUMPTIONS", formatList(spec.Assumptions))
	writeSection(&buf, "OUTPUT_FORMAT", format)
	writeSection(&buf, "LANGUAGE", lang)
	if len(spec.Examples) > 0 {
		writeSection(&buf, "EXAMPLES", formatExamples(spec.Examples))
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatFields(fields []Field) string {
	var buf strings.Builder
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		req := "optional"
		if f.Required {
			req = "required"
		}
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s, %s): %s\n", name, f.Type, req, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s, %s)\n", name, f.Type, req)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	var buf strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&buf, "- %s\n", item)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatExamples(examples []Example) string {
	var buf strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&buf, "Example %d:\n", i+1)
		if strings.TrimSpace(ex.Input) != "" {
			buf.WriteString("INPUT:\n")
			buf.WriteString(strings.TrimRight(ex.Input, "\n"))
			buf.WriteString("\n")
		}
		if strings.TrimSpace(ex.Output) != "" {
			buf.WriteString("OUTPUT:\n")
			buf.WriteString(strings.TrimRight(ex.Output, "\n"))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
