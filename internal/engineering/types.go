package engineering

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmptyDescription    = errors.New("engineering: project description is empty")
	ErrInvalidBuildingCode = errors.New("engineering: building code must be ACI, BS or UPC")
	ErrEmptyTopic          = errors.New("engineering: topic is empty")
	ErrInvalidLevel        = errors.New("engineering: level must be beginner, intermediate or advanced")
	ErrMalformedResponse   = errors.New("engineering: malformed model response")
)

type BuildingCode string

const (
	CodeACI BuildingCode = "ACI"
	CodeBS  BuildingCode = "BS"
	CodeUPC BuildingCode = "UPC"
)

// ParseBuildingCode accepts a case-insensitive code name; empty means ACI.
func ParseBuildingCode(s string) (BuildingCode, error) {
	switch BuildingCode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", CodeACI:
		return CodeACI, nil
	case CodeBS:
		return CodeBS, nil
	case CodeUPC:
		return CodeUPC, nil
	}
	return "", fmt.Errorf("%w: got %q", ErrInvalidBuildingCode, s)
}

// DesignInput feeds the conceptual design flow.
type DesignInput struct {
	ProjectDescription string `json:"projectDescription"`
	ProjectLocation    string `json:"projectLocation,omitempty"`
	BuildingCode       string `json:"buildingCode,omitempty"`
	// StructuralSystem is the system suggested by a preliminary analysis, if any.
	StructuralSystem string `json:"suggestedStructuralSystem,omitempty"`
}

// Design is a conceptual structural design. Column dimensions are in cm.
type Design struct {
	StructuralSystemSuggestion string  `json:"structuralSystemSuggestion"`
	ColumnCrossSection         string  `json:"columnCrossSection"`
	BeamCrossSection           string  `json:"beamCrossSection"`
	FoundationDesign           string  `json:"foundationDesign"`
	DeadLoad                   string  `json:"deadLoad"`
	LiveLoad                   string  `json:"liveLoad"`
	WindLoad                   string  `json:"windLoad"`
	SeismicLoad                string  `json:"seismicLoad"`
	ColumnWidth                float64 `json:"columnWidth"`
	ColumnHeight               float64 `json:"columnHeight"`
}

func (d Design) validate() error {
	fields := map[string]string{
		"structuralSystemSuggestion": d.StructuralSystemSuggestion,
		"columnCrossSection":         d.ColumnCrossSection,
		"beamCrossSection":           d.BeamCrossSection,
		"foundationDesign":           d.FoundationDesign,
		"deadLoad":                   d.DeadLoad,
		"liveLoad":                   d.LiveLoad,
	}
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is empty", ErrMalformedResponse, name)
		}
	}
	if d.ColumnWidth <= 0 || d.ColumnHeight <= 0 {
		return fmt.Errorf("%w: column dimensions must be positive", ErrMalformedResponse)
	}
	return nil
}

// SimulationInput is the project description plus the design to analyse.
type SimulationInput struct {
	ProjectDescription string `json:"projectDescription"`
	Design
}

type ElementForces struct {
	Element string  `json:"element"`
	Moment  float64 `json:"moment"` // kNm
	Shear   float64 `json:"shear"`  // kN
	Axial   float64 `json:"axial"`  // kN
}

type Simulation struct {
	Summary         string          `json:"summary"`
	AnalysisResults []ElementForces `json:"analysisResults"`
}

func (s Simulation) validate() error {
	if strings.TrimSpace(s.Summary) == "" {
		return fmt.Errorf("%w: summary is empty", ErrMalformedResponse)
	}
	if len(s.AnalysisResults) == 0 {
		return fmt.Errorf("%w: no element results", ErrMalformedResponse)
	}
	for i, r := range s.AnalysisResults {
		if strings.TrimSpace(r.Element) == "" {
			return fmt.Errorf("%w: result %d has no element name", ErrMalformedResponse, i)
		}
	}
	return nil
}

type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
)

type ExplainInput struct {
	Topic string `json:"topic"`
	Level Level  `json:"level"`
	Goal  string `json:"goal"`
}

func (in ExplainInput) normalize() (ExplainInput, error) {
	in.Topic = strings.TrimSpace(in.Topic)
	in.Goal = strings.TrimSpace(in.Goal)
	in.Level = Level(strings.ToLower(strings.TrimSpace(string(in.Level))))
	if in.Topic == "" {
		return in, ErrEmptyTopic
	}
	switch in.Level {
	case Beginner, Intermediate, Advanced:
	default:
		return in, fmt.Errorf("%w: got %q", ErrInvalidLevel, in.Level)
	}
	return in, nil
}

type Explanation struct {
	Explanation  string   `json:"explanation"`
	References   []string `json:"references"`
	ProjectIdeas []string `json:"projectIdeas"`
}

// flexNumber accepts 60, "60" or "60 cm".
type flexNumber float64

var leadingNumber = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)`)

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexNumber(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected number, got %s", string(b))
	}
	m := leadingNumber.FindStringSubmatch(s)
	if m == nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return err
	}
	*f = flexNumber(n)
	return nil
}

// wireDesign and wireSimulation are the tolerant decoding shapes.
type wireDesign struct {
	StructuralSystemSuggestion string     `json:"structuralSystemSuggestion"`
	ColumnCrossSection         string     `json:"columnCrossSection"`
	BeamCrossSection           string     `json:"beamCrossSection"`
	FoundationDesign           string     `json:"foundationDesign"`
	DeadLoad                   string     `json:"deadLoad"`
	LiveLoad                   string     `json:"liveLoad"`
	WindLoad                   string     `json:"windLoad"`
	SeismicLoad                string     `json:"seismicLoad"`
	ColumnWidth                flexNumber `json:"columnWidth"`
	ColumnHeight               flexNumber `json:"columnHeight"`
}

func (w wireDesign) design() Design {
	return Design{
		StructuralSystemSuggestion: strings.TrimSpace(w.StructuralSystemSuggestion),
		ColumnCrossSection:         strings.TrimSpace(w.ColumnCrossSection),
		BeamCrossSection:           strings.TrimSpace(w.BeamCrossSection),
		FoundationDesign:           strings.TrimSpace(w.FoundationDesign),
		DeadLoad:                   strings.TrimSpace(w.DeadLoad),
		LiveLoad:                   strings.TrimSpace(w.LiveLoad),
		WindLoad:                   strings.TrimSpace(w.WindLoad),
		SeismicLoad:                strings.TrimSpace(w.SeismicLoad),
		ColumnWidth:                float64(w.ColumnWidth),
		ColumnHeight:               float64(w.ColumnHeight),
	}
}

type wireForces struct {
	Element string     `json:"element"`
	Moment  flexNumber `json:"moment"`
	Shear   flexNumber `json:"shear"`
	Axial   flexNumber `json:"axial"`
}

type wireSimulation struct {
	Summary         string       `json:"summary"`
	AnalysisResults []wireForces `json:"analysisResults"`
}

func (w wireSimulation) simulation() Simulation {
	out := Simulation{Summary: strings.TrimSpace(w.Summary)}
	for _, r := range w.AnalysisResults {
		out.AnalysisResults = append(out.AnalysisResults, ElementForces{
			Element: strings.TrimSpace(r.Element),
			Moment:  float64(r.Moment),
			Shear:   float64(r.Shear),
			Axial:   float64(r.Axial),
		})
	}
	return out
}
