package analysis

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// StepKind names one facet of the preliminary analysis.
type StepKind string

const (
	StructuralSystem    StepKind = "structural-system"
	BuildingCodes       StepKind = "building-codes"
	ExecutionMethod     StepKind = "execution-method"
	PotentialChallenges StepKind = "potential-challenges"
	KeyFocusAreas       StepKind = "key-focus-areas"
	AcademicReferences  StepKind = "academic-references"
)

// Kinds returns the fixed step order. Later steps receive earlier results
// as context, so the order is part of the contract.
func Kinds() []StepKind {
	return []StepKind{
		StructuralSystem,
		BuildingCodes,
		ExecutionMethod,
		PotentialChallenges,
		KeyFocusAreas,
		AcademicReferences,
	}
}

// Result field names, as they appear on the wire.
const (
	FieldStructuralSystem    = "suggestedStructuralSystem"
	FieldBuildingCodes       = "applicableBuildingCodes"
	FieldExecutionMethod     = "executionMethod"
	FieldPotentialChallenges = "potentialChallenges"
	FieldKeyFocusAreas       = "keyFocusAreas"
	FieldAcademicReferences  = "academicReferences"
)

type StepState string

const (
	Pending  StepState = "pending"
	Loading  StepState = "loading"
	Complete StepState = "complete"
)

// Status holds the state of every step. At most one step is Loading, every
// step before it is Complete and every step after it is Pending.
type Status map[StepKind]StepState

// Loading returns the step currently marked Loading.
func (s Status) Loading() (StepKind, bool) {
	for _, k := range Kinds() {
		if s[k] == Loading {
			return k, true
		}
	}
	return "", false
}

// Terminal reports whether every step is Complete.
func (s Status) Terminal() bool {
	for _, k := range Kinds() {
		if s[k] != Complete {
			return false
		}
	}
	return true
}

func (s Status) Completed() int {
	n := 0
	for _, k := range Kinds() {
		if s[k] == Complete {
			n++
		}
	}
	return n
}

// Validate checks the ordering invariant.
func (s Status) Validate() error {
	phase := Complete
	for _, k := range Kinds() {
		st := s[k]
		switch phase {
		case Complete:
			switch st {
			case Complete:
			case Loading, Pending:
				phase = Pending
			default:
				return fmt.Errorf("%w: step %s has state %q", ErrInvalidStatus, k, st)
			}
		case Pending:
			if st != Pending {
				return fmt.Errorf("%w: step %s is %s after an unfinished step", ErrInvalidStatus, k, st)
			}
		}
	}
	return nil
}

func (s Status) clone() Status {
	out := make(Status, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Ordered returns the states in step order, for rendering.
func (s Status) Ordered() []StepStatus {
	out := make([]StepStatus, 0, len(Kinds()))
	for _, k := range Kinds() {
		out = append(out, StepStatus{Kind: k, State: s[k]})
	}
	return out
}

type StepStatus struct {
	Kind  StepKind  `json:"kind"`
	State StepState `json:"state"`
}

// Reference is a suggested academic reading.
type Reference struct {
	Title      string `json:"title"`
	Authors    string `json:"authors"`
	Note       string `json:"note"`
	SearchLink string `json:"searchLink"`
}

func (r Reference) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("reference without title")
	}
	u, err := url.Parse(strings.TrimSpace(r.SearchLink))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("reference %q: searchLink %q is not an absolute http(s) URL", r.Title, r.SearchLink)
	}
	return nil
}

// Result accumulates the output of every completed step.
type Result struct {
	SuggestedStructuralSystem string      `json:"suggestedStructuralSystem"`
	ApplicableBuildingCodes   string      `json:"applicableBuildingCodes"`
	ExecutionMethod           string      `json:"executionMethod"`
	PotentialChallenges       string      `json:"potentialChallenges"`
	KeyFocusAreas             string      `json:"keyFocusAreas"`
	AcademicReferences        []Reference `json:"academicReferences,omitempty"`
}

// Value returns the field by wire name; ok is false for unknown names.
func (r Result) Value(field string) (any, bool) {
	switch field {
	case FieldStructuralSystem:
		return r.SuggestedStructuralSystem, true
	case FieldBuildingCodes:
		return r.ApplicableBuildingCodes, true
	case FieldExecutionMethod:
		return r.ExecutionMethod, true
	case FieldPotentialChallenges:
		return r.PotentialChallenges, true
	case FieldKeyFocusAreas:
		return r.KeyFocusAreas, true
	case FieldAcademicReferences:
		return r.AcademicReferences, true
	}
	return nil, false
}

// Has reports whether field holds a non-empty value.
func (r Result) Has(field string) bool {
	v, ok := r.Value(field)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) != ""
	case []Reference:
		return len(x) > 0
	}
	return false
}

// Complete reports whether all six fields are filled.
func (r Result) Complete() bool {
	for _, f := range fieldNames {
		if !r.Has(f) {
			return false
		}
	}
	return true
}

var fieldNames = []string{
	FieldStructuralSystem,
	FieldBuildingCodes,
	FieldExecutionMethod,
	FieldPotentialChallenges,
	FieldKeyFocusAreas,
	FieldAcademicReferences,
}

func (r Result) clone() Result {
	out := r
	if r.AcademicReferences != nil {
		out.AcademicReferences = append([]Reference(nil), r.AcademicReferences...)
	}
	return out
}

// merge copies partial into r. The focus field always overwrites; any other
// non-empty field only fills a field that is still empty.
func (r *Result) merge(partial Result, focus string) {
	for _, f := range fieldNames {
		if !partial.Has(f) {
			continue
		}
		if f != focus && r.Has(f) {
			continue
		}
		r.set(f, partial)
	}
}

func (r *Result) set(field string, from Result) {
	switch field {
	case FieldStructuralSystem:
		r.SuggestedStructuralSystem = from.SuggestedStructuralSystem
	case FieldBuildingCodes:
		r.ApplicableBuildingCodes = from.ApplicableBuildingCodes
	case FieldExecutionMethod:
		r.ExecutionMethod = from.ExecutionMethod
	case FieldPotentialChallenges:
		r.PotentialChallenges = from.PotentialChallenges
	case FieldKeyFocusAreas:
		r.KeyFocusAreas = from.KeyFocusAreas
	case FieldAcademicReferences:
		r.AcademicReferences = append([]Reference(nil), from.AcademicReferences...)
	}
}

// Input is the immutable project description a pipeline runs against.
type Input struct {
	ProjectDescription string `json:"projectDescription"`
	ProjectLocation    string `json:"projectLocation"`
}

// State is everything a caller needs to resume driving a pipeline.
type State struct {
	Input  Input  `json:"input"`
	Result Result `json:"result"`
	Status Status `json:"status"`
}

// flexText accepts a JSON string, a list of strings or a number.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*f = flexText(strings.Join(list, "\n"))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexText(n.String())
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	return fmt.Errorf("expected text, got %s", string(b))
}

// partialResult is the decoding shape of one step response.
type partialResult struct {
	SuggestedStructuralSystem flexText    `json:"suggestedStructuralSystem"`
	ApplicableBuildingCodes   flexText    `json:"applicableBuildingCodes"`
	ExecutionMethod           flexText    `json:"executionMethod"`
	PotentialChallenges       flexText    `json:"potentialChallenges"`
	KeyFocusAreas             flexText    `json:"keyFocusAreas"`
	AcademicReferences        []Reference `json:"academicReferences"`
}

func (p partialResult) result() Result {
	return Result{
		SuggestedStructuralSystem: strings.TrimSpace(string(p.SuggestedStructuralSystem)),
		ApplicableBuildingCodes:   strings.TrimSpace(string(p.ApplicableBuildingCodes)),
		ExecutionMethod:           strings.TrimSpace(string(p.ExecutionMethod)),
		PotentialChallenges:       strings.TrimSpace(string(p.PotentialChallenges)),
		KeyFocusAreas:             strings.TrimSpace(string(p.KeyFocusAreas)),
		AcademicReferences:        p.AcademicReferences,
	}
}
