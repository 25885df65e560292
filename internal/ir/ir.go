package ir

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// RoutineType is the closed set of functional roles a routine can play.
// Priority controls ordering inside a program: lower runs earlier in the
// generated document (safety logic always precedes fault handling).
type RoutineType int

const (
	RoutineSafety RoutineType = iota
	RoutineStartStop
	RoutineAuto
	RoutineFault
	RoutineManual
	RoutineCustom
)

type routineTypeInfo struct {
	label    string
	priority int
}

var routineTypes = map[RoutineType]routineTypeInfo{
	RoutineSafety:    {"Safety", 1},
	RoutineStartStop: {"StartStop", 2},
	RoutineAuto:      {"Auto", 3},
	RoutineFault:     {"Fault", 4},
	RoutineManual:    {"Manual", 5},
	RoutineCustom:    {"Custom", 99},
}

// Label returns the display name used in routine names and prompts.
func (t RoutineType) Label() string {
	if info, ok := routineTypes[t]; ok {
		return info.label
	}
	return routineTypes[RoutineCustom].label
}

// Priority returns the sort rank. Lower sorts first.
func (t RoutineType) Priority() int {
	if info, ok := routineTypes[t]; ok {
		return info.priority
	}
	return routineTypes[RoutineCustom].priority
}

func (t RoutineType) String() string { return t.Label() }

// RoutineTypeFromLabel maps a display name back to its type. Unknown labels
// resolve to RoutineCustom.
func RoutineTypeFromLabel(label string) RoutineType {
	for t, info := range routineTypes {
		if strings.EqualFold(info.label, label) {
			return t
		}
	}
	return RoutineCustom
}

func (t RoutineType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Label() + `"`), nil
}

func (t *RoutineType) UnmarshalJSON(data []byte) error {
	*t = RoutineTypeFromLabel(strings.Trim(string(data), `"`))
	return nil
}

// Rung complexity buckets, derived from the referenced tag count.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

var (
	tagPattern = regexp.MustCompile(`\b[A-Z][A-Za-z0-9_]*\b`)

	// Tokens that look like tags but are boolean connectives or literals.
	tagStopwords = map[string]struct{}{
		"AND": {}, "OR": {}, "NOT": {}, "IF": {}, "THEN": {},
		"YES": {}, "NO": {}, "TRUE": {}, "FALSE": {},
	}
)

// Rung is one atomic logic unit: a condition, an action, and bookkeeping.
type Rung struct {
	Number         int      `json:"number"`
	Comment        string   `json:"comment"`
	Condition      string   `json:"condition"`
	Action         string   `json:"action"`
	Instruction    string   `json:"instruction,omitempty"`
	Tags           []string `json:"tags"`
	SafetyCritical bool     `json:"safety_critical"`
	Complexity     string   `json:"complexity"`
}

// NewRung builds a rung and derives its tag set, safety flag and complexity
// from the condition/action text. The derivation happens exactly once here;
// callers treat the result as immutable.
func NewRung(number int, comment, condition, action string) Rung {
	tags := extractTags(condition + " " + action)
	return Rung{
		Number:         number,
		Comment:        comment,
		Condition:      condition,
		Action:         action,
		Tags:           tags,
		SafetyCritical: strings.Contains(strings.ToLower(comment), "safety"),
		Complexity:     complexityFor(len(tags)),
	}
}

func extractTags(text string) []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, tok := range tagPattern.FindAllString(text, -1) {
		if _, stop := tagStopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tags = append(tags, tok)
	}
	sort.Strings(tags)
	return tags
}

func complexityFor(tagCount int) string {
	switch {
	case tagCount < 3:
		return ComplexitySimple
	case tagCount <= 5:
		return ComplexityModerate
	default:
		return ComplexityComplex
	}
}

// Routine is a named, typed grouping of rungs sharing a functional role.
type Routine struct {
	Name        string      `json:"name"`
	Type        RoutineType `json:"type"`
	Description string      `json:"description,omitempty"`
	Rungs       []Rung      `json:"rungs"`
}

func (r *Routine) RungCount() int { return len(r.Rungs) }

// TagsUsed returns the sorted union of tags referenced by any rung.
func (r *Routine) TagsUsed() []string {
	seen := map[string]struct{}{}
	var tags []string
	for _, rung := range r.Rungs {
		for _, t := range rung.Tags {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

// EstimateTokens approximates the generation budget for this routine.
func (r *Routine) EstimateTokens() int {
	return 75*len(r.Rungs) + 500
}

// Program owns an ordered set of routines for one machine.
type Program struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Routines    []Routine `json:"routines"`
}

// SortedRoutines returns the routines ordered by type priority. The sort is
// stable so same-priority routines keep their input order.
func (p *Program) SortedRoutines() []Routine {
	out := make([]Routine, len(p.Routines))
	copy(out, p.Routines)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type.Priority() < out[j].Type.Priority()
	})
	return out
}

func (p *Program) TotalRungs() int {
	n := 0
	for i := range p.Routines {
		n += len(p.Routines[i].Rungs)
	}
	return n
}

// AllTags returns the sorted union of tags across all routines.
func (p *Program) AllTags() []string {
	seen := map[string]struct{}{}
	var tags []string
	for i := range p.Routines {
		for _, t := range p.Routines[i].TagsUsed() {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	return tags
}

// Generation cost assumptions: a fixed token spend per routine priced at the
// published per-million rates.
const (
	costInputPerMTok    = 3.0
	costOutputPerMTok   = 15.0
	inputTokensPerUnit  = 5000
	outputTokensPerUnit = 2000
)

// Project is the root of the single-owner IR tree built once per request.
type Project struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Created  time.Time         `json:"created"`
	Sources  []string          `json:"sources,omitempty"`
	Programs []Program         `json:"programs"`
	Tags     map[string]string `json:"tags"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewProject returns an empty project shell. The tag map starts empty and is
// only trustworthy after ExtractAllTags has run.
func NewProject(name string, created time.Time) *Project {
	return &Project{
		Name:    name,
		Version: "1.0",
		Created: created,
		Tags:    map[string]string{},
	}
}

func (p *Project) TotalPrograms() int { return len(p.Programs) }

func (p *Project) TotalRoutines() int {
	n := 0
	for i := range p.Programs {
		n += len(p.Programs[i].Routines)
	}
	return n
}

func (p *Project) TotalRungs() int {
	n := 0
	for i := range p.Programs {
		n += p.Programs[i].TotalRungs()
	}
	return n
}

// ExtractAllTags unions every routine's tag usage into the project tag map,
// defaulting each tag to BOOL. Existing richer types are kept.
func (p *Project) ExtractAllTags() {
	if p.Tags == nil {
		p.Tags = map[string]string{}
	}
	for i := range p.Programs {
		for _, t := range p.Programs[i].AllTags() {
			if _, ok := p.Tags[t]; !ok {
				p.Tags[t] = "BOOL"
			}
		}
	}
}

// SortedTags returns the tag names in alphabetical order.
func (p *Project) SortedTags() []string {
	tags := make([]string, 0, len(p.Tags))
	for t := range p.Tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// EstimatedLines approximates the size of the final document.
func (p *Project) EstimatedLines() int {
	return 18*p.TotalRungs() + 200 + 50*p.TotalRoutines() + 5*len(p.Tags)
}

// EstimatedCostUSD approximates the generation spend for all routines.
func (p *Project) EstimatedCostUSD() float64 {
	units := float64(p.TotalRoutines())
	in := units * inputTokensPerUnit * costInputPerMTok / 1e6
	out := units * outputTokensPerUnit * costOutputPerMTok / 1e6
	return in + out
}
