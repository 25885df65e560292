// Package validate runs structural checks over an assembled document
// and reports findings as data. Issues never abort a run; the caller
// decides what a failed validation means.
package validate

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"laddergen/internal/ir"
	"laddergen/internal/skeleton"
)

// Severity ranks an issue. Only error-severity issues make a document
// invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Detail   string   `json:"detail,omitempty"`
}

// Counters holds document size statistics from substring counts.
type Counters struct {
	Bytes    int `json:"bytes"`
	Programs int `json:"programs"`
	Routines int `json:"routines"`
	Rungs    int `json:"rungs"`
	Tags     int `json:"tags"`
}

// Result is the full outcome of one validation pass.
type Result struct {
	Valid    bool     `json:"valid"`
	Issues   []Issue  `json:"issues"`
	Counters Counters `json:"counters"`
}

// Errors counts error-severity issues.
func (r Result) Errors() int { return r.countSeverity(SeverityError) }

// Warnings counts warning-severity issues.
func (r Result) Warnings() int { return r.countSeverity(SeverityWarning) }

// Infos counts info-severity issues.
func (r Result) Infos() int { return r.countSeverity(SeverityInfo) }

func (r Result) countSeverity(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

// ErrorIssues returns the error-severity issues in report order.
func (r Result) ErrorIssues() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

var (
	placeholderPattern = regexp.MustCompile(regexp.QuoteMeta(skeleton.PlaceholderPrefix) + `(\w+)`)
	sentinelPattern    = regexp.MustCompile(`<!-- GENERATION_FAILED: (\w+): (.*?) -->`)
)

// Check validates a document against the project it was generated
// from. A nil project skips the routine presence check. Counters are
// computed even for documents that fail early.
func Check(doc string, project *ir.Project) Result {
	res := Result{Counters: Counters{
		Bytes:    len(doc),
		Programs: strings.Count(doc, "<Program"),
		Routines: strings.Count(doc, "<Routine"),
		Rungs:    strings.Count(doc, "<Rung"),
		Tags:     strings.Count(doc, "<Tag "),
	}}

	if err := wellFormed(doc); err != nil {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Code:     "xml_malformed",
			Message:  "Invalid XML",
			Detail:   err.Error(),
		})
		return res
	}

	if !strings.Contains(doc, "<RSLogix5000Content") {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Code:     "missing_root",
			Message:  "Missing required element: RSLogix5000Content root",
		})
		return res
	}
	if !strings.Contains(doc, "<Controller") {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Code:     "missing_controller",
			Message:  "Missing required element: Controller",
		})
		return res
	}

	if !strings.Contains(doc, "<DataTypes") {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityInfo,
			Code:     "missing_datatypes",
			Message:  "No DataTypes section",
		})
	}
	if !strings.Contains(doc, "<Tags") {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityWarning,
			Code:     "missing_tags",
			Message:  "No Tags section found",
		})
	}
	if !strings.Contains(doc, "<Program") {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityWarning,
			Code:     "missing_programs",
			Message:  "No programs found",
		})
	}

	for _, name := range leftoverPlaceholders(doc) {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityError,
			Code:     "placeholder_leftover",
			Message:  "Unfilled placeholder, generation incomplete",
			Detail:   skeleton.Placeholder(name),
		})
	}

	if project != nil {
		for _, name := range missingRoutines(doc, project) {
			res.Issues = append(res.Issues, Issue{
				Severity: SeverityError,
				Code:     "missing_routine",
				Message:  "Missing routine: " + name,
				Detail:   name,
			})
		}
	}

	if !hasSafetyLogic(doc) {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityWarning,
			Code:     "no_safety_logic",
			Message:  "No Safety routine found - consider adding safety logic",
		})
	}

	for _, m := range sentinelPattern.FindAllStringSubmatch(doc, -1) {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityWarning,
			Code:     "generation_failed",
			Message:  "Routine generation failed",
			Detail:   fmt.Sprintf("%s: %s", m[1], m[2]),
		})
	}

	res.Valid = res.Errors() == 0
	return res
}

func wellFormed(doc string) error {
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func leftoverPlaceholders(doc string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(doc, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var names []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}

func missingRoutines(doc string, project *ir.Project) []string {
	var missing []string
	for pi := range project.Programs {
		for ri := range project.Programs[pi].Routines {
			name := project.Programs[pi].Routines[ri].Name
			if !strings.Contains(doc, fmt.Sprintf("Name=%q", name)) {
				missing = append(missing, name)
			}
		}
	}
	return missing
}

// hasSafetyLogic looks for any safety indicator in the document, the
// same needles the export review checklist uses.
func hasSafetyLogic(doc string) bool {
	for _, needle := range []string{"Safety", "SAFETY", "Interlock", "EStop"} {
		if strings.Contains(doc, needle) {
			return true
		}
	}
	return false
}
