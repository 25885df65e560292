// Package classify groups parsed machine states into typed routines and
// builds the IR project consumed by the skeleton and unit generators.
package classify

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"laddergen/internal/ir"
	"laddergen/internal/parser"
)

// Keyword sets matched against whitespace-delimited description tokens.
// Underscore-joined identifiers are single tokens: "Start_Motor" matches
// nothing and classifies Auto, "ESTOP pressed" classifies Safety.
var (
	safetyKeywords    = tokenSet("safety", "estop", "e-stop", "door", "guard", "interlock")
	startStopKeywords = tokenSet("start", "stop", "enable", "disable", "reset")
	faultKeywords     = tokenSet("fault", "error", "alarm", "jam", "timeout")
)

// alwaysOnTag is the interlock sentinel meaning "no real condition".
const alwaysOnTag = "AlwaysOn"

func tokenSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Classifier builds IR projects from machine sheets.
type Classifier struct {
	Log zerolog.Logger
	Now func() time.Time
}

// Build classifies every machine into one program with up to four routines
// (Safety, StartStop, Auto, Fault) and returns the project plus input
// findings (skipped rows, sequence anomalies). Malformed states are skipped,
// never fatal.
func (c *Classifier) Build(machines []parser.Machine, projectName string) (*ir.Project, []ir.Finding) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	project := ir.NewProject(projectName, now())

	var findings []ir.Finding
	usedNames := map[string]int{}
	for _, m := range machines {
		progName := uniquify(sanitizeName(m.Name), usedNames)
		prog := ir.Program{
			Name:        progName,
			Description: fmt.Sprintf("Generated logic for %s", m.Name),
		}

		buckets := map[ir.RoutineType][]ir.Rung{}
		order := []ir.RoutineType{ir.RoutineSafety, ir.RoutineStartStop, ir.RoutineAuto, ir.RoutineFault}
		for _, st := range m.States {
			if st.Step < 0 || strings.TrimSpace(st.Description) == "" {
				msg := fmt.Sprintf("machine %q: skipped malformed state (step=%d)", m.Name, st.Step)
				c.Log.Warn().Str("machine", m.Name).Int("step", st.Step).Msg("skipped malformed state")
				findings = append(findings, ir.Finding{Level: ir.LevelWarning, Message: msg})
				continue
			}
			rt := ClassifyState(st.Description)
			rung := ir.NewRung(
				len(buckets[rt]),
				fmt.Sprintf("Step %d: %s", st.Step, st.Description),
				buildCondition(st),
				buildAction(st),
			)
			buckets[rt] = append(buckets[rt], rung)
		}

		for _, rt := range order {
			rungs := buckets[rt]
			if len(rungs) == 0 {
				continue
			}
			prog.Routines = append(prog.Routines, ir.Routine{
				Name:        progName + "_" + rt.Label(),
				Type:        rt,
				Description: fmt.Sprintf("%s logic for %s", rt.Label(), m.Name),
				Rungs:       rungs,
			})
		}
		if len(prog.Routines) == 0 {
			c.Log.Warn().Str("machine", m.Name).Msg("machine produced an empty program")
		}

		seq, err := SequenceFindings(m)
		if err != nil {
			c.Log.Warn().Err(err).Str("machine", m.Name).Msg("sequence check failed")
		}
		findings = append(findings, seq...)

		project.Programs = append(project.Programs, prog)
		project.Sources = append(project.Sources, m.Name)
	}
	return project, findings
}

// ClassifyState maps a state description to a routine type by exact token
// match against the keyword sets. Tokens are split on whitespace only.
func ClassifyState(description string) ir.RoutineType {
	for _, tok := range strings.Fields(strings.ToLower(description)) {
		if _, ok := safetyKeywords[tok]; ok {
			return ir.RoutineSafety
		}
		if _, ok := startStopKeywords[tok]; ok {
			return ir.RoutineStartStop
		}
		if _, ok := faultKeywords[tok]; ok {
			return ir.RoutineFault
		}
	}
	return ir.RoutineAuto
}

// buildCondition joins the active interlocks with AND, excluding the
// AlwaysOn sentinel, and appends the condition-flag marker term.
func buildCondition(st parser.State) string {
	var terms []string
	for _, il := range st.Interlocks {
		il = strings.TrimSpace(il)
		if il == "" || strings.EqualFold(il, alwaysOnTag) {
			continue
		}
		terms = append(terms, il)
	}
	switch st.Condition {
	case parser.CondNo:
		terms = append(terms, "Condition_False")
	case parser.CondNoYes:
		terms = append(terms, "Condition_Toggle")
	}
	if len(terms) == 0 {
		return alwaysOnTag
	}
	return strings.Join(terms, " AND ")
}

func buildAction(st parser.State) string {
	if st.NextStep == 0 {
		return "Sequence_Complete"
	}
	return fmt.Sprintf("Step_%d_Enable", st.NextStep)
}

// sanitizeName strips characters Logix rejects in program/routine names:
// spaces become underscores, other non-alphanumerics are dropped, and a
// leading digit gets an M_ prefix.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "Machine"
	}
	if unicode.IsDigit(rune(out[0])) {
		out = "M_" + out
	}
	return out
}

// uniquify suffixes repeated program names so routine names, and therefore
// skeleton placeholders, stay unique across the whole project.
func uniquify(name string, used map[string]int) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	return fmt.Sprintf("%s_%d", name, used[name])
}
