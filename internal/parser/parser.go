// Package parser turns tabular logic sheets (CSV or JSON uploads) into
// ordered machine state records for classification.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"laddergen/internal/util/jsonutil"
)

// Condition flag values. NO and NO/YES mark states whose condition must be
// absent (or toggled) for the step to advance.
const (
	CondYes   = "YES"
	CondNo    = "NO"
	CondNoYes = "NO/YES"
)

// State is one row of a machine sequence sheet.
type State struct {
	Step        int      `json:"step"`
	Description string   `json:"description"`
	Interlocks  []string `json:"interlocks"`
	Condition   string   `json:"condition"`
	NextStep    int      `json:"next_step"`
}

// Machine is a named ordered state sequence.
type Machine struct {
	Name   string  `json:"name"`
	States []State `json:"states"`
}

// Warning reports a skipped or repaired input row.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// machineMarker prefixes rows that start a new machine section inside one
// sheet, e.g. "MACHINE: Conveyor_1".
const machineMarker = "MACHINE:"

var headerAliases = map[string]string{
	"step":        "step",
	"description": "description",
	"interlocks":  "interlocks",
	"interlock":   "interlocks",
	"condition":   "condition",
	"next step":   "next_step",
	"next_step":   "next_step",
	"nextstep":    "next_step",
}

// ParseCSV reads a logic sheet. Machines are delimited by MACHINE: marker
// rows; a sheet without markers yields one machine named defaultName.
// Malformed rows are skipped and reported as warnings, never errors.
func ParseCSV(r io.Reader, defaultName string) ([]Machine, []Warning, error) {
	if defaultName == "" {
		defaultName = "Machine_1"
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		machines []Machine
		warnings []Warning
		current  = Machine{Name: defaultName}
		columns  map[string]int
		line     int
	)
	flush := func() {
		if len(current.States) > 0 {
			machines = append(machines, current)
		}
	}

	for {
		line++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			warnings = append(warnings, Warning{line, fmt.Sprintf("unreadable row: %v", err)})
			continue
		}
		if isBlank(record) {
			continue
		}
		first := strings.TrimSpace(record[0])
		if len(first) >= len(machineMarker) && strings.EqualFold(first[:len(machineMarker)], machineMarker) {
			flush()
			// The header row carries across machine sections.
			current = Machine{Name: strings.TrimSpace(first[len(machineMarker):])}
			continue
		}
		if cols := headerColumns(record); cols != nil {
			columns = cols
			continue
		}
		if columns == nil {
			warnings = append(warnings, Warning{line, "row before header; skipped"})
			continue
		}
		st, warn := parseState(record, columns)
		if warn != "" {
			warnings = append(warnings, Warning{line, warn})
			continue
		}
		current.States = append(current.States, st)
	}
	flush()

	if len(machines) == 0 {
		return nil, warnings, fmt.Errorf("parser: no machine states found")
	}
	return machines, warnings, nil
}

// uploadDoc is the JSON upload shape: either a bare machine array or an
// object with a "machines" field.
type uploadDoc struct {
	Machines []Machine `json:"machines"`
}

// ParseJSON accepts an API upload. Unknown fields are rejected so typos in
// field names surface immediately.
func ParseJSON(data []byte) ([]Machine, error) {
	var machines []Machine
	if err := jsonutil.DecodeStrict(data, &machines); err == nil {
		return normalizeMachines(machines)
	}
	var doc uploadDoc
	if err := jsonutil.DecodeStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parser: decode upload: %w", err)
	}
	return normalizeMachines(doc.Machines)
}

func normalizeMachines(machines []Machine) ([]Machine, error) {
	if len(machines) == 0 {
		return nil, fmt.Errorf("parser: upload contains no machines")
	}
	for mi := range machines {
		for si := range machines[mi].States {
			machines[mi].States[si].Condition = normalizeCondition(machines[mi].States[si].Condition)
		}
	}
	return machines, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// headerColumns detects a header row and maps column names to indices.
// Returns nil when the row is not a header.
func headerColumns(record []string) map[string]int {
	cols := map[string]int{}
	for i, f := range record {
		key := strings.ToLower(strings.TrimSpace(f))
		if canon, ok := headerAliases[key]; ok {
			cols[canon] = i
		}
	}
	if _, ok := cols["step"]; !ok {
		return nil
	}
	if _, ok := cols["description"]; !ok {
		return nil
	}
	return cols
}

func parseState(record []string, cols map[string]int) (State, string) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	step, err := strconv.Atoi(field("step"))
	if err != nil {
		return State{}, fmt.Sprintf("non-numeric step %q", field("step"))
	}
	if step < 0 {
		return State{}, fmt.Sprintf("negative step %d", step)
	}
	desc := field("description")
	if desc == "" {
		return State{}, "empty description"
	}
	next := 0
	if v := field("next_step"); v != "" {
		next, err = strconv.Atoi(v)
		if err != nil || next < 0 {
			return State{}, fmt.Sprintf("invalid next step %q", v)
		}
	}
	return State{
		Step:        step,
		Description: desc,
		Interlocks:  SplitInterlocks(field("interlocks")),
		Condition:   normalizeCondition(field("condition")),
		NextStep:    next,
	}, ""
}

// SplitInterlocks splits a semicolon- or comma-separated tag cell.
func SplitInterlocks(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	fields := strings.FieldsFunc(cell, func(r rune) bool {
		return r == ';' || r == ','
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func normalizeCondition(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "NO", "N":
		return CondNo
	case "NO/YES", "N/Y":
		return CondNoYes
	default:
		return CondYes
	}
}
