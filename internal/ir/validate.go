package ir

import "fmt"

// Finding levels for IR sanity checks.
const (
	LevelWarning = "warning"
	LevelError   = "error"
)

// Finding is one IR sanity issue. Findings never abort a pipeline run; they
// are logged and attached to the run report.
type Finding struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Validate runs structural sanity checks over the IR tree: empty tag maps,
// rung numbering gaps and empty containers. Rung numbers are expected to be
// contiguous from 0 within each routine.
func (p *Project) Validate() []Finding {
	var findings []Finding
	if len(p.Programs) == 0 {
		findings = append(findings, Finding{LevelError, "project has no programs"})
	}
	if len(p.Tags) == 0 {
		findings = append(findings, Finding{LevelWarning, "project tag map is empty; run ExtractAllTags before skeleton generation"})
	}
	for pi := range p.Programs {
		prog := &p.Programs[pi]
		if len(prog.Routines) == 0 {
			findings = append(findings, Finding{LevelWarning, fmt.Sprintf("program %q has no routines", prog.Name)})
		}
		for ri := range prog.Routines {
			rt := &prog.Routines[ri]
			if len(rt.Rungs) == 0 {
				findings = append(findings, Finding{LevelWarning, fmt.Sprintf("routine %q has no rungs", rt.Name)})
				continue
			}
			for i, rung := range rt.Rungs {
				if rung.Number != i {
					findings = append(findings, Finding{LevelWarning, fmt.Sprintf("routine %q rung numbering gap: position %d holds rung %d", rt.Name, i, rung.Number)})
					break
				}
			}
		}
	}
	return findings
}
