// Package pipeline orchestrates a full generation run: machines → IR →
// skeleton → per-routine generation → assembly → refinement. One
// Pipeline is built per run with its collaborators injected; nothing
// here is a singleton.
package pipeline

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"laddergen/internal/assemble"
	"laddergen/internal/classify"
	apperr "laddergen/internal/errors"
	"laddergen/internal/ir"
	"laddergen/internal/metrics"
	"laddergen/internal/parser"
	"laddergen/internal/refine"
	"laddergen/internal/rungen"
	"laddergen/internal/skeleton"
	"laddergen/internal/validate"
)

// Stats summarizes one run for reports and the API.
type Stats struct {
	Machines          int     `json:"machines"`
	Programs          int     `json:"programs"`
	Routines          int     `json:"routines"`
	Rungs             int     `json:"rungs"`
	Tags              int     `json:"tags"`
	DocumentBytes     int     `json:"document_bytes"`
	GeneratedRoutines int     `json:"generated_routines"`
	FailedRoutines    int     `json:"failed_routines"`
	EstimatedCostUSD  float64 `json:"estimated_cost_usd"`
}

// Result is the full outcome of a run. The document is always the best
// one produced, even when validation still reports issues.
type Result struct {
	Document   string             `json:"-"`
	Stats      Stats              `json:"stats"`
	Validation validate.Result    `json:"validation"`
	Iterations []refine.Iteration `json:"iterations,omitempty"`
	Findings   []ir.Finding       `json:"findings,omitempty"`
	Project    *ir.Project        `json:"-"`
}

// Pipeline wires the run stages together.
type Pipeline struct {
	Classifier *classify.Classifier
	Skeleton   *skeleton.Generator
	Generator  *rungen.Generator
	Refiner    *refine.Loop
	Log        zerolog.Logger
	Metrics    *metrics.Metrics
}

// Run executes every stage and returns the best document with its
// validation. Per-routine failures degrade the document (sentinel
// comments); only an empty input is an error.
func (p *Pipeline) Run(ctx context.Context, machines []parser.Machine, projectName string) (*Result, error) {
	if len(machines) == 0 {
		return nil, pkgerrors.Wrap(apperr.ErrInvalidInput, "no machines to generate")
	}

	p.Metrics.RunStarted()
	defer p.Metrics.RunFinished()

	project, findings := p.Classifier.Build(machines, projectName)
	project.ExtractAllTags()
	findings = append(findings, project.Validate()...)
	p.Log.Info().
		Int("machines", len(machines)).
		Int("programs", project.TotalPrograms()).
		Int("routines", project.TotalRoutines()).
		Int("rungs", project.TotalRungs()).
		Msg("ir ready")

	skel := p.Skeleton.Generate(project)
	p.Log.Info().Int("bytes", len(skel)).Msg("skeleton ready")

	var routines []ir.Routine
	for i := range project.Programs {
		routines = append(routines, project.Programs[i].SortedRoutines()...)
	}
	bodies, failed := p.Generator.Batch(ctx, routines)
	p.Log.Info().
		Int("generated", len(routines)-len(failed)).
		Int("failed", len(failed)).
		Msg("routine generation done")

	asm := assemble.Assembler{Log: p.Log}
	doc, report := asm.Build(skel, bodies)
	p.Log.Info().
		Int("replaced", report.Replaced).
		Int("missing", len(report.Missing)).
		Int("leftover", len(report.Leftover)).
		Msg("document assembled")

	outcome := p.Refiner.Run(ctx, doc, project)
	if !outcome.Validation.Valid {
		p.Log.Warn().
			Int("errors", outcome.Validation.Errors()).
			Int("iterations", len(outcome.Iterations)).
			Msg("document still invalid after refinement")
	}

	return &Result{
		Document:   outcome.Document,
		Validation: outcome.Validation,
		Iterations: outcome.Iterations,
		Findings:   findings,
		Project:    project,
		Stats: Stats{
			Machines:          len(machines),
			Programs:          project.TotalPrograms(),
			Routines:          project.TotalRoutines(),
			Rungs:             project.TotalRungs(),
			Tags:              len(project.Tags),
			DocumentBytes:     len(outcome.Document),
			GeneratedRoutines: len(routines) - len(failed),
			FailedRoutines:    len(failed),
			EstimatedCostUSD:  project.EstimatedCostUSD(),
		},
	}, nil
}
