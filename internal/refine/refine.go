// Package refine runs the bounded repair loop: validate, ask the
// model to fix the reported errors, validate again, keeping the best
// document seen. Failures stop the loop; they never surface as errors.
package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"laddergen/internal/ir"
	"laddergen/internal/llm"
	"laddergen/internal/validate"
)

const (
	// DefaultMaxIterations bounds the repair loop.
	DefaultMaxIterations = 3

	// maxPromptChars is the refinement prompt ceiling; above it the
	// embedded document is cut to truncateDocChars.
	maxPromptChars   = 150_000
	truncateDocChars = 50_000

	topErrors         = 5
	maxRecordedIssues = 8

	repairTemperature = 0.1
	repairMaxTokens   = 8192
)

// Iteration is the record of one repair attempt and its validation.
type Iteration struct {
	Index    int              `json:"index"`
	Valid    bool             `json:"valid"`
	Errors   int              `json:"errors"`
	Warnings int              `json:"warnings"`
	Infos    int              `json:"infos"`
	Issues   []validate.Issue `json:"issues,omitempty"`
}

// Outcome carries the best document seen, its validation, and the
// full iteration history.
type Outcome struct {
	Document   string          `json:"-"`
	Validation validate.Result `json:"validation"`
	Iterations []Iteration     `json:"iterations"`
	Converged  bool            `json:"converged"`
}

// Loop drives iterative document repair.
type Loop struct {
	LLM           llm.Client
	MaxIterations int
	Log           zerolog.Logger
}

// Run refines doc until it validates cleanly or the iteration budget
// is spent. The initial validation seeds best-tracking but is not an
// iteration record. A generation failure ends the loop early with the
// best document so far.
func (l *Loop) Run(ctx context.Context, doc string, project *ir.Project) Outcome {
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	current := doc
	res := validate.Check(current, project)
	best, bestRes, bestErrors := current, res, res.Errors()
	converged := res.Valid

	var history []Iteration
	for i := 1; i <= maxIter && !res.Valid; i++ {
		l.Log.Info().Int("iteration", i).Int("max_iterations", maxIter).Int("errors", res.Errors()).Msg("refining document")

		resp, err := l.LLM.Generate(ctx, llm.Request{
			Prompt:      repairPrompt(current, res),
			Temperature: repairTemperature,
			MaxTokens:   repairMaxTokens,
		})
		if err != nil {
			l.Log.Warn().Err(err).Int("iteration", i).Msg("refinement call failed, keeping best document")
			break
		}

		current = llm.StripFences(resp.Text)
		res = validate.Check(current, project)
		history = append(history, iterationRecord(i, res))

		if res.Errors() < bestErrors {
			best, bestRes, bestErrors = current, res, res.Errors()
		}
		if res.Valid {
			converged = true
			break
		}
	}

	return Outcome{Document: best, Validation: bestRes, Iterations: history, Converged: converged}
}

func iterationRecord(index int, res validate.Result) Iteration {
	issues := res.Issues
	if len(issues) > maxRecordedIssues {
		issues = issues[:maxRecordedIssues]
	}
	return Iteration{
		Index:    index,
		Valid:    res.Valid,
		Errors:   res.Errors(),
		Warnings: res.Warnings(),
		Infos:    res.Infos(),
		Issues:   issues,
	}
}

const repairTemplate = `You are refining a generated L5X file for quality and correctness.

## Original L5X
%s

## Issues Found
%s

## Instructions
Fix the issues while maintaining:
- All original functionality
- Proper XML structure
- Rockwell L5X schema compliance
- Tag naming conventions

Output only the corrected L5X XML code.
`

// repairPrompt embeds the document and its top errors; oversized
// documents are cut so the prompt stays under maxPromptChars.
func repairPrompt(doc string, res validate.Result) string {
	issues := issuesBlock(res)
	p := fmt.Sprintf(repairTemplate, doc, issues)
	if len(p) > maxPromptChars && len(doc) > truncateDocChars {
		p = fmt.Sprintf(repairTemplate, doc[:truncateDocChars]+"\n... [TRUNCATED] ...", issues)
	}
	return p
}

func issuesBlock(res validate.Result) string {
	errs := res.ErrorIssues()
	if len(errs) > topErrors {
		errs = errs[:topErrors]
	}
	lines := make([]string, 0, len(errs))
	for _, issue := range errs {
		line := "- ERROR: " + issue.Message
		if issue.Detail != "" {
			line += " (" + issue.Detail + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
