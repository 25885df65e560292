// Package rungen generates the rung bodies that replace skeleton
// placeholders, one LLM call per routine, with retrieval-augmented
// prompts and a validated output contract.
package rungen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"laddergen/internal/ir"
	"laddergen/internal/llm"
	"laddergen/internal/metrics"
	"laddergen/internal/prompts"
	"laddergen/internal/retrieve"
	"laddergen/internal/runctx"
)

const (
	// DefaultMaxRetries is the number of correction attempts after the
	// first failed generation.
	DefaultMaxRetries = 2

	genTemperature = 0.1
	genMaxTokens   = 2500
)

// GenerationError reports that one routine exhausted its retries. It
// is scoped to the routine, never to the whole batch.
type GenerationError struct {
	Routine string
	Reason  string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %s", e.Routine, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// FailureSentinel is the comment substituted for a routine whose
// generation failed. Double dashes are softened because XML comments
// cannot contain them.
func FailureSentinel(routine, reason string) string {
	reason = strings.ReplaceAll(reason, "--", "- -")
	return fmt.Sprintf("<!-- GENERATION_FAILED: %s: %s -->", routine, reason)
}

// Generator produces rung bodies for routines. Retriever, Profile,
// Metrics and Progress are optional.
type Generator struct {
	LLM        llm.Client
	Retriever  *retrieve.Retriever
	Profile    *prompts.StyleProfile
	MaxRetries int
	Workers    int
	Log        zerolog.Logger
	Metrics    *metrics.Metrics

	// Progress is called after each routine in a batch finishes.
	Progress func(done, total int, routine string)
}

// Routine generates the rung body for one routine. On contract
// violations it retries with a correction block; provider errors retry
// with the unchanged prompt. Exhaustion returns a GenerationError.
func (g *Generator) Routine(ctx context.Context, routine *ir.Routine) (string, error) {
	ctx = runctx.WithRoutine(ctx, routine.Name)
	g.Log.Info().Str("routine", routine.Name).Int("rungs", routine.RungCount()).Msg("generating routine")

	var examples []retrieve.Example
	if g.Retriever != nil {
		res := g.Retriever.ForRoutine(ctx, routine)
		if res.Degraded {
			g.Metrics.RecordRetrieval("degraded")
		} else {
			g.Metrics.RecordRetrieval("ok")
			examples = res.Examples
		}
	}

	base := promptFor(routine, g.Profile, examples)
	prompt := base
	maxRetries := g.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.Log.Info().Str("routine", routine.Name).Int("attempt", attempt).Int("max_retries", maxRetries).Msg("retrying generation")
		}

		resp, err := g.LLM.Generate(ctx, llm.Request{
			Prompt:      prompt,
			Temperature: genTemperature,
			MaxTokens:   genMaxTokens,
		})
		if err != nil {
			lastErr = err
			g.Log.Warn().Err(err).Str("routine", routine.Name).Msg("generation call failed")
			continue
		}

		body := llm.StripFences(resp.Text)
		issues := checkContract(body, routine.RungCount())
		if len(issues) == 0 {
			g.Metrics.RecordGeneration(routine.Type.Label(), "ok")
			g.Metrics.ObserveGeneration(g.LLM.Name(), time.Since(start).Seconds())
			return body, nil
		}

		lastErr = fmt.Errorf("output contract violated: %s", strings.Join(issues, "; "))
		g.Log.Warn().Strs("issues", issues).Str("routine", routine.Name).Msg("generated rungs failed contract")
		prompt = correctionPrompt(base, issues)
	}

	g.Metrics.RecordGeneration(routine.Type.Label(), "failed")
	return "", &GenerationError{Routine: routine.Name, Reason: lastErr.Error(), Err: lastErr}
}

// Batch generates bodies for all routines in priority order. A failed
// routine gets a failure sentinel body and its name in the failed
// list; remaining routines still generate. Workers > 1 fans out with
// a bounded group.
func (g *Generator) Batch(ctx context.Context, routines []ir.Routine) (map[string]string, []string) {
	ordered := make([]ir.Routine, len(routines))
	copy(ordered, routines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Type.Priority() < ordered[j].Type.Priority()
	})

	total := len(ordered)
	bodies := make([]string, total)
	failedAt := make([]bool, total)

	var (
		progressMu sync.Mutex
		done       int
	)
	report := func(name string) {
		if g.Progress == nil {
			return
		}
		progressMu.Lock()
		done++
		n := done
		progressMu.Unlock()
		g.Progress(n, total, name)
	}

	generate := func(i int) {
		routine := ordered[i]
		body, err := g.Routine(ctx, &routine)
		if err != nil {
			reason := err.Error()
			var genErr *GenerationError
			if errors.As(err, &genErr) {
				reason = genErr.Reason
			}
			g.Log.Error().Err(err).Str("routine", routine.Name).Msg("routine generation failed")
			bodies[i] = FailureSentinel(routine.Name, reason)
			failedAt[i] = true
		} else {
			bodies[i] = body
		}
		report(routine.Name)
	}

	if g.Workers > 1 {
		var eg errgroup.Group
		eg.SetLimit(g.Workers)
		for i := range ordered {
			eg.Go(func() error {
				generate(i)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for i := range ordered {
			generate(i)
		}
	}

	out := make(map[string]string, total)
	var failed []string
	for i := range ordered {
		out[ordered[i].Name] = bodies[i]
		if failedAt[i] {
			failed = append(failed, ordered[i].Name)
		}
	}
	return out, failed
}
