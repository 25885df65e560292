package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/classify"
	apperr "laddergen/internal/errors"
	"laddergen/internal/llm"
	"laddergen/internal/metrics"
	"laddergen/internal/parser"
	"laddergen/internal/refine"
	"laddergen/internal/rungen"
	"laddergen/internal/skeleton"
	"laddergen/internal/tester"
)

func fixedNow() time.Time { return time.Date(2025, 3, 7, 12, 0, 0, 0, time.UTC) }

// plantMachines yields two machines: a conveyor that classifies into
// Safety (2 rungs), StartStop (1) and Auto (1), and a palletizer with
// a single Fault rung.
func plantMachines() []parser.Machine {
	return []parser.Machine{
		{
			Name: "Conveyor 1",
			States: []parser.State{
				{Step: 1, Description: "estop check", Interlocks: []string{"EStop_OK"}, Condition: parser.CondYes, NextStep: 2},
				{Step: 2, Description: "guard closed", Interlocks: []string{"Guard_Sw"}, Condition: parser.CondYes, NextStep: 3},
				{Step: 3, Description: "start belt", Interlocks: []string{"Safety_OK"}, Condition: parser.CondYes, NextStep: 4},
				{Step: 4, Description: "run to position", Condition: parser.CondYes, NextStep: 0},
			},
		},
		{
			Name: "Palletizer",
			States: []parser.State{
				{Step: 1, Description: "jam detected", Interlocks: []string{"Jam_PE"}, Condition: parser.CondYes, NextStep: 0},
			},
		},
	}
}

func contractBody(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "<Rung Number=\"%d\" Type=\"N\">\n<Comment>\n<![CDATA[step %d]]>\n</Comment>\n<Text>\n<![CDATA[XIC(In_%d)OTE(Out_%d);]]>\n</Text>\n</Rung>\n", i, i, i, i)
	}
	return b.String()
}

var rungCountPattern = regexp.MustCompile(`Number of Rungs: (\d+)`)

// echoRungCount answers every generation prompt with exactly the rung
// count it asks for, so the contract passes first try.
func echoRungCount(req llm.Request) (llm.Response, error) {
	m := rungCountPattern.FindStringSubmatch(req.Prompt)
	if m == nil {
		return llm.Response{}, stderrors.New("prompt missing rung count")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: contractBody(n)}, nil
}

func newPipeline(fake *llm.FakeClient) *Pipeline {
	return &Pipeline{
		Classifier: &classify.Classifier{Log: zerolog.Nop(), Now: fixedNow},
		Skeleton:   &skeleton.Generator{Now: fixedNow},
		Generator:  &rungen.Generator{LLM: fake, MaxRetries: 1, Log: zerolog.Nop()},
		Refiner:    &refine.Loop{LLM: fake, MaxIterations: 2, Log: zerolog.Nop()},
		Log:        zerolog.Nop(),
		Metrics:    metrics.New(),
	}
}

func TestRunProducesValidDocument(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Default = echoRungCount
	p := newPipeline(fake)

	res, err := p.Run(context.Background(), plantMachines(), "Plant_A")
	tester.NoErr(t, err)

	tester.True(t, res.Validation.Valid, "issues: %v", res.Validation.Issues)
	tester.Eq(t, len(res.Iterations), 0)
	tester.False(t, strings.Contains(res.Document, skeleton.PlaceholderPrefix))
	tester.Contains(t, res.Document, `Name="Plant_A"`)
	tester.Contains(t, res.Document, `Name="Conveyor_1_Safety"`)
	tester.Contains(t, res.Document, `Name="Palletizer_Fault"`)
	tester.Contains(t, res.Document, "XIC(In_0)OTE(Out_0);")

	tester.Eq(t, res.Stats.Machines, 2)
	tester.Eq(t, res.Stats.Programs, 2)
	tester.Eq(t, res.Stats.Routines, 4)
	tester.Eq(t, res.Stats.Rungs, 5)
	tester.Eq(t, res.Stats.GeneratedRoutines, 4)
	tester.Eq(t, res.Stats.FailedRoutines, 0)
	tester.Eq(t, res.Stats.DocumentBytes, len(res.Document))
	tester.Eq(t, res.Stats.Tags, len(res.Project.Tags))
	tester.True(t, res.Stats.Tags > 0)
	tester.True(t, res.Stats.EstimatedCostUSD > 0)

	// One call per routine, none for refinement.
	tester.Eq(t, len(fake.Calls()), 4)
}

func TestRunFailsOnEmptyInput(t *testing.T) {
	p := newPipeline(llm.NewFakeClient())

	res, err := p.Run(context.Background(), nil, "Plant_A")
	tester.Err(t, err)
	tester.True(t, stderrors.Is(err, apperr.ErrInvalidInput), "got %v", err)
	tester.Contains(t, err.Error(), "no machines")
	tester.True(t, res == nil)
}

func TestRunIsolatesRoutineFailures(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Default = func(req llm.Request) (llm.Response, error) {
		if strings.Contains(req.Prompt, "Routine Name: Conveyor_1_StartStop") {
			return llm.Response{Text: `<Tag Name="T"></Tag>`}, nil
		}
		return echoRungCount(req)
	}
	p := newPipeline(fake)

	res, err := p.Run(context.Background(), plantMachines(), "Plant_A")
	tester.NoErr(t, err)

	tester.Eq(t, res.Stats.GeneratedRoutines, 3)
	tester.Eq(t, res.Stats.FailedRoutines, 1)
	tester.Contains(t, res.Document, "GENERATION_FAILED: Conveyor_1_StartStop")
	tester.False(t, strings.Contains(res.Document, skeleton.PlaceholderPrefix))

	// Sentinel comments degrade the document but keep it structurally valid.
	tester.True(t, res.Validation.Valid, "issues: %v", res.Validation.Issues)
	var flagged bool
	for _, iss := range res.Validation.Issues {
		if iss.Code == "generation_failed" && strings.Contains(iss.Detail, "Conveyor_1_StartStop") {
			flagged = true
		}
	}
	tester.True(t, flagged, "issues: %v", res.Validation.Issues)

	// Failed routine burns its retry; the other three land first try.
	tester.Eq(t, len(fake.Calls()), 5)
}

func TestRunConcurrentWorkersCoverAllRoutines(t *testing.T) {
	fake := llm.NewFakeClient()
	fake.Default = echoRungCount
	p := newPipeline(fake)
	p.Generator.Workers = 3

	res, err := p.Run(context.Background(), plantMachines(), "Plant_A")
	tester.NoErr(t, err)
	tester.True(t, res.Validation.Valid, "issues: %v", res.Validation.Issues)
	tester.Eq(t, res.Stats.GeneratedRoutines, 4)
	tester.Eq(t, len(fake.Calls()), 4)
}
