package classify

import (
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/ir"
	"laddergen/internal/parser"
	"laddergen/internal/tester"
)

func newClassifier() *Classifier {
	return &Classifier{
		Log: zerolog.Nop(),
		Now: func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}
}

func threeStateMachine() parser.Machine {
	return parser.Machine{
		Name: "Conveyor_1",
		States: []parser.State{
			{Step: 0, Description: "Waiting_For_Home", Interlocks: nil, Condition: parser.CondYes, NextStep: 10},
			{Step: 10, Description: "Check_For_Mat_Present", Interlocks: []string{"DI01"}, Condition: parser.CondYes, NextStep: 20},
			{Step: 20, Description: "Start_Motor", Interlocks: []string{"DI03"}, Condition: parser.CondYes, NextStep: 0},
		},
	}
}

func TestBuildAllAutoScenario(t *testing.T) {
	// None of the underscore-joined descriptions match a keyword token, so
	// all three states land in the Auto routine.
	project, findings := newClassifier().Build([]parser.Machine{threeStateMachine()}, "Line1")
	tester.Eq(t, len(findings), 0)
	tester.Eq(t, project.TotalPrograms(), 1)
	tester.Eq(t, project.TotalRoutines(), 1)
	tester.Eq(t, project.TotalRungs(), 3)

	rt := project.Programs[0].Routines[0]
	tester.Eq(t, rt.Type, ir.RoutineAuto)
	tester.Eq(t, rt.Name, "Conveyor_1_Auto")
	for i, rung := range rt.Rungs {
		tester.Eq(t, rung.Number, i)
	}
	tester.Eq(t, rt.Rungs[0].Condition, "AlwaysOn")
	tester.Eq(t, rt.Rungs[0].Action, "Step_10_Enable")
	tester.Eq(t, rt.Rungs[1].Condition, "DI01")
	tester.Eq(t, rt.Rungs[2].Action, "Sequence_Complete")
}

func TestBuildIdempotent(t *testing.T) {
	machines := []parser.Machine{threeStateMachine()}
	a, _ := newClassifier().Build(machines, "Line1")
	b, _ := newClassifier().Build(machines, "Line1")
	a.ExtractAllTags()
	b.ExtractAllTags()
	tester.True(t, reflect.DeepEqual(a.Programs, b.Programs), "classification must be deterministic")
	tester.True(t, reflect.DeepEqual(a.Tags, b.Tags))
}

func TestClassifyStateKeywords(t *testing.T) {
	cases := []struct {
		desc string
		want ir.RoutineType
	}{
		{"ESTOP pressed", ir.RoutineSafety},
		{"guard door open", ir.RoutineSafety},
		{"start command from HMI", ir.RoutineStartStop},
		{"reset cycle", ir.RoutineStartStop},
		{"jam detected", ir.RoutineFault},
		{"motor timeout on index", ir.RoutineFault},
		{"Waiting_For_Home", ir.RoutineAuto},
		{"Start_Motor", ir.RoutineAuto},
		{"Check_For_Mat_Present", ir.RoutineAuto},
		{"advance to next position", ir.RoutineAuto},
	}
	for _, tc := range cases {
		tester.Eq(t, ClassifyState(tc.desc), tc.want, tc.desc)
	}
}

func TestBuildRoutinePriorityGrouping(t *testing.T) {
	m := parser.Machine{
		Name: "Press",
		States: []parser.State{
			{Step: 0, Description: "jam detected", Condition: parser.CondYes, NextStep: 10},
			{Step: 10, Description: "ESTOP pressed", Condition: parser.CondYes, NextStep: 20},
			{Step: 20, Description: "start command", Condition: parser.CondYes, NextStep: 30},
			{Step: 30, Description: "advance ram", Condition: parser.CondYes, NextStep: 0},
		},
	}
	project, _ := newClassifier().Build([]parser.Machine{m}, "P")
	prog := project.Programs[0]
	tester.Eq(t, len(prog.Routines), 4)
	sorted := prog.SortedRoutines()
	tester.Eq(t, sorted[0].Type, ir.RoutineSafety)
	tester.Eq(t, sorted[1].Type, ir.RoutineStartStop)
	tester.Eq(t, sorted[2].Type, ir.RoutineAuto)
	tester.Eq(t, sorted[3].Type, ir.RoutineFault)
	// Every routine renumbers its rungs from zero.
	for _, rt := range sorted {
		for i, rung := range rt.Rungs {
			tester.Eq(t, rung.Number, i, rt.Name)
		}
	}
}

func TestBuildConditionMarkers(t *testing.T) {
	m := parser.Machine{
		Name: "M",
		States: []parser.State{
			{Step: 0, Description: "hold until clear", Interlocks: []string{"DI01", "AlwaysOn", "DI02"}, Condition: parser.CondNo, NextStep: 5},
			{Step: 5, Description: "toggle gate", Interlocks: []string{"alwayson"}, Condition: parser.CondNoYes, NextStep: 0},
		},
	}
	project, _ := newClassifier().Build([]parser.Machine{m}, "P")
	rungs := project.Programs[0].Routines[0].Rungs
	tester.Eq(t, rungs[0].Condition, "DI01 AND DI02 AND Condition_False")
	tester.Eq(t, rungs[1].Condition, "Condition_Toggle")
}

func TestBuildSkipsMalformedStates(t *testing.T) {
	m := parser.Machine{
		Name: "M",
		States: []parser.State{
			{Step: -1, Description: "bad", Condition: parser.CondYes},
			{Step: 0, Description: "  ", Condition: parser.CondYes},
			{Step: 5, Description: "advance", Condition: parser.CondYes, NextStep: 0},
		},
	}
	project, findings := newClassifier().Build([]parser.Machine{m}, "P")
	tester.Eq(t, project.TotalRungs(), 1)
	warned := 0
	for _, f := range findings {
		if f.Level == ir.LevelWarning {
			warned++
		}
	}
	tester.True(t, warned >= 2, "both malformed states must be reported")
}

func TestBuildEmptyProgramKept(t *testing.T) {
	m := parser.Machine{Name: "Empty", States: []parser.State{{Step: -1, Description: "bad"}}}
	project, _ := newClassifier().Build([]parser.Machine{m}, "P")
	tester.Eq(t, project.TotalPrograms(), 1)
	tester.Eq(t, len(project.Programs[0].Routines), 0)
}

func TestBuildUniquifiesProgramNames(t *testing.T) {
	a := threeStateMachine()
	b := threeStateMachine() // same name after sanitization
	project, _ := newClassifier().Build([]parser.Machine{a, b}, "P")
	tester.Eq(t, project.Programs[0].Name, "Conveyor_1")
	tester.Eq(t, project.Programs[1].Name, "Conveyor_1_2")
	tester.Eq(t, project.Programs[1].Routines[0].Name, "Conveyor_1_2_Auto")
}

func TestSanitizeName(t *testing.T) {
	tester.Eq(t, sanitizeName("Conveyor #1 (main)"), "Conveyor_1_main")
	tester.Eq(t, sanitizeName("3rd Stacker"), "M_3rd_Stacker")
	tester.Eq(t, sanitizeName("  "), "Machine")
}
