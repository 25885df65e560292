package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheet = `STEP,DESCRIPTION,INTERLOCKS,CONDITION,NEXT STEP
0,Waiting_For_Home,,YES,10
10,Check_For_Mat_Present,DI01,YES,20
20,Start_Motor,DI03,YES,0
`

func TestParseCSVSingleMachine(t *testing.T) {
	machines, warns, err := ParseCSV(strings.NewReader(sheet), "Conveyor_1")
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, machines, 1)
	assert.Equal(t, "Conveyor_1", machines[0].Name)
	require.Len(t, machines[0].States, 3)
	assert.Equal(t, 0, machines[0].States[0].Step)
	assert.Equal(t, "Waiting_For_Home", machines[0].States[0].Description)
	assert.Equal(t, CondYes, machines[0].States[0].Condition)
	assert.Equal(t, 10, machines[0].States[0].NextStep)
	assert.Equal(t, []string{"DI01"}, machines[0].States[1].Interlocks)
}

func TestParseCSVMachineMarkers(t *testing.T) {
	in := `STEP,DESCRIPTION,INTERLOCKS,CONDITION,NEXT STEP
MACHINE: Conveyor_1
0,Waiting_For_Home,,YES,10
10,Run,DI01,YES,0
machine: Stacker
0,Idle,,YES,5
5,Stack,DI02;DI03,NO,0
`
	machines, warns, err := ParseCSV(strings.NewReader(in), "ignored")
	require.NoError(t, err)
	assert.Empty(t, warns)
	require.Len(t, machines, 2)
	assert.Equal(t, "Conveyor_1", machines[0].Name)
	assert.Equal(t, "Stacker", machines[1].Name)
	assert.Equal(t, []string{"DI02", "DI03"}, machines[1].States[1].Interlocks)
	assert.Equal(t, CondNo, machines[1].States[1].Condition)
}

func TestParseCSVSkipsMalformedRows(t *testing.T) {
	in := `STEP,DESCRIPTION,INTERLOCKS,CONDITION,NEXT STEP
abc,Bad_Step,,YES,10
0,,,YES,10
5,Good_Row,,YES,0
`
	machines, warns, err := ParseCSV(strings.NewReader(in), "M")
	require.NoError(t, err)
	assert.Len(t, warns, 2)
	require.Len(t, machines, 1)
	assert.Len(t, machines[0].States, 1)
	assert.Equal(t, "Good_Row", machines[0].States[0].Description)
}

func TestParseCSVHeaderAliases(t *testing.T) {
	in := "Step,Description,Interlock,Condition,Next_Step\n0,Idle,,no/yes,0\n"
	machines, _, err := ParseCSV(strings.NewReader(in), "M")
	require.NoError(t, err)
	assert.Equal(t, CondNoYes, machines[0].States[0].Condition)
}

func TestParseCSVNoStates(t *testing.T) {
	_, _, err := ParseCSV(strings.NewReader("STEP,DESCRIPTION\n"), "M")
	assert.Error(t, err)
}

func TestParseJSONArray(t *testing.T) {
	in := `[{"name":"M1","states":[{"step":0,"description":"Idle","interlocks":[],"condition":"yes","next_step":10}]}]`
	machines, err := ParseJSON([]byte(in))
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.Equal(t, CondYes, machines[0].States[0].Condition)
}

func TestParseJSONWrapped(t *testing.T) {
	in := `{"machines":[{"name":"M1","states":[{"step":0,"description":"Idle","interlocks":null,"condition":"NO","next_step":0}]}]}`
	machines, err := ParseJSON([]byte(in))
	require.NoError(t, err)
	assert.Equal(t, CondNo, machines[0].States[0].Condition)
}

func TestParseJSONRejectsUnknownFields(t *testing.T) {
	in := `{"machines":[{"name":"M1","staets":[]}]}`
	_, err := ParseJSON([]byte(in))
	assert.Error(t, err)
}

func TestSplitInterlocks(t *testing.T) {
	assert.Nil(t, SplitInterlocks("  "))
	assert.Equal(t, []string{"DI01", "DI02", "DI03"}, SplitInterlocks("DI01; DI02 ,DI03"))
}
