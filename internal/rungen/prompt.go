package rungen

import (
	"fmt"
	"strings"

	"laddergen/internal/ir"
	"laddergen/internal/prompts"
	"laddergen/internal/retrieve"
)

const (
	// maxPromptBytes caps the assembled prompt; examples are dropped
	// (last first) until the prompt fits.
	maxPromptBytes = 100_000
	// examplePreviewLimit truncates each retrieved example.
	examplePreviewLimit = 800
	// maxExamples bounds how many retrieved examples enter the prompt.
	maxExamples = 3
)

const systemContract = `You are a PLC ladder logic generator. Your task is to generate ONLY ladder logic rungs in L5X XML format.

CRITICAL RULES:
1. Generate ONLY <Rung> elements - nothing else
2. DO NOT generate: XML headers, <Routine> tags, <RLLContent> tags, or any wrapper elements
3. Each rung must have: Number, Comment, and valid ladder logic
4. Use standard Rockwell/Allen-Bradley instructions: XIC, XIO, OTE, OTL, OTU, TON, TOF, CTU, CTD, MOV, EQU, NEQ, GRT, LES, JSR
5. Ladder logic must be syntactically correct for Studio 5000

OUTPUT FORMAT (example):
<Rung Number="0" Type="N">
  <Comment>
    <![CDATA[Check emergency stop]]>
  </Comment>
  <Text>
    <![CDATA[XIO(EStop)OTE(Safety_OK);]]>
  </Text>
</Rung>
`

const defaultStyleBlock = `
CODING STYLE REQUIREMENTS:
- Tag naming: PascalCase with underscores (e.g., Motor_Run, Safety_OK)
- Comments: Clear, concise descriptions
- Rung numbering: Sequential starting from 0
- Logic: Simple and maintainable
`

const defaultExampleBlock = `
EXAMPLE RUNG FORMAT:
<Rung Number="0" Type="N">
  <Comment>
    <![CDATA[Start motor when button pressed and safety clear]]>
  </Comment>
  <Text>
    <![CDATA[XIC(Start_Button)XIC(Safety_Clear)OTE(Motor_Run);]]>
  </Text>
</Rung>
`

// promptFor assembles the generation prompt, shedding examples from
// the tail until it fits under maxPromptBytes.
func promptFor(routine *ir.Routine, profile *prompts.StyleProfile, examples []retrieve.Example) string {
	if len(examples) > maxExamples {
		examples = examples[:maxExamples]
	}
	for len(examples) > 0 {
		p := buildPrompt(routine, profile, examples)
		if len(p) <= maxPromptBytes {
			return p
		}
		examples = examples[:len(examples)-1]
	}
	return buildPrompt(routine, profile, nil)
}

func buildPrompt(routine *ir.Routine, profile *prompts.StyleProfile, examples []retrieve.Example) string {
	var sb strings.Builder
	sb.WriteString(systemContract)

	if profile != nil {
		sb.WriteString("\nCODING STYLE REQUIREMENTS:\n")
		sb.WriteString(profile.PromptBlock())
	} else {
		sb.WriteString(defaultStyleBlock)
	}

	if len(examples) > 0 {
		sb.WriteString("\nSIMILAR EXAMPLES FROM KNOWLEDGE BASE:\n")
		for i, ex := range examples {
			content := ex.Content
			if len(content) > examplePreviewLimit {
				content = content[:examplePreviewLimit]
			}
			fmt.Fprintf(&sb, "\nExample %d:\n%s\n", i+1, content)
		}
	} else {
		sb.WriteString(defaultExampleBlock)
	}

	fmt.Fprintf(&sb, `
GENERATE RUNGS FOR THIS ROUTINE:
Routine Name: %s
Routine Type: %s
Number of Rungs: %d

LOGIC REQUIREMENTS:
`, routine.Name, routine.Type.Label(), routine.RungCount())

	for _, rung := range routine.Rungs {
		fmt.Fprintf(&sb, `
Rung %d: %s
  Condition: %s
  Action: %s
  Tags: %s
  Safety Critical: %t
`, rung.Number, rung.Comment, rung.Condition, rung.Action, strings.Join(rung.Tags, ", "), rung.SafetyCritical)
	}

	fmt.Fprintf(&sb, `
OUTPUT INSTRUCTIONS:
Generate EXACTLY %d rung(s) following the L5X format shown above.
Each rung must implement the logic requirements specified.
Use proper ladder logic instructions (XIC for examine closed, XIO for examine open, OTE for output).
Include clear comments for each rung.
Do NOT include any text outside the <Rung> elements.

BEGIN OUTPUT:
`, routine.RungCount())

	return sb.String()
}

// correctionPrompt appends the failed checks to the base prompt.
// Corrections always attach to the original prompt, never stack.
func correctionPrompt(base string, issues []string) string {
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nCORRECTIONS NEEDED (previous attempt had these issues):\n")
	for _, issue := range issues {
		sb.WriteString("- " + issue + "\n")
	}
	sb.WriteString("\nPlease generate again with these corrections applied.\n")
	return sb.String()
}
