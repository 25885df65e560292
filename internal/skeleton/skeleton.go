// Package skeleton emits the deterministic L5X scaffold: controller wrapper,
// tag declarations and the program/routine hierarchy with one named
// placeholder per routine awaiting generated logic.
package skeleton

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"laddergen/internal/ir"
)

// PlaceholderPrefix marks routine bodies awaiting generated logic. The
// assembler substitutes them; the validator flags any left over.
const PlaceholderPrefix = "LOGIC_PLACEHOLDER_"

// exportDateLayout matches the RSLogix export convention.
const exportDateLayout = "Mon Jan 02 15:04:05 2006"

// Fixed controller identity for the single supported target.
const (
	schemaRevision   = "1.0"
	softwareRevision = "33.00"
	processorType    = "1769-L18ER-BB1B"
	majorRev         = "33"
	minorRev         = "11"
	exportOptions    = "References NoRawData L5KData DecoratedData Context Dependencies ForceProtectedEncoding AllProjDocTrans"
)

// Placeholder returns the unique marker token for a routine.
func Placeholder(routineName string) string {
	return PlaceholderPrefix + routineName
}

// PlaceholderComment returns the marker as it appears in the skeleton.
func PlaceholderComment(routineName string) string {
	return "<!-- " + Placeholder(routineName) + " -->"
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Generator produces the skeleton document. Now is injectable so tests get
// byte-identical output; zero value uses the wall clock.
type Generator struct {
	Now func() time.Time
}

// Generate renders the full document for a tagged project. Identical input
// yields identical output except for the embedded timestamps.
func (g *Generator) Generate(p *ir.Project) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	stamp := now().Format(exportDateLayout)
	name := attrEscaper.Replace(p.Name)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	fmt.Fprintf(&b, `<RSLogix5000Content SchemaRevision="%s" SoftwareRevision="%s" TargetName="%s" TargetType="Controller" ContainsContext="false" ExportDate="%s" ExportOptions="%s">`+"\n",
		schemaRevision, softwareRevision, name, stamp, exportOptions)
	fmt.Fprintf(&b, `  <Controller Use="Target" Name="%s" ProcessorType="%s" MajorRev="%s" MinorRev="%s" TimeSlice="20" ShareUnusedTimeSlice="1" ProjectCreationDate="%s" LastModifiedDate="%s" SFCExecutionControl="CurrentChain" SFCRestartPosition="MostRecent" SFCLastScan="DontScan" ProjectSN="16#0000_0000">`+"\n",
		name, processorType, majorRev, minorRev, stamp, stamp)
	b.WriteString("    <DataTypes/>\n")

	g.writeTags(&b, p)
	g.writePrograms(&b, p)
	g.writeTasks(&b, p)

	b.WriteString("  </Controller>\n")
	b.WriteString("</RSLogix5000Content>\n")
	return b.String()
}

func (g *Generator) writeTags(b *strings.Builder, p *ir.Project) {
	b.WriteString("    <Tags>\n")
	for _, tag := range p.SortedTags() {
		dataType := p.Tags[tag]
		if dataType == "" {
			dataType = "BOOL"
		}
		fmt.Fprintf(b, `      <Tag Name="%s" TagType="Base" DataType="%s" Radix="Decimal" Constant="false" ExternalAccess="Read/Write">`+"\n",
			attrEscaper.Replace(tag), attrEscaper.Replace(dataType))
		b.WriteString("        <Description>\n")
		fmt.Fprintf(b, "          <![CDATA[Auto-generated tag]]>\n")
		b.WriteString("        </Description>\n")
		b.WriteString("        <Data Format=\"L5K\">\n")
		b.WriteString("          <![CDATA[0]]>\n")
		b.WriteString("        </Data>\n")
		b.WriteString("      </Tag>\n")
	}
	b.WriteString("    </Tags>\n")
}

func (g *Generator) writePrograms(b *strings.Builder, p *ir.Project) {
	b.WriteString("    <Programs>\n")
	for pi := range p.Programs {
		prog := &p.Programs[pi]
		fmt.Fprintf(b, `      <Program Name="%s" TestEdits="false" MainRoutineName="MainRoutine" Disabled="false" UseAsFolder="false">`+"\n",
			attrEscaper.Replace(prog.Name))
		if prog.Description != "" {
			b.WriteString("        <Description>\n")
			fmt.Fprintf(b, "          <![CDATA[%s]]>\n", prog.Description)
			b.WriteString("        </Description>\n")
		}
		b.WriteString("        <Routines>\n")
		sorted := prog.SortedRoutines()
		g.writeMainRoutine(b, sorted)
		for i := range sorted {
			g.writeRoutine(b, &sorted[i])
		}
		b.WriteString("        </Routines>\n")
		b.WriteString("      </Program>\n")
	}
	b.WriteString("    </Programs>\n")
}

// writeMainRoutine emits the dispatcher: one JSR rung per routine, in
// priority order, so safety logic is scanned first.
func (g *Generator) writeMainRoutine(b *strings.Builder, sorted []ir.Routine) {
	b.WriteString(`          <Routine Name="MainRoutine" Type="RLL">` + "\n")
	b.WriteString("            <RLLContent>\n")
	for i := range sorted {
		fmt.Fprintf(b, `              <Rung Number="%d" Type="N">`+"\n", i)
		b.WriteString("                <Comment>\n")
		fmt.Fprintf(b, "                  <![CDATA[Call %s routine]]>\n", sorted[i].Name)
		b.WriteString("                </Comment>\n")
		b.WriteString("                <Text>\n")
		fmt.Fprintf(b, "                  <![CDATA[JSR(%s,0);]]>\n", sorted[i].Name)
		b.WriteString("                </Text>\n")
		b.WriteString("              </Rung>\n")
	}
	b.WriteString("            </RLLContent>\n")
	b.WriteString("          </Routine>\n")
}

func (g *Generator) writeRoutine(b *strings.Builder, rt *ir.Routine) {
	fmt.Fprintf(b, `          <Routine Name="%s" Type="RLL">`+"\n", attrEscaper.Replace(rt.Name))
	if rt.Description != "" {
		b.WriteString("            <Description>\n")
		fmt.Fprintf(b, "              <![CDATA[%s]]>\n", rt.Description)
		b.WriteString("            </Description>\n")
	}
	b.WriteString("            <RLLContent>\n")
	fmt.Fprintf(b, "              %s\n", PlaceholderComment(rt.Name))
	fmt.Fprintf(b, "              <!-- Routine type: %s -->\n", rt.Type.Label())
	fmt.Fprintf(b, "              <!-- Expected rungs: %d -->\n", rt.RungCount())
	b.WriteString("            </RLLContent>\n")
	b.WriteString("          </Routine>\n")
}

func (g *Generator) writeTasks(b *strings.Builder, p *ir.Project) {
	b.WriteString("    <Tasks>\n")
	b.WriteString(`      <Task Name="MainTask" Type="CONTINUOUS" Priority="10" Watchdog="500" DisableUpdateOutputs="false" InhibitTask="false">` + "\n")
	b.WriteString("        <ScheduledPrograms>\n")
	names := make([]string, 0, len(p.Programs))
	for i := range p.Programs {
		names = append(names, p.Programs[i].Name)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(b, "          <ScheduledProgram Name=\"%s\"/>\n", attrEscaper.Replace(n))
	}
	b.WriteString("        </ScheduledPrograms>\n")
	b.WriteString("      </Task>\n")
	b.WriteString("    </Tasks>\n")
}
