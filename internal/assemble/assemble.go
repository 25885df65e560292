// Package assemble splices generated rung bodies into the skeleton
// document. Substitution is pure string work; the result is validated
// separately.
package assemble

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"laddergen/internal/skeleton"
)

var leftoverPattern = regexp.MustCompile(regexp.QuoteMeta(skeleton.PlaceholderPrefix) + `(\w+)`)

// Report summarizes one assembly pass.
type Report struct {
	// Replaced counts placeholders that received a body.
	Replaced int
	// Missing lists routines that have a body but no placeholder.
	Missing []string
	// Leftover lists placeholders still present after substitution.
	Leftover []string
}

// Assembler substitutes routine bodies for their skeleton placeholders.
type Assembler struct {
	Log zerolog.Logger
}

// Build replaces each routine's placeholder with its generated body.
// The comment form of the marker is tried first, then the bare token.
// Bodies without a matching placeholder are reported, not inserted.
func (a *Assembler) Build(doc string, bodies map[string]string) (string, Report) {
	names := make([]string, 0, len(bodies))
	for name := range bodies {
		names = append(names, name)
	}
	sort.Strings(names)

	var report Report
	for _, name := range names {
		body := bodies[name]
		if marker := skeleton.PlaceholderComment(name); strings.Contains(doc, marker) {
			doc = strings.Replace(doc, marker, body, 1)
			report.Replaced++
			continue
		}
		if token := skeleton.Placeholder(name); strings.Contains(doc, token) {
			doc = strings.Replace(doc, token, body, 1)
			report.Replaced++
			continue
		}
		a.Log.Warn().Str("routine", name).Msg("no placeholder for generated body")
		report.Missing = append(report.Missing, name)
	}

	report.Leftover = leftoverNames(doc)
	if len(report.Leftover) > 0 {
		a.Log.Warn().Strs("routines", report.Leftover).Msg("placeholders left without bodies")
	}
	return doc, report
}

// leftoverNames extracts the routine names of any remaining markers,
// sorted and de-duplicated.
func leftoverNames(doc string) []string {
	matches := leftoverPattern.FindAllStringSubmatch(doc, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	var names []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names
}
