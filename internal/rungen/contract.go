package rungen

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Wrapper elements the model must never emit: rung bodies get spliced
// into an existing document, so any document structure is a defect.
var forbiddenWrappers = []string{"<Routine", "<RLLContent", "<?xml", "<RSLogix5000Content"}

// checkContract validates a generated rung body against the output
// contract and returns the list of violated checks, empty when clean.
func checkContract(body string, expectedRungs int) []string {
	var issues []string

	for _, w := range forbiddenWrappers {
		if strings.Contains(body, w) {
			issues = append(issues, "Contains invalid wrapper element: "+w)
		}
	}

	rungCount := strings.Count(body, "<Rung")
	switch {
	case rungCount == 0:
		issues = append(issues, "No <Rung> elements found in output")
	case rungCount != expectedRungs:
		issues = append(issues, fmt.Sprintf("Wrong number of rungs: expected %d, got %d", expectedRungs, rungCount))
	}

	if err := checkWellFormed(body); err != nil {
		issues = append(issues, "Invalid XML: "+err.Error())
	}

	if !strings.Contains(body, "<Comment") {
		issues = append(issues, "Missing <Comment> elements in rungs")
	}
	if !strings.Contains(body, "<Text") {
		issues = append(issues, "Missing <Text> elements (ladder logic)")
	}

	return issues
}

// checkWellFormed parses the body wrapped in a synthetic root.
func checkWellFormed(body string) error {
	dec := xml.NewDecoder(strings.NewReader("<Root>" + body + "</Root>"))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
