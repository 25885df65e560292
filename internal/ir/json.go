package ir

import (
	"encoding/json"
	"fmt"

	"laddergen/internal/util/jsonutil"
)

// ToJSON serializes the full IR tree for inspection and debugging. The
// projection is lossless: FromJSON reconstructs an equivalent tree.
func (p *Project) ToJSON() ([]byte, error) {
	return jsonutil.MarshalNoEscapeIndent(p, "", "  ")
}

// ToDict returns the plain nested map form of the project, mirroring the
// JSON projection.
func (p *Project) ToDict() (map[string]any, error) {
	raw, err := jsonutil.MarshalNoEscape(p)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FromJSON reconstructs a project from its JSON projection.
func FromJSON(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("ir: decode project: %w", err)
	}
	if p.Tags == nil {
		p.Tags = map[string]string{}
	}
	return &p, nil
}
