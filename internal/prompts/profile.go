// Package prompts holds optional style profiles: site conventions that
// get injected into generation prompts so produced logic matches the
// plant's house style.
package prompts

import (
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	apperr "laddergen/internal/errors"
	"laddergen/internal/safeio"
)

// StyleProfile describes a site's ladder-logic conventions.
type StyleProfile struct {
	Name                  string   `yaml:"name"`
	Conventions           []string `yaml:"conventions"`
	PreferredInstructions []string `yaml:"preferred_instructions"`
	CommentStyle          string   `yaml:"comment_style"`
}

// LoadProfile reads a style profile from an explicit path. An empty
// path means no profile and returns (nil, nil).
func LoadProfile(path string) (*StyleProfile, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read style profile %s", path)
	}
	return parseProfile(data, path)
}

func parseProfile(data []byte, src string) (*StyleProfile, error) {
	var p StyleProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse style profile %s", src)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "style profile %s: missing name", src)
	}
	return &p, nil
}

// Loader resolves profiles by name under a data root, so API callers
// can only reach files inside that root.
type Loader struct {
	fs *safeio.SafeFS
}

func NewLoader(fs *safeio.SafeFS) *Loader {
	return &Loader{fs: fs}
}

// ByName loads "<name>.yaml" from the data root. Names must be bare:
// no path separators, no extension.
func (l *Loader) ByName(name string) (*StyleProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	if strings.ContainsAny(name, `/\.`) {
		return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "style profile name %q", name)
	}
	data, err := l.fs.SafeReadFile(name + ".yaml")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "load style profile %q", name)
	}
	return parseProfile(data, name)
}

// PromptBlock renders the profile as a prompt section. A nil profile
// renders empty.
func (p *StyleProfile) PromptBlock() string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("STYLE PROFILE: " + p.Name + "\n")
	if len(p.Conventions) > 0 {
		sb.WriteString("Conventions:\n")
		for _, c := range p.Conventions {
			sb.WriteString("- " + c + "\n")
		}
	}
	if len(p.PreferredInstructions) > 0 {
		sb.WriteString("Preferred instructions: " + strings.Join(p.PreferredInstructions, ", ") + "\n")
	}
	if p.CommentStyle != "" {
		sb.WriteString("Comment style: " + p.CommentStyle + "\n")
	}
	return sb.String()
}
