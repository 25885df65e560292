// Package knowledge manages the retrieval corpus: curated ladder-logic
// examples loaded from YAML files, embedded as documents and upserted
// into the vector store the retriever queries at generation time.
package knowledge

import (
	"context"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"laddergen/internal/embed"
	apperr "laddergen/internal/errors"
	"laddergen/internal/vectorstore"
)

// Entry is one corpus example: a titled, typed L5X rung snippet with
// enough prose around it to embed well.
type Entry struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	RoutineType string   `yaml:"routine_type"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags,omitempty"`
	Content     string   `yaml:"content"`
}

type corpusFile struct {
	Entries []Entry `yaml:"entries"`
}

// Load reads and validates a corpus file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "read corpus %s", path)
	}
	return Parse(data, path)
}

// Parse validates raw corpus YAML. src names the source in errors.
func Parse(data []byte, src string) ([]Entry, error) {
	var file corpusFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, pkgerrors.Wrapf(err, "parse corpus %s", src)
	}
	if len(file.Entries) == 0 {
		return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "corpus %s: no entries", src)
	}
	seen := make(map[string]bool, len(file.Entries))
	for i, e := range file.Entries {
		switch {
		case strings.TrimSpace(e.ID) == "":
			return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "corpus %s: entry %d: missing id", src, i)
		case strings.TrimSpace(e.Title) == "":
			return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "corpus %s: entry %q: missing title", src, e.ID)
		case strings.TrimSpace(e.Content) == "":
			return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "corpus %s: entry %q: missing content", src, e.ID)
		case seen[e.ID]:
			return nil, pkgerrors.Wrapf(apperr.ErrInvalidInput, "corpus %s: duplicate id %q", src, e.ID)
		}
		seen[e.ID] = true
	}
	return file.Entries, nil
}

// EmbedText is the document text an entry is embedded under. Queries
// describe routines in prose, so the prose fields lead the content.
func EmbedText(e Entry) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Title, e.Description, e.Content} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

// Indexer embeds corpus entries and upserts them into a vector store.
type Indexer struct {
	Store    vectorstore.Store
	Embedder embed.Embedder
	Log      zerolog.Logger
}

// Index upserts entries one at a time and returns how many landed.
// On error the count covers the entries indexed before the failure.
func (ix *Indexer) Index(ctx context.Context, entries []Entry) (int, error) {
	for n, e := range entries {
		vec, err := ix.Embedder.Embed(ctx, EmbedText(e), embed.TaskDocument)
		if err != nil {
			return n, pkgerrors.Wrapf(err, "embed corpus entry %q", e.ID)
		}
		rec := vectorstore.Entry{
			ID:       e.ID,
			Vector:   vec,
			Document: e.Content,
			Metadata: map[string]string{
				"title":        e.Title,
				"routine_type": e.RoutineType,
				"description":  e.Description,
			},
		}
		if len(e.Tags) > 0 {
			rec.Metadata["tags"] = strings.Join(e.Tags, ",")
		}
		if err := ix.Store.Add(ctx, []vectorstore.Entry{rec}); err != nil {
			return n, pkgerrors.Wrapf(err, "index corpus entry %q", e.ID)
		}
		ix.Log.Debug().Str("id", e.ID).Str("routine_type", e.RoutineType).Msg("corpus entry indexed")
	}
	return len(entries), nil
}

type resettable interface {
	Reset(ctx context.Context) error
}

// Reset drops every indexed entry. Only stores that support resetting
// qualify; the rest report invalid input so the CLI can say why.
func (ix *Indexer) Reset(ctx context.Context) error {
	r, ok := ix.Store.(resettable)
	if !ok {
		return pkgerrors.Wrap(apperr.ErrInvalidInput, "vector store does not support reset")
	}
	if err := r.Reset(ctx); err != nil {
		return pkgerrors.Wrap(err, "reset vector store")
	}
	ix.Log.Info().Msg("vector store reset")
	return nil
}
