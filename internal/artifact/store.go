// Package artifact persists run inputs and outputs: uploaded sheets,
// generated documents, run reports. Keys are slash-separated paths so
// one store serves projects and runs side by side.
package artifact

import "context"

// Store is a keyed blob store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put upserts data under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the data and content type stored under key.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// GetURL returns a direct download URL. Backends without URL
	// support return "" and no error.
	GetURL(ctx context.Context, key string) (string, error)
	// List returns every key under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Key layout, kept in one place so handlers and reports agree.

func UploadKey(projectID string) string   { return "projects/" + projectID + "/upload.json" }
func DocumentKey(projectID string) string { return "projects/" + projectID + "/document.l5x" }
func ReportKey(runID string) string       { return "runs/" + runID + "/report.json" }
func RunKey(runID string) string          { return "runs/" + runID + "/run.json" }
