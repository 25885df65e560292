package artifact

import (
	"context"
	stderrors "errors"
	"testing"

	apperr "laddergen/internal/errors"
	"laddergen/internal/tester"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.Put(ctx, DocumentKey("p1"), []byte("<RSLogix5000Content/>"), "application/xml")
	tester.NoErr(t, err)

	data, ct, err := m.Get(ctx, "projects/p1/document.l5x")
	tester.NoErr(t, err)
	tester.Eq(t, string(data), "<RSLogix5000Content/>")
	tester.Eq(t, ct, "application/xml")
}

func TestMemoryGetMissingKey(t *testing.T) {
	m := NewMemory()

	_, _, err := m.Get(context.Background(), "runs/absent/report.json")
	tester.Err(t, err)
	tester.True(t, stderrors.Is(err, apperr.ErrNotFound), "got %v", err)
	tester.Contains(t, err.Error(), "runs/absent/report.json")
}

func TestMemoryPutOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	tester.NoErr(t, m.Put(ctx, "k", []byte("one"), "text/plain"))
	tester.NoErr(t, m.Put(ctx, "k", []byte("two"), "application/json"))

	data, ct, err := m.Get(ctx, "k")
	tester.NoErr(t, err)
	tester.Eq(t, string(data), "two")
	tester.Eq(t, ct, "application/json")
}

func TestMemoryPutRejectsEmptyKey(t *testing.T) {
	err := NewMemory().Put(context.Background(), "  ", []byte("x"), "")
	tester.Err(t, err)
	tester.True(t, stderrors.Is(err, apperr.ErrInvalidInput), "got %v", err)
}

func TestMemoryListFiltersByPrefix(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tester.NoErr(t, m.Put(ctx, ReportKey("r2"), []byte("{}"), "application/json"))
	tester.NoErr(t, m.Put(ctx, ReportKey("r1"), []byte("{}"), "application/json"))
	tester.NoErr(t, m.Put(ctx, UploadKey("p1"), []byte("{}"), "application/json"))

	keys, err := m.List(ctx, "runs/")
	tester.NoErr(t, err)
	tester.Eq(t, len(keys), 2)
	tester.Eq(t, keys[0], "runs/r1/report.json")
	tester.Eq(t, keys[1], "runs/r2/report.json")

	all, err := m.List(ctx, "")
	tester.NoErr(t, err)
	tester.Eq(t, len(all), 3)
}

func TestMemoryGetURLUnsupported(t *testing.T) {
	url, err := NewMemory().GetURL(context.Background(), "k")
	tester.NoErr(t, err)
	tester.Eq(t, url, "")
}

func TestMemoryGetCopiesData(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	tester.NoErr(t, m.Put(ctx, "k", []byte("abc"), ""))

	data, _, err := m.Get(ctx, "k")
	tester.NoErr(t, err)
	data[0] = 'z'

	again, _, err := m.Get(ctx, "k")
	tester.NoErr(t, err)
	tester.Eq(t, string(again), "abc")
}

func TestKeyLayout(t *testing.T) {
	tester.Eq(t, UploadKey("p1"), "projects/p1/upload.json")
	tester.Eq(t, DocumentKey("p1"), "projects/p1/document.l5x")
	tester.Eq(t, ReportKey("r1"), "runs/r1/report.json")
	tester.Eq(t, RunKey("r1"), "runs/r1/run.json")
}
