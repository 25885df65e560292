package safeio

import (
	"os"
	"path/filepath"
	"testing"

	"laddergen/internal/tester"
)

func newTestFS(t *testing.T) (*SafeFS, string) {
	t.Helper()
	root := t.TempDir()
	tester.NoErr(t, os.WriteFile(filepath.Join(root, "profile.yaml"), []byte("name: plant"), 0o644))
	tester.NoErr(t, os.Mkdir(filepath.Join(root, "corpus"), 0o755))
	tester.NoErr(t, os.WriteFile(filepath.Join(root, "corpus", "seed.yaml"), []byte("entries: []"), 0o644))

	fsys, err := NewSafeFS(root)
	tester.NoErr(t, err)
	return fsys, root
}

func TestSafeReadFile(t *testing.T) {
	fsys, _ := newTestFS(t)

	data, err := fsys.SafeReadFile("profile.yaml")
	tester.NoErr(t, err)
	tester.Eq(t, string(data), "name: plant")
}

func TestSafeReadDir(t *testing.T) {
	fsys, _ := newTestFS(t)

	entries, err := fsys.SafeReadDir("corpus")
	tester.NoErr(t, err)
	tester.Eq(t, len(entries), 1)
	tester.Eq(t, entries[0].Name(), "seed.yaml")
}

func TestTraversalRejected(t *testing.T) {
	fsys, _ := newTestFS(t)

	_, err := fsys.SafeReadFile("../outside.yaml")
	tester.Err(t, err)

	_, err = fsys.SafeReadFile(filepath.Join("..", "..", "etc", "passwd"))
	tester.Err(t, err)
}

func TestAbsolutePathOutsideRootRejected(t *testing.T) {
	fsys, _ := newTestFS(t)

	outside := filepath.Join(t.TempDir(), "other.yaml")
	tester.NoErr(t, os.WriteFile(outside, []byte("x"), 0o644))

	_, err := fsys.SafeReadFile(outside)
	tester.Err(t, err)
}

func TestReadDirOnFileFails(t *testing.T) {
	fsys, _ := newTestFS(t)

	_, err := fsys.SafeReadDir("profile.yaml")
	tester.Err(t, err)
}
