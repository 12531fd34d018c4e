package walker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mforrest/repoctx/internal/pattern"
	"github.com/mforrest/repoctx/internal/remote"
)

// fakeClient serves a canned tree and records which directories were
// listed, so tests can assert on pruning and laziness.
type fakeClient struct {
	tree   map[string][]remote.TreeEntry
	failOn map[string]error
	listed []string
}

func (f *fakeClient) ListTree(ctx context.Context, repo, ref, dir string) ([]remote.TreeEntry, error) {
	f.listed = append(f.listed, dir)
	if err, ok := f.failOn[dir]; ok {
		return nil, err
	}
	return f.tree[dir], nil
}

func (f *fakeClient) ReadFile(ctx context.Context, repo, ref, path string) (string, error) {
	return "", remote.ErrNotFound
}

func file(path string) remote.TreeEntry {
	return remote.TreeEntry{Path: path, Type: remote.EntryFile}
}

func dir(path string) remote.TreeEntry {
	return remote.TreeEntry{Path: path, Type: remote.EntryDir}
}

func collect(t *testing.T, results <-chan Result) (paths []string, errs []error) {
	t.Helper()
	for r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		paths = append(paths, r.Path)
	}
	return paths, errs
}

func TestWalkEmitsMatchingFilesDepthFirst(t *testing.T) {
	client := &fakeClient{tree: map[string][]remote.TreeEntry{
		"": {file("main.py"), dir("src"), file("README.md")},
		"src": {file("src/app.py"), dir("src/util")},
		"src/util": {file("src/util/io.py")},
	}}
	w := New(client, pattern.NewMatcher(nil, nil), zap.NewNop())

	paths, errs := collect(t, w.Walk(context.Background(), "acme/widgets", "main", ""))
	require.Empty(t, errs)
	assert.Equal(t, []string{"main.py", "src/app.py", "src/util/io.py"}, paths)
}

func TestWalkPrunesExcludedDirectoriesWithoutListing(t *testing.T) {
	client := &fakeClient{tree: map[string][]remote.TreeEntry{
		"":             {dir("node_modules"), dir("src")},
		"node_modules": {file("node_modules/lodash/index.js")},
		"src":          {file("src/app.ts")},
	}}
	w := New(client, pattern.NewMatcher(nil, nil), zap.NewNop())

	paths, errs := collect(t, w.Walk(context.Background(), "acme/widgets", "main", ""))
	require.Empty(t, errs)
	assert.Equal(t, []string{"src/app.ts"}, paths)
	assert.NotContains(t, client.listed, "node_modules")
}

func TestWalkSurfacesListingErrors(t *testing.T) {
	boom := errors.New("boom")
	client := &fakeClient{
		tree: map[string][]remote.TreeEntry{
			"":       {dir("broken"), dir("ok")},
			"ok":     {file("ok/good.go")},
		},
		failOn: map[string]error{"broken": boom},
	}
	w := New(client, pattern.NewMatcher(nil, nil), zap.NewNop())

	paths, errs := collect(t, w.Walk(context.Background(), "acme/widgets", "main", ""))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
	// A failed subtree does not stop the rest of the walk.
	assert.Equal(t, []string{"ok/good.go"}, paths)
}

func TestWalkStopsOnCancel(t *testing.T) {
	client := &fakeClient{tree: map[string][]remote.TreeEntry{
		"": {file("a.go"), file("b.go"), file("c.go")},
	}}
	w := New(client, pattern.NewMatcher(nil, nil), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	results := w.Walk(ctx, "acme/widgets", "main", "")

	r, ok := <-results
	require.True(t, ok)
	assert.Equal(t, "a.go", r.Path)
	cancel()

	// Channel closes without draining the remaining entries.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-results:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("walk did not stop after cancel")
		}
	}
}
