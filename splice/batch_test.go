package splice

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSourceStore struct {
	mu     sync.Mutex
	files  map[string]string
	stores int
}

func newMapSourceStore(files map[string]string) *mapSourceStore {
	return &mapSourceStore{files: files}
}

func (m *mapSourceStore) Load(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.files[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return text, nil
}

func (m *mapSourceStore) Store(path string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stores++
	m.files[path] = text
	return nil
}

func init() {
	color.NoColor = true // keep diff assertions free of escape codes
}

func TestRunnerPatchFile(t *testing.T) {
	t.Parallel()
	tools := loadTestTools(t)

	t.Run("writes_and_snapshots", func(t *testing.T) {
		source := newMapSourceStore(map[string]string{"tools.rs": tools})
		snapshots := NewSnapshotStore(NewMemStorage())
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source, Snapshots: snapshots}

		report, err := runner.PatchFile(context.Background(), "tools.rs")
		require.NoError(t, err)
		assert.Equal(t, "tools.rs", report.Path)
		assert.Equal(t, 1, source.stores)
		assert.Equal(t, report.After, FingerprintOf(source.files["tools.rs"]))

		snap, ok, err := snapshots.Load("tools.rs")
		require.NoError(t, err)
		require.True(t, ok)
		original, err := snap.OriginalText()
		require.NoError(t, err)
		assert.Equal(t, tools, original)
	})

	t.Run("second_run_no_write", func(t *testing.T) {
		source := newMapSourceStore(map[string]string{"tools.rs": tools})
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source}

		_, err := runner.PatchFile(context.Background(), "tools.rs")
		require.NoError(t, err)
		report, err := runner.PatchFile(context.Background(), "tools.rs")
		require.NoError(t, err)
		assert.False(t, report.Changed())
		assert.Equal(t, 1, source.stores)
	})

	t.Run("missing_anchor_not_written", func(t *testing.T) {
		text := strings.Replace(tools, "use std::sync::Arc;", "", 1)
		source := newMapSourceStore(map[string]string{"tools.rs": text})
		snapshots := NewSnapshotStore(NewMemStorage())
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source, Snapshots: snapshots}

		_, err := runner.PatchFile(context.Background(), "tools.rs")
		require.ErrorIs(t, err, ErrMarkerNotFound)
		assert.Zero(t, source.stores)
		assert.Equal(t, text, source.files["tools.rs"])
		paths, err := snapshots.Paths()
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("dry_run_diff", func(t *testing.T) {
		source := newMapSourceStore(map[string]string{"tools.rs": tools})
		var diff bytes.Buffer
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source, DryRun: true, Diff: &diff}

		report, err := runner.PatchFile(context.Background(), "tools.rs")
		require.NoError(t, err)
		assert.True(t, report.Changed())
		assert.Zero(t, source.stores)
		assert.Contains(t, diff.String(), "+++ b/tools.rs")
		assert.Contains(t, diff.String(), "-            Ok(text) => Ok(CallToolResult::success(vec![Content::text(text)])),")
		assert.Contains(t, diff.String(), "+fn success_log(")
	})

	t.Run("check_mode", func(t *testing.T) {
		source := newMapSourceStore(map[string]string{"tools.rs": tools})
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source, Check: true}

		_, err := runner.PatchFile(context.Background(), "tools.rs")
		require.ErrorIs(t, err, ErrWouldChange)
		assert.Zero(t, source.stores)
	})

	t.Run("canceled", func(t *testing.T) {
		source := newMapSourceStore(map[string]string{"tools.rs": tools})
		runner := &Runner{Patcher: newDefaultPatcher(t), Source: source}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := runner.PatchFile(ctx, "tools.rs")
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, source.stores)
	})
}

func TestRunnerPatchFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tools := loadTestTools(t)

	good := filepath.Join(dir, "good.rs")
	bad := filepath.Join(dir, "bad.rs")
	badText := strings.Replace(tools, "use std::sync::Arc;", "use std::rc::Rc;", 1)
	plain := filepath.Join(dir, "plain.rs")
	plainText := "use std::sync::Arc;\nfn main() {}\n"
	require.NoError(t, os.WriteFile(good, []byte(tools), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(badText), 0o644))
	require.NoError(t, os.WriteFile(plain, []byte(plainText), 0o644))
	missing := filepath.Join(dir, "missing.rs")

	var diff bytes.Buffer
	runner := &Runner{
		Patcher:   newDefaultPatcher(t),
		Source:    NewFileSourceStore(),
		Snapshots: NewSnapshotStore(NewMemStorage()),
		Diff:      &diff,
	}
	reports, err := runner.PatchFiles(context.Background(), []string{good, bad, plain, missing})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMarkerNotFound))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.Len(t, reports, 4)
	require.NotNil(t, reports[0])
	assert.Equal(t, 5, reports[0].RewriteCount())
	assert.Nil(t, reports[1])
	require.NotNil(t, reports[2])
	assert.True(t, reports[2].HelperInjected)
	assert.Nil(t, reports[3])

	data, err := os.ReadFile(bad)
	require.NoError(t, err)
	assert.Equal(t, badText, string(data))

	data, err = os.ReadFile(good)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fn success_log(")

	// diffs are emitted in path order
	goodIdx := strings.Index(diff.String(), "+++ b/"+good)
	plainIdx := strings.Index(diff.String(), "+++ b/"+plain)
	require.GreaterOrEqual(t, goodIdx, 0)
	require.GreaterOrEqual(t, plainIdx, 0)
	assert.Less(t, goodIdx, plainIdx)
}
