package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

func sceneWith(ids ...string) document.Scene {
	var s document.Scene
	for _, id := range ids {
		s.Images = append(s.Images, document.Image{ID: id, Width: 10, Height: 10, Scale: 1})
	}
	return s
}

func TestCommitLiveSuppressesNoOp(t *testing.T) {
	t.Parallel()

	st := New(sceneWith("a"), 0)
	st.BeginLive()
	st.SetLive(document.TranslateImages(st.Working(), []string{"a"}, geom.Pt(0, 0)))
	assert.False(t, st.CommitLive())
	assert.Equal(t, 0, st.Cursor())
	assert.Equal(t, 1, st.Len())
	assert.False(t, st.Live())
	assert.False(t, st.IsDirty())
}

func TestCommitLivePushes(t *testing.T) {
	t.Parallel()

	st := New(sceneWith("a"), 0)
	st.BeginLive()
	for i := 0; i < 5; i++ {
		st.SetLive(document.TranslateImages(st.Working(), []string{"a"}, geom.Pt(1, 2)))
	}
	assert.Equal(t, 1, st.Len(), "live edits must not grow history")
	require.True(t, st.CommitLive())
	assert.Equal(t, 1, st.Cursor())
	img, _ := st.Current().Image("a")
	assert.InDelta(t, 5, img.X, 1e-9)
	assert.InDelta(t, 10, img.Y, 1e-9)
	assert.True(t, st.IsDirty())
}

func TestUndoRedoSymmetry(t *testing.T) {
	t.Parallel()

	st := New(document.Scene{}, 0)
	const n = 12
	for i := 0; i < n; i++ {
		next := document.AddImages(st.Current(), document.Image{ID: fmt.Sprintf("img%d", i), Scale: 1})
		st.Push(next)
	}
	final := st.Current().Clone()

	for i := 0; i < n; i++ {
		require.True(t, st.Undo())
	}
	assert.False(t, st.Undo())
	assert.Empty(t, st.Current().Images)

	for i := 0; i < n; i++ {
		require.True(t, st.Redo())
	}
	assert.False(t, st.Redo())
	assert.True(t, final.Equal(st.Current()))
}

func TestPushTruncatesRedo(t *testing.T) {
	t.Parallel()

	st := New(sceneWith(), 0)
	st.Push(sceneWith("a"))
	st.Push(sceneWith("a", "b"))
	st.Undo()
	st.Push(sceneWith("a", "c"))
	assert.False(t, st.CanRedo())
	assert.Equal(t, 3, st.Len())
	assert.True(t, sceneWith("a", "c").Equal(st.Current()))
}

func TestUndoRunsNavigateHook(t *testing.T) {
	t.Parallel()

	calls := 0
	st := New(sceneWith(), 0)
	st.OnNavigate(func() { calls++ })
	st.Push(sceneWith("a"))
	st.BeginLive()
	st.Undo()
	st.Redo()
	assert.Equal(t, 2, calls)
	assert.False(t, st.Live())
}

func TestSavedAndDirty(t *testing.T) {
	t.Parallel()

	st := New(sceneWith(), 0)
	assert.False(t, st.IsDirty())
	st.Push(sceneWith("a"))
	st.MarkSaved()
	assert.False(t, st.IsDirty())
	st.Undo()
	assert.True(t, st.IsDirty())
	st.Redo()
	assert.False(t, st.IsDirty())

	// Branching away from the saved entry makes it unreachable.
	st.Undo()
	st.Push(sceneWith("b"))
	assert.True(t, st.IsDirty())
}

func TestLimitEvictsOldest(t *testing.T) {
	t.Parallel()

	st := New(sceneWith(), 3)
	st.MarkSaved()
	for _, id := range []string{"a", "b", "c", "d"} {
		st.Push(sceneWith(id))
	}
	assert.Equal(t, 3, st.Len())
	assert.Equal(t, 2, st.Cursor())
	assert.True(t, st.IsDirty())

	require.True(t, st.Undo())
	require.True(t, st.Undo())
	assert.False(t, st.CanUndo())
	assert.True(t, sceneWith("b").Equal(st.Current()))
}

func TestReplaceCurrentIsNotHistoried(t *testing.T) {
	t.Parallel()

	st := New(sceneWith("a"), 0)
	st.ReplaceCurrent(sceneWith("a", "b"))
	assert.Equal(t, 1, st.Len())
	assert.False(t, st.CanUndo())
	assert.Len(t, st.Current().Images, 2)
}
