// Package history keeps the linear undo stack of scene snapshots and the
// live overlay used while a pointer interaction is in progress.
package history

import (
	"github.com/inamate/imageboard/internal/document"
)

// DefaultLimit bounds the number of committed entries kept.
const DefaultLimit = 200

// Store is a cursor into an ordered list of committed scenes, plus an
// optional uncommitted working copy. The zero value is not usable; call New.
type Store struct {
	entries []document.Scene
	cursor  int
	saved   int
	limit   int

	live       *document.Scene
	onNavigate func()
}

// New returns a store whose only entry is initial. The initial entry counts
// as saved.
func New(initial document.Scene, limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		entries: []document.Scene{initial.Clone()},
		limit:   limit,
	}
}

// OnNavigate registers a callback run after every undo or redo. The engine
// uses it to clear the selection.
func (s *Store) OnNavigate(fn func()) { s.onNavigate = fn }

// Current returns the committed entry at the cursor.
func (s *Store) Current() document.Scene { return s.entries[s.cursor] }

// Working returns the live overlay when one is active, else the committed
// entry. Readers during a drag must always go through Working.
func (s *Store) Working() document.Scene {
	if s.live != nil {
		return *s.live
	}
	return s.entries[s.cursor]
}

func (s *Store) Cursor() int { return s.cursor }
func (s *Store) Len() int    { return len(s.entries) }
func (s *Store) Live() bool  { return s.live != nil }

// Push truncates any redo entries, appends scene and moves the cursor onto
// it. The live overlay is cleared.
func (s *Store) Push(scene document.Scene) {
	s.live = nil
	if s.saved > s.cursor {
		s.saved = -1
	}
	s.entries = append(s.entries[:s.cursor+1:s.cursor+1], scene)
	s.cursor = len(s.entries) - 1
	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]document.Scene(nil), s.entries[over:]...)
		s.cursor -= over
		s.saved -= over
		if s.saved < 0 {
			s.saved = -1
		}
	}
}

// PushIfChanged pushes scene unless it equals the current entry. It reports
// whether a new entry was created.
func (s *Store) PushIfChanged(scene document.Scene) bool {
	if scene.Equal(s.Current()) {
		s.live = nil
		return false
	}
	s.Push(scene)
	return true
}

// BeginLive starts a live overlay from the current entry.
func (s *Store) BeginLive() {
	cp := s.entries[s.cursor].Clone()
	s.live = &cp
}

// SetLive replaces the overlay. It starts one if none is active.
func (s *Store) SetLive(scene document.Scene) {
	s.live = &scene
}

// CommitLive promotes the overlay to a new entry. An overlay equal to the
// current entry is discarded and false is returned, so zero-delta drags
// never create an undo step.
func (s *Store) CommitLive() bool {
	if s.live == nil {
		return false
	}
	live := *s.live
	return s.PushIfChanged(live)
}

// DiscardLive drops the overlay without touching history.
func (s *Store) DiscardLive() { s.live = nil }

func (s *Store) CanUndo() bool { return s.cursor > 0 }
func (s *Store) CanRedo() bool { return s.cursor < len(s.entries)-1 }

// Undo steps the cursor back. Any overlay is dropped.
func (s *Store) Undo() bool {
	s.live = nil
	if !s.CanUndo() {
		return false
	}
	s.cursor--
	s.navigated()
	return true
}

// Redo steps the cursor forward. Any overlay is dropped.
func (s *Store) Redo() bool {
	s.live = nil
	if !s.CanRedo() {
		return false
	}
	s.cursor++
	s.navigated()
	return true
}

func (s *Store) navigated() {
	if s.onNavigate != nil {
		s.onNavigate()
	}
}

// ReplaceCurrent rewrites the entry at the cursor in place. It is for state
// that belongs in the snapshot but must not create an undo step, such as a
// layer's expanded flag.
func (s *Store) ReplaceCurrent(scene document.Scene) {
	s.entries[s.cursor] = scene
	if s.live != nil {
		cp := scene.Clone()
		s.live = &cp
	}
}

// MarkSaved records the cursor as the saved position.
func (s *Store) MarkSaved() { s.saved = s.cursor }

// IsDirty reports whether the cursor moved away from the saved position.
func (s *Store) IsDirty() bool { return s.cursor != s.saved }

// Reset replaces the whole history with a single saved entry.
func (s *Store) Reset(scene document.Scene) {
	s.entries = []document.Scene{scene.Clone()}
	s.cursor = 0
	s.saved = 0
	s.live = nil
}
