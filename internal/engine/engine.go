// Package engine is the editor core driven by the browser shell: it owns the
// history, selection, view, tools and the active pointer interaction, and
// exposes them as plain method calls.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/history"
	"github.com/inamate/imageboard/internal/project"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/render"
	"github.com/inamate/imageboard/internal/typeid"
)

var (
	ErrNothingToCrop = errors.New("no image in crop area")
	ErrNotCropped    = errors.New("image has no archived original")
	ErrNoCropArea    = errors.New("no crop area")
)

// PixelSampler reads the colour under a world point. Alpha zero means
// nothing was sampled.
type PixelSampler interface {
	SampleAt(world geom.Point) (r, g, b, a uint8)
}

type keyState struct {
	space bool
	crop  bool
}

// Engine is not safe for concurrent use; exactly one goroutine drives it.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	hist    *history.Store
	archive map[string]document.Image

	rasters  *raster.Store
	decoder  *raster.Decoder
	fonts    *raster.FontMeasurer
	measurer document.TextMeasurer
	sampler  PixelSampler

	sel        Selection
	view       geom.View
	tool       Tool
	style      Style
	crop       *geom.Rect
	cropAspect float64
	keys       keyState

	active  interaction
	draft   *render.Draft
	marquee *geom.Rect
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRasterStore shares a raster store, e.g. with an export service.
func WithRasterStore(s *raster.Store) Option {
	return func(e *Engine) { e.rasters = s }
}

// WithMeasurer replaces the font-backed text measurer.
func WithMeasurer(m document.TextMeasurer) Option {
	return func(e *Engine) { e.measurer = m }
}

func WithSampler(s PixelSampler) Option {
	return func(e *Engine) { e.sampler = s }
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		logger:  slog.Default(),
		archive: make(map[string]document.Image),
		view:    geom.DefaultView,
		tool:    ToolSelect,
		style:   cfg.Style,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rasters == nil {
		e.rasters = raster.NewStore()
	}
	e.decoder = raster.NewDecoder(e.rasters)
	if e.measurer == nil {
		fonts, err := raster.NewFontMeasurer()
		if err != nil {
			e.logger.Warn("font measurer unavailable, using approximate metrics", "error", err)
			e.measurer = document.ApproxMeasurer{}
		} else {
			e.fonts = fonts
			e.measurer = fonts
		}
	}
	if e.sampler == nil {
		e.sampler = sceneSampler{e}
	}
	e.hist = history.New(document.Scene{}, cfg.HistoryLimit)
	e.hist.OnNavigate(e.sel.Clear)
	return e
}

// Scene returns the scene as currently displayed, including any live edit.
func (e *Engine) Scene() document.Scene { return e.hist.Working() }

func (e *Engine) Selection() Selection { return e.sel.clone() }
func (e *Engine) View() geom.View      { return e.view }
func (e *Engine) Tool() Tool           { return e.tool }
func (e *Engine) Style() Style         { return e.style }
func (e *Engine) Config() Config       { return e.cfg }
func (e *Engine) Rasters() *raster.Store {
	return e.rasters
}

// Crop returns the crop box in world space, or nil.
func (e *Engine) Crop() *geom.Rect {
	if e.crop == nil {
		return nil
	}
	r := *e.crop
	return &r
}

// Interacting reports whether a pointer interaction is in progress.
func (e *Engine) Interacting() bool { return e.active != nil }

func (e *Engine) HistoryCursor() int { return e.hist.Cursor() }
func (e *Engine) CanUndo() bool      { return e.hist.CanUndo() }
func (e *Engine) CanRedo() bool      { return e.hist.CanRedo() }
func (e *Engine) IsDirty() bool      { return e.hist.IsDirty() }

// SetTool switches tools. Unknown tools are rejected.
func (e *Engine) SetTool(t Tool) error {
	if !t.Valid() {
		return fmt.Errorf("unknown tool %q", t)
	}
	e.tool = t
	return nil
}

// SetStyle replaces the drawing style. Stroke colour, width and fill are also
// applied to the selected annotations as one history step.
func (e *Engine) SetStyle(st Style) {
	e.style = st
	refs := e.liveAnnotationSelection()
	if len(refs) == 0 {
		return
	}
	scene := e.hist.Current()
	for _, ref := range refs {
		parent, _ := scene.ParentFrame(ref.ParentImageID)
		next, err := document.UpdateAnnotation(scene, ref, func(a document.Annotation) document.Annotation {
			a.Color = st.Color
			a.StrokeWidth = st.StrokeWidth / positive(parent.Scale) / positive(a.Scale)
			switch sh := a.Shape.(type) {
			case document.RectShape:
				sh.FillColor, sh.FillOpacity = st.FillColor, st.FillOpacity
				a.Shape = sh
			case document.CircleShape:
				sh.FillColor, sh.FillOpacity = st.FillColor, st.FillOpacity
				a.Shape = sh
			case document.TextShape:
				sh.FontFamily, sh.FontSize = st.FontFamily, st.FontSize
				a.Shape = sh
			}
			return a
		})
		if err == nil {
			scene = next
		}
	}
	e.hist.PushIfChanged(scene)
}

func (e *Engine) SetCropAspect(ratio float64) {
	if ratio < 0 {
		ratio = 0
	}
	e.cropAspect = ratio
}

// SetCrop installs or clears the crop box.
func (e *Engine) SetCrop(r *geom.Rect) {
	if r == nil {
		e.crop = nil
		return
	}
	n := r.Normalize()
	e.crop = &n
}

func (e *Engine) Undo() bool {
	e.cancelInteraction()
	return e.hist.Undo()
}

func (e *Engine) Redo() bool {
	e.cancelInteraction()
	return e.hist.Redo()
}

// DeleteSelection removes the selected images and annotations in one step.
func (e *Engine) DeleteSelection() bool {
	scene := e.hist.Current()
	refs := scene.ValidRefs(e.sel.Annotations)
	next := document.RemoveAnnotations(scene, refs)
	next = document.RemoveImages(next, e.sel.Images)
	e.sel.Clear()
	return e.hist.PushIfChanged(next)
}

// SetAnnotationText replaces the text of a text annotation.
func (e *Engine) SetAnnotationText(ref document.AnnotationRef, text string) error {
	next, err := document.UpdateAnnotation(e.hist.Current(), ref, func(a document.Annotation) document.Annotation {
		if t, ok := a.Shape.(document.TextShape); ok {
			t.Text = text
			a.Shape = t
		}
		return a
	})
	if err != nil {
		return err
	}
	e.hist.PushIfChanged(next)
	return nil
}

// SetImageOutline styles the outline of the selected images.
func (e *Engine) SetImageOutline(color string, width, opacity float64) bool {
	scene := e.hist.Current()
	for _, id := range e.sel.Images {
		next, err := document.UpdateImage(scene, id, func(img *document.Image) {
			img.OutlineColor, img.OutlineWidth, img.OutlineOpacity = color, width, opacity
		})
		if err == nil {
			scene = next
		}
	}
	return e.hist.PushIfChanged(scene)
}

// ZoomAt zooms about a screen point.
func (e *Engine) ZoomAt(screenX, screenY, factor float64) {
	if factor <= 0 {
		return
	}
	e.view = e.view.ZoomAt(geom.Pt(screenX, screenY), factor)
}

func (e *Engine) SetView(v geom.View) {
	if v.Scale <= 0 {
		v.Scale = 1
	}
	e.view = v
}

// Group wraps the selected images in a new group and returns its id.
func (e *Engine) Group(label string) (string, error) {
	id := typeid.NewGroupID()
	next, err := document.CreateGroup(e.hist.Current(), id, label, e.sel.Images)
	if err != nil {
		return "", err
	}
	e.hist.Push(next)
	return id, nil
}

func (e *Engine) Ungroup(groupID string) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.DeleteGroup(s, groupID)
	})
}

// SetGroupParent nests a group. A move that would create a cycle is
// rejected and leaves history untouched.
func (e *Engine) SetGroupParent(groupID, parentID string) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.SetGroupParent(s, groupID, parentID)
	})
}

func (e *Engine) MoveImageToGroup(imageID, groupID string) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.MoveImageToGroup(s, imageID, groupID)
	})
}

func (e *Engine) RenameGroup(groupID, label string) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.RenameGroup(s, groupID, label)
	})
}

func (e *Engine) SetGroupShowLabel(groupID string, show bool) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.SetGroupShowLabel(s, groupID, show)
	})
}

// SetGroupExpanded only changes the layer list, so it is not an undo step.
func (e *Engine) SetGroupExpanded(groupID string, expanded bool) error {
	next, err := document.SetGroupExpanded(e.hist.Current(), groupID, expanded)
	if err != nil {
		return err
	}
	e.hist.ReplaceCurrent(next)
	return nil
}

func (e *Engine) Arrange(ref document.LayerRef, op document.ArrangeOp) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.ArrangeLayer(s, ref, op)
	})
}

func (e *Engine) ReorderLayer(ref document.LayerRef, toIndex int) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.ReorderLayer(s, ref, toIndex)
	})
}

func (e *Engine) ReorderAnnotation(ref document.AnnotationRef, toIndex int) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.ReorderAnnotation(s, ref, toIndex)
	})
}

func (e *Engine) Align(edge document.AlignEdge) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.Align(s, e.sel.Images, edge)
	})
}

func (e *Engine) Stack(dir document.StackDirection) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.Stack(s, e.sel.Images, dir, e.cfg.StackGap)
	})
}

func (e *Engine) MatchSize(dim document.SizeDimension) error {
	return e.apply(func(s document.Scene) (document.Scene, error) {
		return document.MatchSize(s, e.sel.Images, dim)
	})
}

// apply runs a pure scene operation against the committed scene and pushes
// the result unless it is unchanged.
func (e *Engine) apply(op func(document.Scene) (document.Scene, error)) error {
	next, err := op(e.hist.Current())
	if err != nil {
		return err
	}
	e.hist.PushIfChanged(next)
	e.sel.Prune(next)
	return nil
}

func (e *Engine) Layers() []document.LayerEntry {
	return document.Layers(e.hist.Working())
}

// Overlay returns the transient state drawn over the scene.
func (e *Engine) Overlay() render.Overlay {
	scene := e.hist.Working()
	ov := render.Overlay{
		SelectedImages:      e.sel.Images,
		SelectedAnnotations: scene.ValidRefs(e.sel.Annotations),
		Draft:               e.draft,
		Marquee:             e.marquee,
		Crop:                e.crop,
	}
	if ref, ok := e.singleSelectedAnnotation(); ok {
		ov.Handles = &ref
	}
	return ov
}

// Render draws the current scene and overlays on b.
func (e *Engine) Render(b render.Backend) {
	render.Render(b, e.hist.Working(), e.view, e.Overlay(), render.Options{Handles: e.cfg.Handles})
}

// RenderJSON renders into a draw-command list for the browser canvas.
func (e *Engine) RenderJSON() (string, error) {
	rec := render.NewRecorder(e.measurer)
	e.Render(rec)
	return rec.JSON()
}

// RasterDataURL returns a stored raster as a PNG data URL.
func (e *Engine) RasterDataURL(handle string) (string, error) {
	return e.rasters.DataURL(handle)
}

// SaveProject serializes the committed state and marks it saved.
func (e *Engine) SaveProject() ([]byte, error) {
	scene := e.hist.Current()
	data, err := project.Encode(project.State{
		Scene:   scene,
		Archive: e.reachableArchive(scene),
		View:    e.view,
		Crop:    e.crop,
	}, e.rasters)
	if err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	e.hist.MarkSaved()
	return data, nil
}

// LoadProject replaces the whole editor state. On error nothing changes.
func (e *Engine) LoadProject(data []byte) error {
	st, err := project.Decode(data, e.decoder)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	e.cancelInteraction()
	e.hist.Reset(st.Scene)
	e.archive = st.Archive
	if e.archive == nil {
		e.archive = make(map[string]document.Image)
	}
	e.SetView(st.View)
	e.SetCrop(st.Crop)
	e.sel.Clear()
	e.logger.Info("project loaded", "images", len(st.Scene.Images), "archived", len(e.archive))
	return nil
}

// reachableArchive returns the archived originals still reachable from the
// scene through uncrop chains.
func (e *Engine) reachableArchive(scene document.Scene) map[string]document.Image {
	out := make(map[string]document.Image)
	for _, img := range scene.Images {
		id := img.UncroppedFromID
		for id != "" {
			if _, seen := out[id]; seen {
				break
			}
			orig, ok := e.archive[id]
			if !ok {
				break
			}
			out[id] = orig
			id = orig.UncroppedFromID
		}
	}
	return out
}

func (e *Engine) viewScale() float64 {
	if e.view.Scale <= 0 {
		return 1
	}
	return e.view.Scale
}

func (e *Engine) hitOptions() HitOptions {
	opts := HitOptions{
		ViewScale: e.viewScale(),
		Crop:      e.crop,
		Handles:   e.cfg.Handles,
		Measurer:  e.measurer,
	}
	if ref, ok := e.singleSelectedAnnotation(); ok {
		opts.Selected = &ref
	}
	return opts
}

// singleSelectedAnnotation prunes stale refs lazily.
func (e *Engine) singleSelectedAnnotation() (document.AnnotationRef, bool) {
	refs := e.liveAnnotationSelection()
	if len(refs) == 1 && len(e.sel.Images) == 0 {
		return refs[0], true
	}
	return document.AnnotationRef{}, false
}

func (e *Engine) liveAnnotationSelection() []document.AnnotationRef {
	return e.hist.Working().ValidRefs(e.sel.Annotations)
}

func (e *Engine) cancelInteraction() {
	if e.active != nil {
		e.hist.DiscardLive()
	}
	e.active = nil
	e.draft = nil
	e.marquee = nil
}
