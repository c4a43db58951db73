package engine

import (
	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/render"
	"github.com/inamate/imageboard/internal/typeid"
)

type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
	Alt   bool `json:"alt"`
}

// toggle reports whether the modifiers ask for toggling membership.
func (m Modifiers) toggle() bool { return m.Shift || m.Ctrl || m.Meta }

// Pointer is a pointer event in screen (CSS pixel) coordinates.
type Pointer struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Modifiers Modifiers `json:"modifiers"`
}

func (p Pointer) screen() geom.Point { return geom.Pt(p.X, p.Y) }

// interaction is one captured pointer gesture. It receives every move until
// finish, after which the engine drops it.
type interaction interface {
	move(e *Engine, world geom.Point, p Pointer)
	finish(e *Engine, world geom.Point, p Pointer)
}

// PointerDown starts at most one interaction. The first matching rule wins:
// eyedropper, space pan, crop key, selected annotation handle, text tool,
// drawing tools, crop box, crop tool, annotation, image, marquee.
func (e *Engine) PointerDown(p Pointer) {
	if e.active != nil {
		e.logger.Debug("pointer down during active interaction ignored")
		return
	}
	world := e.view.ScreenToWorld(p.screen())
	scene := e.hist.Current()
	opts := e.hitOptions()

	if e.tool == ToolEyedropper {
		e.pickColor(world)
		return
	}
	if e.keys.space {
		e.active = &panInteraction{last: p.screen()}
		return
	}
	if e.keys.crop {
		if e.crop != nil && e.startCropEdit(world, opts) {
			return
		}
		e.startCropCreate(world)
		return
	}
	if h, ok := hitAnnotationHandle(scene, world, opts); ok {
		e.startHandleDrag(scene, h, world)
		return
	}
	if e.tool == ToolText {
		e.placeText(scene, world)
		return
	}
	if e.tool.drawing() {
		e.startAnnotating(scene, world)
		return
	}
	if e.crop != nil {
		if e.startCropEdit(world, opts) {
			return
		}
		e.crop = nil
	}
	if e.tool == ToolCrop {
		e.startCropCreate(world)
		return
	}
	if ref, ok := hitAnnotation(scene, world, opts); ok {
		e.startMoveAnnotation(ref, world, p.Modifiers)
		return
	}
	if id, ok := hitImage(scene, world); ok {
		e.startMoveImages(id, world, p.Modifiers)
		return
	}
	e.startMarquee(world, p.Modifiers)
}

func (e *Engine) PointerMove(p Pointer) {
	if e.active == nil {
		return
	}
	e.active.move(e, e.view.ScreenToWorld(p.screen()), p)
}

// PointerUp finalizes the active interaction. The active marker is cleared
// last, even if finish panics.
func (e *Engine) PointerUp(p Pointer) {
	if e.active == nil {
		return
	}
	defer func() { e.active = nil }()
	e.active.finish(e, e.view.ScreenToWorld(p.screen()), p)
}

// KeyDown handles a key press and reports whether it was consumed.
func (e *Engine) KeyDown(key string, mods Modifiers) bool {
	switch {
	case key == " ":
		e.keys.space = true
	case key == e.cfg.CropKey && !mods.Ctrl && !mods.Meta:
		e.keys.crop = true
	case key == "Escape":
		e.cancelInteraction()
		e.crop = nil
		e.sel.Clear()
	case key == "Delete" || key == "Backspace":
		if e.active != nil {
			return false
		}
		return e.DeleteSelection()
	case key == "Enter":
		if e.crop == nil {
			return false
		}
		if _, err := e.ConfirmCrop(); err != nil {
			e.logger.Info("crop not applied", "error", err)
		}
	case (mods.Ctrl || mods.Meta) && (key == "z" || key == "Z"):
		if mods.Shift {
			return e.Redo()
		}
		return e.Undo()
	case (mods.Ctrl || mods.Meta) && key == "y":
		return e.Redo()
	default:
		return false
	}
	return true
}

func (e *Engine) KeyUp(key string) {
	switch key {
	case " ":
		e.keys.space = false
	case e.cfg.CropKey:
		e.keys.crop = false
	}
}

// pickColor samples the pixel under world and makes it the drawing colour.
func (e *Engine) pickColor(world geom.Point) {
	r, g, b, a := e.sampler.SampleAt(world)
	if a == 0 {
		return
	}
	hex := raster.FormatHex(colorRGBA(r, g, b))
	if hex == "" {
		return
	}
	e.style.Color = hex
	e.logger.Debug("colour picked", "color", hex)
}

// targetImage returns the topmost image under world, or "" for the canvas.
func targetImage(scene document.Scene, world geom.Point) (string, geom.Frame) {
	if id, ok := hitImage(scene, world); ok {
		img, _ := scene.Image(id)
		return id, img.Frame()
	}
	return "", geom.IdentityFrame
}

// newAnnotation returns an annotation in the current style whose stroke
// appears at the tool width regardless of the parent's scale.
func (e *Engine) newAnnotation(parent geom.Frame, shape document.Shape) document.Annotation {
	return document.Annotation{
		ID:          typeid.NewAnnotationID(),
		Color:       e.style.Color,
		StrokeWidth: e.style.StrokeWidth / positive(parent.Scale),
		Scale:       1,
		Shape:       shape,
	}
}

func (e *Engine) placeText(scene document.Scene, world geom.Point) {
	parentID, parent := targetImage(scene, world)
	local := parent.GlobalToLocal(world)
	a := e.newAnnotation(parent, document.TextShape{
		X:          local.X,
		Y:          local.Y,
		Text:       e.cfg.DefaultText,
		FontFamily: e.style.FontFamily,
		FontSize:   e.style.FontSize / positive(parent.Scale),
	})
	next, err := document.AddAnnotation(scene, parentID, a)
	if err != nil {
		e.logger.Warn("place text", "error", err)
		return
	}
	e.hist.Push(next)
	e.sel.SelectAnnotation(document.AnnotationRef{ParentImageID: parentID, AnnotationID: a.ID})
	e.tool = ToolSelect
}

func (e *Engine) startAnnotating(scene document.Scene, world geom.Point) {
	parentID, parent := targetImage(scene, world)
	local := parent.GlobalToLocal(world)
	var shape document.Shape
	switch e.tool {
	case ToolFreehand:
		shape = document.FreehandShape{Points: []geom.Point{local}}
	case ToolRect:
		shape = document.RectShape{X: local.X, Y: local.Y, FillColor: e.style.FillColor, FillOpacity: e.style.FillOpacity}
	case ToolCircle:
		shape = document.CircleShape{CX: local.X, CY: local.Y, FillColor: e.style.FillColor, FillOpacity: e.style.FillOpacity}
	case ToolLine:
		shape = document.LineShape{Start: local, End: local}
	case ToolArrow:
		shape = document.ArrowShape{Start: local, End: local}
	default:
		return
	}
	a := e.newAnnotation(parent, shape)
	e.draft = &render.Draft{ParentImageID: parentID, Annotation: a}
	e.active = &annotatingInteraction{parentID: parentID, parent: parent, origin: local}
}

func (e *Engine) startHandleDrag(scene document.Scene, h Hit, world geom.Point) {
	a, _ := scene.Annotation(h.Annotation)
	parent, _ := scene.ParentFrame(h.Annotation.ParentImageID)
	e.hist.BeginLive()
	switch h.Handle {
	case HandleStart, HandleEnd:
		e.active = &endpointInteraction{ref: h.Annotation, end: h.Handle == HandleEnd, parent: parent}
	case HandleScale:
		center := parent.LocalToGlobal(document.PrimitiveBounds(a, e.measurer).Center())
		e.active = &scaleInteraction{
			ref:      h.Annotation,
			center:   center,
			initial:  world.Dist(center),
			original: positive(a.Scale),
		}
	case HandleRotate:
		center := parent.LocalToGlobal(document.PrimitiveBounds(a, e.measurer).Center())
		e.active = &rotateInteraction{
			ref:      h.Annotation,
			center:   center,
			start:    geom.AngleDeg(center, world),
			original: a.Rotation,
		}
	default:
		e.hist.DiscardLive()
	}
}

func (e *Engine) startMoveAnnotation(ref document.AnnotationRef, world geom.Point, mods Modifiers) {
	switch {
	case mods.toggle():
		e.sel.ToggleAnnotation(ref)
		if !e.sel.HasAnnotation(ref) {
			return
		}
	case !e.sel.HasAnnotation(ref):
		e.sel.SelectAnnotation(ref)
	}
	refs := e.liveAnnotationSelection()
	if len(refs) == 0 {
		return
	}
	e.hist.BeginLive()
	e.active = &moveAnnotationInteraction{start: world, refs: refs}
}

func (e *Engine) startMoveImages(id string, world geom.Point, mods Modifiers) {
	switch {
	case mods.toggle():
		e.sel.ToggleImage(id)
		if !e.sel.HasImage(id) {
			return
		}
	case !e.sel.HasImage(id):
		e.sel.SelectImages(id)
	}
	e.sel.Annotations = nil
	e.hist.BeginLive()
	e.active = &moveInteraction{start: world, ids: append([]string(nil), e.sel.Images...)}
}

func (e *Engine) startMarquee(world geom.Point, mods Modifiers) {
	additive := mods.toggle()
	if !additive {
		e.sel.Clear()
	}
	r := geom.Rect{X: world.X, Y: world.Y}
	e.marquee = &r
	e.active = &marqueeInteraction{start: world, additive: additive}
}

type panInteraction struct {
	last geom.Point
}

func (it *panInteraction) move(e *Engine, _ geom.Point, p Pointer) {
	d := p.screen().Sub(it.last)
	e.view = e.view.Pan(d.X, d.Y)
	it.last = p.screen()
}

func (it *panInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
}

type moveInteraction struct {
	start geom.Point
	ids   []string
}

func (it *moveInteraction) move(e *Engine, world geom.Point, _ Pointer) {
	e.hist.SetLive(document.TranslateImages(e.hist.Current(), it.ids, world.Sub(it.start)))
}

func (it *moveInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	e.hist.CommitLive()
}

type marqueeInteraction struct {
	start    geom.Point
	additive bool
}

func (it *marqueeInteraction) move(e *Engine, world geom.Point, _ Pointer) {
	r := geom.RectFromPoints(it.start, world)
	e.marquee = &r
}

// finish selects every image whose bounds touch the marquee, edges
// included.
func (it *marqueeInteraction) finish(e *Engine, world geom.Point, _ Pointer) {
	r := geom.RectFromPoints(it.start, world)
	e.marquee = nil
	if r.Width == 0 && r.Height == 0 {
		return
	}
	var hits []string
	for _, img := range e.hist.Current().Images {
		if document.ImageBounds(img).Intersects(r) {
			hits = append(hits, img.ID)
		}
	}
	if !it.additive {
		e.sel.SelectImages(hits...)
		return
	}
	e.sel.AddImages(hits...)
}

type annotatingInteraction struct {
	parentID string
	parent   geom.Frame
	origin   geom.Point
}

func (it *annotatingInteraction) move(e *Engine, world geom.Point, p Pointer) {
	if e.draft == nil {
		return
	}
	a := e.draft.Annotation
	local := it.parent.GlobalToLocal(world)
	switch s := a.Shape.(type) {
	case document.FreehandShape:
		if n := len(s.Points); n == 0 || !s.Points[n-1].Eq(local, 1e-9) {
			s.Points = append(s.Points, local)
		}
		a.Shape = s
	case document.RectShape:
		r := geom.RectFromPoints(it.origin, local)
		s.X, s.Y, s.Width, s.Height = r.X, r.Y, r.Width, r.Height
		a.Shape = s
	case document.CircleShape:
		s.Radius = it.origin.Dist(local)
		a.Shape = s
	case document.LineShape, document.ArrowShape:
		if p.Modifiers.Shift {
			start := it.parent.LocalToGlobal(it.origin)
			local = it.parent.GlobalToLocal(geom.SnapAngle(start, world, e.cfg.SegmentSnap))
		}
		a.Shape = document.WithEndpoints(a.Shape, it.origin, local)
	}
	e.draft = &render.Draft{ParentImageID: it.parentID, Annotation: a}
}

func (it *annotatingInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	draft := e.draft
	e.draft = nil
	if draft == nil || degenerate(draft.Annotation.Shape) {
		return
	}
	next, err := document.AddAnnotation(e.hist.Current(), it.parentID, draft.Annotation)
	if err != nil {
		e.logger.Warn("add annotation", "error", err, "image", it.parentID)
		return
	}
	e.hist.Push(next)
	e.sel.SelectAnnotation(document.AnnotationRef{ParentImageID: it.parentID, AnnotationID: draft.Annotation.ID})
	e.tool = ToolSelect
}

// degenerate reports shapes too small to keep.
func degenerate(s document.Shape) bool {
	switch s := s.(type) {
	case document.FreehandShape:
		return len(s.Points) < 2
	case document.RectShape:
		return s.Width == 0 || s.Height == 0
	case document.CircleShape:
		return s.Radius == 0
	case document.TextShape:
		return s.Text == ""
	case document.LineShape:
		return s.Start == s.End
	case document.ArrowShape:
		return s.Start == s.End
	}
	return true
}

type moveAnnotationInteraction struct {
	start geom.Point
	refs  []document.AnnotationRef
}

func (it *moveAnnotationInteraction) move(e *Engine, world geom.Point, _ Pointer) {
	e.hist.SetLive(document.TranslateAnnotations(e.hist.Current(), it.refs, world.Sub(it.start)))
}

// finish reparents the moved annotations when released over an image other
// than their owner. Released over empty space, they keep their owners.
func (it *moveAnnotationInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	if world.Eq(it.start, 0) {
		e.hist.CommitLive()
		return
	}
	scene := e.hist.Working()
	target, _ := targetImage(scene, world)
	if target == "" {
		e.hist.CommitLive()
		return
	}
	refs := make([]document.AnnotationRef, 0, len(it.refs))
	for _, ref := range it.refs {
		if ref.ParentImageID == target {
			refs = append(refs, ref)
			continue
		}
		next, moved, err := document.ReparentAnnotationToImage(scene, ref, target, e.measurer)
		if err != nil {
			e.logger.Warn("reparent annotation", "error", err, "annotation", ref.AnnotationID)
			refs = append(refs, ref)
			continue
		}
		scene = next
		refs = append(refs, moved)
	}
	e.hist.SetLive(scene)
	e.hist.CommitLive()
	e.sel.Images = nil
	e.sel.Annotations = refs
}

type scaleInteraction struct {
	ref      document.AnnotationRef
	center   geom.Point
	initial  float64
	original float64
}

func (it *scaleInteraction) move(e *Engine, world geom.Point, _ Pointer) {
	factor := 1.0
	if it.initial > 1e-6 {
		factor = world.Dist(it.center) / it.initial
	}
	scale := max(it.original*factor, e.cfg.MinAnnotationScale)
	next, err := document.UpdateAnnotation(e.hist.Current(), it.ref, func(a document.Annotation) document.Annotation {
		a.Scale = scale
		return a
	})
	if err == nil {
		e.hist.SetLive(next)
	}
}

func (it *scaleInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	e.hist.CommitLive()
}

type rotateInteraction struct {
	ref      document.AnnotationRef
	center   geom.Point
	start    float64
	original float64
}

func (it *rotateInteraction) move(e *Engine, world geom.Point, p Pointer) {
	if world.Dist(it.center) < 1e-6 {
		return
	}
	rot := it.original + geom.AngleDeg(it.center, world) - it.start
	if p.Modifiers.Shift {
		rot = geom.SnapDegrees(rot, e.cfg.RotateSnap)
	}
	next, err := document.UpdateAnnotation(e.hist.Current(), it.ref, func(a document.Annotation) document.Annotation {
		a.Rotation = rot
		return a
	})
	if err == nil {
		e.hist.SetLive(next)
	}
}

func (it *rotateInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	e.hist.CommitLive()
}

// endpointInteraction drags one end of a line or arrow.
type endpointInteraction struct {
	ref    document.AnnotationRef
	end    bool
	parent geom.Frame
}

func (it *endpointInteraction) move(e *Engine, world geom.Point, p Pointer) {
	next, err := document.UpdateAnnotation(e.hist.Current(), it.ref, func(a document.Annotation) document.Annotation {
		start, end, ok := document.Endpoints(a.Shape)
		if !ok {
			return a
		}
		fixed := start
		if !it.end {
			fixed = end
		}
		target := world
		if p.Modifiers.Shift {
			target = geom.SnapAngle(it.parent.LocalToGlobal(fixed), world, e.cfg.SegmentSnap)
		}
		local := it.parent.GlobalToLocal(target)
		if it.end {
			a.Shape = document.WithEndpoints(a.Shape, start, local)
		} else {
			a.Shape = document.WithEndpoints(a.Shape, local, end)
		}
		return a
	})
	if err == nil {
		e.hist.SetLive(next)
	}
}

func (it *endpointInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	e.hist.CommitLive()
}
