package render

import (
	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

const (
	selectionColor = "#3b82f6"
	groupColor     = "#8b5cf6"
	cropColor      = "#f59e0b"
	handleFill     = "#ffffff"
)

// Draft is a shape being drawn, not yet part of the scene.
type Draft struct {
	ParentImageID string              `json:"parentImageId,omitempty"`
	Annotation    document.Annotation `json:"annotation"`
}

// Overlay is the transient interaction state drawn over the scene.
type Overlay struct {
	SelectedImages      []string
	SelectedAnnotations []document.AnnotationRef
	// Handles is set when exactly one annotation is selected.
	Handles *document.AnnotationRef
	Draft   *Draft
	Marquee *geom.Rect
	Crop    *geom.Rect
}

type Options struct {
	Handles HandleMetrics
}

func DefaultOptions() Options {
	return Options{Handles: DefaultHandleMetrics}
}

// Render draws the scene and overlays in painter's order: images with their
// annotations, canvas annotations, group frames, selection outlines,
// annotation handles, the draft shape, the marquee, then the crop box.
func Render(b Backend, s document.Scene, view geom.View, ov Overlay, opts Options) {
	world := view.Matrix()
	px := 1 / viewScale(view)

	for _, img := range s.Images {
		RenderImage(b, img, world, true)
	}
	for _, a := range s.CanvasAnnotations {
		DrawAnnotation(b, world, a)
	}

	b.Save()
	defer b.Restore()
	b.SetTransform(world)

	for _, g := range s.Groups {
		if !g.ShowLabel {
			continue
		}
		if bounds := document.GroupBounds(s, g.ID); bounds != nil {
			drawGroupFrame(b, g, bounds.Inset(-4*px), px)
		}
	}

	outline := Stroke{Color: selectionColor, Width: 2 * px, Opacity: 1}
	for _, id := range ov.SelectedImages {
		if img, ok := s.Image(id); ok {
			c := ImageCorners(img)
			b.StrokePath(PolygonPath(c[:]...), outline)
		}
	}
	for _, ref := range s.ValidRefs(ov.SelectedAnnotations) {
		a, _ := s.Annotation(ref)
		if document.IsSegment(a.Shape) {
			continue
		}
		parent, _ := s.ParentFrame(ref.ParentImageID)
		c := AnnotationCorners(a, parent, b)
		b.StrokePath(PolygonPath(c[:]...), Stroke{Color: selectionColor, Width: px, Opacity: 1, Dash: []float64{4 * px, 3 * px}})
	}

	if ov.Handles != nil {
		if a, ok := s.Annotation(*ov.Handles); ok {
			parent, _ := s.ParentFrame(ov.Handles.ParentImageID)
			drawAnnotationHandles(b, HandlesFor(a, parent, viewScale(view), opts.Handles, b), px)
		}
	}

	if ov.Draft != nil {
		if parent, ok := s.ParentFrame(ov.Draft.ParentImageID); ok {
			DrawAnnotation(b, world.Multiply(parent.Matrix()), ov.Draft.Annotation)
		}
	}

	if ov.Marquee != nil {
		r := ov.Marquee.Normalize()
		b.FillPath(RectPath(r), Paint{Color: selectionColor, Opacity: 0.1})
		b.StrokePath(RectPath(r), Stroke{Color: selectionColor, Width: px, Opacity: 1, Dash: []float64{4 * px, 3 * px}})
	}

	if ov.Crop != nil {
		drawCropBox(b, ov.Crop.Normalize(), opts.Handles.CropHandle*px, px)
	}
}

// RenderImage draws one image with its outline and, optionally, its
// annotations. world maps world coordinates to device coordinates.
func RenderImage(b Backend, img document.Image, world geom.Matrix2D, withAnnotations bool) {
	b.Save()
	defer b.Restore()
	local := world.Multiply(img.Frame().Matrix())
	b.SetTransform(local)

	full := geom.Rect{Width: img.Width, Height: img.Height}
	if img.Raster != "" {
		b.DrawRaster(img.Raster, full, full, 1)
	}
	if img.OutlineWidth > 0 && img.OutlineColor != "" {
		b.StrokePath(RectPath(full), Stroke{Color: img.OutlineColor, Width: img.OutlineWidth, Opacity: img.OutlineOpacity})
	}
	if !withAnnotations {
		return
	}
	for _, a := range img.Annotations {
		DrawAnnotation(b, local, a)
	}
}

func drawGroupFrame(b Backend, g document.Group, r geom.Rect, px float64) {
	b.StrokePath(RectPath(r), Stroke{Color: groupColor, Width: px, Opacity: 1, Dash: []float64{6 * px, 4 * px}})
	if g.Label == "" {
		return
	}
	font := document.Font{Family: "sans-serif", Size: 12 * px}
	tm := b.MeasureText(g.Label, font)
	b.DrawText(g.Label, geom.Pt(r.X, r.Y-tm.LineHeight-2*px), font, Paint{Color: groupColor, Opacity: 1})
}

func drawAnnotationHandles(b Backend, h AnnotationHandles, px float64) {
	ring := Stroke{Color: selectionColor, Width: 1.5 * px, Opacity: 1}
	dot := func(p geom.Point) {
		path := Path{}.Arc(p.X, p.Y, h.Radius*0.6)
		b.FillPath(path, Paint{Color: handleFill, Opacity: 1})
		b.StrokePath(path, ring)
	}
	if h.Segment {
		dot(h.Start)
		dot(h.End)
		return
	}
	b.StrokePath(Path{}.MoveTo(h.Corners[1].X, h.Corners[1].Y).LineTo(h.Rotate.X, h.Rotate.Y), ring)
	dot(h.Scale)
	dot(h.Rotate)
}

func drawCropBox(b Backend, r geom.Rect, side, px float64) {
	b.StrokePath(RectPath(r), Stroke{Color: cropColor, Width: 2 * px, Opacity: 1})
	b.StrokePath(RectPath(r), Stroke{Color: handleFill, Width: px, Opacity: 1, Dash: []float64{5 * px, 5 * px}})
	for _, p := range CropHandlePositions(r) {
		sq := RectPath(geom.Rect{X: p.X - side/2, Y: p.Y - side/2, Width: side, Height: side})
		b.FillPath(sq, Paint{Color: handleFill, Opacity: 1})
		b.StrokePath(sq, Stroke{Color: cropColor, Width: px, Opacity: 1})
	}
}

func viewScale(v geom.View) float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}
