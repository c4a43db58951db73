package render

import (
	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

// HandleMetrics are screen-space sizes in CSS pixels. They are divided by
// the view scale wherever a world-space size is needed, so handles keep a
// constant size on screen.
type HandleMetrics struct {
	CropHandle       float64 `json:"cropHandle"`       // side of a crop resize handle
	AnnotationHandle float64 `json:"annotationHandle"` // hit radius of annotation handles
	RotateOffset     float64 `json:"rotateOffset"`     // rotate handle distance from its corner
	LineSlop         float64 `json:"lineSlop"`         // extra hit distance around lines
}

var DefaultHandleMetrics = HandleMetrics{
	CropHandle:       10,
	AnnotationHandle: 8,
	RotateOffset:     24,
	LineSlop:         6,
}

// CropHandle names one of the eight crop box resize handles.
type CropHandle int

const (
	CropNone CropHandle = iota - 1
	CropNW
	CropN
	CropNE
	CropE
	CropSE
	CropS
	CropSW
	CropW
)

// CropHandlePositions returns handle centers clockwise from the top-left
// corner, indexed by CropHandle.
func CropHandlePositions(r geom.Rect) [8]geom.Point {
	r = r.Normalize()
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	return [8]geom.Point{
		{X: r.X, Y: r.Y},
		{X: cx, Y: r.Y},
		{X: r.Right(), Y: r.Y},
		{X: r.Right(), Y: cy},
		{X: r.Right(), Y: r.Bottom()},
		{X: cx, Y: r.Bottom()},
		{X: r.X, Y: r.Bottom()},
		{X: r.X, Y: cy},
	}
}

// AnnotationHandles is the world-space handle set of one annotation. Lines
// and arrows get two endpoint handles; every other kind gets a scale handle
// on its bottom-right corner and a rotate handle offset out from its
// top-right corner.
type AnnotationHandles struct {
	Segment bool          `json:"segment"`
	Start   geom.Point    `json:"start"`
	End     geom.Point    `json:"end"`
	Scale   geom.Point    `json:"scale"`
	Rotate  geom.Point    `json:"rotate"`
	Center  geom.Point    `json:"center"`
	Corners [4]geom.Point `json:"corners"`
	Radius  float64       `json:"radius"`
}

// HandlesFor computes the handles of a drawn inside parent, for a view at
// viewScale. Radius is the world-space hit radius.
func HandlesFor(a document.Annotation, parent geom.Frame, viewScale float64, hm HandleMetrics, m document.TextMeasurer) AnnotationHandles {
	if viewScale <= 0 {
		viewScale = 1
	}
	h := AnnotationHandles{Radius: hm.AnnotationHandle / viewScale}
	if start, end, ok := document.Endpoints(a.Shape); ok {
		h.Segment = true
		h.Start = parent.LocalToGlobal(start)
		h.End = parent.LocalToGlobal(end)
		h.Center = geom.Pt((h.Start.X+h.End.X)/2, (h.Start.Y+h.End.Y)/2)
		return h
	}

	h.Corners = AnnotationCorners(a, parent, m)
	h.Center = parent.LocalToGlobal(document.PrimitiveBounds(a, m).Center())
	h.Scale = h.Corners[2]

	dir := h.Corners[1].Sub(h.Center)
	if l := dir.Len(); l > 1e-9 {
		dir = dir.Mul(1 / l)
	} else {
		dir = geom.Pt(0, -1)
	}
	h.Rotate = h.Corners[1].Add(dir.Mul(hm.RotateOffset / viewScale))
	return h
}

// AnnotationCorners returns the world positions of the corners of the
// annotation's scaled and rotated box, clockwise from top-left.
func AnnotationCorners(a document.Annotation, parent geom.Frame, m document.TextMeasurer) [4]geom.Point {
	mat := parent.Matrix().Multiply(document.AnnotationMatrix(a, m))
	var out [4]geom.Point
	for i, c := range document.PrimitiveBounds(a, m).Corners() {
		out[i] = mat.Apply(c)
	}
	return out
}

// ImageCorners returns the world corners of an image's rotated frame.
func ImageCorners(img document.Image) [4]geom.Point {
	f := img.Frame()
	var out [4]geom.Point
	for i, c := range (geom.Rect{Width: img.Width, Height: img.Height}).Corners() {
		out[i] = f.LocalToGlobal(c)
	}
	return out
}
