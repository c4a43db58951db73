package document

import (
	"strings"

	"github.com/inamate/imageboard/internal/geom"
)

// Font selects a typeface for text measurement and drawing.
type Font struct {
	Family string  `json:"family"`
	Size   float64 `json:"size"`
}

// TextMetrics is the measured size of a single line.
type TextMetrics struct {
	Width      float64 `json:"width"`
	LineHeight float64 `json:"lineHeight"`
}

// TextMeasurer is the drawing backend's text-metrics capability.
type TextMeasurer interface {
	MeasureText(text string, font Font) TextMetrics
}

// ApproxMeasurer estimates metrics from the font size alone. It is used when
// no real backend is attached.
type ApproxMeasurer struct{}

func (ApproxMeasurer) MeasureText(text string, font Font) TextMetrics {
	return TextMetrics{
		Width:      float64(len([]rune(text))) * font.Size * 0.6,
		LineHeight: font.Size * 1.2,
	}
}

// TextPadding surrounds text that has a background or an outline.
const TextPadding = 4.0

const defaultFontSize = 24.0

// FontOf returns the font a text shape is drawn with.
func FontOf(t TextShape) Font {
	size := t.FontSize
	if size <= 0 {
		size = defaultFontSize
	}
	family := t.FontFamily
	if family == "" {
		family = "sans-serif"
	}
	return Font{Family: family, Size: size}
}

// TextBlock returns the padded block size of a text shape and the padding
// applied on each side.
func TextBlock(t TextShape, m TextMeasurer) (width, height, pad float64) {
	if m == nil {
		m = ApproxMeasurer{}
	}
	font := FontOf(t)
	lines := strings.Split(t.Text, "\n")
	lineHeight := 0.0
	for _, line := range lines {
		tm := m.MeasureText(line, font)
		width = max(width, tm.Width)
		lineHeight = max(lineHeight, tm.LineHeight)
	}
	height = lineHeight * float64(len(lines))
	if t.BackgroundColor != "" || t.StrokeColor != "" {
		pad = TextPadding
	}
	return width + 2*pad, height + 2*pad, pad
}

// PrimitiveBounds is the unrotated, unscaled box of an annotation in its own
// declared coordinates.
func PrimitiveBounds(a Annotation, m TextMeasurer) geom.Rect {
	switch s := a.Shape.(type) {
	case FreehandShape:
		return geom.BoundsOf(s.Points...)
	case RectShape:
		return geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}.Normalize()
	case CircleShape:
		return geom.Rect{X: s.CX - s.Radius, Y: s.CY - s.Radius, Width: 2 * s.Radius, Height: 2 * s.Radius}
	case TextShape:
		w, h, _ := TextBlock(s, m)
		return geom.Rect{X: s.X, Y: s.Y, Width: w, Height: h}
	case LineShape:
		return geom.BoundsOf(s.Start, s.End)
	case ArrowShape:
		return geom.BoundsOf(s.Start, s.End)
	}
	return geom.Rect{}
}

// AnnotationMatrix maps an annotation's declared coordinates into its
// parent's space. Lines and arrows are never rotated or scaled.
func AnnotationMatrix(a Annotation, m TextMeasurer) geom.Matrix2D {
	if IsSegment(a.Shape) {
		return geom.Identity()
	}
	c := PrimitiveBounds(a, m).Center()
	return geom.AboutPivot(c, scaleOf(a), a.Rotation)
}

// RotatedScaledBounds applies the annotation's own scale and rotation about
// its primitive center and returns the axis-aligned envelope, in parent
// space.
func RotatedScaledBounds(a Annotation, m TextMeasurer) geom.Rect {
	b := PrimitiveBounds(a, m)
	if IsSegment(a.Shape) {
		return b
	}
	return AnnotationMatrix(a, m).TransformRect(b)
}

// AnnotationWorldBounds returns the world envelope of an annotation drawn
// inside parent.
func AnnotationWorldBounds(a Annotation, parent geom.Frame, m TextMeasurer) geom.Rect {
	b := PrimitiveBounds(a, m)
	return parent.Matrix().Multiply(AnnotationMatrix(a, m)).TransformRect(b)
}

// ToAnnotationLocal maps a point in the parent's space into the
// annotation's unrotated, unscaled frame.
func ToAnnotationLocal(a Annotation, p geom.Point, m TextMeasurer) geom.Point {
	if IsSegment(a.Shape) {
		return p
	}
	c := PrimitiveBounds(a, m).Center()
	return geom.InverseTransformAbout(p, c, scaleOf(a), a.Rotation)
}

// FromAnnotationLocal is the inverse of ToAnnotationLocal.
func FromAnnotationLocal(a Annotation, p geom.Point, m TextMeasurer) geom.Point {
	if IsSegment(a.Shape) {
		return p
	}
	c := PrimitiveBounds(a, m).Center()
	return geom.TransformAbout(p, c, scaleOf(a), a.Rotation)
}

// ImageBounds is the world envelope of an image.
func ImageBounds(img Image) geom.Rect {
	return img.Frame().Bounds()
}

// GroupBounds is the union of the bounds of every image in the group and its
// subgroups, or nil when the group has no images.
func GroupBounds(s Scene, groupID string) *geom.Rect {
	var out *geom.Rect
	for _, id := range AllImageIDsInGroup(s, groupID) {
		img, ok := s.Image(id)
		if !ok {
			continue
		}
		b := ImageBounds(img)
		if out == nil {
			out = &b
			continue
		}
		u := out.Union(b)
		out = &u
	}
	return out
}

func scaleOf(a Annotation) float64 {
	if a.Scale <= 0 {
		return 1
	}
	return a.Scale
}
