package render

import (
	"math"
	"strings"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

// DrawAnnotation draws a in the space described by parent, which maps the
// annotation's parent coordinates to device coordinates.
func DrawAnnotation(b Backend, parent geom.Matrix2D, a document.Annotation) {
	b.Save()
	defer b.Restore()
	b.SetTransform(parent.Multiply(document.AnnotationMatrix(a, b)))

	line := Stroke{Color: a.Color, Width: a.StrokeWidth, Opacity: 1}
	switch s := a.Shape.(type) {
	case document.FreehandShape:
		if len(s.Points) < 2 {
			return
		}
		b.StrokePath(PolylinePath(s.Points), line)
	case document.RectShape:
		p := RectPath(geom.Rect{X: s.X, Y: s.Y, Width: s.Width, Height: s.Height}.Normalize())
		if s.FillColor != "" {
			b.FillPath(p, Paint{Color: s.FillColor, Opacity: s.FillOpacity})
		}
		if a.StrokeWidth > 0 {
			b.StrokePath(p, line)
		}
	case document.CircleShape:
		p := Path{}.Arc(s.CX, s.CY, s.Radius)
		if s.FillColor != "" {
			b.FillPath(p, Paint{Color: s.FillColor, Opacity: s.FillOpacity})
		}
		if a.StrokeWidth > 0 {
			b.StrokePath(p, line)
		}
	case document.TextShape:
		drawText(b, a, s)
	case document.LineShape:
		line.Width *= scaleOrOne(a.Scale)
		b.StrokePath(Path{}.MoveTo(s.Start.X, s.Start.Y).LineTo(s.End.X, s.End.Y), line)
	case document.ArrowShape:
		line.Width *= scaleOrOne(a.Scale)
		b.StrokePath(ArrowPath(s.Start, s.End, line.Width), line)
	}
}

func drawText(b Backend, a document.Annotation, s document.TextShape) {
	w, h, pad := document.TextBlock(s, b)
	box := geom.Rect{X: s.X, Y: s.Y, Width: w, Height: h}
	if s.BackgroundColor != "" {
		b.FillPath(RectPath(box), Paint{Color: s.BackgroundColor, Opacity: s.BackgroundOpacity})
	}
	if s.StrokeColor != "" {
		width := a.StrokeWidth
		if width <= 0 {
			width = 1
		}
		b.StrokePath(RectPath(box), Stroke{Color: s.StrokeColor, Width: width, Opacity: s.StrokeOpacity})
	}
	lines := strings.Split(s.Text, "\n")
	lineHeight := (h - 2*pad) / float64(len(lines))
	font := document.FontOf(s)
	for i, text := range lines {
		if text == "" {
			continue
		}
		b.DrawText(text, geom.Pt(s.X+pad, s.Y+pad+float64(i)*lineHeight), font, Paint{Color: a.Color, Opacity: 1})
	}
}

// ArrowPath returns the shaft from start to end plus two barbs at end.
func ArrowPath(start, end geom.Point, width float64) Path {
	p := Path{}.MoveTo(start.X, start.Y).LineTo(end.X, end.Y)
	if start.Dist(end) < 1e-9 {
		return p
	}
	angle := math.Atan2(end.Y-start.Y, end.X-start.X)
	size := 6 + width*2
	for _, a := range []float64{angle + math.Pi/6, angle - math.Pi/6} {
		p = p.MoveTo(end.X, end.Y).LineTo(end.X-math.Cos(a)*size, end.Y-math.Sin(a)*size)
	}
	return p
}

func scaleOrOne(s float64) float64 {
	if s <= 0 {
		return 1
	}
	return s
}
