// Package render turns a scene, a view and the current interaction overlays
// into an ordered sequence of calls on a drawing backend.
package render

import (
	"image/color"
	"math"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

// Backend is the drawing capability the orchestrator drives. Transforms set
// with SetTransform replace the current matrix and are scoped by
// Save/Restore, as on a Canvas2D context.
type Backend interface {
	document.TextMeasurer

	Save()
	Restore()
	SetTransform(m geom.Matrix2D)

	// DrawRaster draws the src region of a raster into dst, both in the
	// current user space.
	DrawRaster(handle string, src, dst geom.Rect, opacity float64)
	FillPath(p Path, paint Paint)
	StrokePath(p Path, stroke Stroke)
	// DrawText draws a single line with its top-left corner at at.
	DrawText(text string, at geom.Point, font document.Font, paint Paint)
	// ReadPixel samples device pixel (x, y).
	ReadPixel(x, y int) color.RGBA
}

// Paint is a solid fill. An opacity outside (0, 1] is treated as opaque.
type Paint struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// Alpha returns the effective opacity.
func (p Paint) Alpha() float64 { return alpha(p.Opacity) }

type Stroke struct {
	Color   string    `json:"color"`
	Width   float64   `json:"width"`
	Opacity float64   `json:"opacity"`
	Dash    []float64 `json:"dash,omitempty"`
}

func (s Stroke) Alpha() float64 { return alpha(s.Opacity) }

func alpha(o float64) float64 {
	if o <= 0 || o > 1 {
		return 1
	}
	return o
}

// PathCommand is one Canvas2D path segment: ["M", x, y], ["L", x, y],
// ["A", cx, cy, r, startAngle, endAngle] or ["Z"].
type PathCommand []any

type Path []PathCommand

func (p Path) MoveTo(x, y float64) Path { return append(p, PathCommand{"M", x, y}) }
func (p Path) LineTo(x, y float64) Path { return append(p, PathCommand{"L", x, y}) }
func (p Path) Close() Path              { return append(p, PathCommand{"Z"}) }

// Arc appends a full circle.
func (p Path) Arc(cx, cy, r float64) Path {
	return append(p, PathCommand{"A", cx, cy, r, 0.0, 2 * math.Pi})
}

// RectPath returns a closed rectangle.
func RectPath(r geom.Rect) Path {
	return Path{}.
		MoveTo(r.X, r.Y).
		LineTo(r.Right(), r.Y).
		LineTo(r.Right(), r.Bottom()).
		LineTo(r.X, r.Bottom()).
		Close()
}

// PolygonPath returns a closed polygon through pts.
func PolygonPath(pts ...geom.Point) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p = p.MoveTo(pt.X, pt.Y)
			continue
		}
		p = p.LineTo(pt.X, pt.Y)
	}
	return p.Close()
}

// PolylinePath returns an open path through pts.
func PolylinePath(pts []geom.Point) Path {
	var p Path
	for i, pt := range pts {
		if i == 0 {
			p = p.MoveTo(pt.X, pt.Y)
			continue
		}
		p = p.LineTo(pt.X, pt.Y)
	}
	return p
}

// Float reads argument i of a command as a float64.
func (c PathCommand) Float(i int) float64 {
	if i >= len(c) {
		return 0
	}
	switch v := c[i].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Op returns the command letter.
func (c PathCommand) Op() string {
	if len(c) == 0 {
		return ""
	}
	s, _ := c[0].(string)
	return s
}
