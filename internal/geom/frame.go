package geom

import "math"

// Frame places an unscaled, unrotated local rectangle of Width x Height in
// world space. X and Y are the world position of the unrotated top-left
// corner; Scale is uniform and Rotation (degrees) turns the frame about its
// own center.
type Frame struct {
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Scale    float64
	Rotation float64
}

// IdentityFrame maps local coordinates straight to world coordinates. It is
// the frame of canvas-owned annotations.
var IdentityFrame = Frame{Scale: 1}

// Center returns the world position of the frame's center.
func (f Frame) Center() Point {
	return Point{X: f.X + f.Width*f.Scale/2, Y: f.Y + f.Height*f.Scale/2}
}

// LocalToGlobal maps a local point to world space: translate relative to the
// local center, scale, rotate, then translate to the world center.
func (f Frame) LocalToGlobal(p Point) Point {
	dx := (p.X - f.Width/2) * f.Scale
	dy := (p.Y - f.Height/2) * f.Scale
	rad := Radians(f.Rotation)
	cos, sin := math.Cos(rad), math.Sin(rad)
	c := f.Center()
	return Point{
		X: c.X + dx*cos - dy*sin,
		Y: c.Y + dx*sin + dy*cos,
	}
}

// GlobalToLocal is the exact inverse of LocalToGlobal.
func (f Frame) GlobalToLocal(p Point) Point {
	c := f.Center()
	dx, dy := p.X-c.X, p.Y-c.Y
	rad := Radians(f.Rotation)
	cos, sin := math.Cos(rad), math.Sin(rad)
	rx := dx*cos + dy*sin
	ry := -dx*sin + dy*cos
	s := f.Scale
	if s == 0 {
		s = 1
	}
	return Point{X: rx/s + f.Width/2, Y: ry/s + f.Height/2}
}

// Matrix returns the local-to-world transform as an affine matrix.
func (f Frame) Matrix() Matrix2D {
	c := f.Center()
	return Translate(c.X, c.Y).
		Multiply(RotateDegrees(f.Rotation)).
		Multiply(Scale(f.Scale, f.Scale)).
		Multiply(Translate(-f.Width/2, -f.Height/2))
}

// Bounds returns the world-space axis-aligned envelope of the frame.
func (f Frame) Bounds() Rect {
	c := Rect{Width: f.Width, Height: f.Height}.Corners()
	return BoundsOf(
		f.LocalToGlobal(c[0]), f.LocalToGlobal(c[1]),
		f.LocalToGlobal(c[2]), f.LocalToGlobal(c[3]),
	)
}

// VectorToLocal rotates and scales a world-space displacement into the
// frame's local axes. Translation is ignored.
func (f Frame) VectorToLocal(v Point) Point {
	rad := Radians(f.Rotation)
	cos, sin := math.Cos(rad), math.Sin(rad)
	s := f.Scale
	if s == 0 {
		s = 1
	}
	return Point{X: (v.X*cos + v.Y*sin) / s, Y: (-v.X*sin + v.Y*cos) / s}
}

const (
	MinZoom = 0.05
	MaxZoom = 40
)

// View is the screen <-> world transform: screen = world*Scale + Offset.
type View struct {
	OffsetX float64 `json:"x"`
	OffsetY float64 `json:"y"`
	Scale   float64 `json:"scale"`
}

// DefaultView is the unpanned, unzoomed view.
var DefaultView = View{Scale: 1}

func (v View) scale() float64 {
	if v.Scale <= 0 {
		return 1
	}
	return v.Scale
}

// ScreenToWorld converts a screen point to world coordinates.
func (v View) ScreenToWorld(p Point) Point {
	s := v.scale()
	return Point{X: (p.X - v.OffsetX) / s, Y: (p.Y - v.OffsetY) / s}
}

// WorldToScreen converts a world point to screen coordinates.
func (v View) WorldToScreen(p Point) Point {
	s := v.scale()
	return Point{X: p.X*s + v.OffsetX, Y: p.Y*s + v.OffsetY}
}

// Matrix returns the world-to-screen transform.
func (v View) Matrix() Matrix2D {
	s := v.scale()
	return Matrix2D{s, 0, 0, s, v.OffsetX, v.OffsetY}
}

// Pan shifts the view by a screen-space delta.
func (v View) Pan(dx, dy float64) View {
	v.OffsetX += dx
	v.OffsetY += dy
	return v
}

// ZoomAt multiplies the zoom by factor while keeping the world point under
// the screen point anchor fixed.
func (v View) ZoomAt(anchor Point, factor float64) View {
	world := v.ScreenToWorld(anchor)
	next := math.Min(MaxZoom, math.Max(MinZoom, v.scale()*factor))
	return View{
		OffsetX: anchor.X - world.X*next,
		OffsetY: anchor.Y - world.Y*next,
		Scale:   next,
	}
}
