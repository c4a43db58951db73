package geom

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()

	points := []Point{{0, 0}, {10, 20}, {-35.5, 80}, {640, 480}, {1e4, -3e3}}
	for _, rotation := range []float64{0, 45, 90, 180, 271.5} {
		for _, scale := range []float64{0.1, 1, 3.7} {
			f := Frame{X: 12, Y: -40, Width: 320, Height: 200, Scale: scale, Rotation: rotation}
			t.Run(fmt.Sprintf("r%v_s%v", rotation, scale), func(t *testing.T) {
				t.Parallel()
				for _, p := range points {
					got := f.GlobalToLocal(f.LocalToGlobal(p))
					assert.InDelta(t, p.X, got.X, 1e-7)
					assert.InDelta(t, p.Y, got.Y, 1e-7)
				}
			})
		}
	}
}

func TestFrameMatrixMatchesLocalToGlobal(t *testing.T) {
	t.Parallel()

	f := Frame{X: 5, Y: 7, Width: 100, Height: 50, Scale: 2.5, Rotation: 33}
	m := f.Matrix()
	for _, p := range []Point{{0, 0}, {100, 50}, {13, 42}} {
		assert.True(t, m.Apply(p).Eq(f.LocalToGlobal(p), eps))
	}
	inv := m.Invert()
	w := f.LocalToGlobal(Pt(30, 20))
	assert.True(t, inv.Apply(w).Eq(Pt(30, 20), 1e-9))
}

func TestFrameUnrotatedPlacement(t *testing.T) {
	t.Parallel()

	f := Frame{X: 100, Y: 50, Width: 200, Height: 100, Scale: 1}
	assert.Equal(t, Pt(100, 50), f.LocalToGlobal(Pt(0, 0)))
	assert.Equal(t, Rect{X: 100, Y: 50, Width: 200, Height: 100}, f.Bounds())

	f.Rotation = 90
	b := f.Bounds()
	assert.InDelta(t, 150, b.X, eps)
	assert.InDelta(t, 0, b.Y, eps)
	assert.InDelta(t, 100, b.Width, eps)
	assert.InDelta(t, 200, b.Height, eps)
}

func TestIdentityFrame(t *testing.T) {
	t.Parallel()

	p := Pt(42, -17)
	assert.Equal(t, p, IdentityFrame.LocalToGlobal(p))
	assert.Equal(t, p, IdentityFrame.GlobalToLocal(p))
}

func TestVectorToLocal(t *testing.T) {
	t.Parallel()

	f := Frame{Width: 10, Height: 10, Scale: 2, Rotation: 90}
	v := f.VectorToLocal(Pt(0, 4))
	assert.InDelta(t, 2, v.X, eps)
	assert.InDelta(t, 0, v.Y, eps)

	// Moving the world point by the delta equals moving the local point by the local delta.
	p := Pt(3, 3)
	w := f.LocalToGlobal(p)
	moved := f.GlobalToLocal(w.Add(Pt(7, -2)))
	lv := f.VectorToLocal(Pt(7, -2))
	assert.True(t, moved.Eq(p.Add(lv), 1e-9))
}

func TestRectNormalizeAndIntersect(t *testing.T) {
	t.Parallel()

	r := Rect{X: 10, Y: 10, Width: -5, Height: -20}.Normalize()
	assert.Equal(t, Rect{X: 5, Y: -10, Width: 5, Height: 20}, r)

	marquee := Rect{Width: 100, Height: 100}
	tests := []struct {
		name  string
		other Rect
		want  bool
	}{
		{name: "corner overlap", other: Rect{X: 90, Y: 90, Width: 20, Height: 20}, want: true},
		{name: "edge touching", other: Rect{X: 100, Y: 0, Width: 20, Height: 20}, want: true},
		{name: "corner touching", other: Rect{X: 100, Y: 100, Width: 5, Height: 5}, want: true},
		{name: "disjoint", other: Rect{X: 100.5, Y: 0, Width: 20, Height: 20}, want: false},
		{name: "contained", other: Rect{X: 10, Y: 10, Width: 1, Height: 1}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, marquee.Intersects(tt.other))
			assert.Equal(t, tt.want, tt.other.Intersects(marquee))
		})
	}
}

func TestRectContainsInclusive(t *testing.T) {
	t.Parallel()

	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, r.Contains(Pt(0, 0)))
	assert.True(t, r.Contains(Pt(10, 10)))
	assert.False(t, r.Contains(Pt(10.01, 5)))
}

func TestDistanceToSegment(t *testing.T) {
	t.Parallel()

	a, b := Pt(0, 0), Pt(10, 0)
	assert.InDelta(t, 5, DistanceToSegment(Pt(5, 5), a, b), eps)
	assert.InDelta(t, 5, DistanceToSegment(Pt(-3, 4), a, b), eps)
	assert.InDelta(t, 5, DistanceToSegment(Pt(3, 4), a, a), eps)
}

func TestTransformAboutInverse(t *testing.T) {
	t.Parallel()

	pivot := Pt(50, 25)
	p := Pt(12, 80)
	q := TransformAbout(p, pivot, 1.7, 123)
	back := InverseTransformAbout(q, pivot, 1.7, 123)
	assert.True(t, back.Eq(p, 1e-9))
}

func TestSnapAngle(t *testing.T) {
	t.Parallel()

	got := SnapAngle(Pt(0, 0), Pt(10, 1), 45)
	assert.InDelta(t, math.Hypot(10, 1), got.X, 1e-9)
	assert.InDelta(t, 0, got.Y, 1e-9)

	diag := SnapAngle(Pt(0, 0), Pt(10, 9), 45)
	assert.InDelta(t, diag.X, diag.Y, 1e-9)
}

func TestViewZoomAtKeepsAnchor(t *testing.T) {
	t.Parallel()

	v := View{OffsetX: 30, OffsetY: -10, Scale: 1.5}
	anchor := Pt(200, 120)
	before := v.ScreenToWorld(anchor)
	z := v.ZoomAt(anchor, 2)
	require.InDelta(t, 3, z.Scale, eps)
	after := z.ScreenToWorld(anchor)
	assert.True(t, before.Eq(after, 1e-9))

	assert.InDelta(t, MaxZoom, v.ZoomAt(anchor, 1e6).Scale, eps)
}
