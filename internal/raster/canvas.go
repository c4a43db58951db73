package raster

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/render"
)

// Canvas is a render.Backend that draws into an RGBA image.
type Canvas struct {
	img   *image.RGBA
	store *Store
	fonts *FontMeasurer

	m     geom.Matrix2D
	stack []geom.Matrix2D
	rast  vector.Rasterizer
}

var _ render.Backend = (*Canvas)(nil)

// NewCanvas returns a transparent w x h canvas. Rasters are resolved through
// store; fonts may be nil, in which case text is measured approximately and
// not drawn.
func NewCanvas(w, h int, store *Store, fonts *FontMeasurer) *Canvas {
	return &Canvas{
		img:   image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1))),
		store: store,
		fonts: fonts,
		m:     geom.Identity(),
	}
}

// Image returns the canvas pixels.
func (c *Canvas) Image() *image.RGBA { return c.img }

func (c *Canvas) Save() { c.stack = append(c.stack, c.m) }

func (c *Canvas) Restore() {
	if n := len(c.stack); n > 0 {
		c.m = c.stack[n-1]
		c.stack = c.stack[:n-1]
	}
}

func (c *Canvas) SetTransform(m geom.Matrix2D) { c.m = m }

// deviceScale is the length scale of the current transform.
func (c *Canvas) deviceScale() float64 {
	s := math.Sqrt(math.Abs(c.m.Determinant()))
	if s == 0 {
		return 1
	}
	return s
}

func (c *Canvas) DrawRaster(handle string, src, dst geom.Rect, opacity float64) {
	if c.store == nil || src.Width <= 0 || src.Height <= 0 {
		return
	}
	pix, ok := c.store.Get(handle)
	if !ok {
		return
	}
	m := c.m.
		Multiply(geom.Translate(dst.X, dst.Y)).
		Multiply(geom.Scale(dst.Width/src.Width, dst.Height/src.Height)).
		Multiply(geom.Translate(-src.X, -src.Y))
	sr := image.Rect(
		int(math.Floor(src.X)), int(math.Floor(src.Y)),
		int(math.Ceil(src.Right())), int(math.Ceil(src.Bottom())),
	).Intersect(pix.Bounds())

	var mask image.Image
	if a := alphaOf(opacity); a < 1 {
		mask = image.NewUniform(color.Alpha{A: uint8(math.Round(a * 255))})
	}

	// Whole-pixel translations are copied exactly.
	if isIntegerTranslation(m) {
		off := image.Pt(int(math.Round(m[4])), int(math.Round(m[5])))
		xdraw.DrawMask(c.img, sr.Add(off), pix, sr.Min, mask, image.Point{}, xdraw.Over)
		return
	}
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	var opts *xdraw.Options
	if mask != nil {
		opts = &xdraw.Options{SrcMask: mask}
	}
	xdraw.BiLinear.Transform(c.img, aff, pix, sr, xdraw.Over, opts)
}

func (c *Canvas) FillPath(p render.Path, paint render.Paint) {
	subpaths := c.flatten(p)
	b := c.img.Bounds()
	c.rast.Reset(b.Dx(), b.Dy())
	drawn := false
	for _, sp := range subpaths {
		if len(sp.pts) < 3 {
			continue
		}
		addPolygon(&c.rast, sp.pts, false)
		drawn = true
	}
	if drawn {
		c.paint(ParseColor(paint.Color, paint.Alpha()))
	}
}

func (c *Canvas) StrokePath(p render.Path, s render.Stroke) {
	scale := c.deviceScale()
	width := max(s.Width*scale, 1)
	b := c.img.Bounds()
	c.rast.Reset(b.Dx(), b.Dy())

	var dash []float64
	for _, d := range s.Dash {
		dash = append(dash, d*scale)
	}
	drawn := false
	for _, sp := range c.flatten(p) {
		pts := sp.pts
		if sp.closed && len(pts) > 1 {
			pts = append(pts, pts[0])
		}
		for _, run := range applyDash(pts, dash) {
			strokePolyline(&c.rast, run, width/2)
			drawn = true
		}
	}
	if drawn {
		c.paint(ParseColor(s.Color, s.Alpha()))
	}
}

func (c *Canvas) paint(col color.NRGBA) {
	c.rast.DrawOp = xdraw.Over
	c.rast.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
}

// DrawText renders the glyphs at device resolution into a scratch image and
// maps it through the current transform, so rotated text is supported.
func (c *Canvas) DrawText(text string, at geom.Point, f document.Font, paint render.Paint) {
	if c.fonts == nil || text == "" {
		return
	}
	s := c.deviceScale()
	size := f.Size * s
	tm := c.fonts.MeasureText(text, document.Font{Family: f.Family, Size: size})
	w, h := int(math.Ceil(tm.Width))+2, int(math.Ceil(tm.LineHeight))+2
	if w <= 2 || h <= 2 || w*h > 1<<24 {
		return
	}
	scratch := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{Dst: scratch, Src: image.NewUniform(ParseColor(paint.Color, paint.Alpha()))}
	baseline := 1 + c.fonts.ascent(f.Family, size)
	if err := c.fonts.drawString(d, f.Family, size, fixed.P(1, int(math.Round(baseline))), text); err != nil {
		return
	}
	m := c.m.
		Multiply(geom.Translate(at.X, at.Y)).
		Multiply(geom.Scale(1/s, 1/s)).
		Multiply(geom.Translate(-1, -1))
	aff := f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
	xdraw.BiLinear.Transform(c.img, aff, scratch, scratch.Bounds(), xdraw.Over, nil)
}

func (c *Canvas) MeasureText(text string, f document.Font) document.TextMetrics {
	if c.fonts == nil {
		return document.ApproxMeasurer{}.MeasureText(text, f)
	}
	return c.fonts.MeasureText(text, f)
}

// ReadPixel returns the straight-alpha colour at device pixel (x, y), or
// transparent outside the canvas.
func (c *Canvas) ReadPixel(x, y int) color.RGBA {
	if !image.Pt(x, y).In(c.img.Bounds()) {
		return color.RGBA{}
	}
	nrgba := color.NRGBAModel.Convert(c.img.RGBAAt(x, y)).(color.NRGBA)
	return color.RGBA{R: nrgba.R, G: nrgba.G, B: nrgba.B, A: nrgba.A}
}

type subpath struct {
	pts    []geom.Point
	closed bool
}

// flatten converts a path into device-space polylines.
func (c *Canvas) flatten(p render.Path) []subpath {
	var out []subpath
	var cur *subpath
	start := func(pt geom.Point) {
		out = append(out, subpath{pts: []geom.Point{pt}})
		cur = &out[len(out)-1]
	}
	for _, cmd := range p {
		switch cmd.Op() {
		case "M":
			start(c.m.Apply(geom.Pt(cmd.Float(1), cmd.Float(2))))
		case "L":
			pt := c.m.Apply(geom.Pt(cmd.Float(1), cmd.Float(2)))
			if cur == nil {
				start(pt)
				continue
			}
			cur.pts = append(cur.pts, pt)
		case "A":
			cx, cy, r := cmd.Float(1), cmd.Float(2), cmd.Float(3)
			a0, a1 := cmd.Float(4), cmd.Float(5)
			steps := int(math.Ceil(math.Abs(a1-a0) * r * c.deviceScale() / 2))
			steps = max(16, min(steps, 720))
			for i := 0; i <= steps; i++ {
				a := a0 + (a1-a0)*float64(i)/float64(steps)
				pt := c.m.Apply(geom.Pt(cx+r*math.Cos(a), cy+r*math.Sin(a)))
				if cur == nil {
					start(pt)
					continue
				}
				cur.pts = append(cur.pts, pt)
			}
		case "Z":
			if cur != nil {
				cur.closed = true
				cur = nil
			}
		}
	}
	return out
}

// addPolygon adds a closed polygon with positive orientation so overlapping
// pieces of one stroke accumulate instead of cancelling.
func addPolygon(r *vector.Rasterizer, pts []geom.Point, orient bool) {
	if orient && signedArea(pts) < 0 {
		rev := make([]geom.Point, len(pts))
		for i, p := range pts {
			rev[len(pts)-1-i] = p
		}
		pts = rev
	}
	r.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()
}

func signedArea(pts []geom.Point) float64 {
	var a float64
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}

// strokePolyline outlines a polyline with round joins and caps.
func strokePolyline(r *vector.Rasterizer, pts []geom.Point, hw float64) {
	if len(pts) == 0 {
		return
	}
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		d := b.Sub(a)
		l := d.Len()
		if l < 1e-9 {
			continue
		}
		n := geom.Pt(-d.Y/l*hw, d.X/l*hw)
		addPolygon(r, []geom.Point{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}, true)
	}
	for _, p := range pts {
		addPolygon(r, disc(p, hw), true)
	}
}

func disc(c geom.Point, r float64) []geom.Point {
	steps := max(8, min(64, int(r*2)))
	pts := make([]geom.Point, steps)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(steps)
		pts[i] = geom.Pt(c.X+r*math.Cos(a), c.Y+r*math.Sin(a))
	}
	return pts
}

// applyDash splits a polyline into the "on" runs of a dash pattern.
func applyDash(pts []geom.Point, dash []float64) [][]geom.Point {
	total := 0.0
	for _, d := range dash {
		total += d
	}
	if len(dash) == 0 || total <= 0 || len(pts) < 2 {
		return [][]geom.Point{pts}
	}
	var runs [][]geom.Point
	idx, left, on := 0, dash[0], true
	var run []geom.Point
	if on {
		run = []geom.Point{pts[0]}
	}
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		seg := a.Dist(b)
		pos := 0.0
		for seg-pos > left {
			pos += left
			p := a.Add(b.Sub(a).Mul(pos / seg))
			if on {
				run = append(run, p)
				runs = append(runs, run)
				run = nil
			} else {
				run = []geom.Point{p}
			}
			on = !on
			idx = (idx + 1) % len(dash)
			left = dash[idx]
		}
		left -= seg - pos
		if on {
			run = append(run, b)
		}
	}
	if on && len(run) > 1 {
		runs = append(runs, run)
	}
	return runs
}

func isIntegerTranslation(m geom.Matrix2D) bool {
	const eps = 1e-9
	return math.Abs(m[0]-1) < eps && math.Abs(m[1]) < eps &&
		math.Abs(m[2]) < eps && math.Abs(m[3]-1) < eps &&
		math.Abs(m[4]-math.Round(m[4])) < eps && math.Abs(m[5]-math.Round(m[5])) < eps
}

func alphaOf(o float64) float64 {
	if o <= 0 || o > 1 {
		return 1
	}
	return o
}
