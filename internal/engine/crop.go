package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/render"
	"github.com/inamate/imageboard/internal/typeid"
)

// startCropEdit starts a resize or move when world hits the crop box.
func (e *Engine) startCropEdit(world geom.Point, opts HitOptions) bool {
	h := hitCrop(*e.crop, world, opts)
	switch h.Kind {
	case HitCropHandle:
		e.active = &cropResizeInteraction{handle: h.CropHandle, original: e.crop.Normalize()}
		return true
	case HitCropBody:
		e.active = &cropMoveInteraction{start: world, original: *e.crop}
		return true
	}
	return false
}

func (e *Engine) startCropCreate(world geom.Point) {
	r := geom.Rect{X: world.X, Y: world.Y}
	e.crop = &r
	e.active = &cropCreateInteraction{start: world}
}

// aspect returns the locked width/height ratio, 0 when free.
func (e *Engine) aspect(p Pointer) float64 {
	if e.cropAspect > 0 {
		return e.cropAspect
	}
	if p.Modifiers.Shift {
		return 1
	}
	return 0
}

type cropCreateInteraction struct {
	start geom.Point
}

func (it *cropCreateInteraction) move(e *Engine, world geom.Point, p Pointer) {
	w, h := world.X-it.start.X, world.Y-it.start.Y
	if ratio := e.aspect(p); ratio > 0 {
		h = math.Copysign(math.Abs(w)/ratio, h)
	}
	r := geom.Rect{X: it.start.X, Y: it.start.Y, Width: w, Height: h}.Normalize()
	e.crop = &r
}

func (it *cropCreateInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
	if e.crop.Width == 0 || e.crop.Height == 0 {
		e.crop = nil
	}
}

type cropResizeInteraction struct {
	handle   render.CropHandle
	original geom.Rect
}

func (it *cropResizeInteraction) move(e *Engine, world geom.Point, p Pointer) {
	l, t := it.original.X, it.original.Y
	r, b := it.original.Right(), it.original.Bottom()
	h := it.handle
	left := h == render.CropNW || h == render.CropW || h == render.CropSW
	right := h == render.CropNE || h == render.CropE || h == render.CropSE
	top := h == render.CropNW || h == render.CropN || h == render.CropNE
	bottom := h == render.CropSW || h == render.CropS || h == render.CropSE
	switch {
	case left:
		l = world.X
	case right:
		r = world.X
	}
	switch {
	case top:
		t = world.Y
	case bottom:
		b = world.Y
	}
	if ratio := e.aspect(p); ratio > 0 {
		switch {
		case h == render.CropN || h == render.CropS:
			r = l + math.Abs(b-t)*ratio
		case top:
			t = b - math.Copysign(math.Abs(r-l)/ratio, b-t)
		default:
			b = t + math.Copysign(math.Abs(r-l)/ratio, b-t)
		}
	}
	rect := geom.Rect{X: l, Y: t, Width: r - l, Height: b - t}.Normalize()
	e.crop = &rect
}

func (it *cropResizeInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
}

type cropMoveInteraction struct {
	start    geom.Point
	original geom.Rect
}

func (it *cropMoveInteraction) move(e *Engine, world geom.Point, _ Pointer) {
	d := world.Sub(it.start)
	r := it.original.Translate(d.X, d.Y)
	e.crop = &r
}

func (it *cropMoveInteraction) finish(e *Engine, world geom.Point, p Pointer) {
	it.move(e, world, p)
}

// ConfirmCrop crops the selected images, or every image when none is
// selected, to the crop box. Each cropped image is rasterized with its
// outline, trimmed of transparent borders and swapped in place; its
// original is archived for Uncrop. All replacements form one history step.
func (e *Engine) ConfirmCrop() ([]string, error) {
	if e.crop == nil {
		return nil, ErrNoCropArea
	}
	crop := e.crop.Normalize()
	scene := e.hist.Current()

	targets := e.sel.Images
	if len(targets) == 0 {
		for _, img := range scene.Images {
			targets = append(targets, img.ID)
		}
	}

	next := scene
	archived := make(map[string]document.Image)
	var created []string
	for _, id := range targets {
		img, ok := next.Image(id)
		if !ok {
			continue
		}
		cropped, ok := e.cropImage(img, crop)
		if !ok {
			continue
		}
		swapped, err := document.SwapImage(next, img.ID, cropped)
		if err != nil {
			return nil, fmt.Errorf("swap cropped image %s: %w", img.ID, err)
		}
		next = swapped
		archived[img.ID] = img.Clone()
		created = append(created, cropped.ID)
	}
	if len(created) == 0 {
		return nil, ErrNothingToCrop
	}

	for id, img := range archived {
		e.archive[id] = img
	}
	e.hist.Push(next)
	e.crop = nil
	e.sel.SelectImages(created...)
	e.logger.Info("images cropped", "count", len(created))
	return created, nil
}

// cropImage renders the part of img inside crop at the image's own
// resolution and returns the replacement image. The outline is baked into
// the new raster, so the replacement carries none.
func (e *Engine) cropImage(img document.Image, crop geom.Rect) (document.Image, bool) {
	s := positive(img.Scale)
	bounds := document.ImageBounds(img)
	if img.OutlineWidth > 0 && img.OutlineColor != "" {
		// Mitred corners of a rotated outline reach up to √2 half-widths out.
		bounds = bounds.Inset(-img.OutlineWidth / 2 * s * math.Sqrt2)
	}
	region, ok := bounds.Intersection(crop)
	if !ok || region.Width <= 0 || region.Height <= 0 {
		return document.Image{}, false
	}
	x0, y0 := math.Floor(region.X/s)*s, math.Floor(region.Y/s)*s
	region = geom.Rect{X: x0, Y: y0, Width: region.Right() - x0, Height: region.Bottom() - y0}
	w := int(math.Ceil(region.Width / s))
	h := int(math.Ceil(region.Height / s))
	if w <= 0 || h <= 0 {
		return document.Image{}, false
	}

	canvas := raster.NewCanvas(w, h, e.rasters, e.fonts)
	world := geom.Scale(1/s, 1/s).Multiply(geom.Translate(-region.X, -region.Y))
	render.RenderImage(canvas, img, world, false)

	// Only the crop box itself is kept.
	clip := geom.Rect{
		X:      (crop.X - region.X) / s,
		Y:      (crop.Y - region.Y) / s,
		Width:  crop.Width / s,
		Height: crop.Height / s,
	}
	px := raster.Trim(canvas.Image()).Intersect(pixelRect(clip))
	if px.Empty() {
		return document.Image{}, false
	}
	pixels := raster.SubImage(canvas.Image(), px)
	handle := e.rasters.Put(pixels)

	out := document.Image{
		ID:              typeid.NewImageID(),
		Name:            img.Name,
		Raster:          handle,
		X:               region.X + float64(px.Min.X)*s,
		Y:               region.Y + float64(px.Min.Y)*s,
		Width:           float64(px.Dx()),
		Height:          float64(px.Dy()),
		Scale:           s,
		UncroppedFromID: img.ID,
	}
	visible := geom.Rect{X: out.X, Y: out.Y, Width: out.Width * s, Height: out.Height * s}
	var local []geom.Point
	for _, c := range visible.Corners() {
		local = append(local, img.Frame().GlobalToLocal(c))
	}
	if r, ok := geom.BoundsOf(local...).Intersection(geom.Rect{Width: img.Width, Height: img.Height}); ok {
		out.CropRect = &r
	}

	from, to := img.Frame(), out.Frame()
	for _, a := range img.Annotations {
		out.Annotations = append(out.Annotations, document.RebaseAnnotation(a, from, to, e.measurer))
	}
	return out, true
}

// Uncrop restores the archived original of a cropped image, centred where
// the cropped image is now. Annotations keep their world placement.
func (e *Engine) Uncrop(imageID string) error {
	scene := e.hist.Current()
	img, ok := scene.Image(imageID)
	if !ok {
		return fmt.Errorf("uncrop %s: %w", imageID, document.ErrNotFound)
	}
	orig, ok := e.archive[img.UncroppedFromID]
	if img.UncroppedFromID == "" || !ok {
		return fmt.Errorf("uncrop %s: %w", imageID, ErrNotCropped)
	}
	if scene.HasImage(orig.ID) {
		return fmt.Errorf("uncrop %s: original %s is already on the board", imageID, orig.ID)
	}

	restored := orig.Clone()
	restored.Scale = positive(img.Scale)
	restored.Rotation = orig.Rotation + img.Rotation
	c := img.Frame().Center()
	restored.X = c.X - restored.Width*restored.Scale/2
	restored.Y = c.Y - restored.Height*restored.Scale/2
	restored.Annotations = nil
	from, to := img.Frame(), restored.Frame()
	for _, a := range img.Annotations {
		restored.Annotations = append(restored.Annotations, document.RebaseAnnotation(a, from, to, e.measurer))
	}

	next, err := document.SwapImage(scene, imageID, restored)
	if err != nil {
		return fmt.Errorf("uncrop %s: %w", imageID, err)
	}
	e.hist.Push(next)
	e.sel.SelectImages(restored.ID)
	return nil
}

// Archived returns the archived original with the given id.
func (e *Engine) Archived(id string) (document.Image, bool) {
	img, ok := e.archive[id]
	if !ok {
		return document.Image{}, false
	}
	return img.Clone(), true
}

// sceneSampler renders the committed scene into a single pixel under the
// sampled point, as it appears in the current view.
type sceneSampler struct {
	e *Engine
}

func (s sceneSampler) SampleAt(world geom.Point) (r, g, b, a uint8) {
	e := s.e
	screen := e.view.WorldToScreen(world)
	view := e.view.Pan(-math.Floor(screen.X), -math.Floor(screen.Y))
	canvas := raster.NewCanvas(1, 1, e.rasters, e.fonts)
	render.Render(canvas, e.hist.Current(), view, render.Overlay{}, render.Options{Handles: e.cfg.Handles})
	c := canvas.ReadPixel(0, 0)
	return c.R, c.G, c.B, c.A
}

// pixelRect returns the pixels touched by r.
func pixelRect(r geom.Rect) image.Rectangle {
	return image.Rect(
		int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())), int(math.Ceil(r.Bottom())),
	)
}

func colorRGBA(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
