package engine

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/render"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithMeasurer(document.ApproxMeasurer{})}, opts...)
	return NewEngine(DefaultConfig(), opts...)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// addImages puts images on the board as one history step.
func addImages(t *testing.T, e *Engine, imgs ...document.Image) {
	t.Helper()
	for i := range imgs {
		if imgs[i].Raster == "" {
			imgs[i].Raster = e.rasters.Put(solid(int(imgs[i].Width), int(imgs[i].Height), color.RGBA{0, 0, 255, 255}))
		}
		if imgs[i].Scale == 0 {
			imgs[i].Scale = 1
		}
	}
	e.hist.Push(document.AddImages(e.hist.Current(), imgs...))
}

func drag(e *Engine, from, to geom.Point, mods Modifiers) {
	e.PointerDown(Pointer{X: from.X, Y: from.Y, Modifiers: mods})
	e.PointerMove(Pointer{X: (from.X + to.X) / 2, Y: (from.Y + to.Y) / 2, Modifiers: mods})
	e.PointerUp(Pointer{X: to.X, Y: to.Y, Modifiers: mods})
}

func TestDrawSelectDelete(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", X: 100, Y: 100, Width: 200, Height: 100})
	cursor := e.HistoryCursor()

	require.NoError(t, e.SetTool(ToolRect))
	drag(e, geom.Pt(110, 110), geom.Pt(160, 140), Modifiers{})
	assert.False(t, e.Interacting())
	assert.Equal(t, ToolSelect, e.Tool())
	require.Equal(t, cursor+1, e.HistoryCursor())

	img, ok := e.Scene().Image("img_1")
	require.True(t, ok)
	require.Len(t, img.Annotations, 1)
	rect, ok := img.Annotations[0].Shape.(document.RectShape)
	require.True(t, ok)
	assert.InDelta(t, 10, rect.X, 1e-9)
	assert.InDelta(t, 10, rect.Y, 1e-9)
	assert.InDelta(t, 50, rect.Width, 1e-9)
	assert.InDelta(t, 30, rect.Height, 1e-9)

	ref := document.AnnotationRef{ParentImageID: "img_1", AnnotationID: img.Annotations[0].ID}
	sel := e.Selection()
	assert.Equal(t, []document.AnnotationRef{ref}, sel.Annotations)

	hit := HitTest(e.Scene(), geom.Pt(135, 125), e.hitOptions())
	assert.Equal(t, HitAnnotation, hit.Kind)
	assert.Equal(t, ref, hit.Annotation)

	assert.True(t, e.DeleteSelection())
	assert.Equal(t, cursor+2, e.HistoryCursor())
	img, _ = e.Scene().Image("img_1")
	assert.Empty(t, img.Annotations)
	assert.True(t, e.Selection().Empty())
}

func TestDegenerateDrawingIsDropped(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	require.NoError(t, e.SetTool(ToolLine))
	e.PointerDown(Pointer{X: 5, Y: 5})
	e.PointerUp(Pointer{X: 5, Y: 5})
	assert.Equal(t, 0, e.HistoryCursor())
	assert.Empty(t, e.Scene().CanvasAnnotations)
	assert.Nil(t, e.Overlay().Draft)
}

func TestMoveImages(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", Width: 100, Height: 100})
	cursor := e.HistoryCursor()

	e.PointerDown(Pointer{X: 50, Y: 50})
	e.PointerMove(Pointer{X: 70, Y: 60})
	live, _ := e.Scene().Image("img_1")
	assert.Equal(t, 20.0, live.X)
	assert.Equal(t, cursor, e.HistoryCursor(), "live edits are not history steps")

	e.PointerUp(Pointer{X: 80, Y: 60})
	img, _ := e.Scene().Image("img_1")
	assert.Equal(t, 30.0, img.X)
	assert.Equal(t, 10.0, img.Y)
	assert.Equal(t, cursor+1, e.HistoryCursor())
	assert.Equal(t, []string{"img_1"}, e.Selection().Images)
}

func TestZeroDeltaMoveIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", Width: 100, Height: 100})
	e.hist.Push(mustAdd(t, e.hist.Current(), "img_1", document.Annotation{
		ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1,
		Shape: document.RectShape{X: 10, Y: 10, Width: 20, Height: 20},
	}))
	cursor := e.HistoryCursor()
	before := e.Scene()

	e.PointerDown(Pointer{X: 80, Y: 80})
	e.PointerUp(Pointer{X: 80, Y: 80})
	assert.Equal(t, cursor, e.HistoryCursor())

	e.PointerDown(Pointer{X: 20, Y: 20})
	e.PointerUp(Pointer{X: 20, Y: 20})
	assert.Equal(t, cursor, e.HistoryCursor())
	assert.True(t, before.Equal(e.Scene()))
	assert.Equal(t, []document.AnnotationRef{{ParentImageID: "img_1", AnnotationID: "anno_1"}}, e.Selection().Annotations)
}

func mustAdd(t *testing.T, s document.Scene, parent string, a document.Annotation) document.Scene {
	t.Helper()
	next, err := document.AddAnnotation(s, parent, a)
	require.NoError(t, err)
	return next
}

func TestMoveAnnotationReparents(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e,
		document.Image{ID: "img_a", Width: 100, Height: 100},
		document.Image{ID: "img_b", X: 300, Width: 100, Height: 100, Scale: 2},
	)
	e.hist.Push(mustAdd(t, e.hist.Current(), "img_a", document.Annotation{
		ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1,
		Shape: document.RectShape{X: 10, Y: 10, Width: 20, Height: 20},
	}))

	// Onto image b.
	drag(e, geom.Pt(20, 20), geom.Pt(320, 20), Modifiers{})
	a, _ := e.Scene().Image("img_a")
	b, _ := e.Scene().Image("img_b")
	assert.Empty(t, a.Annotations)
	require.Len(t, b.Annotations, 1)
	moved := document.AnnotationRef{ParentImageID: "img_b", AnnotationID: b.Annotations[0].ID}
	assert.Equal(t, []document.AnnotationRef{moved}, e.Selection().Annotations)
	bounds := document.AnnotationWorldBounds(b.Annotations[0], b.Frame(), e.measurer)
	assert.InDelta(t, 310, bounds.X, 1e-6)
	assert.InDelta(t, 20, bounds.Width, 1e-6)

	// Released over empty space it stays with its owner.
	drag(e, geom.Pt(320, 20), geom.Pt(320, 500), Modifiers{})
	b, _ = e.Scene().Image("img_b")
	require.Len(t, b.Annotations, 1)
	assert.Empty(t, e.Scene().CanvasAnnotations)
	bounds = document.AnnotationWorldBounds(b.Annotations[0], b.Frame(), e.measurer)
	assert.InDelta(t, 490, bounds.Y, 1e-6)
}

func TestMoveAnnotationOwnership(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		parent     string
		shape      document.RectShape
		from, to   geom.Point
		wantParent string
	}{
		{
			name:       "nudged past its image edge",
			parent:     "img_a",
			shape:      document.RectShape{X: 80, Y: 10, Width: 10, Height: 10},
			from:       geom.Pt(85, 15),
			to:         geom.Pt(115, 15),
			wantParent: "img_a",
		},
		{
			name:       "canvas annotation dropped on an image",
			parent:     "",
			shape:      document.RectShape{X: 300, Y: 300, Width: 10, Height: 10},
			from:       geom.Pt(305, 305),
			to:         geom.Pt(50, 50),
			wantParent: "img_a",
		},
		{
			name:       "canvas annotation dropped on empty space",
			parent:     "",
			shape:      document.RectShape{X: 300, Y: 300, Width: 10, Height: 10},
			from:       geom.Pt(305, 305),
			to:         geom.Pt(405, 305),
			wantParent: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			addImages(t, e, document.Image{ID: "img_a", Width: 100, Height: 100})
			e.hist.Push(mustAdd(t, e.hist.Current(), tt.parent, document.Annotation{
				ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1, Shape: tt.shape,
			}))
			cursor := e.HistoryCursor()

			drag(e, tt.from, tt.to, Modifiers{})
			assert.Equal(t, cursor+1, e.HistoryCursor())
			refs := e.Selection().Annotations
			require.Len(t, refs, 1)
			assert.Equal(t, tt.wantParent, refs[0].ParentImageID)

			a, ok := e.Scene().Annotation(refs[0])
			require.True(t, ok)
			parent, _ := e.Scene().ParentFrame(refs[0].ParentImageID)
			c := document.AnnotationWorldBounds(a, parent, e.measurer).Center()
			d := tt.to.Sub(tt.from)
			want := geom.Pt(tt.shape.X+5+d.X, tt.shape.Y+5+d.Y)
			assert.InDelta(t, want.X, c.X, 1e-6)
			assert.InDelta(t, want.Y, c.Y, 1e-6)
		})
	}
}

func TestMarqueeIncludesTouchingEdges(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e,
		document.Image{ID: "img_overlap", X: 90, Y: 90, Width: 20, Height: 20},
		document.Image{ID: "img_touch", X: 100, Y: 0, Width: 20, Height: 20},
		document.Image{ID: "img_far", X: 300, Y: 300, Width: 20, Height: 20},
	)
	cursor := e.HistoryCursor()

	drag(e, geom.Pt(0, 0), geom.Pt(100, 100), Modifiers{})
	assert.ElementsMatch(t, []string{"img_overlap", "img_touch"}, e.Selection().Images)
	assert.Nil(t, e.Overlay().Marquee)
	assert.Equal(t, cursor, e.HistoryCursor())

	// A click on empty space clears the selection.
	e.PointerDown(Pointer{X: 500, Y: 500})
	e.PointerUp(Pointer{X: 500, Y: 500})
	assert.True(t, e.Selection().Empty())
}

func TestCropTrimsAndUncropRestores(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	pix := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 20; y < 70; y++ {
		for x := 10; x < 60; x++ {
			pix.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	addImages(t, e, document.Image{ID: "img_1", Raster: e.rasters.Put(pix), Width: 100, Height: 80})
	orig, _ := e.Scene().Image("img_1")
	cursor := e.HistoryCursor()

	_, err := e.ConfirmCrop()
	require.ErrorIs(t, err, ErrNoCropArea)

	e.SetCrop(&geom.Rect{X: -10, Y: -10, Width: 200, Height: 200})
	created, err := e.ConfirmCrop()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, cursor+1, e.HistoryCursor())
	assert.Nil(t, e.Crop())
	assert.Equal(t, created, e.Selection().Images)

	cropped, ok := e.Scene().Image(created[0])
	require.True(t, ok)
	assert.False(t, e.Scene().HasImage("img_1"))
	assert.Equal(t, 50.0, cropped.Width)
	assert.Equal(t, 50.0, cropped.Height)
	assert.Equal(t, 10.0, cropped.X)
	assert.Equal(t, 20.0, cropped.Y)
	assert.Equal(t, "img_1", cropped.UncroppedFromID)

	archived, ok := e.Archived("img_1")
	require.True(t, ok)
	assert.Equal(t, orig.Raster, archived.Raster)
	assert.Equal(t, orig.X, archived.X)
	assert.Equal(t, orig.Width, archived.Width)
	assert.Equal(t, orig.Height, archived.Height)

	require.NoError(t, e.Uncrop(cropped.ID))
	restored, ok := e.Scene().Image("img_1")
	require.True(t, ok)
	assert.Equal(t, 100.0, restored.Width)
	c := restored.Frame().Center()
	assert.InDelta(t, 35, c.X, 1e-9)
	assert.InDelta(t, 45, c.Y, 1e-9)

	err = e.Uncrop("img_1")
	assert.ErrorIs(t, err, ErrNotCropped)
}

func TestCropOutsideEveryImage(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", Width: 10, Height: 10})
	cursor := e.HistoryCursor()

	e.SetCrop(&geom.Rect{X: 50, Y: 50, Width: 10, Height: 10})
	_, err := e.ConfirmCrop()
	assert.ErrorIs(t, err, ErrNothingToCrop)
	assert.Equal(t, cursor, e.HistoryCursor())
	assert.NotNil(t, e.Crop())
}

func TestCropToolDrawsBox(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	require.NoError(t, e.SetTool(ToolCrop))
	drag(e, geom.Pt(40, 30), geom.Pt(10, 10), Modifiers{})
	require.NotNil(t, e.Crop())
	assert.Equal(t, geom.Rect{X: 10, Y: 10, Width: 30, Height: 20}, *e.Crop())

	e.SetCropAspect(2)
	require.NoError(t, e.SetTool(ToolCrop))
	e.SetCrop(nil)
	drag(e, geom.Pt(0, 0), geom.Pt(40, 5), Modifiers{})
	require.NotNil(t, e.Crop())
	assert.Equal(t, 40.0, e.Crop().Width)
	assert.Equal(t, 20.0, e.Crop().Height)
}

func TestUndoClearsSelection(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", Width: 10, Height: 10})
	drag(e, geom.Pt(5, 5), geom.Pt(15, 5), Modifiers{})
	require.NotEmpty(t, e.Selection().Images)

	assert.True(t, e.KeyDown("z", Modifiers{Ctrl: true}))
	assert.True(t, e.Selection().Empty())
	img, _ := e.Scene().Image("img_1")
	assert.Equal(t, 0.0, img.X)

	e.sel.SelectImages("img_1")
	assert.True(t, e.KeyDown("z", Modifiers{Meta: true, Shift: true}))
	assert.True(t, e.Selection().Empty())
	img, _ = e.Scene().Image("img_1")
	assert.Equal(t, 10.0, img.X)
}

func TestGroupCycleIsRejected(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e,
		document.Image{ID: "img_a", Width: 10, Height: 10},
		document.Image{ID: "img_b", X: 20, Width: 10, Height: 10},
	)
	e.sel.SelectImages("img_a")
	ga, err := e.Group("A")
	require.NoError(t, err)
	e.sel.SelectImages("img_b")
	gb, err := e.Group("B")
	require.NoError(t, err)

	require.NoError(t, e.SetGroupParent(ga, gb))
	cursor := e.HistoryCursor()
	before := e.Scene()

	err = e.SetGroupParent(gb, ga)
	assert.ErrorIs(t, err, document.ErrGroupCycle)
	assert.Equal(t, cursor, e.HistoryCursor())
	assert.True(t, before.Equal(e.Scene()))

	// Expanding a group changes the layer list without an undo step.
	require.NoError(t, e.SetGroupExpanded(gb, false))
	assert.Equal(t, cursor, e.HistoryCursor())
	g, _ := e.Scene().Group(gb)
	assert.False(t, g.IsExpanded)
}

type fakeSampler struct {
	c color.RGBA
}

func (f fakeSampler) SampleAt(geom.Point) (r, g, b, a uint8) {
	return f.c.R, f.c.G, f.c.B, f.c.A
}

func TestEyedropper(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, WithSampler(fakeSampler{color.RGBA{0x10, 0x20, 0x30, 255}}))
	require.NoError(t, e.SetTool(ToolEyedropper))
	e.PointerDown(Pointer{X: 3, Y: 4})
	assert.Equal(t, "#102030", e.Style().Color)
	assert.False(t, e.Interacting())

	e = newTestEngine(t, WithSampler(fakeSampler{}))
	require.NoError(t, e.SetTool(ToolEyedropper))
	e.PointerDown(Pointer{X: 3, Y: 4})
	assert.Equal(t, DefaultConfig().Style.Color, e.Style().Color)
}

func TestSceneSamplerReadsRaster(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{
		ID: "img_1", Width: 10, Height: 10,
		Raster: e.rasters.Put(solid(10, 10, color.RGBA{0x33, 0x66, 0x99, 255})),
	})
	r, g, b, a := sceneSampler{e}.SampleAt(geom.Pt(5, 5))
	assert.Equal(t, [4]uint8{0x33, 0x66, 0x99, 255}, [4]uint8{r, g, b, a})

	_, _, _, a = sceneSampler{e}.SampleAt(geom.Pt(50, 50))
	assert.Zero(t, a)
}

func TestSelectLayer(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e,
		document.Image{ID: "img_0", Width: 10, Height: 10},
		document.Image{ID: "img_1", X: 20, Width: 10, Height: 10},
		document.Image{ID: "img_2", X: 40, Width: 10, Height: 10},
	)
	layer := func(id string) document.LayerRef {
		return document.LayerRef{Kind: document.LayerImage, ID: id}
	}

	e.SelectLayer(layer("img_2"), Modifiers{})
	assert.Equal(t, []string{"img_2"}, e.Selection().Images)

	e.SelectLayer(layer("img_0"), Modifiers{Shift: true})
	assert.ElementsMatch(t, []string{"img_0", "img_1", "img_2"}, e.Selection().Images)

	e.SelectLayer(layer("img_1"), Modifiers{Ctrl: true})
	assert.ElementsMatch(t, []string{"img_0", "img_2"}, e.Selection().Images)

	e.SelectLayer(layer("img_1"), Modifiers{Meta: true})
	assert.ElementsMatch(t, []string{"img_0", "img_1", "img_2"}, e.Selection().Images)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIngestSkipsBadFiles(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	files := []File{
		{Name: "a.png", Data: encodePNG(t, solid(4, 3, color.RGBA{1, 2, 3, 255}))},
		{Name: "notes.txt", Data: []byte("hello")},
		{Name: "b.png", Data: encodePNG(t, solid(2, 2, color.RGBA{9, 9, 9, 255}))},
	}
	ids, err := e.Ingest(context.Background(), files, geom.Pt(10, 10))
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)

	require.Len(t, ids, 2)
	assert.Equal(t, 1, e.HistoryCursor())
	assert.Equal(t, ids, e.Selection().Images)
	first, _ := e.Scene().Image(ids[0])
	second, _ := e.Scene().Image(ids[1])
	assert.Equal(t, 4.0, first.Width)
	assert.Equal(t, "b.png", second.Name)
	assert.Equal(t, 34.0, second.X)
}

func TestReplaceRasterOnDeletedImageIsDropped(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", Width: 10, Height: 10})
	data := encodePNG(t, solid(6, 6, color.RGBA{5, 5, 5, 255}))

	require.NoError(t, e.ReplaceRaster(context.Background(), "img_1", data))
	img, _ := e.Scene().Image("img_1")
	assert.Equal(t, 6.0, img.Width)

	e.sel.SelectImages("img_1")
	require.True(t, e.DeleteSelection())
	cursor := e.HistoryCursor()

	err := e.ReplaceRaster(context.Background(), "img_1", data)
	assert.ErrorIs(t, err, document.ErrNotFound)
	assert.Equal(t, cursor, e.HistoryCursor())
}

func TestSaveAndLoadProject(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{ID: "img_1", X: 5, Width: 8, Height: 8})
	e.hist.Push(mustAdd(t, e.hist.Current(), "", document.Annotation{
		ID: "anno_1", Color: "#000000", StrokeWidth: 1, Scale: 1,
		Shape: document.LineShape{Start: geom.Pt(0, 0), End: geom.Pt(5, 5)},
	}))
	e.SetView(geom.View{OffsetX: 10, Scale: 2})
	require.True(t, e.IsDirty())

	data, err := e.SaveProject()
	require.NoError(t, err)
	assert.False(t, e.IsDirty())

	loaded := newTestEngine(t)
	require.NoError(t, loaded.LoadProject(data))
	assert.Equal(t, e.View(), loaded.View())
	img, ok := loaded.Scene().Image("img_1")
	require.True(t, ok)
	assert.True(t, loaded.Rasters().Has(img.Raster))
	assert.Len(t, loaded.Scene().CanvasAnnotations, 1)
	assert.False(t, loaded.CanUndo())
	assert.False(t, loaded.IsDirty())

	// A bad file leaves the loaded state alone.
	before := loaded.Scene()
	err = loaded.LoadProject([]byte(`{"version":1,"state":{"images":[{"id":"img_x","scale":1,"src":"bad"}]}}`))
	require.Error(t, err)
	assert.True(t, before.Equal(loaded.Scene()))
}

func TestHitPriority(t *testing.T) {
	t.Parallel()

	s := document.Scene{
		Images: []document.Image{
			{ID: "img_low", Width: 100, Height: 100, Scale: 1},
			{ID: "img_high", X: 50, Width: 100, Height: 100, Scale: 1},
		},
	}
	s, err := document.AddAnnotation(s, "img_low", document.Annotation{
		ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1,
		Shape: document.RectShape{X: 10, Y: 10, Width: 20, Height: 20},
	})
	require.NoError(t, err)
	opts := HitOptions{ViewScale: 1, Handles: render.DefaultHandleMetrics}

	assert.Equal(t, HitAnnotation, HitTest(s, geom.Pt(20, 20), opts).Kind)
	assert.Equal(t, "img_high", HitTest(s, geom.Pt(75, 50), opts).ImageID)
	assert.Equal(t, "img_low", HitTest(s, geom.Pt(40, 50), opts).ImageID)
	assert.Equal(t, HitNone, HitTest(s, geom.Pt(500, 500), opts).Kind)

	opts.Crop = &geom.Rect{X: 0, Y: 0, Width: 40, Height: 40}
	assert.Equal(t, HitCropBody, HitTest(s, geom.Pt(20, 20), opts).Kind)
	h := HitTest(s, geom.Pt(40, 40), opts)
	assert.Equal(t, HitCropHandle, h.Kind)
	assert.Equal(t, render.CropSE, h.CropHandle)
	assert.Equal(t, HitImage, HitTest(s, geom.Pt(75, 50), opts).Kind)
	assert.Equal(t, HitCropOutside, HitTest(s, geom.Pt(500, 500), opts).Kind)
}

// handlesOf returns the handles of the referenced annotation as the hit test
// sees them.
func handlesOf(t *testing.T, e *Engine, ref document.AnnotationRef) render.AnnotationHandles {
	t.Helper()
	a, ok := e.Scene().Annotation(ref)
	require.True(t, ok)
	parent, _ := e.Scene().ParentFrame(ref.ParentImageID)
	opts := e.hitOptions()
	return render.HandlesFor(a, parent, opts.scale(), opts.Handles, opts.measurer())
}

// addCanvasAnnotation adds a to the canvas and selects it alone.
func addCanvasAnnotation(t *testing.T, e *Engine, a document.Annotation) document.AnnotationRef {
	t.Helper()
	e.hist.Push(mustAdd(t, e.hist.Current(), "", a))
	ref := document.AnnotationRef{AnnotationID: a.ID}
	e.sel.SelectAnnotation(ref)
	return ref
}

func TestScaleHandleDrag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		shape document.RectShape
		to    func(h render.AnnotationHandles) geom.Point
		want  float64
	}{
		{
			name:  "twice as far doubles",
			shape: document.RectShape{X: 100, Y: 100, Width: 40, Height: 40},
			to: func(h render.AnnotationHandles) geom.Point {
				return h.Center.Add(h.Scale.Sub(h.Center).Mul(2))
			},
			want: 2,
		},
		{
			name:  "onto the centre clamps to the minimum",
			shape: document.RectShape{X: 100, Y: 100, Width: 40, Height: 40},
			to:    func(h render.AnnotationHandles) geom.Point { return h.Center },
			want:  DefaultConfig().MinAnnotationScale,
		},
		{
			name:  "no initial distance keeps the scale",
			shape: document.RectShape{X: 100, Y: 100, Width: 1e-7, Height: 1e-7},
			to:    func(h render.AnnotationHandles) geom.Point { return h.Center.Add(geom.Pt(30, 30)) },
			want:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			ref := addCanvasAnnotation(t, e, document.Annotation{
				ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1, Shape: tt.shape,
			})
			cursor := e.HistoryCursor()
			h := handlesOf(t, e, ref)

			e.PointerDown(Pointer{X: h.Scale.X, Y: h.Scale.Y})
			_, ok := e.active.(*scaleInteraction)
			require.True(t, ok, "scale handle starts a scale drag")
			to := tt.to(h)
			e.PointerMove(Pointer{X: to.X, Y: to.Y})
			e.PointerUp(Pointer{X: to.X, Y: to.Y})

			a, _ := e.Scene().Annotation(ref)
			assert.InDelta(t, tt.want, a.Scale, 1e-9)
			assert.Equal(t, tt.shape, a.Shape, "scale leaves the geometry alone")
			assert.Equal(t, cursor+1, e.HistoryCursor())
		})
	}
}

func TestRotateHandleDrag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		deg   float64
		shift bool
		want  float64
	}{
		{"quarter turn", 90, false, 90},
		{"free angle", 50, false, 50},
		{"shift snaps", 50, true, 45},
		{"shift snaps back", -8, true, -15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			ref := addCanvasAnnotation(t, e, document.Annotation{
				ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1,
				Shape: document.RectShape{X: 100, Y: 100, Width: 40, Height: 40},
			})
			h := handlesOf(t, e, ref)
			mods := Modifiers{Shift: tt.shift}

			e.PointerDown(Pointer{X: h.Rotate.X, Y: h.Rotate.Y, Modifiers: mods})
			_, ok := e.active.(*rotateInteraction)
			require.True(t, ok, "rotate handle starts a rotate drag")
			to := geom.RotateAbout(h.Rotate, h.Center, tt.deg)
			e.PointerUp(Pointer{X: to.X, Y: to.Y, Modifiers: mods})

			a, _ := e.Scene().Annotation(ref)
			assert.InDelta(t, tt.want, a.Rotation, 1e-6)
		})
	}
}

func TestEndpointHandleDrag(t *testing.T) {
	t.Parallel()

	line := document.LineShape{Start: geom.Pt(100, 100), End: geom.Pt(200, 100)}
	tests := []struct {
		name      string
		grab      func(h render.AnnotationHandles) geom.Point
		to        geom.Point
		shift     bool
		wantStart geom.Point
		wantEnd   geom.Point
	}{
		{
			name:      "end follows the pointer",
			grab:      func(h render.AnnotationHandles) geom.Point { return h.End },
			to:        geom.Pt(250, 130),
			wantStart: line.Start,
			wantEnd:   geom.Pt(250, 130),
		},
		{
			name:      "start follows the pointer",
			grab:      func(h render.AnnotationHandles) geom.Point { return h.Start },
			to:        geom.Pt(90, 60),
			wantStart: geom.Pt(90, 60),
			wantEnd:   line.End,
		},
		{
			name:      "shift snaps to 45 degrees keeping length",
			grab:      func(h render.AnnotationHandles) geom.Point { return h.End },
			to:        geom.Pt(180, 175),
			shift:     true,
			wantStart: line.Start,
			wantEnd: geom.Pt(
				100+math.Sqrt(80*80+75*75)/math.Sqrt2,
				100+math.Sqrt(80*80+75*75)/math.Sqrt2,
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			ref := addCanvasAnnotation(t, e, document.Annotation{
				ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1, Shape: line,
			})
			from := tt.grab(handlesOf(t, e, ref))
			mods := Modifiers{Shift: tt.shift}

			e.PointerDown(Pointer{X: from.X, Y: from.Y, Modifiers: mods})
			_, ok := e.active.(*endpointInteraction)
			require.True(t, ok, "endpoint handle starts an endpoint drag")
			e.PointerUp(Pointer{X: tt.to.X, Y: tt.to.Y, Modifiers: mods})

			a, _ := e.Scene().Annotation(ref)
			start, end, ok := document.Endpoints(a.Shape)
			require.True(t, ok)
			assert.InDelta(t, tt.wantStart.X, start.X, 1e-6)
			assert.InDelta(t, tt.wantStart.Y, start.Y, 1e-6)
			assert.InDelta(t, tt.wantEnd.X, end.X, 1e-6)
			assert.InDelta(t, tt.wantEnd.Y, end.Y, 1e-6)
		})
	}
}

func TestSelectedHandlesBeatAnnotationBodies(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	under := addCanvasAnnotation(t, e, document.Annotation{
		ID: "anno_under", Color: "#000", StrokeWidth: 2, Scale: 1,
		Shape: document.RectShape{X: 100, Y: 100, Width: 40, Height: 40},
	})
	over := document.AnnotationRef{AnnotationID: "anno_over"}
	e.hist.Push(mustAdd(t, e.hist.Current(), "", document.Annotation{
		ID: "anno_over", Color: "#000", StrokeWidth: 2, Scale: 1,
		Shape: document.RectShape{X: 130, Y: 130, Width: 40, Height: 40},
	}))
	p := handlesOf(t, e, under).Scale

	tests := []struct {
		name     string
		selected []document.AnnotationRef
		want     Hit
	}{
		{
			name: "nothing selected hits the top body",
			want: Hit{Kind: HitAnnotation, Annotation: over, CropHandle: render.CropNone},
		},
		{
			name:     "single selection hits its handle",
			selected: []document.AnnotationRef{under},
			want:     Hit{Kind: HitAnnotationHandle, Handle: HandleScale, Annotation: under, CropHandle: render.CropNone},
		},
		{
			name:     "multiple selection has no handles",
			selected: []document.AnnotationRef{under, over},
			want:     Hit{Kind: HitAnnotation, Annotation: over, CropHandle: render.CropNone},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.sel.Clear()
			e.sel.Annotations = tt.selected
			assert.Equal(t, tt.want, HitTest(e.Scene(), p, e.hitOptions()))
		})
	}
}

func TestCropAndUncropKeepAnnotationsInPlace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rotation float64
		scale    float64
	}{
		{"upright", 0, 1},
		{"rotated and scaled", 30, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			addImages(t, e, document.Image{
				ID: "img_1", X: 100, Y: 100, Width: 100, Height: 80,
				Scale: tt.scale, Rotation: tt.rotation,
			})
			e.hist.Push(mustAdd(t, e.hist.Current(), "img_1", document.Annotation{
				ID: "anno_1", Color: "#000", StrokeWidth: 2, Scale: 1.5, Rotation: 10,
				Shape: document.RectShape{X: 20, Y: 30, Width: 10, Height: 10},
			}))
			centre := func(id string) geom.Point {
				t.Helper()
				img, ok := e.Scene().Image(id)
				require.True(t, ok)
				require.Len(t, img.Annotations, 1)
				return document.AnnotationWorldBounds(img.Annotations[0], img.Frame(), e.measurer).Center()
			}
			before := centre("img_1")

			e.SetCrop(&geom.Rect{X: -1000, Y: -1000, Width: 3000, Height: 3000})
			created, err := e.ConfirmCrop()
			require.NoError(t, err)
			require.Len(t, created, 1)
			cropped := centre(created[0])
			assert.InDelta(t, before.X, cropped.X, 1e-6)
			assert.InDelta(t, before.Y, cropped.Y, 1e-6)

			require.NoError(t, e.Uncrop(created[0]))
			restored := centre("img_1")
			assert.InDelta(t, cropped.X, restored.X, 1e-6)
			assert.InDelta(t, cropped.Y, restored.Y, 1e-6)
		})
	}
}

func TestCropBakesOutline(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e, document.Image{
		ID: "img_1", X: 10, Y: 10, Width: 20, Height: 20,
		OutlineColor: "#00ff00", OutlineWidth: 4, OutlineOpacity: 1,
	})

	e.SetCrop(&geom.Rect{X: -100, Y: -100, Width: 300, Height: 300})
	created, err := e.ConfirmCrop()
	require.NoError(t, err)
	require.Len(t, created, 1)

	img, _ := e.Scene().Image(created[0])
	assert.InDelta(t, 24, img.Width, 1)
	assert.InDelta(t, 24, img.Height, 1)
	assert.InDelta(t, 8, img.X, 1)
	assert.Zero(t, img.OutlineWidth)
	assert.Empty(t, img.OutlineColor)

	// The outer half of the outline is part of the new raster.
	r, g, b, a := sceneSampler{e}.SampleAt(geom.Pt(8.5, 20))
	assert.Greater(t, g, uint8(200))
	assert.Less(t, r, uint8(50))
	assert.Less(t, b, uint8(50))
	assert.Greater(t, a, uint8(200))
}

func TestSetImageOutline(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	addImages(t, e,
		document.Image{ID: "img_1", Width: 10, Height: 10},
		document.Image{ID: "img_2", X: 20, Width: 10, Height: 10},
	)
	cursor := e.HistoryCursor()

	e.sel.SelectImages("img_1")
	assert.True(t, e.SetImageOutline("#ff0000", 3, 1))
	assert.Equal(t, cursor+1, e.HistoryCursor())
	assert.False(t, e.SetImageOutline("#ff0000", 3, 1), "unchanged outline is not a history step")
	assert.Equal(t, cursor+1, e.HistoryCursor())

	one, _ := e.Scene().Image("img_1")
	two, _ := e.Scene().Image("img_2")
	assert.Equal(t, "#ff0000", one.OutlineColor)
	assert.Equal(t, 3.0, one.OutlineWidth)
	assert.Zero(t, two.OutlineWidth)
}
