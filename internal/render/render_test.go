package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

func sampleScene() document.Scene {
	return document.Scene{
		Images: []document.Image{
			{
				ID: "img1", Raster: "r1", Width: 100, Height: 80, Scale: 1,
				OutlineColor: "#000000", OutlineWidth: 2,
				Annotations: []document.Annotation{
					{ID: "a1", Color: "#ff0000", StrokeWidth: 3, Scale: 1, Shape: document.RectShape{X: 10, Y: 10, Width: 20, Height: 20, FillColor: "#00ff00"}},
				},
			},
			{ID: "img2", Raster: "r2", X: 200, Width: 50, Height: 50, Scale: 2, Rotation: 30},
		},
		CanvasAnnotations: []document.Annotation{
			{ID: "c1", Color: "#0000ff", StrokeWidth: 2, Scale: 1, Shape: document.ArrowShape{Start: geom.Pt(0, 0), End: geom.Pt(40, 0)}},
		},
	}
}

func ops(r *Recorder) []string {
	var out []string
	for _, c := range r.Commands {
		if c.Op == "save" || c.Op == "restore" || c.Op == "transform" {
			continue
		}
		out = append(out, c.Op)
	}
	return out
}

func TestRenderPainterOrder(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(nil)
	crop := geom.Rect{X: 5, Y: 5, Width: 50, Height: 40}
	Render(rec, sampleScene(), geom.DefaultView, Overlay{
		SelectedImages: []string{"img2"},
		Crop:           &crop,
	}, DefaultOptions())

	got := ops(rec)
	require.NotEmpty(t, got)
	// img1 raster, outline, annotation fill+stroke, img2 raster, arrow.
	assert.Equal(t, []string{"raster", "stroke", "fill", "stroke", "raster", "stroke"}, got[:6])
	// selection outline, then crop box: two strokes and eight handle squares.
	assert.Equal(t, "stroke", got[6])
	assert.Len(t, got, 7+2+16)
	assert.Equal(t, "fill", got[9])

	var rasters []string
	for _, c := range rec.Commands {
		if c.Op == "raster" {
			rasters = append(rasters, c.Raster)
		}
	}
	assert.Equal(t, []string{"r1", "r2"}, rasters)
}

func TestRenderBalancedSaveRestore(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(nil)
	s := sampleScene()
	marquee := geom.Rect{X: 10, Y: 10, Width: -5, Height: 20}
	ref := document.AnnotationRef{ParentImageID: "img1", AnnotationID: "a1"}
	Render(rec, s, geom.View{OffsetX: 10, Scale: 2}, Overlay{
		SelectedAnnotations: []document.AnnotationRef{ref, {ParentImageID: "gone", AnnotationID: "x"}},
		Handles:             &ref,
		Marquee:             &marquee,
		Draft: &Draft{Annotation: document.Annotation{
			ID: "d", Color: "#111111", StrokeWidth: 1, Scale: 1,
			Shape: document.FreehandShape{Points: []geom.Point{{X: 0, Y: 0}, {X: 5, Y: 5}, {X: 9, Y: 2}}},
		}},
	}, DefaultOptions())

	depth := 0
	for _, c := range rec.Commands {
		switch c.Op {
		case "save":
			depth++
		case "restore":
			depth--
		}
		require.GreaterOrEqual(t, depth, 0)
	}
	assert.Zero(t, depth)
}

func TestRecorderJSON(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(nil)
	rec.StrokePath(Path{}.MoveTo(1, 2).LineTo(3, 4), Stroke{Color: "#000", Width: 1})
	js, err := rec.JSON()
	require.NoError(t, err)
	assert.True(t, strings.Contains(js, `"path":[["M",1,2],["L",3,4]]`), js)
	assert.Contains(t, js, `"opacity":1`)

	empty, err := NewRecorder(nil).JSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestHandlesKeepScreenSize(t *testing.T) {
	t.Parallel()

	a := document.Annotation{ID: "r", Scale: 2, Rotation: 0, Shape: document.RectShape{X: 0, Y: 0, Width: 10, Height: 10}}
	parent := geom.Frame{Width: 100, Height: 100, Scale: 3}

	near := HandlesFor(a, parent, 1, DefaultHandleMetrics, nil)
	far := HandlesFor(a, parent, 4, DefaultHandleMetrics, nil)
	assert.InDelta(t, 8, near.Radius, 1e-9)
	assert.InDelta(t, 2, far.Radius, 1e-9)

	// Box of 10x10 scaled 2 about its center (5,5) then by the parent's 3.
	want := parent.LocalToGlobal(geom.Pt(15, 15))
	assert.True(t, near.Scale.Eq(want, 1e-9))
	assert.Greater(t, near.Rotate.Dist(near.Corners[1]), 23.9)

	seg := HandlesFor(document.Annotation{Shape: document.LineShape{Start: geom.Pt(1, 1), End: geom.Pt(9, 9)}}, geom.IdentityFrame, 1, DefaultHandleMetrics, nil)
	assert.True(t, seg.Segment)
	assert.Equal(t, geom.Pt(9, 9), seg.End)
}

func TestCropHandlePositionsNormalize(t *testing.T) {
	t.Parallel()

	h := CropHandlePositions(geom.Rect{X: 10, Y: 10, Width: -10, Height: -10})
	assert.Equal(t, geom.Pt(0, 0), h[CropNW])
	assert.Equal(t, geom.Pt(10, 10), h[CropSE])
	assert.Equal(t, geom.Pt(5, 0), h[CropN])
}
