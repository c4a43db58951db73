package engine

import (
	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/render"
)

// HitKind is what a pointer landed on.
type HitKind string

const (
	HitNone             HitKind = ""
	HitCropHandle       HitKind = "cropHandle"
	HitCropBody         HitKind = "cropBody"
	HitCropOutside      HitKind = "cropOutside"
	HitAnnotationHandle HitKind = "annotationHandle"
	HitAnnotation       HitKind = "annotation"
	HitImage            HitKind = "image"
)

// HandleKind names an annotation manipulation handle.
type HandleKind string

const (
	HandleScale  HandleKind = "scale"
	HandleRotate HandleKind = "rotate"
	HandleStart  HandleKind = "start"
	HandleEnd    HandleKind = "end"
)

// Hit is the single topmost target under a point.
type Hit struct {
	Kind       HitKind                `json:"kind"`
	CropHandle render.CropHandle      `json:"cropHandle"`
	Handle     HandleKind             `json:"handle,omitempty"`
	Annotation document.AnnotationRef `json:"annotation"`
	ImageID    string                 `json:"imageId,omitempty"`
}

// HitOptions carries the view-dependent inputs of a hit test.
type HitOptions struct {
	ViewScale float64
	// Crop is the active crop box in world space, if any.
	Crop *geom.Rect
	// Selected is the single selected annotation whose handles are live.
	Selected *document.AnnotationRef
	Handles  render.HandleMetrics
	Measurer document.TextMeasurer
}

func (o HitOptions) scale() float64 {
	if o.ViewScale <= 0 {
		return 1
	}
	return o.ViewScale
}

func (o HitOptions) measurer() document.TextMeasurer {
	if o.Measurer == nil {
		return document.ApproxMeasurer{}
	}
	return o.Measurer
}

// HitTest returns the topmost target at world point p. A point outside an
// active crop box reports HitCropOutside only when nothing else is hit.
func HitTest(s document.Scene, p geom.Point, opts HitOptions) Hit {
	outside := false
	if opts.Crop != nil {
		h := hitCrop(*opts.Crop, p, opts)
		if h.Kind != HitCropOutside {
			return h
		}
		outside = true
	}
	if h, ok := hitAnnotationHandle(s, p, opts); ok {
		return h
	}
	if ref, ok := hitAnnotation(s, p, opts); ok {
		return Hit{Kind: HitAnnotation, Annotation: ref, CropHandle: render.CropNone}
	}
	if id, ok := hitImage(s, p); ok {
		return Hit{Kind: HitImage, ImageID: id, CropHandle: render.CropNone}
	}
	if outside {
		return Hit{Kind: HitCropOutside, CropHandle: render.CropNone}
	}
	return Hit{CropHandle: render.CropNone}
}

// hitCrop tests the eight resize handles before the box body.
func hitCrop(crop geom.Rect, p geom.Point, opts HitOptions) Hit {
	half := opts.Handles.CropHandle / opts.scale() / 2
	for i, c := range render.CropHandlePositions(crop) {
		r := geom.Rect{X: c.X - half, Y: c.Y - half, Width: 2 * half, Height: 2 * half}
		if r.Contains(p) {
			return Hit{Kind: HitCropHandle, CropHandle: render.CropHandle(i)}
		}
	}
	if crop.Normalize().Contains(p) {
		return Hit{Kind: HitCropBody, CropHandle: render.CropNone}
	}
	return Hit{Kind: HitCropOutside, CropHandle: render.CropNone}
}

// hitAnnotationHandle tests the handles of the single selected annotation.
func hitAnnotationHandle(s document.Scene, p geom.Point, opts HitOptions) (Hit, bool) {
	if opts.Selected == nil {
		return Hit{}, false
	}
	ref := *opts.Selected
	a, ok := s.Annotation(ref)
	if !ok {
		return Hit{}, false
	}
	parent, _ := s.ParentFrame(ref.ParentImageID)
	h := render.HandlesFor(a, parent, opts.scale(), opts.Handles, opts.measurer())
	hit := func(kind HandleKind) (Hit, bool) {
		return Hit{Kind: HitAnnotationHandle, Handle: kind, Annotation: ref, CropHandle: render.CropNone}, true
	}
	if h.Segment {
		// End first so a zero-length segment can still be extended.
		if p.Dist(h.End) <= h.Radius {
			return hit(HandleEnd)
		}
		if p.Dist(h.Start) <= h.Radius {
			return hit(HandleStart)
		}
		return Hit{}, false
	}
	if p.Dist(h.Rotate) <= h.Radius {
		return hit(HandleRotate)
	}
	if p.Dist(h.Scale) <= h.Radius {
		return hit(HandleScale)
	}
	return Hit{}, false
}

// hitAnnotation walks images front to back, each image's annotations last to
// first, then the canvas annotations.
func hitAnnotation(s document.Scene, p geom.Point, opts HitOptions) (document.AnnotationRef, bool) {
	for i := len(s.Images) - 1; i >= 0; i-- {
		img := s.Images[i]
		if id, ok := hitAnnotationIn(img.Annotations, img.Frame(), p, opts); ok {
			return document.AnnotationRef{ParentImageID: img.ID, AnnotationID: id}, true
		}
	}
	if id, ok := hitAnnotationIn(s.CanvasAnnotations, geom.IdentityFrame, p, opts); ok {
		return document.AnnotationRef{AnnotationID: id}, true
	}
	return document.AnnotationRef{}, false
}

func hitAnnotationIn(list []document.Annotation, parent geom.Frame, p geom.Point, opts HitOptions) (string, bool) {
	m := opts.measurer()
	for i := len(list) - 1; i >= 0; i-- {
		a := list[i]
		if AnnotationContains(a, parent, p, opts.scale(), opts.Handles.LineSlop, m) {
			return a.ID, true
		}
	}
	return "", false
}

// AnnotationContains reports whether world point p strikes a drawn inside
// parent. Segments use distance to the stroke; other kinds test the point
// against their primitive bounds in the annotation's own frame.
func AnnotationContains(a document.Annotation, parent geom.Frame, p geom.Point, viewScale, slop float64, m document.TextMeasurer) bool {
	if start, end, ok := document.Endpoints(a.Shape); ok {
		ws, we := parent.LocalToGlobal(start), parent.LocalToGlobal(end)
		threshold := a.StrokeWidth*positive(a.Scale)*positive(parent.Scale)/2 + slop/viewScale
		return geom.DistanceToSegment(p, ws, we) <= threshold
	}
	local := document.ToAnnotationLocal(a, parent.GlobalToLocal(p), m)
	return document.PrimitiveBounds(a, m).Contains(local)
}

// hitImage walks images front to back.
func hitImage(s document.Scene, p geom.Point) (string, bool) {
	for i := len(s.Images) - 1; i >= 0; i-- {
		img := s.Images[i]
		local := img.Frame().GlobalToLocal(p)
		if (geom.Rect{Width: img.Width, Height: img.Height}).Contains(local) {
			return img.ID, true
		}
	}
	return "", false
}

func positive(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
