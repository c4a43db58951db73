package document

import (
	"fmt"

	"github.com/inamate/imageboard/internal/geom"
)

// RebaseAnnotation re-expresses a, stored in the local space of from, in the
// local space of to so that its world appearance is unchanged.
//
// For lines and arrows both endpoints are mapped through world space and the
// composed scale only affects stroke width. Every other kind keeps its shape
// in its own frame: the primitive center is mapped through world space, the
// geometry is translated onto it, and the parent's scale and rotation are
// folded into the annotation's own.
func RebaseAnnotation(a Annotation, from, to geom.Frame, m TextMeasurer) Annotation {
	out := a.Clone()
	out.Scale = scaleOf(a) * frameScale(from) / frameScale(to)
	out.Rotation = from.Rotation + a.Rotation - to.Rotation

	if start, end, ok := Endpoints(a.Shape); ok {
		out.Shape = WithEndpoints(a.Shape,
			to.GlobalToLocal(from.LocalToGlobal(start)),
			to.GlobalToLocal(from.LocalToGlobal(end)),
		)
		return out
	}

	c := PrimitiveBounds(a, m).Center()
	moved := to.GlobalToLocal(from.LocalToGlobal(c))
	return TranslateAnnotation(out, moved.Sub(c))
}

// ReparentAnnotationToImage moves the referenced annotation into the
// annotation list of destImageID. Moving onto its current owner is a no-op.
func ReparentAnnotationToImage(s Scene, ref AnnotationRef, destImageID string, m TextMeasurer) (Scene, AnnotationRef, error) {
	if ref.ParentImageID == destImageID {
		return s, ref, nil
	}
	dest, ok := s.Image(destImageID)
	if !ok {
		return s, ref, fmt.Errorf("image %s: %w", destImageID, ErrNotFound)
	}
	return reparent(s, ref, destImageID, dest.Frame(), m)
}

// ReparentAnnotationToCanvas moves the referenced annotation into the
// canvas-level collection, composing its former owner's transform into it.
func ReparentAnnotationToCanvas(s Scene, ref AnnotationRef, m TextMeasurer) (Scene, AnnotationRef, error) {
	if ref.OnCanvas() {
		return s, ref, nil
	}
	return reparent(s, ref, "", geom.IdentityFrame, m)
}

func reparent(s Scene, ref AnnotationRef, destID string, dest geom.Frame, m TextMeasurer) (Scene, AnnotationRef, error) {
	a, ok := s.Annotation(ref)
	if !ok {
		return s, ref, fmt.Errorf("annotation %s: %w", ref.AnnotationID, ErrNotFound)
	}
	from, _ := s.ParentFrame(ref.ParentImageID)
	moved := RebaseAnnotation(a, from, dest, m)

	next := RemoveAnnotations(s, []AnnotationRef{ref})
	next, err := AddAnnotation(next, destID, moved)
	if err != nil {
		return s, ref, err
	}
	return next, AnnotationRef{ParentImageID: destID, AnnotationID: a.ID}, nil
}

func frameScale(f geom.Frame) float64 {
	if f.Scale == 0 {
		return 1
	}
	return f.Scale
}
