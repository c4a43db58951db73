package document

import (
	"fmt"

	"github.com/inamate/imageboard/internal/geom"
)

// AddImages puts images on top of the z-order.
func AddImages(s Scene, imgs ...Image) Scene {
	next := s.Clone()
	for _, img := range imgs {
		if img.Scale <= 0 {
			img.Scale = 1
		}
		next.Images = append(next.Images, img.Clone())
	}
	return next
}

// RemoveImages deletes images (with their annotations) and drops them from
// every group, pruning groups left empty.
func RemoveImages(s Scene, ids []string) Scene {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	next := s.Clone()
	kept := next.Images[:0:0]
	for _, img := range next.Images {
		if !drop[img.ID] {
			kept = append(kept, img)
		}
	}
	next.Images = kept
	for i := range next.Groups {
		g := &next.Groups[i]
		ids := g.ImageIDs[:0:0]
		for _, id := range g.ImageIDs {
			if !drop[id] {
				ids = append(ids, id)
			}
		}
		g.ImageIDs = ids
	}
	return pruneEmptyGroups(next)
}

// UpdateImage applies fn to a copy of the image.
func UpdateImage(s Scene, id string, fn func(*Image)) (Scene, error) {
	i := s.ImageIndex(id)
	if i < 0 {
		return s, fmt.Errorf("image %s: %w", id, ErrNotFound)
	}
	next := s.Clone()
	fn(&next.Images[i])
	if next.Images[i].Scale <= 0 {
		next.Images[i].Scale = s.Images[i].Scale
	}
	return next, nil
}

// SwapImage replaces the image oldID with img at the same z-index and group
// slot. The new image may carry a different id.
func SwapImage(s Scene, oldID string, img Image) (Scene, error) {
	i := s.ImageIndex(oldID)
	if i < 0 {
		return s, fmt.Errorf("image %s: %w", oldID, ErrNotFound)
	}
	next := s.Clone()
	next.Images[i] = img.Clone()
	if img.ID != oldID {
		for gi := range next.Groups {
			for j, id := range next.Groups[gi].ImageIDs {
				if id == oldID {
					next.Groups[gi].ImageIDs[j] = img.ID
				}
			}
		}
	}
	return next, nil
}

// TranslateImages moves images by a world-space delta.
func TranslateImages(s Scene, ids []string, d geom.Point) Scene {
	next := s.Clone()
	for _, id := range ids {
		if i := next.ImageIndex(id); i >= 0 {
			next.Images[i].X += d.X
			next.Images[i].Y += d.Y
		}
	}
	return next
}

// AddAnnotation appends an annotation to the parent's list (on top).
func AddAnnotation(s Scene, parentImageID string, a Annotation) (Scene, error) {
	next := s.Clone()
	list := next.annotationsPtr(parentImageID)
	if list == nil {
		return s, fmt.Errorf("image %s: %w", parentImageID, ErrNotFound)
	}
	if a.Scale <= 0 {
		a.Scale = 1
	}
	*list = append(*list, a.Clone())
	return next, nil
}

// RemoveAnnotations deletes the referenced annotations. Stale references are
// ignored.
func RemoveAnnotations(s Scene, refs []AnnotationRef) Scene {
	next := s.Clone()
	for _, ref := range refs {
		list := next.annotationsPtr(ref.ParentImageID)
		if list == nil {
			continue
		}
		kept := (*list)[:0:0]
		for _, a := range *list {
			if a.ID != ref.AnnotationID {
				kept = append(kept, a)
			}
		}
		*list = kept
	}
	return next
}

// UpdateAnnotation replaces the referenced annotation with fn's result.
func UpdateAnnotation(s Scene, ref AnnotationRef, fn func(Annotation) Annotation) (Scene, error) {
	next := s.Clone()
	list := next.annotationsPtr(ref.ParentImageID)
	if list == nil {
		return s, fmt.Errorf("image %s: %w", ref.ParentImageID, ErrNotFound)
	}
	for i, a := range *list {
		if a.ID == ref.AnnotationID {
			(*list)[i] = fn(a)
			return next, nil
		}
	}
	return s, fmt.Errorf("annotation %s: %w", ref.AnnotationID, ErrNotFound)
}

// TranslateAnnotations moves annotations by a world-space delta. For
// image-owned annotations the delta is rotated and scaled into the owner's
// local frame first.
func TranslateAnnotations(s Scene, refs []AnnotationRef, d geom.Point) Scene {
	next := s.Clone()
	for _, ref := range refs {
		frame, ok := s.ParentFrame(ref.ParentImageID)
		if !ok {
			continue
		}
		local := frame.VectorToLocal(d)
		list := next.annotationsPtr(ref.ParentImageID)
		for i, a := range *list {
			if a.ID == ref.AnnotationID {
				(*list)[i] = TranslateAnnotation(a, local)
			}
		}
	}
	return next
}

// ReorderAnnotation moves an annotation to toIndex within its owner's list
// (0 is the bottom).
func ReorderAnnotation(s Scene, ref AnnotationRef, toIndex int) (Scene, error) {
	next := s.Clone()
	list := next.annotationsPtr(ref.ParentImageID)
	if list == nil {
		return s, fmt.Errorf("image %s: %w", ref.ParentImageID, ErrNotFound)
	}
	from := -1
	for i, a := range *list {
		if a.ID == ref.AnnotationID {
			from = i
		}
	}
	if from < 0 {
		return s, fmt.Errorf("annotation %s: %w", ref.AnnotationID, ErrNotFound)
	}
	*list = moveItem(*list, from, toIndex)
	return next, nil
}

func moveItem[T any](list []T, from, to int) []T {
	to = max(0, min(len(list)-1, to))
	if from == to {
		return list
	}
	item := list[from]
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
