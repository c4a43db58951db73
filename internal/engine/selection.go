package engine

import (
	"slices"

	"github.com/inamate/imageboard/internal/document"
)

// Selection is transient and never part of history.
type Selection struct {
	Images      []string                 `json:"images"`
	Annotations []document.AnnotationRef `json:"annotations"`

	// anchor is the last layer clicked in the layer list, the start of a
	// shift range.
	anchor *document.LayerRef
}

func (s *Selection) Clear() {
	s.Images = nil
	s.Annotations = nil
	s.anchor = nil
}

func (s Selection) Empty() bool {
	return len(s.Images) == 0 && len(s.Annotations) == 0
}

func (s Selection) HasImage(id string) bool { return slices.Contains(s.Images, id) }

func (s Selection) HasAnnotation(ref document.AnnotationRef) bool {
	return slices.Contains(s.Annotations, ref)
}

func (s *Selection) SelectImages(ids ...string) {
	s.Images = slices.Clone(ids)
	s.Annotations = nil
}

func (s *Selection) SelectAnnotation(ref document.AnnotationRef) {
	s.Images = nil
	s.Annotations = []document.AnnotationRef{ref}
}

func (s *Selection) ToggleImage(id string) {
	if i := slices.Index(s.Images, id); i >= 0 {
		s.Images = slices.Delete(s.Images, i, i+1)
		return
	}
	s.Images = append(s.Images, id)
}

func (s *Selection) ToggleAnnotation(ref document.AnnotationRef) {
	if i := slices.Index(s.Annotations, ref); i >= 0 {
		s.Annotations = slices.Delete(s.Annotations, i, i+1)
		return
	}
	s.Annotations = append(s.Annotations, ref)
}

// AddImages adds ids that are not selected yet.
func (s *Selection) AddImages(ids ...string) {
	for _, id := range ids {
		if !s.HasImage(id) {
			s.Images = append(s.Images, id)
		}
	}
}

// Prune drops references to entities no longer in scene.
func (s *Selection) Prune(scene document.Scene) {
	s.Images = slices.DeleteFunc(s.Images, func(id string) bool { return !scene.HasImage(id) })
	s.Annotations = scene.ValidRefs(s.Annotations)
}

// SingleAnnotation returns the selected annotation when it is the only
// selected entity.
func (s Selection) SingleAnnotation() (document.AnnotationRef, bool) {
	if len(s.Annotations) == 1 && len(s.Images) == 0 {
		return s.Annotations[0], true
	}
	return document.AnnotationRef{}, false
}

func (s *Selection) clone() Selection {
	return Selection{
		Images:      slices.Clone(s.Images),
		Annotations: slices.Clone(s.Annotations),
		anchor:      s.anchor,
	}
}

// SelectLayer applies a layer-list click. A plain click replaces the
// selection, shift selects the contiguous range from the last clicked layer
// and ctrl or cmd toggles the layer. A group toggles all its images
// together: they are removed when all are selected and added otherwise.
func (e *Engine) SelectLayer(ref document.LayerRef, mods Modifiers) {
	scene := e.hist.Working()
	ids := document.LayerImageIDs(scene, ref)
	s := &e.sel

	switch {
	case mods.Ctrl || mods.Meta:
		all := len(ids) > 0
		for _, id := range ids {
			if !s.HasImage(id) {
				all = false
				break
			}
		}
		if all {
			s.Images = slices.DeleteFunc(s.Images, func(id string) bool { return slices.Contains(ids, id) })
		} else {
			s.AddImages(ids...)
		}
		s.Annotations = nil
	case mods.Shift && s.anchor != nil:
		if rng, ok := layerRange(document.Layers(scene), *s.anchor, ref); ok {
			var sel []string
			for _, r := range rng {
				for _, id := range document.LayerImageIDs(scene, r) {
					if !slices.Contains(sel, id) {
						sel = append(sel, id)
					}
				}
			}
			s.SelectImages(sel...)
			return
		}
		s.SelectImages(ids...)
	default:
		s.SelectImages(ids...)
	}
	s.anchor = &ref
}

// layerRange returns the refs between a and b inclusive in list order.
func layerRange(list []document.LayerEntry, a, b document.LayerRef) ([]document.LayerRef, bool) {
	i := slices.IndexFunc(list, func(l document.LayerEntry) bool { return l.Ref == a })
	j := slices.IndexFunc(list, func(l document.LayerEntry) bool { return l.Ref == b })
	if i < 0 || j < 0 {
		return nil, false
	}
	if i > j {
		i, j = j, i
	}
	out := make([]document.LayerRef, 0, j-i+1)
	for _, l := range list[i : j+1] {
		out = append(out, l.Ref)
	}
	return out, true
}
