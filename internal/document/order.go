package document

import (
	"fmt"
	"slices"
)

// ArrangeOp moves a layer relative to its siblings.
type ArrangeOp string

const (
	BringForward ArrangeOp = "forward"
	SendBackward ArrangeOp = "backward"
	BringToFront ArrangeOp = "front"
	SendToBack   ArrangeOp = "back"
)

// LayerEntry is one row of the layer list.
type LayerEntry struct {
	Ref      LayerRef `json:"ref"`
	Label    string   `json:"label"`
	Depth    int      `json:"depth"`
	ParentID string   `json:"parentId,omitempty"`
}

// LayerParent returns the group that directly contains the layer, "" for
// the top level.
func LayerParent(s Scene, ref LayerRef) string {
	if ref.Kind == LayerGroup {
		g, _ := s.Group(ref.ID)
		return g.ParentID
	}
	return GroupOfImage(s, ref.ID)
}

// OrderedChildrenOf returns the direct children of a group ("" for the top
// level) bottom to top. A child group sits at the z of its topmost image.
func OrderedChildrenOf(s Scene, groupID string) []LayerRef {
	var refs []LayerRef
	if groupID == "" {
		for _, img := range s.Images {
			if GroupOfImage(s, img.ID) == "" {
				refs = append(refs, LayerRef{Kind: LayerImage, ID: img.ID})
			}
		}
		for _, g := range s.Groups {
			if g.ParentID == "" {
				refs = append(refs, LayerRef{Kind: LayerGroup, ID: g.ID})
			}
		}
	} else {
		g, ok := s.Group(groupID)
		if !ok {
			return nil
		}
		for _, id := range g.ImageIDs {
			if s.HasImage(id) {
				refs = append(refs, LayerRef{Kind: LayerImage, ID: id})
			}
		}
		for _, id := range g.ChildGroupIDs {
			refs = append(refs, LayerRef{Kind: LayerGroup, ID: id})
		}
	}
	slices.SortStableFunc(refs, func(a, b LayerRef) int {
		return layerZ(s, a) - layerZ(s, b)
	})
	return refs
}

// layerZ is the z-index of an image, or the highest z of a group's images.
func layerZ(s Scene, ref LayerRef) int {
	if ref.Kind == LayerImage {
		return s.ImageIndex(ref.ID)
	}
	z := -1
	for _, id := range AllImageIDsInGroup(s, ref.ID) {
		z = max(z, s.ImageIndex(id))
	}
	return z
}

// unitImages returns the image ids a layer covers, in z order.
func unitImages(s Scene, ref LayerRef) []string {
	if ref.Kind == LayerImage {
		return []string{ref.ID}
	}
	ids := slices.Clone(AllImageIDsInGroup(s, ref.ID))
	ids = slices.DeleteFunc(ids, func(id string) bool { return !s.HasImage(id) })
	slices.SortFunc(ids, func(a, b string) int { return s.ImageIndex(a) - s.ImageIndex(b) })
	return ids
}

// ReorderLayer moves a layer to toIndex among its siblings (0 is the
// bottom). A group moves its whole image block as one unit and keeps the
// block's internal order. Only the z slots already held by the siblings are
// reassigned, so layers outside the sibling list keep their position.
func ReorderLayer(s Scene, ref LayerRef, toIndex int) (Scene, error) {
	siblings := OrderedChildrenOf(s, LayerParent(s, ref))
	from := slices.Index(siblings, ref)
	if from < 0 {
		return s, fmt.Errorf("layer %s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	reordered := moveItem(slices.Clone(siblings), from, toIndex)

	var slots []int
	var order []string
	for _, sib := range siblings {
		for _, id := range unitImages(s, sib) {
			slots = append(slots, s.ImageIndex(id))
		}
	}
	for _, sib := range reordered {
		order = append(order, unitImages(s, sib)...)
	}
	slices.Sort(slots)

	next := s.Clone()
	for i, slot := range slots {
		img, _ := s.Image(order[i])
		next.Images[slot] = img.Clone()
	}
	return next, nil
}

// ArrangeLayer applies a relative reorder.
func ArrangeLayer(s Scene, ref LayerRef, op ArrangeOp) (Scene, error) {
	siblings := OrderedChildrenOf(s, LayerParent(s, ref))
	from := slices.Index(siblings, ref)
	if from < 0 {
		return s, fmt.Errorf("layer %s %s: %w", ref.Kind, ref.ID, ErrNotFound)
	}
	to := from
	switch op {
	case BringForward:
		to = from + 1
	case SendBackward:
		to = from - 1
	case BringToFront:
		to = len(siblings) - 1
	case SendToBack:
		to = 0
	default:
		return s, fmt.Errorf("unknown arrange op %q", op)
	}
	return ReorderLayer(s, ref, to)
}

// Layers returns the visual layer list, top first. Children of a group are
// listed only while the group is expanded.
func Layers(s Scene) []LayerEntry {
	var out []LayerEntry
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		children := OrderedChildrenOf(s, parent)
		for i := len(children) - 1; i >= 0; i-- {
			ref := children[i]
			entry := LayerEntry{Ref: ref, Depth: depth, ParentID: parent}
			if ref.Kind == LayerGroup {
				g, _ := s.Group(ref.ID)
				entry.Label = g.Label
				out = append(out, entry)
				if g.IsExpanded {
					walk(g.ID, depth+1)
				}
				continue
			}
			img, _ := s.Image(ref.ID)
			entry.Label = img.Name
			out = append(out, entry)
		}
	}
	walk("", 0)
	return out
}

// LayerImageIDs expands a layer to the image ids it stands for.
func LayerImageIDs(s Scene, ref LayerRef) []string {
	return unitImages(s, ref)
}
