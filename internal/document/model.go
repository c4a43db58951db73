package document

import (
	"errors"
	"reflect"

	"github.com/inamate/imageboard/internal/geom"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrGroupCycle = errors.New("group would become its own descendant")
)

// Image is a raster placed on the board. Its world bounding box is never
// stored; ImageBounds derives it from the placement fields.
type Image struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Raster   string  `json:"raster"` // handle into the raster store
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`

	OutlineColor   string  `json:"outlineColor,omitempty"`
	OutlineWidth   float64 `json:"outlineWidth,omitempty"`
	OutlineOpacity float64 `json:"outlineOpacity,omitempty"`

	// Annotations are stored in the image's local, unscaled, unrotated space.
	Annotations []Annotation `json:"annotations"`

	CropRect        *geom.Rect `json:"cropRect,omitempty"`
	UncroppedFromID string     `json:"uncroppedFromId,omitempty"`
}

// Frame returns the image placement used by every coordinate conversion.
func (img Image) Frame() geom.Frame {
	return geom.Frame{
		X:        img.X,
		Y:        img.Y,
		Width:    img.Width,
		Height:   img.Height,
		Scale:    img.Scale,
		Rotation: img.Rotation,
	}
}

// Clone returns a deep copy of the image.
func (img Image) Clone() Image {
	out := img
	if img.Annotations != nil {
		out.Annotations = make([]Annotation, len(img.Annotations))
		for i, a := range img.Annotations {
			out.Annotations[i] = a.Clone()
		}
	}
	if img.CropRect != nil {
		r := *img.CropRect
		out.CropRect = &r
	}
	return out
}

type Group struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	ShowLabel     bool     `json:"showLabel"`
	IsExpanded    bool     `json:"isExpanded"`
	ImageIDs      []string `json:"imageIds"`
	ChildGroupIDs []string `json:"childGroupIds"`
	ParentID      string   `json:"parentId,omitempty"`
}

func (g Group) Clone() Group {
	out := g
	out.ImageIDs = cloneStrings(g.ImageIDs)
	out.ChildGroupIDs = cloneStrings(g.ChildGroupIDs)
	return out
}

// AnnotationRef addresses one annotation. An empty ParentImageID means the
// annotation lives in the canvas-level collection.
type AnnotationRef struct {
	ParentImageID string `json:"parentImageId,omitempty"`
	AnnotationID  string `json:"annotationId"`
}

// OnCanvas reports whether the referenced annotation is canvas owned.
func (r AnnotationRef) OnCanvas() bool { return r.ParentImageID == "" }

type LayerKind string

const (
	LayerImage LayerKind = "image"
	LayerGroup LayerKind = "group"
)

// LayerRef identifies an entry of the layer list.
type LayerRef struct {
	Kind LayerKind `json:"kind"`
	ID   string    `json:"id"`
}

// Scene is one immutable history snapshot. Images are in z-order: index 0
// is drawn first (bottom).
type Scene struct {
	Images            []Image      `json:"images"`
	Groups            []Group      `json:"groups"`
	CanvasAnnotations []Annotation `json:"canvasAnnotations"`
}

// Clone returns a deep copy so the result can be mutated freely.
func (s Scene) Clone() Scene {
	var out Scene
	if s.Images != nil {
		out.Images = make([]Image, len(s.Images))
		for i, img := range s.Images {
			out.Images[i] = img.Clone()
		}
	}
	if s.Groups != nil {
		out.Groups = make([]Group, len(s.Groups))
		for i, g := range s.Groups {
			out.Groups[i] = g.Clone()
		}
	}
	if s.CanvasAnnotations != nil {
		out.CanvasAnnotations = make([]Annotation, len(s.CanvasAnnotations))
		for i, a := range s.CanvasAnnotations {
			out.CanvasAnnotations[i] = a.Clone()
		}
	}
	return out
}

// Equal reports structural equality of two snapshots.
func (s Scene) Equal(o Scene) bool {
	return reflect.DeepEqual(s, o)
}

// ImageIndex returns the z-index of the image, or -1.
func (s Scene) ImageIndex(id string) int {
	for i := range s.Images {
		if s.Images[i].ID == id {
			return i
		}
	}
	return -1
}

// Image looks up an image by id.
func (s Scene) Image(id string) (Image, bool) {
	if i := s.ImageIndex(id); i >= 0 {
		return s.Images[i], true
	}
	return Image{}, false
}

func (s Scene) HasImage(id string) bool { return s.ImageIndex(id) >= 0 }

func (s Scene) GroupIndex(id string) int {
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return i
		}
	}
	return -1
}

func (s Scene) Group(id string) (Group, bool) {
	if i := s.GroupIndex(id); i >= 0 {
		return s.Groups[i], true
	}
	return Group{}, false
}

// ParentFrame returns the frame annotations of parentImageID live in. The
// canvas ("") is the identity frame.
func (s Scene) ParentFrame(parentImageID string) (geom.Frame, bool) {
	if parentImageID == "" {
		return geom.IdentityFrame, true
	}
	img, ok := s.Image(parentImageID)
	if !ok {
		return geom.Frame{}, false
	}
	return img.Frame(), true
}

// Annotations returns the annotation list owned by parentImageID.
func (s Scene) Annotations(parentImageID string) ([]Annotation, bool) {
	if parentImageID == "" {
		return s.CanvasAnnotations, true
	}
	img, ok := s.Image(parentImageID)
	if !ok {
		return nil, false
	}
	return img.Annotations, true
}

// Annotation resolves a reference.
func (s Scene) Annotation(ref AnnotationRef) (Annotation, bool) {
	list, ok := s.Annotations(ref.ParentImageID)
	if !ok {
		return Annotation{}, false
	}
	for _, a := range list {
		if a.ID == ref.AnnotationID {
			return a, true
		}
	}
	return Annotation{}, false
}

// ValidRefs drops references whose parent or annotation no longer exists.
func (s Scene) ValidRefs(refs []AnnotationRef) []AnnotationRef {
	out := make([]AnnotationRef, 0, len(refs))
	for _, r := range refs {
		if _, ok := s.Annotation(r); ok {
			out = append(out, r)
		}
	}
	return out
}

// annotationsPtr returns a pointer to the owning list inside a scene that
// the caller already cloned.
func (s *Scene) annotationsPtr(parentImageID string) *[]Annotation {
	if parentImageID == "" {
		return &s.CanvasAnnotations
	}
	i := s.ImageIndex(parentImageID)
	if i < 0 {
		return nil
	}
	return &s.Images[i].Annotations
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func removeString(list []string, v string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
