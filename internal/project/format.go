// Package project serializes the editor state into portable project files
// and stores named projects.
package project

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/raster"
)

// FormatVersion is the only project file version this build reads.
const FormatVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported project version")
	ErrNotFound           = errors.New("project not found")
	ErrInvalidDocument    = errors.New("invalid project document")
)

// State is everything a project file restores.
type State struct {
	Scene   document.Scene
	Archive map[string]document.Image
	View    geom.View
	Crop    *geom.Rect
}

// RasterSource encodes stored rasters for saving.
type RasterSource interface {
	DataURL(handle string) (string, error)
}

// RasterSink decodes embedded rasters when loading.
type RasterSink interface {
	DecodeDataURL(src string) (raster.Decoded, error)
}

type fileJSON struct {
	Version int        `json:"version"`
	State   *stateJSON `json:"state"`
}

type stateJSON struct {
	Images            []imageJSON           `json:"images"`
	ArchivedImages    map[string]imageJSON  `json:"archivedImages"`
	Groups            []document.Group      `json:"groups"`
	CanvasAnnotations []document.Annotation `json:"canvasAnnotations"`
	ViewTransform     geom.View             `json:"viewTransform"`
	CropArea          *geom.Rect            `json:"cropArea"`
}

// imageJSON carries pixels inline so the file is portable. The raster
// handle is local to one session and is never written.
type imageJSON struct {
	document.Image
	Raster string `json:"raster,omitempty"`
	Src    string `json:"src"`
}

// Encode writes st as a version FormatVersion project file.
func Encode(st State, src RasterSource) ([]byte, error) {
	out := stateJSON{
		Images:            make([]imageJSON, 0, len(st.Scene.Images)),
		ArchivedImages:    make(map[string]imageJSON, len(st.Archive)),
		Groups:            st.Scene.Groups,
		CanvasAnnotations: st.Scene.CanvasAnnotations,
		ViewTransform:     st.View,
		CropArea:          st.Crop,
	}
	if out.Groups == nil {
		out.Groups = []document.Group{}
	}
	if out.CanvasAnnotations == nil {
		out.CanvasAnnotations = []document.Annotation{}
	}
	for _, img := range st.Scene.Images {
		j, err := encodeImage(img, src)
		if err != nil {
			return nil, err
		}
		out.Images = append(out.Images, j)
	}
	for id, img := range st.Archive {
		j, err := encodeImage(img, src)
		if err != nil {
			return nil, err
		}
		out.ArchivedImages[id] = j
	}
	return json.Marshal(fileJSON{Version: FormatVersion, State: &out})
}

func encodeImage(img document.Image, src RasterSource) (imageJSON, error) {
	url, err := src.DataURL(img.Raster)
	if err != nil {
		return imageJSON{}, fmt.Errorf("encode image %s: %w", img.ID, err)
	}
	if img.Annotations == nil {
		img.Annotations = []document.Annotation{}
	}
	return imageJSON{Image: img, Src: url}, nil
}

// Decode parses and validates a project file. Every problem found is
// reported in one aggregate error, and no state is returned unless the whole
// file is valid.
func Decode(data []byte, sink RasterSink) (State, error) {
	var f fileJSON
	if err := json.Unmarshal(data, &f); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if f.Version != FormatVersion {
		return State{}, fmt.Errorf("%w: %d (want %d)", ErrUnsupportedVersion, f.Version, FormatVersion)
	}
	if f.State == nil {
		return State{}, fmt.Errorf("%w: missing state", ErrInvalidDocument)
	}

	var errs *multierror.Error
	st := State{
		Scene: document.Scene{
			Groups:            f.State.Groups,
			CanvasAnnotations: f.State.CanvasAnnotations,
		},
		Archive: make(map[string]document.Image, len(f.State.ArchivedImages)),
		View:    f.State.ViewTransform,
		Crop:    f.State.CropArea,
	}
	if st.View.Scale <= 0 {
		st.View = geom.DefaultView
	}

	seen := make(map[string]bool)
	for i, j := range f.State.Images {
		img, err := decodeImage(j, sink)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("images[%d]: %w", i, err))
			continue
		}
		if seen[img.ID] {
			errs = multierror.Append(errs, fmt.Errorf("images[%d]: duplicate id %s", i, img.ID))
			continue
		}
		seen[img.ID] = true
		st.Scene.Images = append(st.Scene.Images, img)
	}
	for id, j := range f.State.ArchivedImages {
		img, err := decodeImage(j, sink)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("archivedImages[%s]: %w", id, err))
			continue
		}
		st.Archive[id] = img
	}
	errs = multierror.Append(errs, validateGroups(st.Scene, seen)...)
	errs = multierror.Append(errs, validateAnnotations(st.Scene)...)

	if err := errs.ErrorOrNil(); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return st, nil
}

// Validate checks a project file without keeping its rasters.
func Validate(data []byte) error {
	_, err := Decode(data, raster.NewDecoder(raster.NewStore()))
	return err
}

func decodeImage(j imageJSON, sink RasterSink) (document.Image, error) {
	img := j.Image
	if img.ID == "" {
		return img, errors.New("missing id")
	}
	if img.Scale <= 0 {
		return img, fmt.Errorf("image %s: scale must be positive", img.ID)
	}
	if j.Src == "" {
		return img, fmt.Errorf("image %s: missing src", img.ID)
	}
	d, err := sink.DecodeDataURL(j.Src)
	if err != nil {
		return img, fmt.Errorf("image %s: %w", img.ID, err)
	}
	img.Raster = d.Handle
	if img.Width <= 0 || img.Height <= 0 {
		img.Width, img.Height = float64(d.Width), float64(d.Height)
	}
	return img, nil
}

func validateGroups(s document.Scene, images map[string]bool) []error {
	var errs []error
	groups := make(map[string]document.Group, len(s.Groups))
	for _, g := range s.Groups {
		if g.ID == "" {
			errs = append(errs, errors.New("group with empty id"))
			continue
		}
		if _, dup := groups[g.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate group id %s", g.ID))
		}
		groups[g.ID] = g
	}
	owner := make(map[string]string)
	for _, g := range s.Groups {
		for _, id := range g.ImageIDs {
			if !images[id] {
				errs = append(errs, fmt.Errorf("group %s: unknown image %s", g.ID, id))
			}
			if prev, ok := owner[id]; ok && prev != g.ID {
				errs = append(errs, fmt.Errorf("image %s is in groups %s and %s", id, prev, g.ID))
			}
			owner[id] = g.ID
		}
		for _, id := range g.ChildGroupIDs {
			if _, ok := groups[id]; !ok {
				errs = append(errs, fmt.Errorf("group %s: unknown child group %s", g.ID, id))
			}
		}
		if g.ParentID != "" {
			if _, ok := groups[g.ParentID]; !ok {
				errs = append(errs, fmt.Errorf("group %s: unknown parent %s", g.ID, g.ParentID))
			}
		}
		// The parent chain must end within len(groups) steps.
		cur, steps := g.ParentID, 0
		for cur != "" && steps <= len(groups) {
			cur = groups[cur].ParentID
			steps++
		}
		if cur != "" {
			errs = append(errs, fmt.Errorf("group %s: %w", g.ID, document.ErrGroupCycle))
		}
	}
	return errs
}

func validateAnnotations(s document.Scene) []error {
	var errs []error
	check := func(owner string, list []document.Annotation) {
		ids := make(map[string]bool, len(list))
		for _, a := range list {
			if a.ID == "" || a.Shape == nil {
				errs = append(errs, fmt.Errorf("%s: annotation missing id or shape", owner))
				continue
			}
			if ids[a.ID] {
				errs = append(errs, fmt.Errorf("%s: duplicate annotation id %s", owner, a.ID))
			}
			ids[a.ID] = true
		}
	}
	for _, img := range s.Images {
		check("image "+img.ID, img.Annotations)
	}
	check("canvas", s.CanvasAnnotations)
	return errs
}
