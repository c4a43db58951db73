package document

import (
	"fmt"
	"slices"

	"github.com/inamate/imageboard/internal/geom"
)

type AlignEdge string

const (
	AlignLeft    AlignEdge = "left"
	AlignRight   AlignEdge = "right"
	AlignTop     AlignEdge = "top"
	AlignBottom  AlignEdge = "bottom"
	AlignCenterX AlignEdge = "centerX"
	AlignCenterY AlignEdge = "centerY"
)

type StackDirection string

const (
	StackHorizontal StackDirection = "horizontal"
	StackVertical   StackDirection = "vertical"
)

type SizeDimension string

const (
	MatchWidth  SizeDimension = "width"
	MatchHeight SizeDimension = "height"
	MatchBoth   SizeDimension = "both"
)

// Align lines the images up against the matching edge of their combined
// world bounds.
func Align(s Scene, ids []string, edge AlignEdge) (Scene, error) {
	imgs := existingImages(s, ids)
	if len(imgs) < 2 {
		return s, nil
	}
	all := ImageBounds(imgs[0])
	for _, img := range imgs[1:] {
		all = all.Union(ImageBounds(img))
	}

	next := s
	for _, img := range imgs {
		b := ImageBounds(img)
		var d geom.Point
		switch edge {
		case AlignLeft:
			d.X = all.X - b.X
		case AlignRight:
			d.X = all.Right() - b.Right()
		case AlignTop:
			d.Y = all.Y - b.Y
		case AlignBottom:
			d.Y = all.Bottom() - b.Bottom()
		case AlignCenterX:
			d.X = all.Center().X - b.Center().X
		case AlignCenterY:
			d.Y = all.Center().Y - b.Center().Y
		default:
			return s, fmt.Errorf("unknown align edge %q", edge)
		}
		next = TranslateImages(next, []string{img.ID}, d)
	}
	return next, nil
}

// Stack lays the images out edge to edge with gap between them, keeping
// their current left-to-right (or top-to-bottom) order. The first image
// stays put.
func Stack(s Scene, ids []string, dir StackDirection, gap float64) (Scene, error) {
	imgs := existingImages(s, ids)
	if len(imgs) < 2 {
		return s, nil
	}
	if dir != StackHorizontal && dir != StackVertical {
		return s, fmt.Errorf("unknown stack direction %q", dir)
	}
	slices.SortStableFunc(imgs, func(a, b Image) int {
		ba, bb := ImageBounds(a), ImageBounds(b)
		if dir == StackHorizontal {
			return cmpFloat(ba.X, bb.X)
		}
		return cmpFloat(ba.Y, bb.Y)
	})

	next := s
	first := ImageBounds(imgs[0])
	cursor := first.Right() + gap
	if dir == StackVertical {
		cursor = first.Bottom() + gap
	}
	for _, img := range imgs[1:] {
		b := ImageBounds(img)
		var d geom.Point
		if dir == StackHorizontal {
			d = geom.Pt(cursor-b.X, first.Y-b.Y)
			cursor += b.Width + gap
		} else {
			d = geom.Pt(first.X-b.X, cursor-b.Y)
			cursor += b.Height + gap
		}
		next = TranslateImages(next, []string{img.ID}, d)
	}
	return next, nil
}

// MatchSize rescales every image so its displayed size matches the first
// one's along dim, keeping each image's center fixed. With MatchBoth the
// larger of the two required scales is used so aspect ratios survive.
func MatchSize(s Scene, ids []string, dim SizeDimension) (Scene, error) {
	imgs := existingImages(s, ids)
	if len(imgs) < 2 {
		return s, nil
	}
	ref := imgs[0]
	w, h := ref.Width*ref.Scale, ref.Height*ref.Scale

	next := s
	for _, img := range imgs[1:] {
		if img.Width <= 0 || img.Height <= 0 {
			continue
		}
		var scale float64
		switch dim {
		case MatchWidth:
			scale = w / img.Width
		case MatchHeight:
			scale = h / img.Height
		case MatchBoth:
			scale = max(w/img.Width, h/img.Height)
		default:
			return s, fmt.Errorf("unknown size dimension %q", dim)
		}
		if scale <= 0 {
			continue
		}
		c := img.Frame().Center()
		var err error
		next, err = UpdateImage(next, img.ID, func(im *Image) {
			im.Scale = scale
			im.X = c.X - im.Width*scale/2
			im.Y = c.Y - im.Height*scale/2
		})
		if err != nil {
			return s, err
		}
	}
	return next, nil
}

func existingImages(s Scene, ids []string) []Image {
	var out []Image
	for _, id := range ids {
		if img, ok := s.Image(id); ok {
			out = append(out, img)
		}
	}
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
