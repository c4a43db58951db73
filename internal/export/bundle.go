// Package export flattens board images with their annotations and packs
// them into ZIP archives.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/render"
)

const (
	defaultPrefixWidth = 3
	defaultWorkers     = 4
)

// Bundler writes flattened images into a ZIP archive.
type Bundler struct {
	Store *raster.Store
	Fonts *raster.FontMeasurer
	// PrefixWidth is the zero-padded width of the entry index.
	PrefixWidth int
	Workers     int
}

// Bundle writes images, given in z order, as a ZIP archive to w using the
// default naming.
func Bundle(ctx context.Context, images []document.Image, store *raster.Store, fonts *raster.FontMeasurer, w io.Writer) error {
	return Bundler{Store: store, Fonts: fonts}.Write(ctx, images, w)
}

// Write renders every image concurrently and then writes the entries in
// layer order, topmost first.
func (b Bundler) Write(ctx context.Context, images []document.Image, w io.Writer) error {
	top := make([]document.Image, len(images))
	for i, img := range images {
		top[len(images)-1-i] = img
	}
	names := EntryNames(top, b.prefixWidth())

	encoded := make([][]byte, len(top))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for i, img := range top {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pix := Flatten(img, b.Store, b.Fonts)
			var buf bytes.Buffer
			if err := png.Encode(&buf, pix); err != nil {
				return fmt.Errorf("encode %s: %w", img.ID, err)
			}
			encoded[i] = buf.Bytes()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for i, data := range encoded {
		// PNG data is already deflated.
		f, err := zw.CreateHeader(&zip.FileHeader{Name: names[i], Method: zip.Store})
		if err != nil {
			return fmt.Errorf("create entry %s: %w", names[i], err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write entry %s: %w", names[i], err)
		}
	}
	return zw.Close()
}

func (b Bundler) prefixWidth() int {
	if b.PrefixWidth <= 0 {
		return defaultPrefixWidth
	}
	return b.PrefixWidth
}

func (b Bundler) workers() int {
	if b.Workers <= 0 {
		return defaultWorkers
	}
	return b.Workers
}

// Flatten renders img with its annotations at its native resolution and
// orientation.
func Flatten(img document.Image, store *raster.Store, fonts *raster.FontMeasurer) *image.RGBA {
	w := int(math.Ceil(img.Width))
	h := int(math.Ceil(img.Height))
	canvas := raster.NewCanvas(w, h, store, fonts)
	render.RenderImage(canvas, img, img.Frame().Matrix().Invert(), true)
	return canvas.Image()
}

// EntryNames returns archive names for images in the given order. Names are
// NNN_<name>.png with a 1-based index; a base name seen before gets a _(n)
// suffix.
func EntryNames(images []document.Image, prefixWidth int) []string {
	seen := make(map[string]int)
	out := make([]string, len(images))
	for i, img := range images {
		base := SanitizeName(img.Name)
		seen[base]++
		if n := seen[base]; n > 1 {
			base = fmt.Sprintf("%s_(%d)", base, n)
		}
		out[i] = fmt.Sprintf("%0*d_%s.png", prefixWidth, i+1, base)
	}
	return out
}

// SanitizeName strips the extension and replaces every character outside
// [A-Za-z0-9._-] with '-'.
func SanitizeName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			return r
		}
		return '-'
	}, name)
	name = strings.Trim(name, ".-")
	if name == "" {
		return "image"
	}
	return name
}
