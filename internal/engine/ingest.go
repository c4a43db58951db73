package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
	"github.com/inamate/imageboard/internal/raster"
	"github.com/inamate/imageboard/internal/typeid"
)

// ingestWorkers bounds concurrent decodes.
const ingestWorkers = 4

// File is one dropped, pasted or loaded file.
type File struct {
	Name string
	Data []byte
}

// DecodedFile is a file whose pixels are in the raster store.
type DecodedFile struct {
	Name string
	raster.Decoded
}

// DecodeFiles decodes files in parallel. It touches only the raster store,
// so it may run on another goroutine while the engine keeps serving events.
// Files that fail to decode are skipped and reported in the returned error.
func (e *Engine) DecodeFiles(ctx context.Context, files []File) ([]DecodedFile, error) {
	decoded := make([]*DecodedFile, len(files))
	errs := make([]error, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			d, err := e.decoder.Decode(f.Data)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", f.Name, err)
				return nil
			}
			decoded[i] = &DecodedFile{Name: f.Name, Decoded: d}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var result *multierror.Error
	out := make([]DecodedFile, 0, len(files))
	for i, d := range decoded {
		if d == nil {
			e.logger.Warn("skipping undecodable file", "file", files[i].Name, "error", errs[i])
			result = multierror.Append(result, errs[i])
			continue
		}
		out = append(out, *d)
	}
	return out, result.ErrorOrNil()
}

// AddDecoded places decoded files on the board in one history step,
// cascading from world point at, and selects them.
func (e *Engine) AddDecoded(files []DecodedFile, at geom.Point) []string {
	const cascade = 24.0
	imgs := make([]document.Image, 0, len(files))
	pos := at
	for _, f := range files {
		if !e.rasters.Has(f.Handle) {
			e.logger.Warn("raster missing for decoded file", "file", f.Name)
			continue
		}
		imgs = append(imgs, document.Image{
			ID:     typeid.NewImageID(),
			Name:   f.Name,
			Raster: f.Handle,
			X:      pos.X,
			Y:      pos.Y,
			Width:  float64(f.Width),
			Height: float64(f.Height),
			Scale:  1,
		})
		pos = pos.Add(geom.Pt(cascade, cascade))
	}
	if len(imgs) == 0 {
		return nil
	}
	e.hist.Push(document.AddImages(e.hist.Current(), imgs...))
	ids := make([]string, len(imgs))
	for i, img := range imgs {
		ids[i] = img.ID
	}
	e.sel.SelectImages(ids...)
	e.logger.Info("images added", "count", len(ids))
	return ids
}

// Ingest decodes files and adds every decodable one in a single history
// step. Decode errors are returned together with the ids that were added.
func (e *Engine) Ingest(ctx context.Context, files []File, at geom.Point) ([]string, error) {
	decoded, err := e.DecodeFiles(ctx, files)
	if len(decoded) == 0 {
		return nil, err
	}
	return e.AddDecoded(decoded, at), err
}

// ReplaceRaster swaps the pixels of an existing image. The decode may finish
// after the image was deleted; the update is then dropped.
func (e *Engine) ReplaceRaster(ctx context.Context, imageID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := e.decoder.Decode(data)
	if err != nil {
		return fmt.Errorf("replace raster %s: %w", imageID, err)
	}
	return e.ApplyRaster(imageID, d)
}

// ApplyRaster points an image at already decoded pixels, re-checking that
// the image still exists.
func (e *Engine) ApplyRaster(imageID string, d raster.Decoded) error {
	next, err := document.UpdateImage(e.hist.Current(), imageID, func(img *document.Image) {
		img.Raster = d.Handle
		img.Width = float64(d.Width)
		img.Height = float64(d.Height)
		img.CropRect = nil
	})
	if err != nil {
		e.logger.Info("dropping raster update for missing image", "image", imageID)
		return fmt.Errorf("replace raster %s: %w", imageID, err)
	}
	e.hist.PushIfChanged(next)
	return nil
}
