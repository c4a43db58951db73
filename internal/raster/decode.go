package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
	ErrUnknownHandle    = errors.New("unknown raster handle")
)

// Decoded is the result of ingesting one file.
type Decoded struct {
	Handle string `json:"handle"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Decoder is the image decode service. Decoded pixels go into Store.
type Decoder struct {
	Store *Store
	// MaxPixels rejects images larger than this many pixels; 0 disables.
	MaxPixels int
}

func NewDecoder(store *Store) *Decoder {
	return &Decoder{Store: store, MaxPixels: 64 << 20}
}

// Decode decodes png, jpeg, gif, bmp, tiff or webp data and stores the
// pixels. Anything else yields ErrUnsupportedImage.
func (d *Decoder) Decode(data []byte) (Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Decoded{}, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
		return Decoded{}, fmt.Errorf("%w: %dx%d exceeds pixel limit", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	rgba := ToRGBA(img)
	return Decoded{
		Handle: d.Store.Put(rgba),
		Width:  rgba.Bounds().Dx(),
		Height: rgba.Bounds().Dy(),
		Format: format,
	}, nil
}

// DecodeDataURL decodes a base64 data URL such as the src of a saved image.
func (d *Decoder) DecodeDataURL(src string) (Decoded, error) {
	data, err := ParseDataURL(src)
	if err != nil {
		return Decoded{}, err
	}
	return d.Decode(data)
}

// ParseDataURL extracts the payload of a base64 data URL.
func ParseDataURL(src string) ([]byte, error) {
	if !strings.HasPrefix(src, "data:") {
		return nil, fmt.Errorf("%w: not a data URL", ErrUnsupportedImage)
	}
	meta, payload, ok := strings.Cut(src, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data URL is not base64", ErrUnsupportedImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return data, nil
}
