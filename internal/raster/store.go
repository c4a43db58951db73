// Package raster is the software drawing backend: decoded pixel storage,
// format decoding, an RGBA canvas implementing render.Backend, font metrics
// and transparent-border trimming.
package raster

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// HandlePrefix marks content-addressed raster handles.
const HandlePrefix = "r_"

// Store maps raster handles to decoded pixels. Handles are derived from the
// pixel content, so storing the same pixels twice yields the same handle.
// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	rasters map[string]*image.RGBA
}

func NewStore() *Store {
	return &Store{rasters: make(map[string]*image.RGBA)}
}

// ContentHandle hashes the dimensions and pixels of img.
func ContentHandle(img *image.RGBA) string {
	h, _ := blake2b.New256(nil)
	b := img.Bounds()
	fmt.Fprintf(h, "%dx%d:", b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		h.Write(img.Pix[off : off+4*b.Dx()])
	}
	return HandlePrefix + hex.EncodeToString(h.Sum(nil)[:12])
}

// Put stores img, normalized to an RGBA anchored at the origin, and returns
// its handle.
func (s *Store) Put(img image.Image) string {
	rgba := ToRGBA(img)
	handle := ContentHandle(rgba)
	s.mu.Lock()
	if _, ok := s.rasters[handle]; !ok {
		s.rasters[handle] = rgba
	}
	s.mu.Unlock()
	return handle
}

// Get returns the pixels for handle. Callers must not modify them.
func (s *Store) Get(handle string) (*image.RGBA, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	img, ok := s.rasters[handle]
	return img, ok
}

func (s *Store) Has(handle string) bool {
	_, ok := s.Get(handle)
	return ok
}

// Delete forgets a handle.
func (s *Store) Delete(handle string) {
	s.mu.Lock()
	delete(s.rasters, handle)
	s.mu.Unlock()
}

// Len returns the number of stored rasters.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rasters)
}

// EncodePNG encodes the raster behind handle.
func (s *Store) EncodePNG(handle string) ([]byte, error) {
	img, ok := s.Get(handle)
	if !ok {
		return nil, fmt.Errorf("raster %s: %w", handle, ErrUnknownHandle)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode raster %s: %w", handle, err)
	}
	return buf.Bytes(), nil
}

// DataURL encodes the raster as a self-contained PNG data URL.
func (s *Store) DataURL(handle string) (string, error) {
	data, err := s.EncodePNG(handle)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ToRGBA copies img into a fresh RGBA whose bounds start at the origin. An
// RGBA already anchored at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
