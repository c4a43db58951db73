package raster

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/inamate/imageboard/internal/document"
)

// FontMeasurer measures and draws text with the Go fonts. Monospace
// families map to Go Mono, everything else to Go Regular. Faces and
// per-string metrics are cached. Face use is serialized because opentype
// faces are not safe for concurrent use.
type FontMeasurer struct {
	regular *opentype.Font
	mono    *opentype.Font

	mu      sync.Mutex
	faces   *cache.Cache
	metrics *cache.Cache
}

func NewFontMeasurer() (*FontMeasurer, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	mono, err := opentype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse mono font: %w", err)
	}
	return &FontMeasurer{
		regular: regular,
		mono:    mono,
		faces:   cache.New(10*time.Minute, 20*time.Minute),
		metrics: cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

func (m *FontMeasurer) fontFor(family string) (*opentype.Font, string) {
	f := strings.ToLower(family)
	if strings.Contains(f, "mono") || strings.Contains(f, "courier") {
		return m.mono, "mono"
	}
	return m.regular, "regular"
}

// face returns a face at size. Callers must hold m.mu.
func (m *FontMeasurer) face(family string, size float64) (font.Face, error) {
	if size <= 0 {
		size = 1
	}
	f, name := m.fontFor(family)
	key := fmt.Sprintf("%s/%.2f", name, size)
	if cached, ok := m.faces.Get(key); ok {
		return cached.(font.Face), nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("font face %s: %w", key, err)
	}
	m.faces.Set(key, face, cache.DefaultExpiration)
	return face, nil
}

// MeasureText implements document.TextMeasurer. The line height is 1.2
// times the font size, matching the browser shell's layout.
func (m *FontMeasurer) MeasureText(text string, f document.Font) document.TextMetrics {
	key := fmt.Sprintf("%s|%.2f|%s", f.Family, f.Size, text)
	if cached, ok := m.metrics.Get(key); ok {
		return cached.(document.TextMetrics)
	}
	m.mu.Lock()
	face, err := m.face(f.Family, f.Size)
	var width fixed.Int26_6
	if err == nil {
		width = font.MeasureString(face, text)
	}
	m.mu.Unlock()
	if err != nil {
		return document.ApproxMeasurer{}.MeasureText(text, f)
	}
	tm := document.TextMetrics{
		Width:      float64(width) / 64,
		LineHeight: f.Size * 1.2,
	}
	m.metrics.Set(key, tm, cache.DefaultExpiration)
	return tm
}

// drawString draws one line with the face for f at the given pixel size.
// dot is the baseline origin.
func (m *FontMeasurer) drawString(d *font.Drawer, family string, size float64, dot fixed.Point26_6, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	face, err := m.face(family, size)
	if err != nil {
		return err
	}
	d.Face = face
	d.Dot = dot
	d.DrawString(text)
	return nil
}

// ascent returns the face ascent in pixels.
func (m *FontMeasurer) ascent(family string, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	face, err := m.face(family, size)
	if err != nil {
		return size * 0.8
	}
	return float64(face.Metrics().Ascent) / 64
}
