package raster

import (
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// ParseColor parses a CSS hex colour ("#rgb" or "#rrggbb") and applies
// opacity. Unparsable colours fall back to black.
func ParseColor(hex string, opacity float64) color.NRGBA {
	var r, g, b uint8
	if c, err := colorful.Hex(hex); err == nil {
		r, g, b = c.RGB255()
	}
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	return color.NRGBA{R: r, G: g, B: b, A: uint8(math.Round(opacity * 255))}
}

// FormatHex formats c as "#rrggbb", dropping alpha. A fully transparent
// colour yields "".
func FormatHex(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return ""
	}
	return cf.Hex()
}
