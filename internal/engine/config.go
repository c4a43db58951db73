package engine

import (
	"github.com/inamate/imageboard/internal/history"
	"github.com/inamate/imageboard/internal/render"
)

// Tool is the active pointer tool.
type Tool string

const (
	ToolSelect     Tool = "select"
	ToolFreehand   Tool = "freehand"
	ToolRect       Tool = "rect"
	ToolCircle     Tool = "circle"
	ToolText       Tool = "text"
	ToolLine       Tool = "line"
	ToolArrow      Tool = "arrow"
	ToolCrop       Tool = "crop"
	ToolEyedropper Tool = "eyedropper"
)

// Valid reports whether t names a known tool.
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolFreehand, ToolRect, ToolCircle, ToolText, ToolLine, ToolArrow, ToolCrop, ToolEyedropper:
		return true
	}
	return false
}

// drawing reports whether the tool creates annotations by dragging.
func (t Tool) drawing() bool {
	switch t {
	case ToolFreehand, ToolRect, ToolCircle, ToolLine, ToolArrow:
		return true
	}
	return false
}

// Style is applied to newly drawn annotations.
type Style struct {
	Color       string  `json:"color"`
	StrokeWidth float64 `json:"strokeWidth"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
	FontFamily  string  `json:"fontFamily"`
	FontSize    float64 `json:"fontSize"`
}

// Config tunes the engine. The WASM shell may override any field.
type Config struct {
	HistoryLimit       int                  `json:"historyLimit"`
	Handles            render.HandleMetrics `json:"handles"`
	MinAnnotationScale float64              `json:"minAnnotationScale"`
	SegmentSnap        float64              `json:"segmentSnap"` // degrees, shift-drag of line and arrow endpoints
	RotateSnap         float64              `json:"rotateSnap"`  // degrees, shift-drag of the rotate handle
	CropKey            string               `json:"cropKey"`
	StackGap           float64              `json:"stackGap"`
	DefaultText        string               `json:"defaultText"`
	Style              Style                `json:"style"`
}

func DefaultConfig() Config {
	return Config{
		HistoryLimit:       history.DefaultLimit,
		Handles:            render.DefaultHandleMetrics,
		MinAnnotationScale: 0.1,
		SegmentSnap:        45,
		RotateSnap:         15,
		CropKey:            "c",
		StackGap:           16,
		DefaultText:        "Text",
		Style: Style{
			Color:       "#ef4444",
			StrokeWidth: 4,
			FontFamily:  "sans-serif",
			FontSize:    24,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.Handles == (render.HandleMetrics{}) {
		c.Handles = d.Handles
	}
	if c.MinAnnotationScale <= 0 {
		c.MinAnnotationScale = d.MinAnnotationScale
	}
	if c.SegmentSnap <= 0 {
		c.SegmentSnap = d.SegmentSnap
	}
	if c.RotateSnap <= 0 {
		c.RotateSnap = d.RotateSnap
	}
	if c.CropKey == "" {
		c.CropKey = d.CropKey
	}
	if c.DefaultText == "" {
		c.DefaultText = d.DefaultText
	}
	if c.Style.Color == "" {
		c.Style.Color = d.Style.Color
	}
	if c.Style.StrokeWidth <= 0 {
		c.Style.StrokeWidth = d.Style.StrokeWidth
	}
	if c.Style.FontFamily == "" {
		c.Style.FontFamily = d.Style.FontFamily
	}
	if c.Style.FontSize <= 0 {
		c.Style.FontSize = d.Style.FontSize
	}
	return c
}
