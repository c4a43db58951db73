package render

import (
	"encoding/json"
	"image/color"

	"github.com/inamate/imageboard/internal/document"
	"github.com/inamate/imageboard/internal/geom"
)

// DrawCommand is a single drawing operation for the browser shell to replay
// on a Canvas2D context.
type DrawCommand struct {
	Op          string         `json:"op"`                    // "save", "restore", "transform", "raster", "fill", "stroke", "text"
	Transform   []float64      `json:"transform,omitempty"`   // [a, b, c, d, e, f]
	Path        []PathCommand  `json:"path,omitempty"`        // fill and stroke
	Fill        string         `json:"fill,omitempty"`        // fill and text colour
	Stroke      string         `json:"stroke,omitempty"`      // stroke colour
	StrokeWidth float64        `json:"strokeWidth,omitempty"` // stroke width in user space
	Dash        []float64      `json:"dash,omitempty"`        // line dash pattern
	Opacity     float64        `json:"opacity,omitempty"`     // global alpha
	Raster      string         `json:"raster,omitempty"`      // raster handle
	Src         *geom.Rect     `json:"src,omitempty"`
	Dst         *geom.Rect     `json:"dst,omitempty"`
	Text        string         `json:"text,omitempty"`
	Font        *document.Font `json:"font,omitempty"`
	X           float64        `json:"x,omitempty"`
	Y           float64        `json:"y,omitempty"`
}

// Recorder is a Backend that records draw commands instead of drawing.
type Recorder struct {
	Commands []DrawCommand
	Measurer document.TextMeasurer
}

func NewRecorder(m document.TextMeasurer) *Recorder {
	if m == nil {
		m = document.ApproxMeasurer{}
	}
	return &Recorder{Measurer: m}
}

func (r *Recorder) add(c DrawCommand) { r.Commands = append(r.Commands, c) }

func (r *Recorder) Save()    { r.add(DrawCommand{Op: "save"}) }
func (r *Recorder) Restore() { r.add(DrawCommand{Op: "restore"}) }

func (r *Recorder) SetTransform(m geom.Matrix2D) {
	r.add(DrawCommand{Op: "transform", Transform: m.ToSlice()})
}

func (r *Recorder) DrawRaster(handle string, src, dst geom.Rect, opacity float64) {
	r.add(DrawCommand{Op: "raster", Raster: handle, Src: &src, Dst: &dst, Opacity: alpha(opacity)})
}

func (r *Recorder) FillPath(p Path, paint Paint) {
	r.add(DrawCommand{Op: "fill", Path: p, Fill: paint.Color, Opacity: paint.Alpha()})
}

func (r *Recorder) StrokePath(p Path, s Stroke) {
	r.add(DrawCommand{
		Op:          "stroke",
		Path:        p,
		Stroke:      s.Color,
		StrokeWidth: s.Width,
		Dash:        s.Dash,
		Opacity:     s.Alpha(),
	})
}

func (r *Recorder) DrawText(text string, at geom.Point, font document.Font, paint Paint) {
	r.add(DrawCommand{Op: "text", Text: text, Font: &font, X: at.X, Y: at.Y, Fill: paint.Color, Opacity: paint.Alpha()})
}

func (r *Recorder) MeasureText(text string, font document.Font) document.TextMetrics {
	if r.Measurer == nil {
		return document.ApproxMeasurer{}.MeasureText(text, font)
	}
	return r.Measurer.MeasureText(text, font)
}

// ReadPixel always reports transparent; a recorder has no pixels.
func (r *Recorder) ReadPixel(int, int) color.RGBA { return color.RGBA{} }

// Reset drops the recorded commands, keeping the buffer.
func (r *Recorder) Reset() { r.Commands = r.Commands[:0] }

// JSON serializes the recorded commands.
func (r *Recorder) JSON() (string, error) {
	return DrawCommandsToJSON(r.Commands)
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
