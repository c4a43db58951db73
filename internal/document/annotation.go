package document

import (
	"encoding/json"
	"fmt"

	"github.com/inamate/imageboard/internal/geom"
)

type Kind string

const (
	KindFreehand Kind = "freehand"
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindText     Kind = "text"
	KindLine     Kind = "line"
	KindArrow    Kind = "arrow"
)

// Annotation is a shape drawn over an image or directly on the canvas.
// Scale and Rotation are layered on top of the parent's transform and apply
// about the center of the shape's primitive bounds. Line and arrow ignore
// Rotation entirely and use Scale only as a stroke-width multiplier.
type Annotation struct {
	ID          string
	Color       string
	StrokeWidth float64
	Scale       float64
	Rotation    float64
	Shape       Shape
}

// Kind returns the shape kind, or "" for an annotation without a shape.
func (a Annotation) Kind() Kind {
	if a.Shape == nil {
		return ""
	}
	return a.Shape.Kind()
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	if a.Shape != nil {
		a.Shape = a.Shape.clone()
	}
	return a
}

// Shape is the closed set of annotation geometries. Consumers switch on the
// concrete type.
type Shape interface {
	Kind() Kind
	translate(d geom.Point) Shape
	clone() Shape
}

type FreehandShape struct {
	Points []geom.Point `json:"points"`
}

type RectShape struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
}

type CircleShape struct {
	CX          float64 `json:"cx"`
	CY          float64 `json:"cy"`
	Radius      float64 `json:"radius"`
	FillColor   string  `json:"fillColor,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
}

// TextShape is positioned by its top-left corner. Text may contain '\n'.
type TextShape struct {
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Text              string  `json:"text"`
	FontFamily        string  `json:"fontFamily"`
	FontSize          float64 `json:"fontSize"`
	BackgroundColor   string  `json:"backgroundColor,omitempty"`
	BackgroundOpacity float64 `json:"backgroundOpacity,omitempty"`
	StrokeColor       string  `json:"strokeColor,omitempty"`
	StrokeOpacity     float64 `json:"strokeOpacity,omitempty"`
}

type LineShape struct {
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

type ArrowShape struct {
	Start geom.Point `json:"start"`
	End   geom.Point `json:"end"`
}

func (FreehandShape) Kind() Kind { return KindFreehand }
func (RectShape) Kind() Kind     { return KindRect }
func (CircleShape) Kind() Kind   { return KindCircle }
func (TextShape) Kind() Kind     { return KindText }
func (LineShape) Kind() Kind     { return KindLine }
func (ArrowShape) Kind() Kind    { return KindArrow }

func (s FreehandShape) translate(d geom.Point) Shape {
	pts := make([]geom.Point, len(s.Points))
	for i, p := range s.Points {
		pts[i] = p.Add(d)
	}
	return FreehandShape{Points: pts}
}

func (s RectShape) translate(d geom.Point) Shape {
	s.X += d.X
	s.Y += d.Y
	return s
}

func (s CircleShape) translate(d geom.Point) Shape {
	s.CX += d.X
	s.CY += d.Y
	return s
}

func (s TextShape) translate(d geom.Point) Shape {
	s.X += d.X
	s.Y += d.Y
	return s
}

func (s LineShape) translate(d geom.Point) Shape {
	return LineShape{Start: s.Start.Add(d), End: s.End.Add(d)}
}

func (s ArrowShape) translate(d geom.Point) Shape {
	return ArrowShape{Start: s.Start.Add(d), End: s.End.Add(d)}
}

func (s FreehandShape) clone() Shape {
	pts := make([]geom.Point, len(s.Points))
	copy(pts, s.Points)
	return FreehandShape{Points: pts}
}

func (s RectShape) clone() Shape   { return s }
func (s CircleShape) clone() Shape { return s }
func (s TextShape) clone() Shape   { return s }
func (s LineShape) clone() Shape   { return s }
func (s ArrowShape) clone() Shape  { return s }

// Endpoints returns the start and end of a line or arrow.
func Endpoints(s Shape) (start, end geom.Point, ok bool) {
	switch sh := s.(type) {
	case LineShape:
		return sh.Start, sh.End, true
	case ArrowShape:
		return sh.Start, sh.End, true
	}
	return geom.Point{}, geom.Point{}, false
}

// WithEndpoints returns a copy of a line or arrow with new endpoints. Other
// shapes are returned unchanged.
func WithEndpoints(s Shape, start, end geom.Point) Shape {
	switch s.(type) {
	case LineShape:
		return LineShape{Start: start, End: end}
	case ArrowShape:
		return ArrowShape{Start: start, End: end}
	}
	return s
}

// IsSegment reports whether the shape is a line or an arrow.
func IsSegment(s Shape) bool {
	_, _, ok := Endpoints(s)
	return ok
}

// TranslateAnnotation moves an annotation's geometry by d in its own parent
// space.
func TranslateAnnotation(a Annotation, d geom.Point) Annotation {
	if a.Shape != nil {
		a.Shape = a.Shape.translate(d)
	}
	return a
}

type annotationJSON struct {
	ID          string          `json:"id"`
	Type        Kind            `json:"type"`
	Color       string          `json:"color"`
	StrokeWidth float64         `json:"strokeWidth"`
	Scale       float64         `json:"scale"`
	Rotation    float64         `json:"rotation"`
	Shape       json.RawMessage `json:"shape"`
}

func (a Annotation) MarshalJSON() ([]byte, error) {
	if a.Shape == nil {
		return nil, fmt.Errorf("annotation %s: missing shape", a.ID)
	}
	shape, err := json.Marshal(a.Shape)
	if err != nil {
		return nil, fmt.Errorf("annotation %s: %w", a.ID, err)
	}
	return json.Marshal(annotationJSON{
		ID:          a.ID,
		Type:        a.Shape.Kind(),
		Color:       a.Color,
		StrokeWidth: a.StrokeWidth,
		Scale:       a.Scale,
		Rotation:    a.Rotation,
		Shape:       shape,
	})
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw annotationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	shape, err := decodeShape(raw.Type, raw.Shape)
	if err != nil {
		return fmt.Errorf("annotation %s: %w", raw.ID, err)
	}
	*a = Annotation{
		ID:          raw.ID,
		Color:       raw.Color,
		StrokeWidth: raw.StrokeWidth,
		Scale:       raw.Scale,
		Rotation:    raw.Rotation,
		Shape:       shape,
	}
	if a.Scale <= 0 {
		a.Scale = 1
	}
	return nil
}

func decodeShape(kind Kind, data json.RawMessage) (Shape, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("missing shape for %q", kind)
	}
	switch kind {
	case KindFreehand:
		var s FreehandShape
		err := json.Unmarshal(data, &s)
		return s, err
	case KindRect:
		var s RectShape
		err := json.Unmarshal(data, &s)
		return s, err
	case KindCircle:
		var s CircleShape
		err := json.Unmarshal(data, &s)
		return s, err
	case KindText:
		var s TextShape
		err := json.Unmarshal(data, &s)
		return s, err
	case KindLine:
		var s LineShape
		err := json.Unmarshal(data, &s)
		return s, err
	case KindArrow:
		var s ArrowShape
		err := json.Unmarshal(data, &s)
		return s, err
	default:
		return nil, fmt.Errorf("unknown annotation type %q", kind)
	}
}
