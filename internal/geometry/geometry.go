// Package geometry measures rendered elements so a moving glyph can be
// translated to land exactly beside a stationary anchor, whatever the font
// metrics or viewport size.
//
// All layout reads go through a Measurer supplied by the renderer; the
// functions here are pure and never cache a measurement.
package geometry

import "fmt"

// Handle names a measurable element, e.g. "name/0" for the first glyph of the name.
type Handle string

// GlyphHandle returns the handle of the index-th glyph placed under prefix.
func GlyphHandle(prefix string, index int) Handle {
	return Handle(fmt.Sprintf("%s/%d", prefix, index))
}

// Point is a position in renderer units (pixels or terminal cells).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box in renderer units.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right is the trailing edge in left-to-right text.
func (r Rect) Right() float64 {
	return r.Left + r.Width
}

// Measurer reports the current layout box of an element. ok is false when the
// element is not attached (not laid out yet).
type Measurer interface {
	Rect(h Handle) (r Rect, ok bool)
}

// MeasurerFunc adapts a function to Measurer.
type MeasurerFunc func(h Handle) (Rect, bool)

// Rect calls f.
func (f MeasurerFunc) Rect(h Handle) (Rect, bool) {
	return f(h)
}

// Direction is the writing direction the offset is computed in.
type Direction int

const (
	LeftToRight Direction = iota
	RightToLeft
)

// Offset returns the translation that moves the moving element's leading edge
// onto the anchor's trailing edge: anchor.Right - moving.Left in left-to-right
// text, anchor.Left - moving.Right in right-to-left text.
//
// When either element is not attached the offset is 0 and ok is false; the
// glyph then simply does not align. Callers must measure after layout has
// settled and measure again for every independent retraction.
func Offset(m Measurer, anchor, moving Handle, dir Direction) (px float64, ok bool) {
	if m == nil {
		return 0, false
	}
	a, ok := m.Rect(anchor)
	if !ok {
		return 0, false
	}
	b, ok := m.Rect(moving)
	if !ok {
		return 0, false
	}
	if dir == RightToLeft {
		return a.Left - b.Right(), true
	}
	return a.Right() - b.Left, true
}
