package geometry

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Metrics gives the horizontal advance of a rune and the line height, in
// renderer units.
type Metrics interface {
	Advance(r rune) float64
	LineHeight() float64
}

// TextLayout is a Measurer over lines of glyphs placed by a renderer. Each
// glyph of a line placed under prefix is attached as GlyphHandle(prefix, i).
type TextLayout struct {
	rects map[Handle]Rect
}

// NewTextLayout creates an empty layout with nothing attached.
func NewTextLayout() *TextLayout {
	return &TextLayout{rects: make(map[Handle]Rect)}
}

// PlaceLine lays text out left to right starting at origin (Y is the line's
// vertical centre) and attaches one rect per rune. Any previous line under
// prefix is replaced. It returns the line width.
func (l *TextLayout) PlaceLine(prefix, text string, origin Point, m Metrics) float64 {
	l.Remove(prefix)
	height := m.LineHeight()
	top := origin.Y - height/2
	x := origin.X
	i := 0
	for _, r := range text {
		w := m.Advance(r)
		l.rects[GlyphHandle(prefix, i)] = Rect{Left: x, Top: top, Width: w, Height: height}
		x += w
		i++
	}
	return x - origin.X
}

// AttachLine replaces the line under prefix with rects measured elsewhere,
// one per glyph in order.
func (l *TextLayout) AttachLine(prefix string, rects []Rect) {
	l.Remove(prefix)
	for i, r := range rects {
		l.rects[GlyphHandle(prefix, i)] = r
	}
}

// Remove detaches every glyph placed under prefix.
func (l *TextLayout) Remove(prefix string) {
	p := prefix + "/"
	for h := range l.rects {
		if strings.HasPrefix(string(h), p) {
			delete(l.rects, h)
		}
	}
}

// Rect implements Measurer.
func (l *TextLayout) Rect(h Handle) (Rect, bool) {
	r, ok := l.rects[h]
	return r, ok
}

var parseBold = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// FontMetrics measures glyphs of the Go Bold typeface at a pixel size. It
// stands in for the page's display font in the server-side layout model.
type FontMetrics struct {
	face font.Face
}

// NewFontMetrics creates metrics for a face of sizePx pixels.
func NewFontMetrics(sizePx float64) (*FontMetrics, error) {
	fnt, err := parseBold()
	if err != nil {
		return nil, err
	}
	face, err := opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    sizePx,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, err
	}
	return &FontMetrics{face: face}, nil
}

// Advance implements Metrics. Runes missing from the face measure as '?'.
func (m *FontMetrics) Advance(r rune) float64 {
	adv, ok := m.face.GlyphAdvance(r)
	if !ok {
		adv, _ = m.face.GlyphAdvance('?')
	}
	return toFloat(adv)
}

// LineHeight implements Metrics.
func (m *FontMetrics) LineHeight() float64 {
	return toFloat(m.face.Metrics().Height)
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// CellMetrics measures terminal cells: one unit per column.
type CellMetrics struct{}

// Advance implements Metrics.
func (CellMetrics) Advance(r rune) float64 {
	return float64(runewidth.RuneWidth(r))
}

// LineHeight implements Metrics.
func (CellMetrics) LineHeight() float64 {
	return 1
}
