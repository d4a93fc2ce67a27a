package geometry

// DefaultBreakpoint is the widest viewport, in CSS pixels, still treated as narrow.
const DefaultBreakpoint = 768

// Size is a viewport size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bucket is a discrete viewport class.
type Bucket string

const (
	BucketNarrow Bucket = "narrow"
	BucketWide   Bucket = "wide"
)

// BucketFor classifies a width against breakpoint.
func BucketFor(width, breakpoint float64) Bucket {
	if breakpoint <= 0 {
		breakpoint = DefaultBreakpoint
	}
	if width <= breakpoint {
		return BucketNarrow
	}
	return BucketWide
}

// Layout holds the position constants the renderer uses for a bucket.
type Layout struct {
	Bucket     Bucket  `json:"bucket"`
	PaddingPct float64 `json:"paddingPct"`
	FontPx     float64 `json:"fontPx"`
}

// LayoutFor returns the layout constants of a bucket: wide screens indent the
// name by 20% at 3.5rem of a 16px root, narrow ones by 10% at 3rem of 13px.
func LayoutFor(b Bucket) Layout {
	if b == BucketNarrow {
		return Layout{Bucket: BucketNarrow, PaddingPct: 10, FontPx: 39}
	}
	return Layout{Bucket: BucketWide, PaddingPct: 20, FontPx: 56}
}

// Origin is where the first glyph of the name sits for a viewport size.
func (l Layout) Origin(size Size) Point {
	return Point{X: size.Width * l.PaddingPct / 100, Y: size.Height / 2}
}

// Viewport is a settable viewport provider. Subscribers are notified
// synchronously, in subscription order, when the size changes. It is meant to
// be driven from a single event loop and is not safe for concurrent use.
type Viewport struct {
	size Size
	subs []subscription
	next int
}

type subscription struct {
	id int
	fn func(Size)
}

// NewViewport creates a provider reporting size.
func NewViewport(size Size) *Viewport {
	return &Viewport{size: size}
}

// CurrentSize returns the last size set.
func (v *Viewport) CurrentSize() Size {
	return v.size
}

// OnChange registers fn for size changes.
func (v *Viewport) OnChange(fn func(Size)) (unsubscribe func()) {
	v.next++
	id := v.next
	v.subs = append(v.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range v.subs {
			if s.id == id {
				v.subs = append(v.subs[:i], v.subs[i+1:]...)
				return
			}
		}
	}
}

// Set updates the size and notifies subscribers if it changed.
func (v *Viewport) Set(size Size) {
	if size == v.size {
		return
	}
	v.size = size
	subs := append([]subscription(nil), v.subs...)
	for _, s := range subs {
		s.fn(size)
	}
}
