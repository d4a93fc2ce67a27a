package choreo

import "jtlab/internal/geometry"

// Snapshot is the immutable render state handed to the Renderer after every
// change. Seq increases by one per snapshot.
type Snapshot struct {
	Seq                uint64          `json:"seq"`
	Phase              Phase           `json:"phase"`
	Name               string          `json:"name"`
	NameVisible        bool            `json:"nameVisible"`
	MovingIndex        int             `json:"movingIndex"`
	LogoText           string          `json:"logoText"`
	LabelVisible       bool            `json:"labelVisible"`
	ScrambleOutput     string          `json:"scrambleOutput"`
	GeometryOffsetPx   float64         `json:"geometryOffsetPx"`
	ThemeIsDark        bool            `json:"themeIsDark"`
	GlowLevel          GlowLevel       `json:"glowLevel"`
	ViewportBucket     geometry.Bucket `json:"viewportBucket"`
	Viewport           geometry.Size   `json:"viewport"`
	Layout             geometry.Layout `json:"layout"`
	HeaderVisible      bool            `json:"headerVisible"`
	ThemeToggleVisible bool            `json:"themeToggleVisible"`
	NavVisible         bool            `json:"navVisible"`
	Bullet             BulletState     `json:"bullet"`
}

// Renderer paints snapshots.
type Renderer interface {
	Render(s Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(s Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }

// Visibility follows from the phase alone so that no combination of flags can
// disagree with it.
func nameVisible(p Phase) bool   { return p == PhaseNameVisible || p == PhaseRetracting }
func logoVisible(p Phase) bool   { return p >= PhaseLogoFormed }
func labelVisible(p Phase) bool  { return p >= PhaseScrambling }
func headerVisible(p Phase) bool { return p >= PhaseHeaderTransition }
func interactive(p Phase) bool   { return p == PhaseInteractive }
