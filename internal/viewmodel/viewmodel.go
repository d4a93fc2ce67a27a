package viewmodel

import "jtlab/internal/choreo"

// LetterStaggerMs is the per-letter delay of the name fading out while it retracts.
const LetterStaggerMs = 50

// NavLink is one entry of the navigation menu.
type NavLink struct {
	Label string
	Href  string
}

// DefaultNav returns the landing page sections.
func DefaultNav() []NavLink {
	return []NavLink{
		{Label: "Services", Href: "#services"},
		{Label: "Pricing", Href: "#portfolio"},
		{Label: "Contact", Href: "#contact"},
		{Label: "About", Href: "#about"},
	}
}

// Glyph is one letter of the name as the page lays it out.
type Glyph struct {
	Char    string
	Index   int
	Anchor  bool
	Moving  bool
	DelayMs int
}

// HomePage holds data for the landing page template.
type HomePage struct {
	Title        string
	CanonicalURL string
	Name         string
	Glyphs       []Glyph
	Logo         string
	LabelFrom    string
	Nav          []NavLink
	// StreamURL is where the page opens its snapshot stream.
	StreamURL string
}

// NameGlyphs splits name into glyphs, marking the letter that stays and the
// one that slides onto it.
func NameGlyphs(name string, anchor, moving int) []Glyph {
	out := make([]Glyph, 0, len(name))
	for i, r := range []rune(name) {
		out = append(out, Glyph{
			Char:    string(r),
			Index:   i,
			Anchor:  i == anchor,
			Moving:  i == moving,
			DelayMs: i * LetterStaggerMs,
		})
	}
	return out
}

// Home builds the landing page data for an intro configuration.
func Home(cfg choreo.Config, canonicalURL string) HomePage {
	anchor, moving := cfg.LogoGlyphs()
	return HomePage{
		Title:        cfg.Name,
		CanonicalURL: canonicalURL,
		Name:         cfg.Name,
		Glyphs:       NameGlyphs(cfg.Name, anchor, moving),
		Logo:         cfg.Logo,
		LabelFrom:    cfg.LabelFrom,
		Nav:          DefaultNav(),
		StreamURL:    "/intro/stream",
	}
}
