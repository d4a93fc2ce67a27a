package tui

import "github.com/charmbracelet/lipgloss"

// palette is one theme's colours.
type palette struct {
	fg     lipgloss.Color
	dim    lipgloss.Color
	accent lipgloss.Color
}

var (
	lightPalette = palette{
		fg:     lipgloss.Color("235"), // Near black - text
		dim:    lipgloss.Color("250"), // Light gray - fading letters
		accent: lipgloss.Color("166"), // Burnt orange - glow and bullet
	}
	darkPalette = palette{
		fg:     lipgloss.Color("255"), // Bright white - text
		dim:    lipgloss.Color("240"), // Dim gray - fading letters
		accent: lipgloss.Color("209"), // Salmon - glow and bullet
	}
)

// styles are rebuilt on every theme change.
type styles struct {
	text   lipgloss.Style
	fading lipgloss.Style
	logo   lipgloss.Style
	pulse  lipgloss.Style
	steady lipgloss.Style
	bullet lipgloss.Style
	track  lipgloss.Style
	nav    lipgloss.Style
	help   lipgloss.Style
}

func newStyles(dark bool) styles {
	p := lightPalette
	if dark {
		p = darkPalette
	}
	return styles{
		text:   lipgloss.NewStyle().Foreground(p.fg),
		fading: lipgloss.NewStyle().Foreground(p.dim),
		logo:   lipgloss.NewStyle().Bold(true).Foreground(p.fg),
		pulse:  lipgloss.NewStyle().Bold(true).Underline(true).Foreground(p.accent),
		steady: lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		bullet: lipgloss.NewStyle().Foreground(p.accent),
		track:  lipgloss.NewStyle().Foreground(p.dim),
		nav:    lipgloss.NewStyle().Foreground(p.fg),
		help:   lipgloss.NewStyle().Foreground(p.dim),
	}
}
