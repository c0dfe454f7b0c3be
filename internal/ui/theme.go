package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/kmorand/killfeed/internal/event"
)

// Theme defines colors for the UI.
type Theme struct {
	Name string

	Background string
	Surface    string

	Text   string
	Muted  string
	Faint  string
	Accent string

	Success string
	Warning string
	Danger  string
	Info    string

	// Highlight is the transient background for freshly arrived events.
	Highlight string

	// DeathColors keys off the normalized death type.
	DeathColors map[event.DeathType]string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		FaintText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Faint)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		Highlight: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Highlight)).
			Foreground(lipgloss.Color(t.Text)),

		deathColors: t.DeathColors,
		muted:       t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header    lipgloss.Style
	Footer    lipgloss.Style
	Highlight lipgloss.Style

	deathColors map[event.DeathType]string
	muted       string
}

// DeathStyle returns the foreground style for a death type.
func (s Styles) DeathStyle(d event.DeathType) lipgloss.Style {
	color := s.deathColors[d.Known()]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

var themes = map[string]Theme{
	"Dark":  darkTheme(),
	"Light": lightTheme(),
}

var themeOrder = []string{"Dark", "Light"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return darkTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func darkTheme() Theme {
	// Nightfox palette: https://github.com/EdenEast/nightfox.nvim
	return Theme{
		Name: "Dark",

		Background: "#131a24", // bg0
		Surface:    "#192330", // bg1

		Text:   "#cdcecf", // fg1
		Muted:  "#738091", // comment
		Faint:  "#71839b", // fg3
		Accent: "#719cd6", // blue

		Success: "#81b29a", // green
		Warning: "#dbc074", // yellow
		Danger:  "#c94f6d", // red
		Info:    "#63cdcf", // cyan

		Highlight: "#2b3b51", // sel0

		DeathColors: map[event.DeathType]string{
			event.DeathCombat:      "#c94f6d", // red
			event.DeathHard:        "#c94f6d", // red
			event.DeathSoft:        "#dbc074", // yellow
			event.DeathCollision:   "#f4a261", // orange
			event.DeathCrash:       "#f4a261", // orange
			event.DeathBleedOut:    "#9d79d6", // magenta
			event.DeathSuffocation: "#63cdcf", // cyan
			event.DeathUnknown:     "#738091", // comment
		},
	}
}

func lightTheme() Theme {
	// Dayfox, the light variant of the same palette.
	return Theme{
		Name: "Light",

		Background: "#f6f2ee", // bg0
		Surface:    "#dbd1dd", // bg2

		Text:   "#3d2b5a", // fg1
		Muted:  "#824d5b", // comment
		Faint:  "#837a72", // fg3
		Accent: "#2848a9", // blue

		Success: "#396847", // green
		Warning: "#ac5402", // yellow
		Danger:  "#a5222f", // red
		Info:    "#287980", // cyan

		Highlight: "#e7d2be", // sel0

		DeathColors: map[event.DeathType]string{
			event.DeathCombat:      "#a5222f",
			event.DeathHard:        "#a5222f",
			event.DeathSoft:        "#ac5402",
			event.DeathCollision:   "#955f61",
			event.DeathCrash:       "#955f61",
			event.DeathBleedOut:    "#6e33ce",
			event.DeathSuffocation: "#287980",
			event.DeathUnknown:     "#824d5b",
		},
	}
}
