package dash

import "github.com/charmbracelet/lipgloss"

// Theme defines all colors used by the dashboard.
// Use DarkTheme() or LightTheme() to get a pre-built theme,
// or construct a custom Theme.
type Theme struct {
	Primary         lipgloss.Color // warm accent, cursor and title
	Secondary       lipgloss.Color // cool accent, selected row text
	Error           lipgloss.Color // failures, dead records
	Warning         lipgloss.Color // unverified records, idle-too-long
	Success         lipgloss.Color // working agents
	Info            lipgloss.Color // done agents
	Text            lipgloss.Color // primary text
	TextMuted       lipgloss.Color // secondary text, hints, ages
	BackgroundElem  lipgloss.Color // highlighted row background
	BackgroundPanel lipgloss.Color // preview panel background
	Border          lipgloss.Color // separators, preview border
}

// DarkTheme returns the default dark theme.
func DarkTheme() Theme {
	return Theme{
		Primary:         lipgloss.Color("#fab283"),
		Secondary:       lipgloss.Color("#5c9cf5"),
		Error:           lipgloss.Color("#e06c75"),
		Warning:         lipgloss.Color("#f5a742"),
		Success:         lipgloss.Color("#7fd88f"),
		Info:            lipgloss.Color("#56b6c2"),
		Text:            lipgloss.Color("#eeeeee"),
		TextMuted:       lipgloss.Color("#808080"),
		BackgroundElem:  lipgloss.Color("#1e1e1e"),
		BackgroundPanel: lipgloss.Color("#141414"),
		Border:          lipgloss.Color("#484848"),
	}
}

// LightTheme returns a light theme for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:         lipgloss.Color("#b35c00"),
		Secondary:       lipgloss.Color("#0550ae"),
		Error:           lipgloss.Color("#cf222e"),
		Warning:         lipgloss.Color("#bf8700"),
		Success:         lipgloss.Color("#116329"),
		Info:            lipgloss.Color("#0969da"),
		Text:            lipgloss.Color("#1f2328"),
		TextMuted:       lipgloss.Color("#656d76"),
		BackgroundElem:  lipgloss.Color("#f6f8fa"),
		BackgroundPanel: lipgloss.Color("#ffffff"),
		Border:          lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

// styles holds all lipgloss styles derived from a Theme.
// Constructed once from a Theme and stored in the model.
type styles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	selected lipgloss.Style
	working  lipgloss.Style
	idle     lipgloss.Style
	done     lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	dim      lipgloss.Style
	text     lipgloss.Style
	status   lipgloss.Style
	preview  lipgloss.Style
}

// newStyles builds all styles from a theme.
func newStyles(t Theme) styles {
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		header:   lipgloss.NewStyle().Foreground(t.Border),
		selected: lipgloss.NewStyle().Bold(true).Foreground(t.Secondary).Background(t.BackgroundElem),
		working:  lipgloss.NewStyle().Foreground(t.Success),
		idle:     lipgloss.NewStyle().Foreground(t.TextMuted),
		done:     lipgloss.NewStyle().Foreground(t.Info),
		err:      lipgloss.NewStyle().Foreground(t.Error),
		warn:     lipgloss.NewStyle().Foreground(t.Warning),
		dim:      lipgloss.NewStyle().Foreground(t.TextMuted),
		text:     lipgloss.NewStyle().Foreground(t.Text),
		status:   lipgloss.NewStyle().Foreground(t.TextMuted),
		preview:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Border),
	}
}
