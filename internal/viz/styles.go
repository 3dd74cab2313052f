package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of every rendered panel and plot.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Border  lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:    "default",
		Primary: lipgloss.Color("#00ffff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888899"),
		Border:  lipgloss.Color("#444466"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffcc00"),
		Error:   lipgloss.Color("#ff4444"),
	}

	ThemeMono = Theme{Name: "mono"}
)

var themes = []Theme{ThemeDefault, ThemeMono}

// Current is the active theme.
var Current = ThemeDefault

// UseTheme activates the named theme.
func UseTheme(name string) error {
	for _, t := range themes {
		if t.Name == name {
			Current = t
			return nil
		}
	}
	return fmt.Errorf("unknown theme: %s", name)
}

func style(c lipgloss.Color) lipgloss.Style {
	s := lipgloss.NewStyle()
	if c != "" {
		s = s.Foreground(c)
	}
	return s
}

func TitleStyle() lipgloss.Style   { return style(Current.Primary).Bold(true) }
func SubtleStyle() lipgloss.Style  { return style(Current.Muted) }
func LabelStyle() lipgloss.Style   { return style(Current.Muted) }
func ValueStyle() lipgloss.Style   { return style(Current.Text).Bold(true) }
func SuccessStyle() lipgloss.Style { return style(Current.Success).Bold(true) }
func ErrorStyle() lipgloss.Style   { return style(Current.Error).Bold(true) }

func panelStyle() lipgloss.Style {
	s := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	if Current.Border != "" {
		s = s.BorderForeground(Current.Border)
	}
	return s
}

// Summary renders rows of label/value pairs in a titled panel.
func Summary(title string, rows [][2]string) string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	var b strings.Builder
	b.WriteString(TitleStyle().Render(title))
	for _, r := range rows {
		b.WriteString("\n")
		b.WriteString(LabelStyle().Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  ")
		b.WriteString(ValueStyle().Render(r[1]))
	}
	return panelStyle().Render(b.String())
}

// ProgressBar renders a bar of the given width, colored by completion.
func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	filled = min(max(filled, 0), width)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case percent >= 1:
		return style(Current.Success).Render(bar)
	case percent > 0.4:
		return style(Current.Warning).Render(bar)
	default:
		return style(Current.Primary).Render(bar)
	}
}

// Sparkline renders values as one line of block characters.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := max(len(values)/width, 1)
	var out []rune
	for i := 0; i < width && i*step < len(values); i++ {
		idx := int((values[i*step] - lo) / rng * float64(len(chars)-1))
		out = append(out, chars[min(max(idx, 0), len(chars)-1)])
	}
	return style(Current.Primary).Render(string(out))
}
