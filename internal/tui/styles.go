package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	"charm.land/lipgloss/v2"

	"github.com/koopa0/context7-agent/internal/config"
)

// Context7 ASCII art (filled block style).
var bannerArt = []string{
	" ██████╗ ██████╗ ███╗   ██╗████████╗███████╗██╗  ██╗████████╗███████╗",
	"██╔════╝██╔═══██╗████╗  ██║╚══██╔══╝██╔════╝╚██╗██╔╝╚══██╔══╝╚════██║",
	"██║     ██║   ██║██╔██╗ ██║   ██║   █████╗   ╚███╔╝    ██║       ██╔╝",
	"██║     ██║   ██║██║╚██╗██║   ██║   ██╔══╝   ██╔██╗    ██║      ██╔╝ ",
	"╚██████╗╚██████╔╝██║ ╚████║   ██║   ███████╗██╔╝ ██╗   ██║     ██╔╝  ",
	" ╚═════╝ ╚═════╝ ╚═╝  ╚═══╝   ╚═╝   ╚══════╝╚═╝  ╚═╝   ╚═╝     ╚═╝   ",
}

// Styles contains all lipgloss styles for the TUI.
type Styles struct {
	Banner    lipgloss.Style
	Header    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	System    lipgloss.Style
	Tips      lipgloss.Style // White color for tips (more visible)
	Success   lipgloss.Style
	Error     lipgloss.Style
	Prompt    lipgloss.Style
	Separator lipgloss.Style // Horizontal line separator
	StatusBar lipgloss.Style
}

// Theme bundles everything a theme name selects: the style set, the banner
// accent line, and the spinner animation shown while the model thinks.
type Theme struct {
	Name    string
	Styles  Styles
	motif   string
	spinner spinner.Spinner
}

// palette is the raw color set a theme is built from. Colors are ANSI 256
// so the themes degrade gracefully on plainer terminals.
type palette struct {
	primary string // banner, prompt, user label
	accent  string // assistant label
	motif   string // decorative line under the banner
	glyph   string // spinner particle sliding left to right
}

var palettes = map[string]palette{
	config.ThemeCyberpunk: {
		primary: "201", // magenta
		accent:  "51",  // bright cyan
		motif:   "▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞▚▞",
		glyph:   "*",
	},
	config.ThemeOcean: {
		primary: "33", // blue
		accent:  "44", // cyan
		motif:   "~~~~~  ~~~   ~~~   ~~~   ~~~  ~~~~~",
		glyph:   "~",
	},
	config.ThemeForest: {
		primary: "34", // green
		accent:  "46", // bright green
		motif:   `////\\\\////\\\\////\\\\////\\\\////`,
		glyph:   "^",
	},
	config.ThemeSunset: {
		primary: "220", // yellow
		accent:  "203", // bright red
		motif:   "_/=\\_/=\\_/=\\_/=\\_/=\\_/=\\_/=\\_/=\\_",
		glyph:   "o",
	},
}

// ThemeByName returns the theme for a validated name. Unrecognized names
// fall back to cyberpunk so rendering never fails mid-session.
func ThemeByName(name string) Theme {
	p, ok := palettes[name]
	if !ok {
		name = config.ThemeCyberpunk
		p = palettes[name]
	}
	return Theme{
		Name: name,
		Styles: Styles{
			Banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.primary)),
			Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.primary)),
			User:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.primary)),
			Assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.accent)),
			System:    lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240")),
			Tips:      lipgloss.NewStyle().Foreground(lipgloss.Color("255")), // White for visibility
			Success:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
			Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			Prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(p.primary)),
			Separator: lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // Gray separator line
			StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")), // Light gray, no background
		},
		motif:   p.motif,
		spinner: spinner.Spinner{Frames: slidingFrames(p.glyph), FPS: time.Second / 8},
	}
}

// DefaultTheme returns the cyberpunk theme.
func DefaultTheme() Theme {
	return ThemeByName(config.ThemeCyberpunk)
}

// Spinner returns the theme's thinking animation.
func (t Theme) Spinner() spinner.Spinner {
	return t.spinner
}

// slidingFrames animates a single glyph drifting right and bouncing back.
func slidingFrames(glyph string) []string {
	positions := []int{0, 1, 2, 3, 4, 3, 2, 1}
	frames := make([]string, len(positions))
	for i, pos := range positions {
		frames[i] = strings.Repeat(" ", pos) + glyph + strings.Repeat(" ", 4-pos)
	}
	return frames
}

// RenderBanner returns the Context7 ASCII art banner with the theme's
// accent line underneath.
func (t Theme) RenderBanner() string {
	var b strings.Builder
	for _, line := range bannerArt {
		_, _ = b.WriteString(t.Styles.Banner.Render(line))
		_, _ = b.WriteString("\n")
	}
	if t.motif != "" {
		_, _ = b.WriteString(t.Styles.Assistant.Render("  " + t.motif))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}

// RenderWelcome returns the greeting line shown above the tips.
func (t Theme) RenderWelcome() string {
	return t.Styles.Header.Render(fmt.Sprintf("Welcome to Context7 Agent! (Theme: %s)", t.Name))
}

// welcomeTips contains getting started tips displayed under the banner.
var welcomeTips = []string{
	"Tips for getting started:",
	"  • Ask about any library - docs arrive through Context7",
	"  • Use /help to see available commands",
	"  • Press Esc to cancel a reply, Ctrl+D to exit",
	"  • Up/Down arrows navigate input history",
}

// RenderWelcomeTips returns styled welcome tips (white for visibility).
func (t Theme) RenderWelcomeTips() string {
	var b strings.Builder
	for _, tip := range welcomeTips {
		_, _ = b.WriteString(t.Styles.Tips.Render(tip))
		_, _ = b.WriteString("\n")
	}
	return b.String()
}
