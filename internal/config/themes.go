package config

import "slices"

// Theme identifiers used in Config.Theme. The TUI owns the palettes;
// config only validates the names so a typo fails at startup instead of
// rendering a half-styled session.
const (
	ThemeCyberpunk = "cyberpunk"
	ThemeOcean     = "ocean"
	ThemeForest    = "forest"
	ThemeSunset    = "sunset"
)

// themeNames holds every valid theme in display order.
var themeNames = []string{ThemeCyberpunk, ThemeOcean, ThemeForest, ThemeSunset}

// ThemeNames returns the valid theme names in display order.
// The returned slice is a copy; callers may modify it.
func ThemeNames() []string {
	return slices.Clone(themeNames)
}

// ValidTheme reports whether name is a known theme.
func ValidTheme(name string) bool {
	return slices.Contains(themeNames, name)
}
