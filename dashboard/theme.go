package dashboard

import "strings"

// ThemeCookie stores the preferred theme between sessions
const ThemeCookie = "liftoff_theme"

// Theme is the colour scheme of the page.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps a cookie value to a Theme, anything but "dark" is light.
func ParseTheme(value string) Theme {
	if strings.EqualFold(strings.TrimSpace(value), string(ThemeDark)) {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the opposite theme.
func (theme Theme) Toggle() Theme {
	if theme == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// Icon is the glyph of the toggle control, it shows the theme the toggle switches to.
func (theme Theme) Icon() string {
	if theme == ThemeDark {
		return "☀️"
	}
	return "🌙"
}
