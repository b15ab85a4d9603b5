package tui

import "strings"

// renderHeader draws a header bar with breadcrumb navigation.
func renderHeader(parts ...string) string {
	breadcrumb := "antiv"
	for _, p := range parts {
		breadcrumb += " > " + p
	}
	return headerBarStyle.Render(breadcrumb) + "\n"
}

// renderFooter draws a footer with keybind hints.
func renderFooter(hints ...string) string {
	return footerStyle.Render(strings.Join(hints, " • "))
}

// truncateLeft keeps the tail of s, which for paths is the useful part.
func truncateLeft(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return "…" + string(r[len(r)-width+1:])
}
