package grouping

import (
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/lotas/tabgruppen/internal/types"
)

// DefaultName derives a group name from a tab title without asking the
// model: the part before the first " - " and then " | ", cut to
// MaxNameLen characters plus "...". Tabs without a title are named after
// their host.
func DefaultName(tab *types.Tab) string {
	name, _, _ := strings.Cut(tab.Title, " - ")
	name, _, _ = strings.Cut(name, " | ")
	if strings.TrimSpace(name) == "" {
		name = hostname(tab.URL)
	}
	if r := []rune(name); len(r) > MaxNameLen {
		name = string(r[:MaxNameLen]) + "..."
	}
	return name
}

// DefaultColor picks a stable color for the tab's host. Unparseable URLs
// get grey.
func DefaultColor(rawURL string) types.Color {
	host := hostname(rawURL)
	if host == "" {
		return types.ColorGrey
	}
	idx := hashCode(host) % int32(len(types.Colors))
	if idx < 0 {
		idx = -idx
	}
	return types.Colors[idx]
}

func hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// hashCode is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound. Colors picked by it must stay stable across releases.
func hashCode(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return h
}
