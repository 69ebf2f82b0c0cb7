package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. Green and red carry the pass/fail verdict everywhere, on the
// dashboard and in the printed report alike.
var (
	ColorPrimary   = lipgloss.Color("#5F87FF") // headings, active tab
	ColorSecondary = lipgloss.Color("#5FD787") // passing values
	ColorError     = lipgloss.Color("#FF5F5F") // crossed thresholds, transport errors
	ColorWarning   = lipgloss.Color("#FFD75F") // close to a limit
	ColorText      = lipgloss.Color("#E4E4E4")
	ColorSubtle    = lipgloss.Color("#808080")
	ColorBorder    = lipgloss.Color("#444444")
	ColorBg        = lipgloss.Color("#121212")
	ColorHighlight = lipgloss.Color("#5F87FF")
	ColorBanner    = lipgloss.Color("#5FD7AF")
)

var (
	Text    = lipgloss.NewStyle().Foreground(ColorText)
	Subtle  = lipgloss.NewStyle().Foreground(ColorSubtle)
	Value   = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	Active  = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	Success = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	Warn    = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)

	Title = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(ColorBorder)

	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(1, 2)

	// Box is a metric card.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1).
		Margin(0, 1)

	passBadge = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorSecondary).Bold(true).Padding(0, 1)
	failBadge = lipgloss.NewStyle().Foreground(ColorBg).Background(ColorError).Bold(true).Padding(0, 1)

	TabBase   = lipgloss.NewStyle().Foreground(ColorSubtle).Padding(0, 2)
	TabActive = TabBase.
			Foreground(ColorPrimary).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorPrimary)

	FooterBase = lipgloss.NewStyle().Height(1).Padding(0, 1)

	keyStyle  = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	descStyle = lipgloss.NewStyle().Foreground(ColorSubtle)
)

// RenderKey renders a footer key hint such as "<Q> Quit".
func RenderKey(key, desc string) string {
	return keyStyle.Render("<"+key+">") + " " + descStyle.Render(desc)
}

// Verdict renders a PASS or FAIL badge.
func Verdict(ok bool) string {
	if ok {
		return passBadge.Render("PASS")
	}
	return failBadge.Render("FAIL")
}

// ForRate picks the style for a failure rate measured against limit:
// green well under it, yellow past half of it, red once crossed.
func ForRate(rate, limit float64) lipgloss.Style {
	switch {
	case rate >= limit:
		return Error
	case rate >= limit/2:
		return Warn
	default:
		return Value
	}
}
