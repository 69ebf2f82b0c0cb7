package banner

import (
	"github.com/charmbracelet/lipgloss"

	"prload/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
                 __                __
    ____  _____ / /   ____  ____ _/ /
   / __ \/ ___// /   / __ \/ __ '/ /
  / /_/ / /   / /___/ /_/ / /_/ / /
 / .___/_/   /_____/\____/\__,_/_/
/_/                                  `

	return "\n" + style.Render(ascii) + "\n"
}
