// Package theme centralizes colors. View models resolve theme colors
// into concrete styles so the render layer never picks colors itself.
package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

// Theme is a named palette. A Theme value is immutable; switching
// themes replaces the value and triggers view-model recomputes.
type Theme struct {
	Name string

	TextPrimary   color.Color
	TextSecondary color.Color
	TextMuted     color.Color

	AccentPrimary   color.Color
	AccentSecondary color.Color

	StatusSuccess color.Color
	StatusError   color.Color
	StatusWarning color.Color
	StatusInfo    color.Color

	SelectedBg color.Color
	SelectedFg color.Color

	HeaderBg color.Color
	HeaderFg color.Color
}

func Dark() Theme {
	return Theme{
		Name:            "dark",
		TextPrimary:     lipgloss.Color("252"),
		TextSecondary:   lipgloss.Color("245"),
		TextMuted:       lipgloss.Color("240"),
		AccentPrimary:   lipgloss.Color("39"),
		AccentSecondary: lipgloss.Color("212"),
		StatusSuccess:   lipgloss.Color("46"),
		StatusError:     lipgloss.Color("196"),
		StatusWarning:   lipgloss.Color("214"),
		StatusInfo:      lipgloss.Color("33"),
		SelectedBg:      lipgloss.Color("237"),
		SelectedFg:      lipgloss.Color("231"),
		HeaderBg:        lipgloss.Color("24"),
		HeaderFg:        lipgloss.Color("255"),
	}
}

func Light() Theme {
	return Theme{
		Name:            "light",
		TextPrimary:     lipgloss.Color("235"),
		TextSecondary:   lipgloss.Color("241"),
		TextMuted:       lipgloss.Color("247"),
		AccentPrimary:   lipgloss.Color("26"),
		AccentSecondary: lipgloss.Color("162"),
		StatusSuccess:   lipgloss.Color("28"),
		StatusError:     lipgloss.Color("160"),
		StatusWarning:   lipgloss.Color("130"),
		StatusInfo:      lipgloss.Color("25"),
		SelectedBg:      lipgloss.Color("153"),
		SelectedFg:      lipgloss.Color("16"),
		HeaderBg:        lipgloss.Color("117"),
		HeaderFg:        lipgloss.Color("16"),
	}
}

// ByName maps a configured theme name to a palette, defaulting to
// dark for anything unrecognized.
func ByName(name string) Theme {
	if name == "light" {
		return Light()
	}
	return Dark()
}
