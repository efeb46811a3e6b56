// Package lineutil provides LINE message building utilities.
package lineutil

// 4-Point Grid Spacing System
const (
	SpacingNone = "none"
	SpacingXS   = "4px"
	SpacingS    = "8px"
	SpacingM    = "12px"
	SpacingL    = "16px"
	SpacingXL   = "20px"

	LineSpacingNormal = "6px"
)

// LINE Design System Colors
// Reference: https://designsystem.line.me/LDSM/foundation/color/line-color-guide-ex-en
const (
	ColorLineGreen = "#06C755"

	ColorWhite   = "#FFFFFF"
	ColorGray300 = "#DFDFDF" // Separator, divider
	ColorGray600 = "#777777" // Secondary text
	ColorGray900 = "#111111" // Primary text

	ColorBlue500 = "#638DFF"

	ColorText      = ColorGray900
	ColorSubtext   = ColorGray600
	ColorSeparator = ColorGray300
	ColorPrimary   = ColorLineGreen
	ColorSecondary = ColorBlue500
)

// Stage colors for the detection bubble header.
const (
	ColorStageSafe    = "#1DB446" // stage 0-1
	ColorStageWarning = "#FFBB00" // stage 2
	ColorStageDanger  = "#FF0000" // stage 3+ and analysis errors
)

// StageColor maps a scam stage to its header color.
func StageColor(stage int) string {
	switch {
	case stage <= 1:
		return ColorStageSafe
	case stage >= 3:
		return ColorStageDanger
	default:
		return ColorStageWarning
	}
}
