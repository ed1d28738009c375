package cmd

import (
	"strings"

	"github.com/fatih/color"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

// formatLabelWithColor colors a risk label by severity.
func formatLabelWithColor(label string) string {
	switch strings.ToLower(label) {
	case "low risk":
		return colorSuccess(label)
	case "medium risk", "suspicious":
		return colorWarn(label)
	case "high risk":
		return colorError(label)
	default:
		return label
	}
}
