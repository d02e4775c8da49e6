package color

import (
	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	infoColor    = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	valueColor   = color.New(color.FgHiYellow)
)

func Header(s string) string {
	return headerColor.Sprint(s)
}

func Info(s string) string {
	return infoColor.Sprint(s)
}

func Warning(s string) string {
	return warningColor.Sprint(s)
}

func Error(s string) string {
	return errorColor.Sprint(s)
}

func Value(s string) string {
	return valueColor.Sprint(s)
}

// Disable turns off escape codes, e.g. when output is piped.
func Disable() {
	color.NoColor = true
}
