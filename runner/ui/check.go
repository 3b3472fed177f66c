package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Check prints one line of a checklist.
func Check(w io.Writer, ok bool, label string, detail string) {
	symbol := color.HiGreenString("✓")
	if !ok {
		symbol = color.HiRedString("✗")
	}
	if detail != "" {
		detail = color.HiBlackString(" (%s)", detail)
	}
	fmt.Fprintf(w, "%s %s%s\n", symbol, label, detail)
}

// Warning prints a warning line of a checklist.
func Warning(w io.Writer, label string) {
	fmt.Fprintf(w, "%s %s\n", color.HiYellowString("!"), label)
}
