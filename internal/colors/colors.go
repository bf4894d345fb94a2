// Package colors holds the palette used to print crash reports.
//
// Colors are disabled automatically by fatih/color when stdout is not a terminal;
// Init overrides that from the --color/--no-color flags.
package colors

import "github.com/fatih/color"

// Init overrides the detected color setting unless forceColor is nil.
func Init(forceColor *bool) {
	if forceColor != nil {
		color.NoColor = !*forceColor
	}
}

// Enabled reports whether colors are printed.
func Enabled() bool {
	return !color.NoColor
}

var (
	// Key is used for header and exception field names
	Key = color.New(color.Bold, color.FgHiBlue).SprintFunc()
	// Section is used for section titles
	Section = color.New(color.Bold, color.FgHiWhite, color.Underline).SprintFunc()
	// Thread is used for thread titles
	Thread = color.New(color.Bold, color.FgHiCyan).SprintFunc()
	// Crashed marks the crashed thread
	Crashed = color.New(color.Bold, color.FgHiRed).SprintFunc()
	// Address is used for load, end and frame addresses
	Address = color.New(color.Faint, color.FgHiMagenta).SprintFunc()
	// Image is used for binary image names
	Image = color.New(color.FgHiYellow).SprintFunc()
	// Symbol is used for function names
	Symbol = color.New(color.FgHiGreen).SprintFunc()
	// Source is used for source file locations
	Source = color.New(color.Italic, color.Faint).SprintFunc()
	// Faint is used for secondary details such as UUIDs and paths
	Faint = color.New(color.Faint).SprintFunc()
	// Added and Removed color unified diff lines
	Added   = color.New(color.FgGreen).SprintFunc()
	Removed = color.New(color.FgRed).SprintFunc()
)
