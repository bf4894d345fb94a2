/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/blacktop/crashsym/internal/colors"
	"github.com/blacktop/crashsym/internal/utils"
	"github.com/blacktop/crashsym/pkg/crashlog"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolP("all", "a", false, "Show all threads (default shows the crashed thread only)")
	infoCmd.Flags().BoolP("images", "i", false, "Show binary images")
	infoCmd.MarkZshCompPositionalArgumentFile(1, "*.crash", "*.txt")
}

type field struct {
	key   string
	value *string
}

func printFields(w io.Writer, title string, fields []field) {
	fmt.Fprintln(w, colors.Section(title))
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		fmt.Fprintf(tw, "%s%s\t%s\n", utils.Pad(2), colors.Key(f.key+":"), *f.value)
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printFrames(w io.Writer, frames []crashlog.StackFrame) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, f := range frames {
		sym := colors.Symbol(f.FunctionName)
		if f.Offset != nil {
			sym += " + " + *f.Offset
		}
		if f.SourceName != nil && f.SourceLine != nil {
			sym += " " + colors.Source(fmt.Sprintf("(%s:%s)", *f.SourceName, *f.SourceLine))
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\n", utils.Pad(2), f.Number, colors.Image(f.BinaryName), colors.Address(f.Address), sym)
	}
	tw.Flush()
}

func printThread(w io.Writer, bt crashlog.ThreadBacktrace) {
	title := "Thread " + bt.ThreadNumber
	if bt.ThreadName != nil {
		title += " name: " + *bt.ThreadName
	}
	if bt.IsCrashed {
		fmt.Fprintf(w, "%s %s\n", colors.Thread(title), colors.Crashed("Crashed"))
	} else {
		fmt.Fprintln(w, colors.Thread(title))
	}
	printFrames(w, bt.StackFrames)
	fmt.Fprintln(w)
}

func imageSize(img crashlog.BinaryImageEntry) string {
	load, err := utils.ParseAddress(img.LoadAddress)
	if err != nil {
		return "?"
	}
	end, err := utils.ParseAddress(img.EndAddress)
	if err != nil || end < load {
		return "?"
	}
	return humanize.Bytes(end - load + 1)
}

func printInfo(w io.Writer, cl *crashlog.CrashLog, all, images bool) {
	h := cl.Content.Header
	printFields(w, "Header", []field{
		{"Incident Identifier", h.IncidentIdentifier},
		{"CrashReporter Key", h.CrashReporterKey},
		{"Beta Identifier", h.BetaIdentifier},
		{"Hardware Model", h.HardwareModel},
		{"Process", h.Process},
		{"Path", h.Path},
		{"Identifier", h.Identifier},
		{"Version", h.Version},
		{"AppStoreTools", h.AppStoreTools},
		{"AppVariant", h.AppVariant},
		{"Code Type", h.CodeType},
		{"Role", h.Role},
		{"Parent Process", h.ParentProcess},
		{"Coalition", h.Coalition},
		{"Date/Time", h.DateTime},
		{"Launch Time", h.LaunchTime},
		{"OS Version", h.OSVersion},
	})

	e := cl.Content.ExceptionInformation
	printFields(w, "Exception", []field{
		{"Exception Type", e.ExceptionType},
		{"Exception Codes", e.ExceptionCodes},
		{"Exception Subtype", e.ExceptionSubtype},
		{"Exception Note", e.ExceptionNote},
		{"Termination Reason", e.TerminationReason},
		{"Triggered by Thread", e.TriggeredByThread},
		{"Crashed Thread", e.CrashedThread},
	})

	if eb := cl.Content.ExceptionBacktrace; eb != nil {
		fmt.Fprintln(w, colors.Section("Last Exception Backtrace"))
		if eb.IsSymbolicated() {
			printFrames(w, eb.StackFrames)
		} else {
			for idx, addr := range eb.Addresses {
				fmt.Fprintf(w, "%s%-3d %s\n", utils.Pad(2), idx, colors.Address(addr))
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, colors.Section("Backtraces"))
	for _, bt := range cl.Content.Backtraces {
		if all || bt.IsCrashed {
			printThread(w, bt)
		}
	}

	if images {
		fmt.Fprintln(w, colors.Section("Binary Images"))
		tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
		for _, img := range cl.Content.BinaryImages {
			fmt.Fprintf(tw, "%s%s - %s\t%s\t%s\t%s\t%s\t%s\n",
				utils.Pad(2),
				colors.Address(img.LoadAddress),
				colors.Address(img.EndAddress),
				colors.Image(img.BinaryName),
				img.Architecture,
				imageSize(img),
				colors.Faint("<"+img.BuildUUID+">"),
				colors.Faint(img.BinaryPath))
		}
		tw.Flush()
	}
}

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <crashlog>",
	Short: "Display the parsed contents of a crash report",
	Example: heredoc.Doc(`
		# Show the header, exception and crashed thread
		❯ crashsym info Sample.crash

		# Show every thread and the binary images table
		❯ crashsym info Sample.crash --all --images`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		all, _ := cmd.Flags().GetBool("all")
		images, _ := cmd.Flags().GetBool("images")

		cl, err := crashlog.Open(args[0])
		if err != nil {
			return err
		}

		printInfo(os.Stdout, cl, all, images)

		return nil
	},
}
