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
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/aymanbagabas/go-udiff"
	"github.com/blacktop/crashsym/internal/colors"
	"github.com/blacktop/crashsym/internal/config"
	"github.com/blacktop/crashsym/pkg/crashlog"
	"github.com/blacktop/crashsym/pkg/symbolicator"
	"github.com/blacktop/crashsym/pkg/symfile"
	"github.com/briandowns/spinner"
	"github.com/caarlos0/ctrlc"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(symbolicateCmd)

	addSymbolFileFlags(symbolicateCmd)
	symbolicateCmd.Flags().StringP("output", "o", "", "Write symbolicated report to file")
	symbolicateCmd.Flags().Bool("diff", false, "Print a unified diff against the original report")
	symbolicateCmd.MarkZshCompPositionalArgumentFile(1, "*.crash", "*.txt")
}

// addSymbolFileFlags registers the flags shared by every command that symbolicates
func addSymbolFileFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("dsym", "d", []string{}, "dSYM bundle to search for symbols (can be repeated)")
	cmd.Flags().StringArray("device-support", []string{}, "DeviceSupport Symbols folder to search (can be repeated)")
	cmd.Flags().String("uuid-tool", config.UUIDToolOtool, "Build UUID reader (otool, macho)")
	cmd.Flags().String("xcrun", symbolicator.DefaultXcrun, "Path to xcrun")
	cmd.Flags().Int("cache-size", symfile.DefaultCacheSize, "Symbol file lookups to cache per provider")
	cmd.Flags().MarkHidden("cache-size")
}

// bindSymbolicateFlags binds the flags of the running command to the symbolicate.* keys
func bindSymbolicateFlags(cmd *cobra.Command) {
	for _, name := range []string{"dsym", "device-support", "uuid-tool", "xcrun", "cache-size", "output", "diff"} {
		if f := cmd.Flags().Lookup(name); f != nil {
			viper.BindPFlag("symbolicate."+name, f)
		}
	}
}

// symbolicatorSetup bundles the symbol file lookup and the symbol resolution service
type symbolicatorSetup struct {
	files   crashlog.FileProvider
	service symbolicator.Service
}

func newSymbolicatorSetup(conf *config.Config) (*symbolicatorSetup, error) {
	fs := afero.NewOsFs()

	var uuids symfile.UUIDReader
	switch conf.Symbolicate.UUIDTool {
	case config.UUIDToolMachO:
		uuids = &symfile.MachO{Fs: fs}
	default:
		uuids = &symfile.Otool{Xcrun: conf.Symbolicate.Xcrun}
	}
	pconf := &symfile.Config{
		Fs:         fs,
		UUIDReader: uuids,
		CacheSize:  conf.Symbolicate.CacheSize,
	}

	var chain symfile.Chain
	for _, path := range conf.Symbolicate.DSYM {
		p, err := symfile.NewDSYM(path, pconf)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load dSYM %s", path)
		}
		log.WithField("dsym", path).Debugf("Found %d DWARF files", len(p.Files()))
		chain = append(chain, p)
	}
	sys, err := symfile.NewSystem(conf.Symbolicate.DeviceSupport, pconf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to locate device support folders")
	}
	for _, folder := range sys.Folders() {
		log.WithField("folder", folder).Debug("Searching device support")
	}
	chain = append(chain, sys)

	return &symbolicatorSetup{
		files:   chain,
		service: &symbolicator.Atos{Xcrun: conf.Symbolicate.Xcrun},
	}, nil
}

func (s *symbolicatorSetup) symbolicate(ctx context.Context, path string) (*crashlog.CrashLog, string, error) {
	cl, err := crashlog.Open(path)
	if err != nil {
		return nil, "", err
	}
	out, err := cl.SymbolicateText(ctx, s.files, s.service)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to symbolicate %s", path)
	}
	return cl, out, nil
}

func colorDiff(diff string) string {
	var sb strings.Builder
	for line := range strings.Lines(diff) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			sb.WriteString(colors.Faint(line))
		case strings.HasPrefix(line, "+"):
			sb.WriteString(colors.Added(line))
		case strings.HasPrefix(line, "-"):
			sb.WriteString(colors.Removed(line))
		default:
			sb.WriteString(line)
		}
	}
	return sb.String()
}

// symbolicateCmd represents the symbolicate command
var symbolicateCmd = &cobra.Command{
	Use:   "symbolicate <crashlog>",
	Short: "Symbolicate an Apple crash report with atos",
	Example: heredoc.Doc(`
		# Symbolicate app frames with a dSYM and system frames with Xcode's DeviceSupport
		❯ crashsym symbolicate Sample-2021-05-01-123456.crash --dsym Sample.app.dSYM

		# Write the result to a file and show what changed
		❯ crashsym symbolicate Sample.crash -d Sample.app.dSYM -o Sample.symbolicated.crash --diff

		# Read build UUIDs in process instead of running otool
		❯ crashsym symbolicate Sample.crash -d Sample.app.dSYM --uuid-tool macho`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRun: func(cmd *cobra.Command, args []string) {
		bindSymbolicateFlags(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {

		conf, err := config.LoadConfig()
		if err != nil {
			return err
		}

		setup, err := newSymbolicatorSetup(conf)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var original *crashlog.CrashLog
		var out string
		if err := ctrlc.Default.Run(ctx, func() error {
			s := spinner.New(spinner.CharSets[38], 100*time.Millisecond)
			s.Prefix = color.BlueString("   • Symbolicating... ")
			s.Writer = os.Stderr
			s.Start()
			defer s.Stop()

			original, out, err = setup.symbolicate(ctx, args[0])
			return err
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return nil
			}
			return err
		}

		if conf.Symbolicate.Output != "" {
			if err := os.WriteFile(conf.Symbolicate.Output, []byte(out), 0o644); err != nil {
				return errors.Wrapf(err, "failed to write %s", conf.Symbolicate.Output)
			}
			log.Infof("Created %s", conf.Symbolicate.Output)
		}

		if conf.Symbolicate.Diff {
			diff := udiff.Unified(args[0], "symbolicated", strings.Join(original.Lines(), "\n"), out)
			fmt.Print(colorDiff(diff))
		} else if conf.Symbolicate.Output == "" {
			fmt.Println(out)
		}

		return nil
	},
}
