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
	"os"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/crashsym/internal/config"
	"github.com/caarlos0/ctrlc"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const symbolicatedSuffix = ".symbolicated"

var crashReportExts = []string{".crash", ".txt"}

// symbolicatedName returns the output path for the crash report at path, or false if
// path is not a crash report or is already a symbolicated output
func symbolicatedName(path string) (string, bool) {
	ext := filepath.Ext(path)
	known := false
	for _, e := range crashReportExts {
		if strings.EqualFold(ext, e) {
			known = true
			break
		}
	}
	base := strings.TrimSuffix(path, ext)
	if !known || strings.HasSuffix(base, symbolicatedSuffix) || strings.HasPrefix(filepath.Base(path), ".") {
		return "", false
	}
	return base + symbolicatedSuffix + ext, true
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addSymbolFileFlags(watchCmd)
}

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Symbolicate crash reports as they are written to a folder",
	Long: heredoc.Doc(`
		Watch a folder and symbolicate every .crash or .txt report that is created or
		written to it. Each report is saved next to the original as
		<name>.symbolicated<ext>. The symbolicate.* config keys and flags apply.`),
	Example: heredoc.Doc(`
		# Symbolicate reports dropped in ~/Desktop/crashes with a dSYM
		❯ crashsym watch ~/Desktop/crashes --dsym Sample.app.dSYM`),
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

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "failed to create watcher")
		}
		defer watcher.Close()

		if err := watcher.Add(args[0]); err != nil {
			return errors.Wrapf(err, "failed to watch %s", args[0])
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		log.WithField("folder", args[0]).Info("Watching for crash reports")

		if err := ctrlc.Default.Run(ctx, func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
						continue
					}
					out, ok := symbolicatedName(event.Name)
					if !ok {
						continue
					}
					log.WithField("event", event.Op.String()).Debug(event.Name)

					_, text, err := setup.symbolicate(ctx, event.Name)
					if err != nil {
						log.WithError(err).Error("Failed to symbolicate")
						continue
					}
					if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
						log.WithError(err).Errorf("Failed to write %s", out)
						continue
					}
					log.Infof("Created %s", out)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.WithError(err).Error("Watcher")
				}
			}
		}); err != nil {
			if errors.As(err, &ctrlc.ErrorCtrlC{}) {
				log.Warn("Exiting...")
				return nil
			}
			return err
		}

		return nil
	},
}
