package symbolicator

import (
	"context"
	"regexp"
	"strings"

	"github.com/blacktop/crashsym/internal/utils"
)

// DefaultXcrun is the path of xcrun on macOS.
const DefaultXcrun = "/usr/bin/xcrun"

var inModuleRE = regexp.MustCompile(`\s*\(in .*?\)`)

// Atos resolves addresses by running `xcrun atos`.
type Atos struct {
	Xcrun string
}

func (a *Atos) xcrun() string {
	if a.Xcrun == "" {
		return DefaultXcrun
	}
	return a.Xcrun
}

// Symbolicate runs atos once for all addresses of req.
func (a *Atos) Symbolicate(ctx context.Context, req Request) ([]string, error) {
	args := []string{
		"atos",
		"-o", req.SymbolFile,
		"-arch", req.Architecture,
		"-l", req.LoadAddress,
	}
	args = append(args, req.Addresses...)

	res, err := utils.RunCommand(ctx, a.xcrun(), args...)
	if err != nil {
		return nil, err
	}
	if res.Status != 0 {
		return nil, &utils.CommandError{Command: "atos", Message: res.Stderr}
	}
	return parseAtosOutput(res.Stdout), nil
}

// parseAtosOutput drops the "(in Module)" part of every atos output line.
func parseAtosOutput(out string) []string {
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if loc := inModuleRE.FindStringIndex(line); loc != nil {
			lines[i] = line[:loc[0]] + line[loc[1]:]
		}
	}
	return lines
}
