// Package crashlog parses Apple crash reports and rewrites them with resolved symbols.
package crashlog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/blacktop/crashsym/internal/utils"
	"github.com/blacktop/crashsym/pkg/symbolicator"
	"github.com/blacktop/crashsym/pkg/textedit"
)

// FileProvider locates the symbol file of a binary image.
// It returns an empty path when no file is found.
type FileProvider interface {
	BinaryImageFile(ctx context.Context, entry BinaryImageEntry) (string, error)
}

// CrashLog is a parsed crash report together with its original lines
type CrashLog struct {
	Content   *Content
	Positions *Positions

	lines []string
}

// Open reads and parses the crash report at path
func Open(path string) (*CrashLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileLoadError{Path: path, Err: err}
	}
	return ParseBytes(data)
}

// ParseBytes parses a crash report from UTF-8 encoded data
func ParseBytes(data []byte) (*CrashLog, error) {
	if !utf8.Valid(data) {
		return nil, ErrFormat
	}
	return Parse(string(data)), nil
}

// Parse parses a crash report; carriage returns are dropped
func Parse(text string) *CrashLog {
	return ParseLines(textedit.SplitLines(text))
}

// ParseLines parses the lines of a crash report
func ParseLines(lines []string) *CrashLog {
	content, positions := parse(lines)
	return &CrashLog{
		Content:   content,
		Positions: positions,
		lines:     lines,
	}
}

// Lines returns the original lines of the report
func (c *CrashLog) Lines() []string {
	return c.lines
}

// infoProvider resolves an address to its binary image and symbol file
type infoProvider struct {
	finder *ImageFinder
	files  FileProvider
}

func (p *infoProvider) BinaryImageInfo(ctx context.Context, addr string) (*symbolicator.BinaryImageInfo, error) {
	img, ok := p.finder.Find(addr)
	if !ok {
		return nil, nil
	}
	file, err := p.files.BinaryImageFile(ctx, *img)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, nil
	}
	return &symbolicator.BinaryImageInfo{
		File:         file,
		LoadAddress:  img.LoadAddress,
		Architecture: img.Architecture,
	}, nil
}

// SymbolicateLines resolves every address of the report and returns the rewritten lines
func (c *CrashLog) SymbolicateLines(ctx context.Context, files FileProvider, svc symbolicator.Service) ([]string, error) {
	finder, err := NewImageFinder(c.Content.BinaryImages)
	if err != nil {
		return nil, err
	}
	sym := symbolicator.New(&infoProvider{finder: finder, files: files}, svc)
	rw := textedit.NewRewriter(c.lines)

	if eb := c.Content.ExceptionBacktrace; eb != nil && !eb.IsSymbolicated() && c.Positions.ExceptionBacktrace != nil {
		symbols, err := sym.Symbolicate(ctx, eb.Addresses)
		if err != nil {
			return nil, err
		}
		lines := make([]string, 0, len(eb.Addresses))
		for idx, addr := range eb.Addresses {
			lines = append(lines, exceptionFrameLine(finder, idx, addr, symbols[idx]))
		}
		if err := rw.AddMark(*c.Positions.ExceptionBacktrace, lines); err != nil {
			return nil, err
		}
	}

	var (
		addrs   []string
		targets []textedit.Position
	)
	for i, bt := range c.Content.Backtraces {
		for j, frame := range bt.StackFrames {
			addrs = append(addrs, frame.Address)
			targets = append(targets, c.Positions.Backtraces[i].StackFrames[j].Symbol())
		}
	}
	symbols, err := sym.Symbolicate(ctx, addrs)
	if err != nil {
		return nil, err
	}
	for idx, symbol := range symbols {
		if symbol == "" {
			continue
		}
		if err := rw.AddMarkText(targets[idx], symbol); err != nil {
			return nil, err
		}
	}

	log.WithField("marks", len(rw.Marks())).Debug("Rewriting crash report")

	return rw.Rewrite(), nil
}

// exceptionFrameLine formats one frame of a non-symbolicated exception backtrace
func exceptionFrameLine(finder *ImageFinder, idx int, addr, symbol string) string {
	img, ok := finder.Find(addr)

	funcName := symbol
	if funcName == "" {
		funcName = "0x00000000 + 0"
		if ok {
			load, err1 := utils.ParseAddress(img.LoadAddress)
			address, err2 := utils.ParseAddress(addr)
			if err1 == nil && err2 == nil {
				funcName = fmt.Sprintf("%s + %d", img.LoadAddress, address-load)
			}
		}
	}

	var binaryName string
	if ok {
		binaryName = img.BinaryName
	}

	return fmt.Sprintf("%s %s\t%s %s",
		utils.FixedWidth(fmt.Sprint(idx), 3),
		utils.FixedWidth(binaryName, 30),
		addr,
		funcName)
}

// SymbolicateText returns the symbolicated report as a single string
func (c *CrashLog) SymbolicateText(ctx context.Context, files FileProvider, svc symbolicator.Service) (string, error) {
	lines, err := c.SymbolicateLines(ctx, files, svc)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// SymbolicateFile writes the symbolicated report to path
func (c *CrashLog) SymbolicateFile(ctx context.Context, files FileProvider, svc symbolicator.Service, path string) error {
	text, err := c.SymbolicateText(ctx, files, svc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write symbolicated crash report to %s: %w", path, err)
	}
	return nil
}
