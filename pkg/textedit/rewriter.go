package textedit

import (
	"errors"
	"slices"
	"strings"

	"github.com/blacktop/crashsym/internal/utils"
)

var (
	// ErrOverlappingPosition is returned by AddMark when the new range intersects a range
	// that was already marked.
	ErrOverlappingPosition = errors.New("there are overlapped marked positions")
	// ErrInvalidPosition is returned by AddMark when the range is inverted or lies outside
	// of the document.
	ErrInvalidPosition = errors.New("marked position is out of the document")
)

// Mark is a pending replacement of the text at Position with Lines.
type Mark struct {
	Position Position
	Lines    []string
}

// Rewriter collects non-overlapping marks against a fixed set of lines and produces the
// edited document.
type Rewriter struct {
	lines []string
	marks []Mark // sorted in ascending order by start position
}

// NewRewriter returns a Rewriter for lines. The slice is never modified.
func NewRewriter(lines []string) *Rewriter {
	return &Rewriter{lines: lines}
}

// SplitLines splits text into lines the way crash reports are read: carriage returns
// are dropped and empty lines are kept.
func SplitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r", ""), "\n")
}

// Marks returns a copy of the marks in ascending order.
func (r *Rewriter) Marks() []Mark {
	return slices.Clone(r.marks)
}

// AddMarkText marks pos to be replaced with text, which may contain newlines.
func (r *Rewriter) AddMarkText(pos Position, text string) error {
	return r.AddMark(pos, SplitLines(text))
}

// AddMark marks pos to be replaced with lines. An empty lines slice deletes the range.
//
// The mark is rejected, and the rewriter left unchanged, when pos overlaps a range that
// was marked before.
func (r *Rewriter) AddMark(pos Position, lines []string) error {
	if !r.valid(pos) {
		return ErrInvalidPosition
	}

	_, idx := utils.BinarySearch(0, len(r.marks), func(i int) int {
		return r.marks[i].Position.CompareStart(pos)
	})

	if idx > 0 {
		prev := r.marks[idx-1].Position
		if compareLocation(prev.EndLine, prev.EndColumn, pos.StartLine, pos.StartColumn) > 0 {
			return ErrOverlappingPosition
		}
	}
	if idx < len(r.marks) {
		next := r.marks[idx].Position
		if compareLocation(next.StartLine, next.StartColumn, pos.EndLine, pos.EndColumn) < 0 {
			return ErrOverlappingPosition
		}
	}

	r.marks = slices.Insert(r.marks, idx, Mark{Position: pos, Lines: slices.Clone(lines)})

	return nil
}

func (r *Rewriter) valid(pos Position) bool {
	if pos.StartLine < 0 || pos.EndLine >= len(r.lines) || pos.StartColumn < 0 || pos.EndColumn < 0 {
		return false
	}
	if compareLocation(pos.StartLine, pos.StartColumn, pos.EndLine, pos.EndColumn) > 0 {
		return false
	}
	return pos.StartColumn <= len(r.lines[pos.StartLine]) && pos.EndColumn <= len(r.lines[pos.EndLine])
}

// Rewrite returns a new slice of lines with every mark applied.
//
// Marks are applied from the last one to the first so the line and column numbers of
// the marks that remain to be applied still refer to the original text.
func (r *Rewriter) Rewrite() []string {
	lines := slices.Clone(r.lines)

	for i := len(r.marks) - 1; i >= 0; i-- {
		mark := r.marks[i]
		if mark.Position.IsSingleLine() {
			lines = replaceInLine(lines, mark)
		} else {
			lines = replaceAcrossLines(lines, mark)
		}
	}

	return lines
}

func replaceInLine(lines []string, mark Mark) []string {
	pos := mark.Position
	line := lines[pos.StartLine]
	prefix, suffix := line[:pos.StartColumn], line[pos.EndColumn:]

	switch n := len(mark.Lines); n {
	case 0:
		lines[pos.StartLine] = prefix + suffix
	case 1:
		lines[pos.StartLine] = prefix + mark.Lines[0] + suffix
	default:
		lines[pos.StartLine] = prefix + mark.Lines[0]
		inserted := append(slices.Clone(mark.Lines[1:n-1]), mark.Lines[n-1]+suffix)
		lines = slices.Insert(lines, pos.StartLine+1, inserted...)
	}

	return lines
}

func replaceAcrossLines(lines []string, mark Mark) []string {
	pos := mark.Position
	prefix := lines[pos.StartLine][:pos.StartColumn]
	suffix := lines[pos.EndLine][pos.EndColumn:]

	switch n := len(mark.Lines); n {
	case 0:
		lines[pos.StartLine] = prefix + suffix
		lines = slices.Delete(lines, pos.StartLine+1, pos.EndLine+1)
	case 1:
		lines[pos.StartLine] = prefix + mark.Lines[0]
		// a start line left empty is kept, an end line left empty is dropped
		if pos.EndColumn != 0 && suffix == "" {
			lines = slices.Delete(lines, pos.EndLine, pos.EndLine+1)
		} else {
			lines[pos.EndLine] = suffix
		}
		lines = slices.Delete(lines, pos.StartLine+1, pos.EndLine)
	default:
		lines[pos.StartLine] = prefix + mark.Lines[0]
		lines[pos.EndLine] = mark.Lines[n-1] + suffix
		lines = slices.Delete(lines, pos.StartLine+1, pos.EndLine)
		lines = slices.Insert(lines, pos.StartLine+1, mark.Lines[1:n-1]...)
	}

	return lines
}
