// Package textedit rewrites spans of a line-oriented text document in place.
package textedit

import "fmt"

// Position is a half-open range of text [start, end) measured in lines and byte columns.
type Position struct {
	StartLine   int
	StartColumn int
	EndLine     int
	// EndColumn is exclusive: the character at this column is not part of the range.
	EndColumn int
}

// NewPosition returns a range that may span several lines.
func NewPosition(startLine, startColumn, endLine, endColumn int) Position {
	return Position{
		StartLine:   startLine,
		StartColumn: startColumn,
		EndLine:     endLine,
		EndColumn:   endColumn,
	}
}

// LineRange returns a range located on a single line.
func LineRange(line, startColumn, endColumn int) Position {
	return NewPosition(line, startColumn, line, endColumn)
}

// Point returns an empty range located at line:column.
func Point(line, column int) Position {
	return NewPosition(line, column, line, column)
}

// IsPoint reports whether the range is empty.
func (p Position) IsPoint() bool {
	return p.StartLine == p.EndLine && p.StartColumn == p.EndColumn
}

// IsSingleLine reports whether the range starts and ends on the same line.
func (p Position) IsSingleLine() bool {
	return p.StartLine == p.EndLine
}

// Through returns the range from the start of p to the end of q.
func (p Position) Through(q Position) Position {
	return NewPosition(p.StartLine, p.StartColumn, q.EndLine, q.EndColumn)
}

// compareLocation orders two (line, column) locations.
func compareLocation(line1, col1, line2, col2 int) int {
	if line1 != line2 {
		return line1 - line2
	}
	return col1 - col2
}

// CompareStart orders p and q by their start locations.
func (p Position) CompareStart(q Position) int {
	return compareLocation(p.StartLine, p.StartColumn, q.StartLine, q.StartColumn)
}

// Overlaps reports whether p and q share at least one character.
// Ranges that only touch at a boundary do not overlap.
func (p Position) Overlaps(q Position) bool {
	return compareLocation(p.StartLine, p.StartColumn, q.EndLine, q.EndColumn) < 0 &&
		compareLocation(q.StartLine, q.StartColumn, p.EndLine, p.EndColumn) < 0
}

func (p Position) String() string {
	if p.StartLine == p.EndLine {
		if p.StartColumn == p.EndColumn {
			return fmt.Sprintf("%d:%d", p.StartLine, p.StartColumn)
		}
		return fmt.Sprintf("%d:%d-%d", p.StartLine, p.StartColumn, p.EndColumn)
	}
	return fmt.Sprintf("%d:%d-%d:%d", p.StartLine, p.StartColumn, p.EndLine, p.EndColumn)
}
