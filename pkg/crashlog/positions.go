package crashlog

import "github.com/blacktop/crashsym/pkg/textedit"

// StackFramePositions holds the source span of each field of a StackFrame.
//
// SourceName and SourceLine are points at the end of the line when the frame has no
// source location.
type StackFramePositions struct {
	Number       textedit.Position
	BinaryName   textedit.Position
	Address      textedit.Position
	FunctionName textedit.Position
	Offset       textedit.Position
	SourceName   textedit.Position
	SourceLine   textedit.Position
}

// Symbol returns the span that is replaced when the frame is symbolicated.
func (p StackFramePositions) Symbol() textedit.Position {
	return p.FunctionName.Through(p.SourceLine)
}

// ThreadBacktracePositions mirrors ThreadBacktrace.
type ThreadBacktracePositions struct {
	StackFrames []StackFramePositions
}

// Positions mirrors Content with the source spans used for rewriting.
type Positions struct {
	// Values maps every parsed header and exception information key to the span of its value
	Values             map[string]textedit.Position
	ExceptionBacktrace *textedit.Position
	Backtraces         []ThreadBacktracePositions
}
