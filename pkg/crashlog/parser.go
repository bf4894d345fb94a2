package crashlog

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/blacktop/crashsym/pkg/textedit"
)

type section int

const (
	sectionHeader section = iota
	sectionExceptionInformation
	sectionExceptionBacktrace
	sectionBacktrace
	sectionCrashedThreadState
	sectionBinaryImages
)

func (s section) String() string {
	switch s {
	case sectionHeader:
		return "header"
	case sectionExceptionInformation:
		return "exception information"
	case sectionExceptionBacktrace:
		return "exception backtrace"
	case sectionBacktrace:
		return "backtrace"
	case sectionCrashedThreadState:
		return "crashed thread state"
	case sectionBinaryImages:
		return "binary images"
	default:
		return "unknown"
	}
}

const (
	keyLastExceptionBacktrace = "Last Exception Backtrace"
	keyBinaryImages           = "Binary Images"
)

var exceptionInformationKeys = []string{
	"Exception Type",
	"Exception Codes",
	"Exception Subtype",
	"Exception Note",
	"Termination Reason",
	"Triggered by Thread",
	"Crashed Thread",
}

var (
	threadStartRE        = regexp.MustCompile(`^Thread [0-9]+ .*`)
	threadNameRE         = regexp.MustCompile(`^Thread [0-9]+ name:\s*(.*)`)
	threadHeaderRE       = regexp.MustCompile(`^Thread ([0-9]+)(\s+Crashed)?:`)
	crashedThreadStateRE = regexp.MustCompile(`^Thread [0-9]+ crashed with .*Thread State.*`)
	frameRE              = regexp.MustCompile(`([0-9]+)\s+(.+\S)\s*\t(0x[0-9a-f]+)\s+(.*)`)
	frameSymbolRE        = regexp.MustCompile(`(.+) \+ ([0-9]+)(?:\s+\((.+):([0-9]+)\))?`)
	addressListRE        = regexp.MustCompile(`\((.*)\)`)
	binaryImageRE        = regexp.MustCompile(`(0x[0-9a-f]+)\s+-\s+(0x[0-9a-f]+)\s+(\S.*)\s+(\S+)\s+<([0-9a-f]+)>\s+(\S.*)`)
)

// parser walks a crash report one line at a time.
//
// Each line is handed to the handler of the current section. A handler that moves the
// parser to another section returns true and the same line is handed to the new
// section's handler.
type parser struct {
	section section

	lineIndex int
	line      string

	content   Content
	positions Positions

	frames          []StackFrame
	thread          *ThreadBacktrace
	threadPositions *ThreadBacktracePositions
	threadName      *string
}

func parse(lines []string) (*Content, *Positions) {
	p := &parser{
		positions: Positions{Values: make(map[string]textedit.Position)},
	}
	for idx, line := range lines {
		p.lineIndex = idx
		p.line = line
		for p.step() {
		}
	}
	// a report that ends without a "Binary Images" section still keeps its last thread
	p.pushBacktrace()
	if p.section == sectionExceptionBacktrace && len(p.frames) > 0 {
		p.content.ExceptionBacktrace = Symbolicated(p.frames)
	}
	return &p.content, &p.positions
}

func (p *parser) step() bool {
	switch p.section {
	case sectionHeader:
		return p.parseHeader()
	case sectionExceptionInformation:
		return p.parseExceptionInformation()
	case sectionExceptionBacktrace:
		return p.parseExceptionBacktrace()
	case sectionBacktrace:
		return p.parseBacktrace()
	case sectionCrashedThreadState:
		return p.parseCrashedThreadState()
	case sectionBinaryImages:
		p.parseBinaryImages()
	}
	return false
}

func (p *parser) moveTo(s section) bool {
	p.section = s
	switch s {
	case sectionExceptionBacktrace:
		p.frames = nil
	case sectionBacktrace:
		p.thread = nil
		p.threadPositions = nil
		p.threadName = nil
	}
	return true
}

func (p *parser) parseHeader() bool {
	key, value, pos, ok := p.parseKeyValueLine()
	if !ok {
		return false
	}

	h := &p.content.Header
	var field **string
	switch key {
	case "Incident Identifier":
		field = &h.IncidentIdentifier
	case "CrashReporter Key":
		field = &h.CrashReporterKey
	case "Beta Identifier":
		field = &h.BetaIdentifier
	case "Hardware Model":
		field = &h.HardwareModel
	case "Process":
		field = &h.Process
	case "Path":
		field = &h.Path
	case "Identifier":
		field = &h.Identifier
	case "Version":
		field = &h.Version
	case "AppStoreTools":
		field = &h.AppStoreTools
	case "AppVariant":
		field = &h.AppVariant
	case "Code Type":
		field = &h.CodeType
	case "Role":
		field = &h.Role
	case "Parent Process":
		field = &h.ParentProcess
	case "Coalition":
		field = &h.Coalition
	case "Date/Time":
		field = &h.DateTime
	case "Launch Time":
		field = &h.LaunchTime
	case "OS Version":
		field = &h.OSVersion
	default:
		switch {
		case slices.Contains(exceptionInformationKeys, key):
			return p.moveTo(sectionExceptionInformation)
		case key == keyLastExceptionBacktrace:
			return p.moveTo(sectionExceptionBacktrace)
		case p.isThreadBacktrace():
			return p.moveTo(sectionBacktrace)
		}
		return false
	}
	*field = &value
	p.positions.Values[key] = pos
	return false
}

func (p *parser) parseExceptionInformation() bool {
	key, value, pos, ok := p.parseKeyValueLine()
	if !ok {
		return false
	}

	e := &p.content.ExceptionInformation
	var field **string
	switch key {
	case "Exception Type":
		field = &e.ExceptionType
	case "Exception Codes":
		field = &e.ExceptionCodes
	case "Exception Subtype":
		field = &e.ExceptionSubtype
	case "Exception Note":
		field = &e.ExceptionNote
	case "Termination Reason":
		field = &e.TerminationReason
	case "Triggered by Thread":
		field = &e.TriggeredByThread
	case "Crashed Thread":
		field = &e.CrashedThread
	default:
		switch {
		case key == keyLastExceptionBacktrace:
			return p.moveTo(sectionExceptionBacktrace)
		case p.isThreadBacktrace():
			return p.moveTo(sectionBacktrace)
		}
		return false
	}
	*field = &value
	p.positions.Values[key] = pos
	return false
}

func (p *parser) parseExceptionBacktrace() bool {
	wholeLine := textedit.LineRange(p.lineIndex, 0, len(p.line))

	if frame, _, ok := p.parseStackFrameLine(); ok {
		p.frames = append(p.frames, frame)
		if p.positions.ExceptionBacktrace == nil {
			p.positions.ExceptionBacktrace = &wholeLine
		} else {
			p.positions.ExceptionBacktrace.EndLine = wholeLine.EndLine
			p.positions.ExceptionBacktrace.EndColumn = wholeLine.EndColumn
		}
		return false
	}

	if m := addressListRE.FindStringSubmatch(strings.TrimSpace(p.line)); m != nil {
		p.content.ExceptionBacktrace = NonSymbolicated(splitAddresses(m[1]))
		p.positions.ExceptionBacktrace = &wholeLine
		return false
	}

	if p.isThreadBacktrace() {
		if len(p.frames) > 0 {
			p.content.ExceptionBacktrace = Symbolicated(p.frames)
		}
		return p.moveTo(sectionBacktrace)
	}
	return false
}

func (p *parser) isThreadBacktrace() bool {
	return threadStartRE.MatchString(p.line)
}

func (p *parser) parseBacktrace() bool {
	if m := threadNameRE.FindStringSubmatch(p.line); m != nil {
		p.pushBacktrace()
		name := m[1]
		p.threadName = &name
		return false
	}

	if m := threadHeaderRE.FindStringSubmatchIndex(p.line); m != nil {
		name := p.threadName
		p.threadName = nil
		p.pushBacktrace()
		p.thread = &ThreadBacktrace{
			ThreadNumber: p.line[m[2]:m[3]],
			ThreadName:   name,
			IsCrashed:    m[4] >= 0,
		}
		p.threadPositions = &ThreadBacktracePositions{}
		return false
	}

	if frame, pos, ok := p.parseStackFrameLine(); ok {
		if p.thread != nil {
			p.thread.StackFrames = append(p.thread.StackFrames, frame)
			p.threadPositions.StackFrames = append(p.threadPositions.StackFrames, pos)
		}
		return false
	}

	if crashedThreadStateRE.MatchString(p.line) {
		p.pushBacktrace()
		return p.moveTo(sectionCrashedThreadState)
	}

	if strings.HasPrefix(p.line, keyBinaryImages) {
		p.pushBacktrace()
		return p.moveTo(sectionBinaryImages)
	}
	return false
}

func (p *parser) pushBacktrace() {
	if p.thread != nil {
		p.content.Backtraces = append(p.content.Backtraces, *p.thread)
		p.positions.Backtraces = append(p.positions.Backtraces, *p.threadPositions)
	}
	p.thread = nil
	p.threadPositions = nil
}

func (p *parser) parseCrashedThreadState() bool {
	if strings.HasPrefix(p.line, keyBinaryImages) {
		return p.moveTo(sectionBinaryImages)
	}
	return false
}

func (p *parser) parseBinaryImages() {
	m := binaryImageRE.FindStringSubmatch(p.line)
	if m == nil {
		return
	}
	p.content.BinaryImages = append(p.content.BinaryImages, BinaryImageEntry{
		LoadAddress:  m[1],
		EndAddress:   m[2],
		BinaryName:   m[3],
		Architecture: m[4],
		BuildUUID:    m[5],
		BinaryPath:   m[6],
	})
}

// parseStackFrameLine matches the current line against the two stack frame patterns.
func (p *parser) parseStackFrameLine() (StackFrame, StackFramePositions, bool) {
	outer := frameRE.FindStringSubmatchIndex(p.line)
	if outer == nil {
		return StackFrame{}, StackFramePositions{}, false
	}
	restStart := outer[8]
	rest := p.line[restStart:outer[9]]

	inner := frameSymbolRE.FindStringSubmatchIndex(rest)
	if inner == nil {
		return StackFrame{}, StackFramePositions{}, false
	}

	span := func(loc []int, group, offset int) (textedit.Position, *string) {
		start, end := loc[2*group], loc[2*group+1]
		if start < 0 {
			return textedit.Point(p.lineIndex, len(p.line)), nil
		}
		text := p.line[start+offset : end+offset]
		return textedit.LineRange(p.lineIndex, start+offset, end+offset), &text
	}

	numberPos, number := span(outer, 1, 0)
	binaryNamePos, binaryName := span(outer, 2, 0)
	addressPos, address := span(outer, 3, 0)
	functionNamePos, functionName := span(inner, 1, restStart)
	offsetPos, offset := span(inner, 2, restStart)
	sourceNamePos, sourceName := span(inner, 3, restStart)
	sourceLinePos, sourceLine := span(inner, 4, restStart)

	frame := StackFrame{
		Number:       *number,
		BinaryName:   *binaryName,
		Address:      *address,
		FunctionName: *functionName,
		Offset:       offset,
		SourceName:   sourceName,
		SourceLine:   sourceLine,
	}
	positions := StackFramePositions{
		Number:       numberPos,
		BinaryName:   binaryNamePos,
		Address:      addressPos,
		FunctionName: functionNamePos,
		Offset:       offsetPos,
		SourceName:   sourceNamePos,
		SourceLine:   sourceLinePos,
	}
	return frame, positions, true
}

// parseKeyValueLine splits the current line at its first colon.
// An empty value is located at the end of the line.
func (p *parser) parseKeyValueLine() (string, string, textedit.Position, bool) {
	before, after, found := strings.Cut(p.line, ":")
	if !found {
		return "", "", textedit.Position{}, false
	}
	key := strings.TrimSpace(before)

	trimmedLeft := strings.TrimLeftFunc(after, unicode.IsSpace)
	value := strings.TrimRightFunc(trimmedLeft, unicode.IsSpace)
	if value == "" {
		return key, "", textedit.Point(p.lineIndex, len(p.line)), true
	}
	start := len(before) + 1 + len(after) - len(trimmedLeft)
	return key, value, textedit.LineRange(p.lineIndex, start, start+len(value)), true
}

func splitAddresses(s string) []string {
	addrs := []string{}
	for _, addr := range strings.Split(s, " ") {
		if addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
