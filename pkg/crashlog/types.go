package crashlog

// Header holds the key/value fields found at the top of a crash report.
type Header struct {
	IncidentIdentifier *string
	CrashReporterKey   *string
	BetaIdentifier     *string
	HardwareModel      *string
	Process            *string
	Path               *string
	Identifier         *string
	Version            *string
	AppStoreTools      *string
	AppVariant         *string
	CodeType           *string
	Role               *string
	ParentProcess      *string
	Coalition          *string
	DateTime           *string
	LaunchTime         *string
	OSVersion          *string
}

// ExceptionInformation holds the exception fields that follow the header.
type ExceptionInformation struct {
	ExceptionType     *string
	ExceptionCodes    *string
	ExceptionSubtype  *string
	ExceptionNote     *string
	TerminationReason *string
	TriggeredByThread *string
	CrashedThread     *string
}

// StackFrame is one line of a call stack.
type StackFrame struct {
	Number       string
	BinaryName   string
	Address      string
	FunctionName string
	Offset       *string
	SourceName   *string
	SourceLine   *string
}

// ThreadBacktrace is the call stack of one thread.
type ThreadBacktrace struct {
	ThreadNumber string
	ThreadName   *string
	IsCrashed    bool
	StackFrames  []StackFrame
}

// ExceptionBacktrace is the "Last Exception Backtrace" of a report.
//
// Exactly one of StackFrames and Addresses is set, depending on whether the
// report already contains symbols.
type ExceptionBacktrace struct {
	StackFrames []StackFrame
	Addresses   []string
}

// Symbolicated returns an exception backtrace made of resolved stack frames.
func Symbolicated(frames []StackFrame) *ExceptionBacktrace {
	return &ExceptionBacktrace{StackFrames: frames}
}

// NonSymbolicated returns an exception backtrace made of raw addresses.
func NonSymbolicated(addrs []string) *ExceptionBacktrace {
	return &ExceptionBacktrace{Addresses: addrs}
}

// IsSymbolicated reports whether the backtrace already carries symbols.
func (e *ExceptionBacktrace) IsSymbolicated() bool {
	return e.Addresses == nil
}

// BinaryImageEntry is one row of the "Binary Images" section.
type BinaryImageEntry struct {
	LoadAddress  string
	EndAddress   string
	BinaryName   string
	Architecture string
	BuildUUID    string
	BinaryPath   string
}

// Content is the parsed model of a crash report.
type Content struct {
	Header               Header
	ExceptionInformation ExceptionInformation
	ExceptionBacktrace   *ExceptionBacktrace
	Backtraces           []ThreadBacktrace
	BinaryImages         []BinaryImageEntry
}

// CrashedThread returns the first thread marked as crashed.
func (c *Content) CrashedThread() (*ThreadBacktrace, bool) {
	for i := range c.Backtraces {
		if c.Backtraces[i].IsCrashed {
			return &c.Backtraces[i], true
		}
	}
	return nil, false
}
