package crashlog

import (
	"errors"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/blacktop/crashsym/pkg/textedit"
)

func ptr(s string) *string { return &s }

func loadSample(t *testing.T) *CrashLog {
	t.Helper()
	cl, err := Open("testdata/sample.crash")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return cl
}

func TestParse_Sample(t *testing.T) {
	cl := loadSample(t)
	c := cl.Content

	wantHeader := Header{
		IncidentIdentifier: ptr("8E1F6B1B-2F3A-4C5B-9D6E-0F1A2B3C4D5E"),
		CrashReporterKey:   ptr("0123456789abcdef0123456789abcdef01234567"),
		HardwareModel:      ptr("iPhone14,2"),
		Process:            ptr("Sample [1234]"),
		Path:               ptr("/private/var/containers/Bundle/Application/0A1B2C3D/Sample.app/Sample"),
		Identifier:         ptr("com.example.Sample"),
		Version:            ptr("1.0 (1)"),
		AppStoreTools:      ptr(""),
		CodeType:           ptr("ARM-64 (Native)"),
		Role:               ptr("Foreground"),
		ParentProcess:      ptr("launchd [1]"),
		DateTime:           ptr("2021-05-01 12:34:56.7890 +0900"),
		LaunchTime:         ptr("2021-05-01 12:34:50.1234 +0900"),
		OSVersion:          ptr("iPhone OS 14.5 (18E199)"),
	}
	if !reflect.DeepEqual(c.Header, wantHeader) {
		t.Errorf("Header = %+v, want %+v", c.Header, wantHeader)
	}

	wantException := ExceptionInformation{
		ExceptionType:     ptr("EXC_CRASH (SIGABRT)"),
		ExceptionCodes:    ptr("0x0000000000000000, 0x0000000000000000"),
		ExceptionNote:     ptr("EXC_CORPSE_NOTIFY"),
		TriggeredByThread: ptr("0"),
	}
	if !reflect.DeepEqual(c.ExceptionInformation, wantException) {
		t.Errorf("ExceptionInformation = %+v, want %+v", c.ExceptionInformation, wantException)
	}

	wantBacktrace := NonSymbolicated([]string{"0x180b0e4e0", "0x1000051a4", "0x19a000000"})
	if !reflect.DeepEqual(c.ExceptionBacktrace, wantBacktrace) {
		t.Errorf("ExceptionBacktrace = %+v, want %+v", c.ExceptionBacktrace, wantBacktrace)
	}
	wantPos := textedit.LineRange(22, 0, len("(0x180b0e4e0 0x1000051a4 0x19a000000)"))
	if cl.Positions.ExceptionBacktrace == nil || *cl.Positions.ExceptionBacktrace != wantPos {
		t.Errorf("Positions.ExceptionBacktrace = %v, want %v", cl.Positions.ExceptionBacktrace, wantPos)
	}

	wantThreads := []ThreadBacktrace{
		{
			ThreadNumber: "0",
			ThreadName:   ptr("Dispatch queue: com.apple.main-thread"),
			IsCrashed:    true,
			StackFrames: []StackFrame{
				{Number: "0", BinaryName: "libsystem_kernel.dylib", Address: "0x00000001c5e5a414", FunctionName: "0x1c5e30000", Offset: ptr("173076")},
				{Number: "1", BinaryName: "Sample", Address: "0x00000001000051a4", FunctionName: "0x100000000", Offset: ptr("20900")},
				{Number: "2", BinaryName: "Sample", Address: "0x0000000100005200", FunctionName: "main", Offset: ptr("64"), SourceName: ptr("main.m"), SourceLine: ptr("14")},
			},
		},
		{
			ThreadNumber: "1",
			StackFrames: []StackFrame{
				{Number: "0", BinaryName: "libsystem_pthread.dylib", Address: "0x00000001e3a0b764", FunctionName: "start_wqthread", Offset: ptr("0")},
			},
		},
	}
	if !reflect.DeepEqual(c.Backtraces, wantThreads) {
		t.Errorf("Backtraces = %+v, want %+v", c.Backtraces, wantThreads)
	}
	if crashed, ok := c.CrashedThread(); !ok || crashed.ThreadNumber != "0" {
		t.Errorf("CrashedThread() = %v, %v, want thread 0", crashed, ok)
	}

	wantImages := []BinaryImageEntry{
		{LoadAddress: "0x100000000", EndAddress: "0x100007fff", BinaryName: "Sample", Architecture: "arm64", BuildUUID: "0a1b2c3d4e5f60718293a4b5c6d7e8f9", BinaryPath: "/private/var/containers/Bundle/Application/0A1B2C3D/Sample.app/Sample"},
		{LoadAddress: "0x180b00000", EndAddress: "0x180bfffff", BinaryName: "CoreFoundation", Architecture: "arm64e", BuildUUID: "00112233445566778899aabbccddeeff", BinaryPath: "/System/Library/Frameworks/CoreFoundation.framework/CoreFoundation"},
		{LoadAddress: "0x1c5e30000", EndAddress: "0x1c5e63fff", BinaryName: "libsystem_kernel.dylib", Architecture: "arm64e", BuildUUID: "ffeeddccbbaa99887766554433221100", BinaryPath: "/usr/lib/system/libsystem_kernel.dylib"},
		{LoadAddress: "0x1e3a0a000", EndAddress: "0x1e3a15fff", BinaryName: "libsystem_pthread.dylib", Architecture: "arm64e", BuildUUID: "aabbccddeeff00112233445566778899", BinaryPath: "/usr/lib/system/libsystem_pthread.dylib"},
	}
	if !reflect.DeepEqual(c.BinaryImages, wantImages) {
		t.Errorf("BinaryImages = %+v, want %+v", c.BinaryImages, wantImages)
	}
}

func TestParse_Positions(t *testing.T) {
	cl := loadSample(t)
	lines := cl.Lines()

	if got, want := cl.Positions.Values["AppStoreTools"], textedit.Point(7, len("AppStoreTools:")); got != want {
		t.Errorf("Values[AppStoreTools] = %v, want %v", got, want)
	}
	role := lines[9]
	if got, want := cl.Positions.Values["Role"], textedit.LineRange(9, strings.Index(role, "Foreground"), len(role)); got != want {
		t.Errorf("Values[Role] = %v, want %v", got, want)
	}

	if len(cl.Positions.Backtraces) != 2 || len(cl.Positions.Backtraces[0].StackFrames) != 3 {
		t.Fatalf("Positions.Backtraces = %+v", cl.Positions.Backtraces)
	}

	line := lines[29]
	got := cl.Positions.Backtraces[0].StackFrames[2]
	want := StackFramePositions{
		Number:       textedit.LineRange(29, 0, 1),
		BinaryName:   textedit.LineRange(29, 4, 10),
		Address:      textedit.LineRange(29, strings.Index(line, "0x"), strings.Index(line, " main")),
		FunctionName: textedit.LineRange(29, strings.Index(line, "main"), strings.Index(line, " + 64")),
		Offset:       textedit.LineRange(29, strings.Index(line, "64"), strings.Index(line, "64")+2),
		SourceName:   textedit.LineRange(29, strings.Index(line, "main.m"), strings.Index(line, ":14")),
		SourceLine:   textedit.LineRange(29, strings.Index(line, "14)"), len(line)-1),
	}
	if got != want {
		t.Errorf("StackFramePositions = %+v, want %+v", got, want)
	}
	if sym := got.Symbol(); sym != textedit.LineRange(29, want.FunctionName.StartColumn, len(line)-1) {
		t.Errorf("Symbol() = %v", sym)
	}

	// frames without a source location extend to the end of the line
	line = lines[27]
	first := cl.Positions.Backtraces[0].StackFrames[0]
	if first.SourceLine != textedit.Point(27, len(line)) {
		t.Errorf("SourceLine = %v, want %v", first.SourceLine, textedit.Point(27, len(line)))
	}
	if sym := first.Symbol(); sym != textedit.LineRange(27, strings.Index(line, "0x1c5e30000"), len(line)) {
		t.Errorf("Symbol() = %v", sym)
	}
}

func TestParse_ExceptionBacktrace(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *ExceptionBacktrace
		wantPos *textedit.Position
	}{
		{
			name:    "addresses on the key line",
			text:    "Last Exception Backtrace:   (0x100 0x200)",
			want:    NonSymbolicated([]string{"0x100", "0x200"}),
			wantPos: &textedit.Position{EndColumn: len("Last Exception Backtrace:   (0x100 0x200)")},
		},
		{
			name: "symbolicated frames",
			text: "Exception Type:  EXC_CRASH (SIGABRT)\n" +
				"Last Exception Backtrace:\n" +
				"0   CoreFoundation                \t0x0000000180b0e4e0 __exceptionPreprocess + 228\n" +
				"1   libobjc.A.dylib               \t0x0000000180a1f9f8 objc_exception_throw + 56\n" +
				"\n" +
				"Thread 0 Crashed:\n",
			want: Symbolicated([]StackFrame{
				{Number: "0", BinaryName: "CoreFoundation", Address: "0x0000000180b0e4e0", FunctionName: "__exceptionPreprocess", Offset: ptr("228")},
				{Number: "1", BinaryName: "libobjc.A.dylib", Address: "0x0000000180a1f9f8", FunctionName: "objc_exception_throw", Offset: ptr("56")},
			}),
			wantPos: &textedit.Position{StartLine: 2, EndLine: 3, EndColumn: len("1   libobjc.A.dylib               \t0x0000000180a1f9f8 objc_exception_throw + 56")},
		},
		{
			name: "no exception backtrace",
			text: "Exception Type:  EXC_BAD_ACCESS (SIGSEGV)\n\nThread 0 Crashed:\n",
		},
		{
			name: "empty frame list is dropped",
			text: "Last Exception Backtrace:\n\nThread 0:\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl := Parse(tt.text)
			if !reflect.DeepEqual(cl.Content.ExceptionBacktrace, tt.want) {
				t.Errorf("ExceptionBacktrace = %+v, want %+v", cl.Content.ExceptionBacktrace, tt.want)
			}
			if !reflect.DeepEqual(cl.Positions.ExceptionBacktrace, tt.wantPos) {
				t.Errorf("Positions.ExceptionBacktrace = %v, want %v", cl.Positions.ExceptionBacktrace, tt.wantPos)
			}
		})
	}
}

func TestParse_Tolerant(t *testing.T) {
	text := "garbage line\n" +
		"Process: Foo [1]\n" +
		"Process: Bar [2]\n" +
		"Thread 3 Crashed:\n" +
		"not a frame\n" +
		"0   Foo  0x1000 missing tab + 1\n" +
		"1   Foo                          \t0x1000 no offset\n" +
		"Binary Images:\n" +
		"0xzz - 0x1fff Foo arm64 <00> /Foo\n"

	cl := Parse(text)
	if got := cl.Content.Header.Process; got == nil || *got != "Bar [2]" {
		t.Errorf("Process = %v, want Bar [2]", got)
	}
	want := []ThreadBacktrace{{ThreadNumber: "3", IsCrashed: true}}
	if !reflect.DeepEqual(cl.Content.Backtraces, want) {
		t.Errorf("Backtraces = %+v, want %+v", cl.Content.Backtraces, want)
	}
	if len(cl.Content.BinaryImages) != 0 {
		t.Errorf("BinaryImages = %+v, want none", cl.Content.BinaryImages)
	}
}

func TestParse_LastThreadWithoutBinaryImages(t *testing.T) {
	cl := Parse("Thread 0 Crashed:\n0   Foo                           \t0x0000000000001000 foo + 4\n")
	if len(cl.Content.Backtraces) != 1 || len(cl.Content.Backtraces[0].StackFrames) != 1 {
		t.Errorf("Backtraces = %+v, want one thread with one frame", cl.Content.Backtraces)
	}
	if len(cl.Positions.Backtraces) != len(cl.Content.Backtraces) {
		t.Errorf("Positions.Backtraces = %d, want %d", len(cl.Positions.Backtraces), len(cl.Content.Backtraces))
	}
}

func TestParse_Idempotent(t *testing.T) {
	cl := loadSample(t)
	lines := cl.Lines()

	rw := textedit.NewRewriter(lines)
	for _, bt := range cl.Positions.Backtraces {
		for _, frame := range bt.StackFrames {
			sym := frame.Symbol()
			if err := rw.AddMarkText(sym, lines[sym.StartLine][sym.StartColumn:sym.EndColumn]); err != nil {
				t.Fatalf("AddMarkText(%s) error = %v", sym, err)
			}
		}
	}
	if pos := cl.Positions.ExceptionBacktrace; pos != nil {
		if err := rw.AddMarkText(*pos, lines[pos.StartLine][pos.StartColumn:pos.EndColumn]); err != nil {
			t.Fatalf("AddMarkText(%s) error = %v", pos, err)
		}
	}

	reparsed := ParseLines(rw.Rewrite())
	if !reflect.DeepEqual(reparsed.Content, cl.Content) {
		t.Errorf("reparsed Content = %+v, want %+v", reparsed.Content, cl.Content)
	}
	if !reflect.DeepEqual(reparsed.Positions, cl.Positions) {
		t.Errorf("reparsed Positions = %+v, want %+v", reparsed.Positions, cl.Positions)
	}
}

func TestParseBytes_InvalidUTF8(t *testing.T) {
	if _, err := ParseBytes([]byte{0xff, 0xfe, 'a'}); !errors.Is(err, ErrFormat) {
		t.Errorf("ParseBytes() error = %v, want %v", err, ErrFormat)
	}
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open("testdata/missing.crash")
	var loadErr *FileLoadError
	if !errors.As(err, &loadErr) || loadErr.Path != "testdata/missing.crash" {
		t.Fatalf("Open() error = %v, want *FileLoadError", err)
	}
	if !os.IsNotExist(loadErr.Unwrap()) {
		t.Errorf("Unwrap() = %v, want not exist", loadErr.Unwrap())
	}
}
