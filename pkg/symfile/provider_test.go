package symfile

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blacktop/crashsym/pkg/crashlog"
	"github.com/spf13/afero"
)

type fakeUUIDs struct {
	uuids map[string]string
	calls []string
	err   error
}

func (f *fakeUUIDs) BuildUUID(_ context.Context, path, arch string) (string, error) {
	f.calls = append(f.calls, path+"@"+arch)
	if f.err != nil {
		return "", f.err
	}
	return f.uuids[path+"@"+arch], nil
}

const (
	sdk145 = "/DeviceSupport/14.5 (18E199)/Symbols"
	sdk146 = "/DeviceSupport/14.6 (18F72)/Symbols"
)

var foundation = crashlog.BinaryImageEntry{
	LoadAddress:  "0x180b00000",
	EndAddress:   "0x180bfffff",
	BinaryName:   "Foundation",
	Architecture: "arm64e",
	BuildUUID:    "00112233445566778899aabbccddeeff",
	BinaryPath:   "/System/Library/Frameworks/Foundation.framework/Foundation",
}

func newTestFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("binary"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestSystem_BinaryImageFile(t *testing.T) {
	file145 := filepath.Join(sdk145, foundation.BinaryPath)
	file146 := filepath.Join(sdk146, foundation.BinaryPath)

	tests := []struct {
		name      string
		files     []string
		uuids     map[string]string
		want      string
		wantCalls []string
	}{
		{
			name:  "second folder matches",
			files: []string{file145, file146},
			uuids: map[string]string{
				file145 + "@arm64e": "ffeeddccbbaa99887766554433221100",
				file146 + "@arm64e": "00112233445566778899aabbccddeeff",
			},
			want:      file146,
			wantCalls: []string{file145 + "@arm64e", file146 + "@arm64e"},
		},
		{
			name:      "missing files are not read",
			files:     []string{file146},
			uuids:     map[string]string{file146 + "@arm64e": "00112233445566778899aabbccddeeff"},
			want:      file146,
			wantCalls: []string{file146 + "@arm64e"},
		},
		{
			name:      "no matching uuid",
			files:     []string{file145},
			uuids:     map[string]string{file145 + "@arm64e": ""},
			want:      "",
			wantCalls: []string{file145 + "@arm64e"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &fakeUUIDs{uuids: tt.uuids}
			p, err := NewSystem([]string{sdk145, sdk146}, &Config{Fs: newTestFs(t, tt.files...), UUIDReader: reader})
			if err != nil {
				t.Fatalf("NewSystem() error = %v", err)
			}
			for range 2 {
				got, err := p.BinaryImageFile(context.Background(), foundation)
				if err != nil {
					t.Fatalf("BinaryImageFile() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("BinaryImageFile() = %q, want %q", got, tt.want)
				}
			}
			// the second lookup is answered by the cache, found or not
			if !reflect.DeepEqual(reader.calls, tt.wantCalls) {
				t.Errorf("UUID reads = %q, want %q", reader.calls, tt.wantCalls)
			}
		})
	}
}

func TestSystem_CacheKeyIncludesArch(t *testing.T) {
	file := filepath.Join(sdk145, foundation.BinaryPath)
	reader := &fakeUUIDs{uuids: map[string]string{
		file + "@arm64":  "00112233-4455-6677-8899-AABBCCDDEEFF",
		file + "@arm64e": "ffeeddccbbaa99887766554433221100",
	}}
	p, err := NewSystem([]string{sdk145}, &Config{Fs: newTestFs(t, file), UUIDReader: reader})
	if err != nil {
		t.Fatal(err)
	}

	if got, _ := p.BinaryImageFile(context.Background(), foundation); got != "" {
		t.Errorf("BinaryImageFile(arm64e) = %q, want none", got)
	}
	arm64 := foundation
	arm64.Architecture = "arm64"
	if got, _ := p.BinaryImageFile(context.Background(), arm64); got != file {
		t.Errorf("BinaryImageFile(arm64) = %q, want %q", got, file)
	}
}

func TestSystem_DefaultFolders(t *testing.T) {
	dir := "/Users/test/Library/Developer/Xcode/iOS DeviceSupport"
	fs := newTestFs(t,
		filepath.Join(dir, "14.5 (18E199)", "Symbols", "usr", "lib", "dyld"),
		filepath.Join(dir, "15.0 (19A346)", "Symbols", "usr", "lib", "dyld"),
		filepath.Join(dir, ".DS_Store"),
	)
	want := []string{
		filepath.Join(dir, "14.5 (18E199)", "Symbols"),
		filepath.Join(dir, "15.0 (19A346)", "Symbols"),
	}
	if got := SymbolsFolders(fs, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("SymbolsFolders() = %q, want %q", got, want)
	}
	if got := SymbolsFolders(fs, "/missing"); got != nil {
		t.Errorf("SymbolsFolders() = %q, want none", got)
	}
}

func TestDSYM_BinaryImageFile(t *testing.T) {
	bundle := "/build/Sample.app.dSYM"
	dwarf := filepath.Join(bundle, "Contents", "Resources", "DWARF")
	sample := filepath.Join(dwarf, "Sample")
	ext := filepath.Join(dwarf, "SampleExtension")

	reader := &fakeUUIDs{uuids: map[string]string{
		sample + "@arm64": "0a1b2c3d4e5f60718293a4b5c6d7e8f9",
		ext + "@arm64":    "1a1b2c3d4e5f60718293a4b5c6d7e8f9",
	}}
	p, err := NewDSYM(bundle, &Config{Fs: newTestFs(t, sample, ext, filepath.Join(dwarf, ".hidden")), UUIDReader: reader})
	if err != nil {
		t.Fatalf("NewDSYM() error = %v", err)
	}
	if got, want := p.Files(), []string{sample, ext}; !reflect.DeepEqual(got, want) {
		t.Errorf("Files() = %q, want %q", got, want)
	}

	entry := crashlog.BinaryImageEntry{BinaryName: "SampleExtension", Architecture: "arm64", BuildUUID: "1a1b2c3d4e5f60718293a4b5c6d7e8f9", BinaryPath: "/private/var/SampleExtension"}
	got, err := p.BinaryImageFile(context.Background(), entry)
	if err != nil {
		t.Fatalf("BinaryImageFile() error = %v", err)
	}
	if got != ext {
		t.Errorf("BinaryImageFile() = %q, want %q", got, ext)
	}
}

func TestDSYM_MissingBundle(t *testing.T) {
	p, err := NewDSYM("/missing.dSYM", &Config{Fs: afero.NewMemMapFs(), UUIDReader: &fakeUUIDs{}})
	if err != nil {
		t.Fatalf("NewDSYM() error = %v", err)
	}
	if got, _ := p.BinaryImageFile(context.Background(), foundation); got != "" {
		t.Errorf("BinaryImageFile() = %q, want none", got)
	}
}

type staticProvider struct {
	file  string
	err   error
	calls int
}

func (s *staticProvider) BinaryImageFile(context.Context, crashlog.BinaryImageEntry) (string, error) {
	s.calls++
	return s.file, s.err
}

func TestChain_BinaryImageFile(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		providers []*staticProvider
		want      string
		wantErr   error
		wantCalls []int
	}{
		{
			name:      "first match wins",
			providers: []*staticProvider{{}, {file: "/b"}, {file: "/c"}},
			want:      "/b",
			wantCalls: []int{1, 1, 0},
		},
		{
			name:      "none match",
			providers: []*staticProvider{{}, {}},
			wantCalls: []int{1, 1},
		},
		{
			name:      "error stops the chain",
			providers: []*staticProvider{{err: errBoom}, {file: "/b"}},
			wantErr:   errBoom,
			wantCalls: []int{1, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var chain Chain
			for _, p := range tt.providers {
				chain = append(chain, p)
			}
			got, err := chain.BinaryImageFile(context.Background(), foundation)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BinaryImageFile() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BinaryImageFile() = %q, want %q", got, tt.want)
			}
			for i, p := range tt.providers {
				if p.calls != tt.wantCalls[i] {
					t.Errorf("provider %d calls = %d, want %d", i, p.calls, tt.wantCalls[i])
				}
			}
		})
	}
}

func TestParseOtoolUUID(t *testing.T) {
	out := "Load command 8\n     cmd LC_UUID\n cmdsize 24\n    uuid 0A1B2C3D-4E5F-6071-8293-A4B5C6D7E8F9\nLoad command 9\n"
	if got, want := parseOtoolUUID(out), "0a1b2c3d4e5f60718293a4b5c6d7e8f9"; got != want {
		t.Errorf("parseOtoolUUID() = %q, want %q", got, want)
	}
	if got := parseOtoolUUID("Load command 0\n"); got != "" {
		t.Errorf("parseOtoolUUID() = %q, want empty", got)
	}
}

func TestMachO_NotMachO(t *testing.T) {
	fs := newTestFs(t, "/tmp/not-a-binary")
	got, err := (&MachO{Fs: fs}).BuildUUID(context.Background(), "/tmp/not-a-binary", "arm64")
	if err != nil {
		t.Fatalf("BuildUUID() error = %v", err)
	}
	if got != "" {
		t.Errorf("BuildUUID() = %q, want empty", got)
	}
}
