package symfile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blacktop/crashsym/internal/utils"
	"github.com/blacktop/go-macho"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// UUIDReader returns the build UUID of the arch slice of a binary.
// An empty string means the file has no UUID for that architecture.
type UUIDReader interface {
	BuildUUID(ctx context.Context, path, arch string) (string, error)
}

// NormalizeUUID returns uuid as 32 lower case hex digits without dashes.
func NormalizeUUID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return strings.ReplaceAll(u.String(), "-", "")
	}
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}

var otoolUUIDRE = regexp.MustCompile(`uuid ([^\s]+)\s`)

// Otool reads build UUIDs with `xcrun otool -l`.
type Otool struct {
	Xcrun string
}

func (o *Otool) BuildUUID(ctx context.Context, path, arch string) (string, error) {
	xcrun := o.Xcrun
	if xcrun == "" {
		xcrun = "/usr/bin/xcrun"
	}
	res, err := utils.RunCommand(ctx, xcrun, "otool", "-arch", arch, "-l", path)
	if err != nil {
		return "", err
	}
	if res.Status != 0 {
		return "", nil
	}
	return parseOtoolUUID(res.Stdout), nil
}

func parseOtoolUUID(out string) string {
	m := otoolUUIDRE.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return NormalizeUUID(m[1])
}

// MachO reads build UUIDs by parsing the binary in process.
type MachO struct {
	Fs afero.Fs
}

func (r *MachO) BuildUUID(ctx context.Context, path, arch string) (string, error) {
	fs := r.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	f, err := fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var m *macho.File
	fat, err := macho.NewFatFile(f)
	if err != nil {
		if !errors.Is(err, macho.ErrNotFat) {
			return "", nil
		}
		m, err = macho.NewFile(f)
		if err != nil {
			// not a Mach-O
			return "", nil
		}
	} else {
		for _, farch := range fat.Arches {
			if strings.EqualFold(farch.SubCPU.String(farch.CPU), arch) {
				m = farch.File
				break
			}
		}
		if m == nil {
			return "", nil
		}
	}

	id := m.UUID()
	if id == nil {
		return "", nil
	}
	return NormalizeUUID(id.String()), nil
}
