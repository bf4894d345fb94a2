// Package symfile locates the symbol files of the binary images listed in a crash report.
package symfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/crashsym/internal/utils"
	"github.com/blacktop/crashsym/pkg/crashlog"
	"github.com/spf13/afero"
)

// Config is shared by the providers of this package
type Config struct {
	// Fs is the filesystem searched for symbol files (defaults to the OS filesystem)
	Fs afero.Fs
	// UUIDReader reads build UUIDs of candidate files (defaults to Otool)
	UUIDReader UUIDReader
	// CacheSize is the number of lookups remembered by a provider
	CacheSize int
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Fs == nil {
		out.Fs = afero.NewOsFs()
	}
	if out.UUIDReader == nil {
		out.UUIDReader = &Otool{}
	}
	if out.CacheSize <= 0 {
		out.CacheSize = DefaultCacheSize
	}
	return out
}

// matcher finds the first candidate file whose build UUID matches an entry
type matcher struct {
	fs    afero.Fs
	uuids UUIDReader
	cache *cache
}

func newMatcher(conf Config) (*matcher, error) {
	c, err := newCache(conf.CacheSize)
	if err != nil {
		return nil, err
	}
	return &matcher{fs: conf.Fs, uuids: conf.UUIDReader, cache: c}, nil
}

func (m *matcher) match(ctx context.Context, entry crashlog.BinaryImageEntry, candidates func() []string) (string, error) {
	key := cacheKey(entry.BuildUUID, entry.Architecture)
	switch l := m.cache.get(key); l.state {
	case found:
		return l.path, nil
	case notFound:
		return "", nil
	}

	want := NormalizeUUID(entry.BuildUUID)
	for _, file := range candidates() {
		if ok, _ := afero.Exists(m.fs, file); !ok {
			continue
		}
		id, err := m.uuids.BuildUUID(ctx, file, entry.Architecture)
		if err != nil {
			return "", err
		}
		if id == "" {
			continue
		}
		if NormalizeUUID(id) == want {
			utils.Indent(log.Debug, 2)("found " + file)
			m.cache.setFound(key, file)
			return file, nil
		}
	}

	m.cache.setNotFound(key)
	return "", nil
}

// System finds system binaries in Xcode's device support folders
type System struct {
	folders []string
	*matcher
}

// DeviceSupportDir returns Xcode's "iOS DeviceSupport" folder of the current user
func DeviceSupportDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Developer", "Xcode", "iOS DeviceSupport"), nil
}

// SymbolsFolders returns the Symbols folder of every device support entry in dir
func SymbolsFolders(fs afero.Fs, dir string) []string {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		log.WithError(err).WithField("dir", dir).Debug("Failed to read device support folder")
		return nil
	}
	var folders []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") {
			continue
		}
		folders = append(folders, filepath.Join(dir, info.Name(), "Symbols"))
	}
	return folders
}

// NewSystem returns a provider searching folders, or the default device support
// folders when none are given
func NewSystem(folders []string, conf *Config) (*System, error) {
	c := conf.withDefaults()
	if len(folders) == 0 {
		dir, err := DeviceSupportDir()
		if err != nil {
			return nil, err
		}
		folders = SymbolsFolders(c.Fs, dir)
	}
	m, err := newMatcher(c)
	if err != nil {
		return nil, err
	}
	return &System{folders: folders, matcher: m}, nil
}

// Folders returns the folders searched by the provider
func (s *System) Folders() []string {
	return s.folders
}

func (s *System) BinaryImageFile(ctx context.Context, entry crashlog.BinaryImageEntry) (string, error) {
	return s.match(ctx, entry, func() []string {
		rel := strings.TrimPrefix(entry.BinaryPath, "/")
		files := make([]string, 0, len(s.folders))
		for _, folder := range s.folders {
			files = append(files, filepath.Join(folder, rel))
		}
		return files
	})
}

// DSYM finds binaries inside a dSYM bundle
type DSYM struct {
	files []string
	*matcher
}

// NewDSYM returns a provider for the DWARF files of the dSYM bundle at path
func NewDSYM(path string, conf *Config) (*DSYM, error) {
	c := conf.withDefaults()
	m, err := newMatcher(c)
	if err != nil {
		return nil, err
	}

	dwarf := filepath.Join(path, "Contents", "Resources", "DWARF")
	infos, err := afero.ReadDir(c.Fs, dwarf)
	if err != nil {
		log.WithError(err).WithField("dsym", path).Debug("Failed to read DWARF folder")
	}
	var files []string
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), ".") || info.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dwarf, info.Name()))
	}
	return &DSYM{files: files, matcher: m}, nil
}

// Files returns the DWARF files of the bundle
func (d *DSYM) Files() []string {
	return d.files
}

func (d *DSYM) BinaryImageFile(ctx context.Context, entry crashlog.BinaryImageEntry) (string, error) {
	return d.match(ctx, entry, func() []string { return d.files })
}

// Chain tries each provider in order
type Chain []crashlog.FileProvider

func (c Chain) BinaryImageFile(ctx context.Context, entry crashlog.BinaryImageEntry) (string, error) {
	for _, p := range c {
		file, err := p.BinaryImageFile(ctx, entry)
		if err != nil {
			return "", err
		}
		if file != "" {
			return file, nil
		}
	}
	log.WithFields(log.Fields{
		"image": entry.BinaryName,
		"uuid":  entry.BuildUUID,
	}).Debug("No symbol file")
	return "", nil
}
