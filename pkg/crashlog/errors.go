package crashlog

import (
	"errors"
	"fmt"

	"github.com/blacktop/crashsym/internal/utils"
)

// ErrFormat is returned when a crash report is not valid UTF-8 text
var ErrFormat = errors.New("crash report is not valid UTF-8 text")

// FileLoadError is returned when a crash report file cannot be read
type FileLoadError struct {
	Path string
	Err  error
}

func (e *FileLoadError) Error() string {
	return fmt.Sprintf("failed to load crash report %s: %v", e.Path, e.Err)
}

func (e *FileLoadError) Unwrap() error {
	return e.Err
}

type (
	// InvalidAddressError is returned when a binary image address cannot be parsed
	InvalidAddressError = utils.InvalidAddressError
	// CommandError is returned when an external tool fails
	CommandError = utils.CommandError
)
