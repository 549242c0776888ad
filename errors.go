package printkit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the library.
var (
	// ErrClosed is returned when attempting to use a closed [Converter] or [Session].
	ErrClosed = errors.New("printkit: closed")

	// ErrUnknownField is returned by [Session.SetField] for a name the schema does not declare.
	ErrUnknownField = errors.New("printkit: unknown field")

	// ErrFieldType is returned when a value has the wrong Go type for its field kind.
	ErrFieldType = errors.New("printkit: wrong value type for field")

	// ErrValidation is matched by every [*ValidationError].
	ErrValidation = errors.New("printkit: validation failed")

	// ErrImageTooLarge is returned when an uploaded image exceeds the size limit.
	ErrImageTooLarge = errors.New("printkit: image exceeds size limit")

	// ErrUnsupportedImage is returned for uploads that are not a supported image type.
	ErrUnsupportedImage = errors.New("printkit: unsupported image type")

	// ErrUnsupportedFormat is returned when no exporter is registered for a format.
	ErrUnsupportedFormat = errors.New("printkit: unsupported export format")

	// ErrUnsupportedImport is returned by [ExtractText] for unknown file types.
	ErrUnsupportedImport = errors.New("printkit: unsupported import file type")

	// ErrExportBusy is returned when an export is already running for the session.
	ErrExportBusy = errors.New("printkit: export already in progress")

	// ErrStale is returned when the document changed while an export was running.
	// The artifact is discarded.
	ErrStale = errors.New("printkit: document changed during export")

	// ErrNoPersister is returned by [Session.Save] when the session has no [Persister].
	ErrNoPersister = errors.New("printkit: session has no persister")

	// ErrExport is matched by every [*ExportError].
	ErrExport = errors.New("printkit: export failed")
)

// ValidationError lists the required fields that were empty at export time.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("printkit: required fields missing: %s", strings.Join(e.Fields, ", "))
}

// Is reports whether target is [ErrValidation].
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ExportError wraps a failure raised by an [Exporter] or the browser.
type ExportError struct {
	Format Format
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("printkit: exporting %s: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Is reports whether target is [ErrExport].
func (e *ExportError) Is(target error) bool {
	return target == ErrExport
}
