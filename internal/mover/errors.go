package mover

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
)

// ErrorReason categorizes why a relocation failed
type ErrorReason int

const (
	ReasonDestinationMissing ErrorReason = iota
	ReasonNameCollision
	ReasonPermissionDenied
	ReasonFileInUse
	ReasonSourceMissing
	ReasonUnknown
)

// Sentinel errors for errors.Is checks against a *RelocationError
var (
	ErrDestinationMissing = errors.New("destination directory does not exist")
	ErrNameCollision      = errors.New("a file with the same name already exists at the destination")
)

// String returns a human-readable error reason
func (r ErrorReason) String() string {
	switch r {
	case ReasonDestinationMissing:
		return "Destination missing"
	case ReasonNameCollision:
		return "Name collision"
	case ReasonPermissionDenied:
		return "Permission denied"
	case ReasonFileInUse:
		return "File is in use"
	case ReasonSourceMissing:
		return "File not found"
	case ReasonUnknown:
		return "Unknown error"
	default:
		return "Unspecified error"
	}
}

// RelocationError represents a failed move of one file
type RelocationError struct {
	Path        string
	Destination string
	Reason      ErrorReason
	Original    error
	Retryable   bool
}

// Error implements the error interface
func (e *RelocationError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap returns the underlying error
func (e *RelocationError) Unwrap() error {
	return e.Original
}

// Is matches the reason-specific sentinel errors
func (e *RelocationError) Is(target error) bool {
	switch target {
	case ErrDestinationMissing:
		return e.Reason == ReasonDestinationMissing
	case ErrNameCollision:
		return e.Reason == ReasonNameCollision
	}
	return false
}

// UserMessage returns a user-friendly error message
func (e *RelocationError) UserMessage() string {
	switch e.Reason {
	case ReasonDestinationMissing:
		return fmt.Sprintf("⚠️  Destination folder missing for %s: %s", e.Path, e.Destination)
	case ReasonNameCollision:
		return fmt.Sprintf("⚠️  Already exists at destination, left in place: %s", e.Path)
	case ReasonPermissionDenied:
		return fmt.Sprintf("⚠️  Permission denied: %s", e.Path)
	case ReasonFileInUse:
		return fmt.Sprintf("⚠️  File is being used: %s (close the application and try again)", e.Path)
	case ReasonSourceMissing:
		return fmt.Sprintf("ℹ️  Vanished before it could be moved: %s", e.Path)
	default:
		return fmt.Sprintf("❌ Error moving %s: %v", e.Path, e.Original)
	}
}

// CategorizeError analyzes a filesystem error and returns a RelocationError
func CategorizeError(path, destination string, err error) *RelocationError {
	if err == nil {
		return nil
	}

	var relErr *RelocationError
	if errors.As(err, &relErr) {
		return relErr
	}

	relErr = &RelocationError{
		Path:        path,
		Destination: destination,
		Original:    err,
		Reason:      ReasonUnknown,
	}

	if os.IsNotExist(err) {
		relErr.Reason = ReasonSourceMissing
		return relErr
	}

	if os.IsExist(err) {
		relErr.Reason = ReasonNameCollision
		return relErr
	}

	if os.IsPermission(err) {
		relErr.Reason = ReasonPermissionDenied
		return relErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM:
			relErr.Reason = ReasonPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			relErr.Reason = ReasonFileInUse
			relErr.Retryable = true
		case syscall.ENOENT:
			relErr.Reason = ReasonSourceMissing
		case syscall.EEXIST, syscall.ENOTEMPTY:
			relErr.Reason = ReasonNameCollision
		}
	}

	return relErr
}

// GroupErrors groups relocation errors by reason
func GroupErrors(errs []*RelocationError) map[ErrorReason][]*RelocationError {
	grouped := make(map[ErrorReason][]*RelocationError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*RelocationError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	var b strings.Builder
	b.WriteString("\n⚠️  Issues encountered:\n")

	if missing, ok := grouped[ReasonDestinationMissing]; ok {
		fmt.Fprintf(&b, "   ├─ Destination missing: %d files\n", len(missing))
		b.WriteString("   │  └─ Tip: Enable create_missing_dirs or create the folders\n")
	}

	if collisions, ok := grouped[ReasonNameCollision]; ok {
		fmt.Fprintf(&b, "   ├─ Name collisions: %d files\n", len(collisions))
		b.WriteString("   │  └─ Tip: Rename or remove the existing copies and sort again\n")
	}

	if perms, ok := grouped[ReasonPermissionDenied]; ok {
		fmt.Fprintf(&b, "   ├─ Permission denied: %d files\n", len(perms))
	}

	if busy, ok := grouped[ReasonFileInUse]; ok {
		fmt.Fprintf(&b, "   ├─ File in use: %d files\n", len(busy))
		b.WriteString("   │  └─ Tip: Wait for downloads to finish and retry\n")
	}

	if gone, ok := grouped[ReasonSourceMissing]; ok {
		fmt.Fprintf(&b, "   ├─ Vanished: %d files\n", len(gone))
	}

	if unknown, ok := grouped[ReasonUnknown]; ok {
		fmt.Fprintf(&b, "   └─ Other errors: %d files\n", len(unknown))
	}

	return b.String()
}
