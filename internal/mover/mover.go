// Package mover relocates a single file into a destination directory without
// ever overwriting or renaming anything already there.
package mover

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// Method records how a file reached its destination
type Method string

const (
	MethodRename Method = "rename"
	MethodCopy   Method = "copy"
	MethodNone   Method = "none"
	MethodDryRun Method = "dry-run"
)

// Result describes one completed relocation
type Result struct {
	Source      string
	Destination string
	Method      Method
	Size        int64
}

// Relocator moves one file into a directory
type Relocator interface {
	Relocate(src, destDir string) (Result, error)
}

// Mover is the filesystem Relocator. The zero value is ready to use.
//
// Destination directories are never created here; a missing directory is
// reported as ReasonDestinationMissing so callers decide whether to create it.
type Mover struct {
	// DryRun performs every check but leaves the file where it is
	DryRun bool
	// RetryDelays are the waits between attempts for retryable failures
	// (file busy). Nil means no retries.
	RetryDelays []time.Duration
}

// New creates a Mover that retries busy files twice
func New() *Mover {
	return &Mover{
		RetryDelays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond},
	}
}

// Relocate moves src into destDir using a zero-value Mover
func Relocate(src, destDir string) (Result, error) {
	return (&Mover{}).Relocate(src, destDir)
}

// Relocate moves src into destDir keeping its base name
func (m *Mover) Relocate(src, destDir string) (Result, error) {
	var (
		res     Result
		lastErr *RelocationError
	)

	for attempt := 0; attempt <= len(m.RetryDelays); attempt++ {
		if attempt > 0 {
			time.Sleep(m.RetryDelays[attempt-1])
		}

		var err error
		res, err = m.relocate(src, destDir)
		if err == nil {
			return res, nil
		}

		lastErr = CategorizeError(src, destDir, err)
		if !lastErr.Retryable {
			break
		}
	}

	return res, lastErr
}

func (m *Mover) relocate(src, destDir string) (Result, error) {
	info, err := os.Lstat(src)
	if err != nil {
		return Result{Source: src}, err
	}
	if info.IsDir() {
		return Result{Source: src}, &RelocationError{
			Path:        src,
			Destination: destDir,
			Reason:      ReasonUnknown,
			Original:    errors.New("source is a directory"),
		}
	}

	target := filepath.Join(destDir, filepath.Base(src))
	res := Result{Source: src, Destination: target, Size: info.Size()}

	if err := checkDestination(src, destDir); err != nil {
		return res, err
	}

	existing, err := os.Lstat(target)
	switch {
	case err == nil && os.SameFile(existing, info):
		// already where it belongs
		res.Method = MethodNone
		return res, nil
	case err == nil:
		return res, &RelocationError{
			Path:        src,
			Destination: destDir,
			Reason:      ReasonNameCollision,
			Original:    fmt.Errorf("%s exists", target),
		}
	case !os.IsNotExist(err):
		return res, err
	}

	if m.DryRun {
		res.Method = MethodDryRun
		return res, nil
	}

	err = renameNoReplace(src, target)
	if err == nil {
		res.Method = MethodRename
		return res, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return res, err
	}

	if err := moveAcrossDevices(src, target, info); err != nil {
		return res, err
	}
	res.Method = MethodCopy
	return res, nil
}

func checkDestination(src, destDir string) error {
	dirInfo, err := os.Stat(destDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &RelocationError{
				Path:        src,
				Destination: destDir,
				Reason:      ReasonDestinationMissing,
				Original:    err,
			}
		}
		return err
	}
	if !dirInfo.IsDir() {
		return &RelocationError{
			Path:        src,
			Destination: destDir,
			Reason:      ReasonDestinationMissing,
			Original:    fmt.Errorf("%s is not a directory", destDir),
		}
	}
	return nil
}

// renameChecked is the portable no-clobber rename: check, then rename.
// There is a window between the two calls; platforms with an atomic
// no-replace rename use that instead.
func renameChecked(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	}
	return os.Rename(src, dst)
}

// moveAcrossDevices copies src next to target, fsyncs it, renames it into
// place and only then removes src. If src cannot be removed the copy is
// rolled back so the file never exists in both places.
func moveAcrossDevices(src, target string, info os.FileInfo) error {
	if info.Mode()&os.ModeSymlink != 0 {
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Symlink(link, target); err != nil {
			return err
		}
		if err := os.Remove(src); err != nil {
			_ = os.Remove(target)
			return err
		}
		return nil
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("unsupported file type %s", info.Mode().Type())
	}

	tmpName, err := copyToTemp(src, filepath.Dir(target), info)
	if err != nil {
		return err
	}

	if err := renameNoReplace(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Remove(src); err != nil {
		_ = os.Remove(target)
		return err
	}
	return nil
}

func copyToTemp(src, dir string, info os.FileInfo) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.CreateTemp(dir, ".dlsort-*.part")
	if err != nil {
		return "", err
	}
	tmpName := out.Name()

	fail := func(err error) (string, error) {
		out.Close()
		_ = os.Remove(tmpName)
		return "", err
	}

	srcHash := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHash))
	if err != nil {
		return fail(err)
	}
	if written != info.Size() {
		return fail(fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), written))
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	copied, err := hashFile(tmpName)
	if err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	if want := hex.EncodeToString(srcHash.Sum(nil)); copied != want {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("copy checksum mismatch for %s", src)
	}

	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	// zero atime leaves it unchanged
	if err := os.Chtimes(tmpName, time.Time{}, info.ModTime()); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	return tmpName, nil
}

// hashFile computes the SHA256 hash of a file
func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
