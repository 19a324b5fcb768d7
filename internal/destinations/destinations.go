// Package destinations maps each category to the directory its files are
// moved into, and owns the base (downloads) directory those defaults hang off.
package destinations

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fenilsonani/dlsort/internal/document"
	"github.com/fenilsonani/dlsort/internal/mover"
	"github.com/fenilsonani/dlsort/internal/security"
)

// DefaultPathKey is the document entry holding the base directory
const DefaultPathKey = "default_path"

// Map is the category -> directory mapping. It is not safe for concurrent
// mutation; sessions work on a Snapshot.
type Map struct {
	path  string
	base  string
	dirs  map[string]string
	order []string

	validator *security.PathValidator
	mover     mover.Relocator
	logger    *slog.Logger
}

// Option configures a Map
type Option func(*Map)

// WithMover sets the relocator used to migrate files on SetDirectory
func WithMover(r mover.Relocator) Option {
	return func(m *Map) { m.mover = r }
}

// WithValidator sets the destination validator
func WithValidator(v *security.PathValidator) Option {
	return func(m *Map) { m.validator = v }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Map) { m.logger = l }
}

// New creates a map whose every category points at join(base, name).
// path is where Save writes; empty keeps the map in memory only.
func New(path, base string, names []string, opts ...Option) *Map {
	m := &Map{
		path: path,
		base: filepath.Clean(base),
		dirs: make(map[string]string, len(names)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validator == nil {
		m.validator = security.NewPathValidator()
	}
	if m.mover == nil {
		m.mover = mover.New()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m.Ensure(names...)
	return m
}

// Load reads the directory document at path. A persisted default_path
// overrides base. Categories in names without an entry get their default
// directory, which is not written back until the next Save. A missing
// document is not an error; a malformed one is a *document.PersistenceError.
func Load(path, base string, names []string, opts ...Option) (*Map, error) {
	entries, err := document.ReadStrings(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(path, base, names, opts...), nil
		}
		return nil, err
	}

	for _, e := range entries {
		if e.Key == DefaultPathKey && e.Value != "" {
			base = e.Value
		}
	}

	m := New(path, base, nil, opts...)
	for _, e := range entries {
		if e.Key == DefaultPathKey || e.Key == "" || e.Value == "" {
			continue
		}
		m.set(e.Key, filepath.Clean(e.Value))
	}
	m.Ensure(names...)

	return m, nil
}

// Base returns the base directory
func (m *Map) Base() string {
	return m.base
}

// Path returns where the map is persisted
func (m *Map) Path() string {
	return m.path
}

// Directory returns the destination for a category
func (m *Map) Directory(name string) (string, bool) {
	dir, ok := m.dirs[name]
	return dir, ok
}

// Names returns the mapped categories in document order
func (m *Map) Names() []string {
	return append([]string(nil), m.order...)
}

// DefaultFor returns join(base, name)
func (m *Map) DefaultFor(name string) string {
	return filepath.Join(m.base, name)
}

// IsDefault reports whether a category still uses its derived directory
func (m *Map) IsDefault(name string) bool {
	dir, ok := m.dirs[name]
	return !ok || dir == m.DefaultFor(name)
}

// Ensure gives every listed category without an entry its default directory
func (m *Map) Ensure(names ...string) {
	for _, name := range names {
		if _, ok := m.dirs[name]; !ok {
			m.set(name, m.DefaultFor(name))
		}
	}
}

// Snapshot returns a copy of the mapping for a sort session
func (m *Map) Snapshot() map[string]string {
	out := make(map[string]string, len(m.dirs))
	for k, v := range m.dirs {
		out[k] = v
	}
	return out
}

// SetDirectory points a category at newPath. newPath must be absolute and
// outside protected system directories; it is created if needed. Regular
// files already in the old directory are moved over. Files that cannot be
// moved stay where they are, the mapping is updated regardless, and their
// errors are returned joined together with the number of files moved.
func (m *Map) SetDirectory(name, newPath string) (int, error) {
	clean, err := m.validator.ValidateDestination(newPath)
	if err != nil {
		return 0, fmt.Errorf("invalid directory for %s: %w", name, err)
	}

	if err := os.MkdirAll(clean, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", clean, err)
	}

	old, ok := m.dirs[name]
	if !ok {
		old = m.DefaultFor(name)
	}

	var (
		migrated int
		errs     []error
	)
	if filepath.Clean(old) != clean {
		migrated, errs = m.migrate(old, clean)
	}

	m.set(name, clean)
	m.logger.Info("category directory changed",
		slog.String("category", name),
		slog.String("from", old),
		slog.String("to", clean),
		slog.Int("migrated", migrated),
		slog.Int("failed", len(errs)))

	if err := m.Save(); err != nil {
		errs = append(errs, err)
	}
	return migrated, errors.Join(errs...)
}

// migrate moves the regular files directly inside from into to. A missing
// or empty source directory moves nothing.
func (m *Map) migrate(from, to string) (int, []error) {
	entries, err := os.ReadDir(from)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, []error{fmt.Errorf("failed to read %s: %w", from, err)}
	}

	var (
		moved int
		errs  []error
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if _, err := m.mover.Relocate(filepath.Join(from, e.Name()), to); err != nil {
			errs = append(errs, err)
			continue
		}
		moved++
	}
	return moved, errs
}

// ChangeBase switches the base directory. Categories that still use their
// derived directory follow the new base; customized ones keep their path.
// No files are moved.
func (m *Map) ChangeBase(newBase string) error {
	if !filepath.IsAbs(newBase) {
		return fmt.Errorf("base directory must be absolute: %s", newBase)
	}
	newBase = filepath.Clean(newBase)

	oldBase := m.base
	for _, name := range m.order {
		if m.dirs[name] == filepath.Join(oldBase, name) {
			m.dirs[name] = filepath.Join(newBase, name)
		}
	}
	m.base = newBase

	m.logger.Info("base directory changed", slog.String("from", oldBase), slog.String("to", newBase))
	return m.Save()
}

// EnsureDirectories creates every destination directory
func (m *Map) EnsureDirectories() error {
	var errs []error
	for _, name := range m.order {
		if err := os.MkdirAll(m.dirs[name], 0o755); err != nil {
			errs = append(errs, fmt.Errorf("failed to create directory for %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Remove drops a category's entry
func (m *Map) Remove(name string) error {
	if _, ok := m.dirs[name]; !ok {
		return nil
	}
	delete(m.dirs, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return m.Save()
}

// Save writes the mapping, base first, replacing the document atomically
func (m *Map) Save() error {
	if m.path == "" {
		return nil
	}

	entries := make([]document.StringEntry, 0, len(m.order)+1)
	entries = append(entries, document.StringEntry{Key: DefaultPathKey, Value: m.base})
	for _, name := range m.order {
		entries = append(entries, document.StringEntry{Key: name, Value: m.dirs[name]})
	}

	if err := document.WriteStrings(m.path, entries); err != nil {
		return fmt.Errorf("failed to save directories: %w", err)
	}
	return nil
}

func (m *Map) set(name, dir string) {
	if _, ok := m.dirs[name]; !ok {
		m.order = append(m.order, name)
	}
	m.dirs[name] = dir
}
