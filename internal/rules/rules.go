// Package rules holds the ordered category -> extension mapping used to
// classify downloads.
package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/fenilsonani/dlsort/internal/document"
)

// OtherCategory is the reserved fallback category
const OtherCategory = "Other"

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrCategoryExists  = errors.New("category already exists")
	ErrReservedName    = errors.New("category name is reserved")
)

// Category is a named set of extensions. Extensions keep their stored order.
type Category struct {
	Name       string
	Extensions []string
}

// RuleSet is an ordered list of categories. Classification walks it in order
// and the first category containing an extension wins, so order matters.
type RuleSet struct {
	categories []Category
}

// New builds a RuleSet from categories, normalizing every extension list and
// appending the Other category if it is missing.
func New(categories ...Category) *RuleSet {
	rs := &RuleSet{categories: make([]Category, 0, len(categories)+1)}
	for _, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if i := rs.index(name); i >= 0 {
			rs.categories[i].Extensions = NormalizeExtensions(c.Extensions)
			continue
		}
		rs.categories = append(rs.categories, Category{
			Name:       name,
			Extensions: NormalizeExtensions(c.Extensions),
		})
	}
	rs.ensureOther()
	return rs
}

// Load reads the rule document at path. A missing document yields the
// built-in defaults; a malformed one returns a *document.PersistenceError.
func Load(path string) (*RuleSet, error) {
	entries, err := document.ReadLists(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	categories := make([]Category, 0, len(entries))
	for _, e := range entries {
		categories = append(categories, Category{Name: e.Key, Extensions: e.Value})
	}
	return New(categories...), nil
}

// Save writes the rule set to path, replacing any previous document atomically
func Save(path string, rs *RuleSet) error {
	entries := make([]document.ListEntry, 0, len(rs.categories))
	for _, c := range rs.categories {
		exts := make([]string, len(c.Extensions))
		copy(exts, c.Extensions)
		entries = append(entries, document.ListEntry{Key: c.Name, Value: exts})
	}

	if err := document.WriteLists(path, entries); err != nil {
		return fmt.Errorf("failed to save rules: %w", err)
	}
	return nil
}

// Categories returns a copy of the categories in classification order
func (rs *RuleSet) Categories() []Category {
	out := make([]Category, len(rs.categories))
	for i, c := range rs.categories {
		out[i] = Category{Name: c.Name, Extensions: append([]string(nil), c.Extensions...)}
	}
	return out
}

// Names returns the category names in classification order
func (rs *RuleSet) Names() []string {
	names := make([]string, len(rs.categories))
	for i, c := range rs.categories {
		names[i] = c.Name
	}
	return names
}

// Len returns the number of categories
func (rs *RuleSet) Len() int {
	return len(rs.categories)
}

// Has reports whether a category exists
func (rs *RuleSet) Has(name string) bool {
	return rs.index(name) >= 0
}

// Extensions returns the extension list for a category
func (rs *RuleSet) Extensions(name string) ([]string, bool) {
	i := rs.index(name)
	if i < 0 {
		return nil, false
	}
	return append([]string(nil), rs.categories[i].Extensions...), true
}

// Match returns the first category, in order, whose list contains ext.
// ext must already be normalized.
func (rs *RuleSet) Match(ext string) (string, bool) {
	if ext == "" {
		return "", false
	}
	for _, c := range rs.categories {
		for _, e := range c.Extensions {
			if e == ext {
				return c.Name, true
			}
		}
	}
	return "", false
}

// SetExtensions replaces the extension list of a category. Unknown categories
// are appended. Overlap with other categories is allowed.
func (rs *RuleSet) SetExtensions(name string, extensions []string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return err
	}

	normalized := NormalizeExtensions(extensions)
	if i := rs.index(name); i >= 0 {
		rs.categories[i].Extensions = normalized
		return nil
	}
	rs.insert(Category{Name: name, Extensions: normalized})
	return nil
}

// AddCategory adds a new category ahead of Other
func (rs *RuleSet) AddCategory(name string, extensions []string) error {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return err
	}
	if rs.Has(name) {
		return fmt.Errorf("%w: %s", ErrCategoryExists, name)
	}
	rs.insert(Category{Name: name, Extensions: NormalizeExtensions(extensions)})
	return nil
}

// RemoveCategory deletes a category. Other cannot be removed.
func (rs *RuleSet) RemoveCategory(name string) error {
	if name == OtherCategory {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	i := rs.index(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, name)
	}
	rs.categories = append(rs.categories[:i], rs.categories[i+1:]...)
	return nil
}

// Clone returns a deep copy, used as the immutable snapshot of a sort session
func (rs *RuleSet) Clone() *RuleSet {
	return &RuleSet{categories: rs.Categories()}
}

// insert places new categories before the trailing Other so the fallback
// stays last when it is last.
func (rs *RuleSet) insert(c Category) {
	n := len(rs.categories)
	if n > 0 && rs.categories[n-1].Name == OtherCategory {
		rs.categories = append(rs.categories[:n-1], c, rs.categories[n-1])
		return
	}
	rs.categories = append(rs.categories, c)
}

func (rs *RuleSet) ensureOther() {
	if !rs.Has(OtherCategory) {
		rs.categories = append(rs.categories, Category{Name: OtherCategory, Extensions: []string{}})
	}
}

func (rs *RuleSet) index(name string) int {
	for i, c := range rs.categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// ValidateName checks that a category name can double as a directory name
func ValidateName(name string) error {
	if name == "" {
		return errors.New("category name must not be empty")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid category name %q: must be a plain directory name", name)
	}
	return nil
}

// NormalizeExtension lowercases ext and gives it a single leading dot.
// "MP3", ".Mp3" and "*.mp3" all become ".mp3"; blanks become "".
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimPrefix(ext, "*")
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + ext
}

// NormalizeExtensions normalizes a list, dropping blanks and repeats while
// keeping first-seen order. The result is never nil.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	seen := make(map[string]struct{}, len(exts))
	for _, raw := range exts {
		ext := NormalizeExtension(raw)
		if ext == "" {
			continue
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	return out
}

// ParseExtensions splits user input like ".mp3, flac .wav" into a list
func ParseExtensions(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	return NormalizeExtensions(fields)
}
