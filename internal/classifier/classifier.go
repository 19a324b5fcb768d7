// Package classifier maps file names to categories by extension.
package classifier

import (
	"strings"

	"github.com/fenilsonani/dlsort/internal/rules"
)

// Extension returns the lowercased, dot-prefixed suffix of a file name.
// Dotfiles without a further dot (".bashrc") and names ending in "." have no
// extension. Only the first leading dot marks a dotfile, so "..foo" has ".foo".
// For "archive.tar.gz" the extension is ".gz".
func Extension(filename string) string {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[dot:])
}

// Classify returns the first category in rule order whose extension list
// contains the file's extension, or rules.OtherCategory when none does.
func Classify(filename string, rs *rules.RuleSet) string {
	if category, ok := rs.Match(Extension(filename)); ok {
		return category
	}
	return rules.OtherCategory
}

// Index is a precomputed extension lookup for classifying many files against
// one rule snapshot. It gives the same answers as Classify.
type Index struct {
	byExt map[string]string
}

// NewIndex builds an Index; earlier categories win on overlapping extensions
func NewIndex(rs *rules.RuleSet) *Index {
	idx := &Index{byExt: make(map[string]string)}
	for _, c := range rs.Categories() {
		for _, ext := range c.Extensions {
			if _, taken := idx.byExt[ext]; !taken {
				idx.byExt[ext] = c.Name
			}
		}
	}
	return idx
}

// Classify returns the category for filename
func (idx *Index) Classify(filename string) string {
	if category, ok := idx.byExt[Extension(filename)]; ok {
		return category
	}
	return rules.OtherCategory
}
