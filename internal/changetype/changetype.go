// Package changetype decides whether a resolved fragment creates, updates or
// deletes its target file.
package changetype

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/sokinpui/aipatch/model"
)

// ExistenceChecker is the part of a file store the resolver needs.
type ExistenceChecker interface {
	Exists(path string) bool
}

const deleteWords = `(?:delet|remov)\w*`

// Decision is the change type chosen for a fragment.
type Decision struct {
	Type model.ChangeType
	// Cue is the text that marked the file for deletion, empty otherwise.
	Cue string
}

// Resolver decides change types against a file store.
type Resolver struct {
	files ExistenceChecker
}

// New creates a Resolver backed by files.
func New(files ExistenceChecker) *Resolver {
	return &Resolver{files: files}
}

// Resolve returns the change type for fragment targeting path, given the
// response text surrounding the fragment. The boolean is false when the
// fragment should not become a candidate at all.
func (r *Resolver) Resolve(path string, fragment model.CodeFragment, surrounding string) (Decision, bool) {
	if r.files.Exists(path) {
		if cue := deleteCue(path, surrounding); cue != "" {
			return Decision{Type: model.Delete, Cue: cue}, true
		}
		return Decision{Type: model.Update}, true
	}
	if strings.TrimSpace(fragment.Content) != "" {
		return Decision{Type: model.Create}, true
	}
	return Decision{}, false
}

// deleteCue finds a delete or remove verb aimed at the file itself: followed
// by the file's name or the word "file" ("delete `old.js`", "remove this
// file"), or closing a passive clause about it ("old.js can be removed").
// A verb aimed at something inside the file ("remove the unused import")
// is not a cue.
func deleteCue(filename, text string) string {
	target := `(?:\bfiles?\b|` + namePattern(filename) + `)`
	quote := "[`'\"*]*"
	patterns := []string{
		`(?i)\b` + deleteWords + `\s+(?:(?:the|this|that|these)\s+)?(?:\w+\s+)?` + quote + target + quote,
		`(?i)` + quote + target + quote + `\s+(?:\w+\s+){0,2}?(?:be|been|is|are|get)\s+(?:\w+ly\s+)?` + deleteWords,
	}
	for _, p := range patterns {
		if m := regexp.MustCompile(p).FindString(text); m != "" {
			return m
		}
	}
	return ""
}

// namePattern matches the full path or its base name as a whole word.
func namePattern(filename string) string {
	names := []string{wholeWord(filename)}
	if base := path.Base(filename); base != filename {
		names = append(names, wholeWord(base))
	}
	return `(?:` + strings.Join(names, "|") + `)`
}

func wholeWord(name string) string {
	p := regexp.QuoteMeta(name)
	r := []rune(name)
	if len(r) == 0 {
		return p
	}
	if isWord(r[0]) {
		p = `\b` + p
	}
	if isWord(r[len(r)-1]) {
		p += `\b`
	}
	return p
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
