// Package diff aligns an old line sequence with a new one as the new lines
// arrive, without looking back at output already emitted.
//
// The alignment is order preserving and linear in practice, not a minimum
// edit distance diff: each new line is matched against the old lines not yet
// consumed, and every old line skipped to reach a match is reported as
// removed.
package diff

import (
	"strings"
	"unicode"

	"github.com/sokinpui/aipatch/model"
)

// Stream computes a diff incrementally. The zero value is not usable; create
// one with NewStream.
type Stream struct {
	old    []string
	cursor int
	// fuzzy is set once a line has matched only after ignoring whitespace.
	// From then on every match is made on whitespace-insensitive text.
	fuzzy   bool
	partial strings.Builder
	closed  bool
}

// NewStream starts a diff against old. The slice is not modified.
func NewStream(old []string) *Stream {
	return &Stream{old: old}
}

// Fuzzy reports whether whitespace-insensitive matching has been switched on.
func (s *Stream) Fuzzy() bool {
	return s.fuzzy
}

// Push aligns the next new line and returns the diff lines it settles.
func (s *Stream) Push(line string) []model.DiffLine {
	if s.closed {
		return nil
	}
	if s.cursor >= len(s.old) {
		return []model.DiffLine{{Kind: model.New, Text: line}}
	}

	offset, exact := s.match(line)
	if offset < 0 {
		return []model.DiffLine{{Kind: model.New, Text: line}}
	}

	out := make([]model.DiffLine, 0, offset+2)
	for _, removed := range s.old[s.cursor : s.cursor+offset] {
		out = append(out, model.DiffLine{Kind: model.Old, Text: removed})
	}
	s.cursor += offset

	matched := s.old[s.cursor]
	s.cursor++
	if exact {
		return append(out, model.DiffLine{Kind: model.Same, Text: matched})
	}
	return append(out,
		model.DiffLine{Kind: model.Old, Text: matched},
		model.DiffLine{Kind: model.New, Text: line},
	)
}

// Feed accepts an arbitrary chunk of generated text, pushing every line it
// completes. A trailing partial line is held until the next Feed or Close.
func (s *Stream) Feed(chunk string) []model.DiffLine {
	var out []model.DiffLine
	for {
		i := strings.IndexByte(chunk, '\n')
		if i < 0 {
			s.partial.WriteString(chunk)
			return out
		}
		s.partial.WriteString(strings.TrimSuffix(chunk[:i], "\r"))
		line := s.partial.String()
		s.partial.Reset()
		out = append(out, s.Push(line)...)
		chunk = chunk[i+1:]
	}
}

// Close ends the new sequence. A pending partial line from Feed is pushed and
// every old line not yet consumed is reported as removed.
func (s *Stream) Close() []model.DiffLine {
	if s.closed {
		return nil
	}
	var out []model.DiffLine
	if s.partial.Len() > 0 {
		out = append(out, s.Push(s.partial.String())...)
		s.partial.Reset()
	}
	for _, removed := range s.old[s.cursor:] {
		out = append(out, model.DiffLine{Kind: model.Old, Text: removed})
	}
	s.cursor = len(s.old)
	s.closed = true
	return out
}

// match finds line among the unconsumed old lines. It returns the offset of
// the match from the cursor (-1 for none) and whether it was exact.
func (s *Stream) match(line string) (int, bool) {
	remaining := s.old[s.cursor:]

	// A blank line only ever matches the next old line; matching a blank
	// further down would delete everything in between.
	if strings.TrimSpace(line) == "" {
		head := remaining[0]
		switch {
		case strings.TrimSpace(head) != "":
			return -1, false
		case !s.fuzzy && head == line:
			return 0, true
		default:
			s.fuzzy = s.fuzzy || head != line
			return 0, false
		}
	}

	if !s.fuzzy {
		for i, old := range remaining {
			if old == line {
				return i, true
			}
		}
	}

	key := squash(line)
	for i, old := range remaining {
		if squash(old) == key {
			s.fuzzy = true
			return i, false
		}
	}
	return -1, false
}

// squash drops all whitespace so lines differing only in spacing compare
// equal.
func squash(line string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, line)
}

// Lines diffs two complete line sequences.
func Lines(old, new []string) []model.DiffLine {
	s := NewStream(old)
	out := make([]model.DiffLine, 0, len(old)+len(new))
	for _, line := range new {
		out = append(out, s.Push(line)...)
	}
	return append(out, s.Close()...)
}

// OldLines returns the old sequence recorded in a diff.
func OldLines(lines []model.DiffLine) []string {
	return pick(lines, model.Old)
}

// NewLines returns the new sequence recorded in a diff.
func NewLines(lines []model.DiffLine) []string {
	return pick(lines, model.New)
}

func pick(lines []model.DiffLine, kind model.DiffKind) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Kind == kind || l.Kind == model.Same {
			out = append(out, l.Text)
		}
	}
	return out
}

// Counts tallies a diff by kind.
type Counts struct {
	Added     int
	Removed   int
	Unchanged int
}

// Count tallies lines.
func Count(lines []model.DiffLine) Counts {
	var c Counts
	for _, l := range lines {
		switch l.Kind {
		case model.New:
			c.Added++
		case model.Old:
			c.Removed++
		case model.Same:
			c.Unchanged++
		}
	}
	return c
}
