package diff

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/aipatch/model"
)

func old(text string) model.DiffLine  { return model.DiffLine{Kind: model.Old, Text: text} }
func neu(text string) model.DiffLine  { return model.DiffLine{Kind: model.New, Text: text} }
func same(text string) model.DiffLine { return model.DiffLine{Kind: model.Same, Text: text} }

func TestLines(t *testing.T) {
	tests := []struct {
		name string
		old  []string
		new  []string
		want []model.DiffLine
	}{
		{
			name: "both empty",
			want: []model.DiffLine{},
		},
		{
			name: "empty old is all insertion",
			new:  []string{"a", "b"},
			want: []model.DiffLine{neu("a"), neu("b")},
		},
		{
			name: "empty new is all deletion",
			old:  []string{"a", "b"},
			want: []model.DiffLine{old("a"), old("b")},
		},
		{
			name: "identical",
			old:  []string{"a", "b"},
			new:  []string{"a", "b"},
			want: []model.DiffLine{same("a"), same("b")},
		},
		{
			name: "append only",
			old:  []string{"a", "b"},
			new:  []string{"a", "b", "c", "d"},
			want: []model.DiffLine{same("a"), same("b"), neu("c"), neu("d")},
		},
		{
			name: "deleted lines before a match",
			old:  []string{"a", "x", "y", "b"},
			new:  []string{"a", "b"},
			want: []model.DiffLine{same("a"), old("x"), old("y"), same("b")},
		},
		{
			name: "insertion in the middle",
			old:  []string{"a", "b"},
			new:  []string{"a", "n", "b"},
			want: []model.DiffLine{same("a"), neu("n"), same("b")},
		},
		{
			name: "trailing old lines removed",
			old:  []string{"a", "b", "c"},
			new:  []string{"a"},
			want: []model.DiffLine{same("a"), old("b"), old("c")},
		},
		{
			name: "blank line only matches the next old line",
			old:  []string{"a", "b", "", "c"},
			new:  []string{"a", "", "b", "", "c"},
			want: []model.DiffLine{same("a"), neu(""), same("b"), same(""), same("c")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lines(tt.old, tt.new)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLinesWhitespaceOnlyChanges(t *testing.T) {
	oldLines := []string{"function add(a,b){", "  return a+b;", "}"}
	newLines := []string{"function add(a, b) {", "  return a + b;", "}"}

	got := Lines(oldLines, newLines)
	assert.Equal(t, []model.DiffLine{
		old("function add(a,b){"), neu("function add(a, b) {"),
		old("  return a+b;"), neu("  return a + b;"),
		old("}"), neu("}"),
	}, got)
	assert.Zero(t, Count(got).Unchanged)
	assert.Equal(t, newLines, NewLines(got))
	assert.Equal(t, oldLines, OldLines(got))
}

func TestStreamFuzzyFlagIsSticky(t *testing.T) {
	s := NewStream([]string{"\tone()", "two()", "three()"})
	assert.False(t, s.Fuzzy())

	assert.Equal(t, []model.DiffLine{old("\tone()"), neu("    one()")}, s.Push("    one()"))
	assert.True(t, s.Fuzzy())

	// Identical text is still reported as a pair once the flag is set.
	assert.Equal(t, []model.DiffLine{old("two()"), neu("two()")}, s.Push("two()"))
	assert.Equal(t, []model.DiffLine{old("three()")}, s.Close())
}

func TestStreamNoFuzzyWithoutWhitespaceDivergence(t *testing.T) {
	s := NewStream([]string{"a()", "b()"})
	assert.Equal(t, []model.DiffLine{neu("c()")}, s.Push("c()"))
	assert.False(t, s.Fuzzy())
	assert.Equal(t, []model.DiffLine{old("a()"), same("b()")}, s.Push("b()"))
}

func TestStreamFeed(t *testing.T) {
	oldLines := []string{"package main", "", "func main() {", "}"}
	s := NewStream(oldLines)

	var got []model.DiffLine
	for _, chunk := range []string{"pack", "age main\n\nfunc ma", "in() {\n\tprintln(1)\r\n", "}"} {
		got = append(got, s.Feed(chunk)...)
	}
	got = append(got, s.Close()...)

	assert.Equal(t, []model.DiffLine{
		same("package main"), same(""), same("func main() {"), neu("\tprintln(1)"), same("}"),
	}, got)
	assert.Nil(t, s.Close())
	assert.Nil(t, s.Push("late"))
}

func TestLinesRoundTrip(t *testing.T) {
	alphabet := []string{"a", "b", "c", " a", "a ", "", "  ", "}", "\t}", "return x", "return  x"}
	rng := rand.New(rand.NewSource(7))
	gen := func() []string {
		n := rng.Intn(12)
		lines := make([]string, n)
		for i := range lines {
			lines[i] = alphabet[rng.Intn(len(alphabet))]
		}
		return lines
	}

	for i := 0; i < 2000; i++ {
		oldLines, newLines := gen(), gen()
		got := Lines(oldLines, newLines)

		require.Equal(t, oldLines, OldLines(got), "old %q new %q", oldLines, newLines)
		require.Equal(t, newLines, NewLines(got), "old %q new %q", oldLines, newLines)

		c := Count(got)
		require.Equal(t, len(oldLines), c.Removed+c.Unchanged)
		require.Equal(t, len(newLines), c.Added+c.Unchanged)
	}
}

func TestLinesDoesNotModifyInput(t *testing.T) {
	oldLines := strings.Split("a\nb\nc", "\n")
	snapshot := append([]string(nil), oldLines...)
	Lines(oldLines, []string{"c"})
	assert.Equal(t, snapshot, oldLines)
}
