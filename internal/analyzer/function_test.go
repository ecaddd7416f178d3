package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sokinpui/aipatch/model"
)

func TestLocateFunction(t *testing.T) {
	tests := []struct {
		name   string
		source string
		fn     string
		want   model.LineRange
		found  bool
	}{
		{
			name:   "javascript",
			source: mathJS,
			fn:     "sub",
			want:   model.LineRange{Start: 5, End: 7},
			found:  true,
		},
		{
			name:   "go method with braces in strings and comments",
			source: "package s\n\nfunc (s *S) Run() error {\n\tif s.x {\n\t\tfmt.Println(\"}\") // }\n\t}\n\treturn nil\n}\n\nfunc other() {}",
			fn:     "Run",
			want:   model.LineRange{Start: 3, End: 8},
			found:  true,
		},
		{
			name:   "declaration without a known keyword",
			source: "int\nmain(void)\n{\n  return 0;\n}",
			fn:     "main",
			found:  false,
		},
		{
			name:   "python indentation",
			source: "import os\n\ndef greet(name):\n    msg = 'hi ' + name\n\n    return msg\n\ndef other():\n    pass",
			fn:     "greet",
			want:   model.LineRange{Start: 3, End: 6},
			found:  true,
		},
		{
			name:   "single line arrow function",
			source: "const a = 1;\nconst double = (x) => x * 2;\nconst b = 2;",
			fn:     "double",
			want:   model.LineRange{Start: 2, End: 2},
			found:  true,
		},
		{
			name:   "calls are not definitions",
			source: "const total = sub(3, 1);",
			fn:     "sub",
			found:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LocateFunction(strings.Split(tt.source, "\n"), tt.fn)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestExtendOverComments(t *testing.T) {
	lines := strings.Split("x := 1\n\n// Add sums.\n// It never fails.\nfunc Add(a, b int) int {\n\treturn a + b\n}", "\n")
	rng, ok := LocateFunction(lines, "Add")
	assert.True(t, ok)
	assert.Equal(t, model.LineRange{Start: 5, End: 7}, rng)
	assert.Equal(t, model.LineRange{Start: 3, End: 7}, ExtendOverComments(lines, rng))

	assert.True(t, startsWithComment("\n// Add sums.\nfunc Add() {}"))
	assert.False(t, startsWithComment("func Add() {}"))
}
