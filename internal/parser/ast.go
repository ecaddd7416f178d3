package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// fencedBlock is a fenced code block found by walking the markdown AST.
type fencedBlock struct {
	// Lang is the first word of the info string (e.g., "go", "diff").
	Lang string
	// Comment is whatever follows the language on the opening fence line.
	Comment string
	// Content is the raw text inside the block, without a trailing newline.
	Content string
	// Offset is the byte offset of the opening fence.
	Offset int
	// End is the byte offset just past the closing fence line.
	End int
}

// extractFencedBlocks uses a markdown AST to find all fenced code blocks,
// including those nested in lists and block quotes.
func extractFencedBlocks(source []byte) ([]fencedBlock, error) {
	var blocks []fencedBlock
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fenced, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := fenced.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}

		var block fencedBlock
		contentStart := lines.At(0).Start
		block.Offset = fenceOffset(source, contentStart)
		if fenced.Info != nil {
			info := string(fenced.Info.Segment.Value(source))
			block.Lang, block.Comment = splitInfo(info)
			block.Offset = fenceOffset(source, fenced.Info.Segment.Start)
		}

		var content bytes.Buffer
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = strings.TrimRight(content.String(), "\n")
		block.End = closingFenceEnd(source, lines.At(lines.Len()-1).Stop)

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}
	return blocks, nil
}

// fenceOffset walks back from pos to the start of the fence that opens the
// block containing pos.
func fenceOffset(source []byte, pos int) int {
	if pos > len(source) {
		pos = len(source)
	}
	head := source[:pos]
	idx := bytes.LastIndex(head, []byte("```"))
	if tilde := bytes.LastIndex(head, []byte("~~~")); tilde > idx {
		idx = tilde
	}
	if idx < 0 {
		return pos
	}
	// Step back over the rest of a longer fence run.
	for idx > 0 && (source[idx-1] == '`' || source[idx-1] == '~') {
		idx--
	}
	return idx
}

// closingFenceEnd finds the end of the fence line closing a block whose
// content stops at pos. An unclosed block ends with the source.
func closingFenceEnd(source []byte, pos int) int {
	if pos > len(source) {
		return len(source)
	}
	rest := source[pos:]
	idx := bytes.Index(rest, []byte("```"))
	if tilde := bytes.Index(rest, []byte("~~~")); tilde >= 0 && (idx < 0 || tilde < idx) {
		idx = tilde
	}
	if idx < 0 {
		return len(source)
	}
	end := pos + idx
	if nl := bytes.IndexByte(source[end:], '\n'); nl >= 0 {
		return end + nl
	}
	return len(source)
}

// splitInfo separates a fence info string into the language and a trailing
// comment, e.g. "go // cmd/main.go" or "js:src/app.js".
func splitInfo(info string) (lang, comment string) {
	info = strings.TrimSpace(info)
	if info == "" {
		return "", ""
	}
	fields := strings.Fields(info)
	lang = fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(info, lang))
	if i := strings.Index(lang, ":"); i > 0 {
		rest = strings.TrimSpace(lang[i+1:] + " " + rest)
		lang = lang[:i]
	}
	return strings.ToLower(lang), stripCommentMarkers(rest)
}

var commentMarkers = []string{"<!--", "-->", "/*", "*/", "//", "#", "--", ";"}

func stripCommentMarkers(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, m := range commentMarkers {
			if strings.HasPrefix(s, m) {
				s = strings.TrimSpace(strings.TrimPrefix(s, m))
				changed = true
			}
			if strings.HasSuffix(s, m) {
				s = strings.TrimSpace(strings.TrimSuffix(s, m))
				changed = true
			}
		}
	}
	return s
}
