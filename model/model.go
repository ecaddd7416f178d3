package model

import "fmt"

// CodeFragment is a block of code text extracted from a response before it
// has been resolved to a file.
type CodeFragment struct {
	Content  string `json:"content"`
	Language string `json:"language,omitempty"`
	Filename string `json:"filename,omitempty"`
	// ActionHint is the lower-cased verb from a "Create path:" style header.
	ActionHint string `json:"action_hint,omitempty"`
	// InlineComment is the trailing text on the opening fence line, if any.
	InlineComment string `json:"inline_comment,omitempty"`
	// SourceOffset is the byte offset of the block in the response text.
	SourceOffset int `json:"source_offset"`
	// SourceEnd is the byte offset just past the closing fence.
	SourceEnd int `json:"source_end"`
}

// ChangeType is the kind of change a candidate makes to its file.
type ChangeType int

const (
	Create ChangeType = iota
	Update
	Delete
)

func (c ChangeType) String() string {
	switch c {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ChangeType) UnmarshalText(text []byte) error {
	for _, t := range []ChangeType{Create, Update, Delete} {
		if t.String() == string(text) {
			*c = t
			return nil
		}
	}
	return fmt.Errorf("unknown change type %q", text)
}

// LineRange is an inclusive, 1-based range of lines. A range whose End is
// Start-1 is an insertion point before Start.
type LineRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsInsertion reports whether the range selects no lines.
func (r LineRange) IsInsertion() bool {
	return r.End < r.Start
}

// FileChangeCandidate is a fragment that has been resolved to a target path,
// a change type and a confidence score.
type FileChangeCandidate struct {
	Path            string     `json:"path"`
	Content         string     `json:"content"`
	ChangeType      ChangeType `json:"change_type"`
	OriginalContent string     `json:"original_content,omitempty"`
	Confidence      int        `json:"confidence"`
	Reasoning       []string   `json:"reasoning"`
	LineRange       *LineRange `json:"line_range,omitempty"`
}

// DiffKind tags a line of a diff.
type DiffKind int

const (
	Old DiffKind = iota
	New
	Same
)

func (k DiffKind) String() string {
	switch k {
	case Old:
		return "old"
	case New:
		return "new"
	case Same:
		return "same"
	default:
		return fmt.Sprintf("DiffKind(%d)", int(k))
	}
}

func (k DiffKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DiffKind) UnmarshalText(text []byte) error {
	for _, t := range []DiffKind{Old, New, Same} {
		if t.String() == string(text) {
			*k = t
			return nil
		}
	}
	return fmt.Errorf("unknown diff kind %q", text)
}

// DiffLine is one line of a diff.
type DiffLine struct {
	Kind DiffKind `json:"kind"`
	Text string   `json:"text"`
}

// EditResult is the outcome of applying an edit to some content.
type EditResult struct {
	DiffLines  []DiffLine `json:"diff_lines"`
	NewContent string     `json:"new_content"`
	Summary    string     `json:"summary"`
	Confidence int        `json:"confidence"`
}

// Analysis counts how the blocks of a response were classified.
type Analysis struct {
	TotalBlocks      int `json:"total_blocks"`
	ActionableBlocks int `json:"actionable_blocks"`
	Examples         int `json:"examples"`
	Explanations     int `json:"explanations"`
}

// AnalysisResult is returned by the analysis entry point.
type AnalysisResult struct {
	FileChanges []FileChangeCandidate `json:"file_changes"`
	Analysis    Analysis              `json:"analysis"`
}

// Summary holds the results of an operation for display.
type Summary struct {
	Created  []string
	Modified []string
	Deleted  []string
	Failed   []string
	Message  string
	// Errors maps a failed path to the error that stopped it.
	Errors map[string]error
	// Analysis is set when the summary comes from a response analysis.
	Analysis *Analysis
}
