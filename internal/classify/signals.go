package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Signal names, as they appear in a result's reasoning.
const (
	SignalExplicitFilename = "explicit filename"
	SignalActionHint       = "explicit action hint"
	SignalCreateIntent     = "context asks to create"
	SignalUpdateIntent     = "context asks to update"
	SignalFixIntent        = "context asks to fix"
	SignalFunctionScope    = "function-scoped edit"
	SignalSmallFunction    = "single small function"
	SignalModuleStructure  = "module structure"
	SignalExampleContext   = "example context"
	SignalPlaceholder      = "placeholder content"
)

// Signal is one weighted observation about a fragment.
type Signal struct {
	Name   string
	Weight int
	Match  func(in Input) bool
}

// Label renders the signal the way it is recorded in reasoning.
func (s Signal) Label() string {
	return fmt.Sprintf("%s (%+d)", s.Name, s.Weight)
}

var (
	createWords  = regexp.MustCompile(`\b(?:creat\w*|add|adds|added|adding|implement\w*)\b`)
	updateWords  = regexp.MustCompile(`\b(?:updat\w*|modif\w*|chang\w*)\b`)
	fixWords     = regexp.MustCompile(`\b(?:fix\w*|complet\w*|replac\w*)\b`)
	exampleWords = regexp.MustCompile(`\bexamples?\b|\bhere(?:'|’)?s how\b|\bhere is how\b|\bfor instance\b`)

	functionDeclRegex = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\b` +
		`|^\s*(?:async\s+)?def\s+\w+\s*\(` +
		`|^\s*func\s+(?:\([^)]*\)\s*)?\w+\s*\(` +
		`|^\s*(?:pub\s+)?fn\s+\w+` +
		`|^\s*(?:const|let|var)\s+\w+\s*=\s*(?:async\s*)?(?:\([^)]*\)|\w+)\s*=>` +
		`|^\s*(?:(?:public|private|protected|static|final|override|virtual)\s+)+[\w<>\[\],]+\s+\w+\s*\([^)]*\)\s*(?:throws\s+[\w,\s]+)?\{?\s*$`)
	moduleRegex = regexp.MustCompile(`(?m)^\s*(?:import\b|export\b|package\s+\w+|from\s+\S+\s+import\b|#include\b|using\s+[\w.]+;|module\.exports\b)` +
		`|\brequire\(\s*['"]`)
	placeholderRegex = regexp.MustCompile(`(?i)\byour[_ -]?(?:code|logic|api[_ -]?key|token|implementation)[_ -]?here\b` +
		`|\bplaceholder\b|\blorem ipsum\b|<your[^>]*>` +
		`|(?://|#|/\*)\s*\.\.\.` +
		`|\.\.\.\s*(?:rest|existing|other|more|remaining)\b` +
		`|\bTODO:?\s*implement\b`)
)

// DefaultSignals returns the built-in signals. Every signal is evaluated for
// every fragment.
func DefaultSignals(functionScopeDistance, smallFunctionMaxLines int) []Signal {
	functionScope := regexp.MustCompile(fmt.Sprintf(
		`\bfunction\b[^.\n]{0,%[1]d}?\b(?:in|inside)\b|\b(?:in|inside)\b[^.\n]{0,%[1]d}?\bfunction\b`,
		functionScopeDistance))

	return []Signal{
		{Name: SignalExplicitFilename, Weight: 30, Match: func(in Input) bool {
			return in.ExplicitFilename
		}},
		{Name: SignalActionHint, Weight: 35, Match: func(in Input) bool {
			switch in.Fragment.ActionHint {
			case "create", "update", "modify":
				return true
			}
			return false
		}},
		{Name: SignalCreateIntent, Weight: 25, Match: contextMatches(createWords)},
		{Name: SignalUpdateIntent, Weight: 25, Match: contextMatches(updateWords)},
		{Name: SignalFixIntent, Weight: 30, Match: contextMatches(fixWords)},
		{Name: SignalFunctionScope, Weight: 25, Match: contextMatches(functionScope)},
		{Name: SignalSmallFunction, Weight: 25, Match: func(in Input) bool {
			return IsSmallFunction(in.Fragment.Content, smallFunctionMaxLines)
		}},
		{Name: SignalModuleStructure, Weight: 15, Match: func(in Input) bool {
			return moduleRegex.MatchString(in.Fragment.Content)
		}},
		{Name: SignalExampleContext, Weight: -20, Match: contextMatches(exampleWords)},
		{Name: SignalPlaceholder, Weight: -10, Match: func(in Input) bool {
			return placeholderRegex.MatchString(in.Fragment.Content)
		}},
	}
}

func contextMatches(re *regexp.Regexp) func(Input) bool {
	return func(in Input) bool {
		return re.MatchString(in.context())
	}
}

// IsSmallFunction reports whether content is a single function declaration
// of fewer than maxLines lines with no import or package boilerplate.
func IsSmallFunction(content string, maxLines int) bool {
	content = strings.TrimSpace(content)
	if content == "" {
		return false
	}
	if strings.Count(content, "\n")+1 >= maxLines {
		return false
	}
	if moduleRegex.MatchString(content) {
		return false
	}
	return len(functionDeclRegex.FindAllStringIndex(content, -1)) == 1
}

// FunctionName returns the name declared by the first function in content.
func FunctionName(content string) string {
	loc := functionDeclRegex.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	decl := strings.TrimSpace(content[loc[0]:loc[1]])
	tail := content[loc[1]:min(len(content), loc[1]+80)]
	for _, text := range []string{decl, decl + tail} {
		for _, re := range functionNameRegexes {
			if m := re.FindStringSubmatch(text); len(m) > 1 {
				return m[1]
			}
		}
	}
	return ""
}

var functionNameRegexes = []*regexp.Regexp{
	regexp.MustCompile(`function\s*\*?\s*(\w+)`),
	regexp.MustCompile(`def\s+(\w+)`),
	regexp.MustCompile(`func\s+(?:\([^)]*\)\s*)?(\w+)`),
	regexp.MustCompile(`fn\s+(\w+)`),
	regexp.MustCompile(`(?:const|let|var)\s+(\w+)\s*=`),
	regexp.MustCompile(`(\w+)\s*\([^)]*\)\s*(?:throws\s+[\w,\s]+)?\{?\s*$`),
}
