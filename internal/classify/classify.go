// Package classify scores code fragments as actionable edits, examples or
// explanations.
package classify

import (
	"strings"

	"github.com/sokinpui/aipatch/internal/config"
	"github.com/sokinpui/aipatch/model"
)

// Class is the verdict for a fragment.
type Class int

const (
	Explanatory Class = iota
	Exemplar
	Actionable
)

func (c Class) String() string {
	switch c {
	case Actionable:
		return "actionable"
	case Exemplar:
		return "exemplar"
	default:
		return "explanatory"
	}
}

// Input is a fragment plus the response text around it.
type Input struct {
	Fragment model.CodeFragment
	// ExplicitFilename is set when the response itself names the target file.
	ExplicitFilename bool
	Before           string
	After            string
}

func (in Input) context() string {
	return strings.ToLower(in.Before + "\n" + in.After)
}

// Result is a scored classification.
type Result struct {
	Class      Class
	Score      int
	Confidence int
	// Reasoning lists the labels of the signals that fired, in signal order.
	Reasoning []string
}

// Classifier scores fragments by summing weighted signals.
type Classifier struct {
	signals   []Signal
	threshold int
	window    int
}

// New creates a classifier. With no signals, DefaultSignals is used.
func New(th config.Thresholds, signals ...Signal) *Classifier {
	th = th.WithDefaults()
	if len(signals) == 0 {
		signals = DefaultSignals(th.FunctionScopeDistance, th.SmallFunctionMaxLines)
	}
	return &Classifier{
		signals:   signals,
		threshold: th.ActionableScore,
		window:    th.ClassifyWindow,
	}
}

// InputFor cuts the context windows around fragment out of response.
func (c *Classifier) InputFor(fragment model.CodeFragment, response string, explicitFilename bool) Input {
	start := clamp(fragment.SourceOffset, 0, len(response))
	end := clamp(fragment.SourceEnd, start, len(response))
	return Input{
		Fragment:         fragment,
		ExplicitFilename: explicitFilename,
		Before:           response[clamp(start-c.window, 0, start):start],
		After:            response[end:clamp(end+c.window, end, len(response))],
	}
}

// Classify scores in. All signals are evaluated, so the same input always
// yields the same score and reasoning.
func (c *Classifier) Classify(in Input) Result {
	var res Result
	for _, s := range c.signals {
		if s.Match(in) {
			res.Score += s.Weight
			res.Reasoning = append(res.Reasoning, s.Label())
		}
	}
	res.Confidence = clamp(res.Score, 0, 100)

	ctx := in.context()
	switch {
	case res.Score >= c.threshold:
		res.Class = Actionable
	case strings.Contains(ctx, "example") || strings.Contains(ctx, "current"):
		res.Class = Exemplar
	default:
		res.Class = Explanatory
	}
	return res
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
