// Package rules models recommendation policies as ordered (predicate, value)
// pairs.
package rules

import "github.com/samber/lo"

type Rule[In, Out any] struct {
	When func(In) bool
	Then Out
}

// Ladder evaluates its rules top-down; the first matching rule wins.
type Ladder[In, Out any] struct {
	rules    []Rule[In, Out]
	fallback Out
}

func NewLadder[In, Out any](fallback Out, rules ...Rule[In, Out]) *Ladder[In, Out] {
	return &Ladder[In, Out]{rules: rules, fallback: fallback}
}

func (l *Ladder[In, Out]) Eval(in In) Out {
	for _, r := range l.rules {
		if r.When(in) {
			return r.Then
		}
	}
	return l.fallback
}

// Collect returns the values of all matching rules in rule order.
// The result is never nil.
func Collect[In, Out any](in In, rules ...Rule[In, []Out]) []Out {
	matched := lo.Filter(rules, func(r Rule[In, []Out], _ int) bool {
		return r.When(in)
	})
	return append(make([]Out, 0), lo.FlatMap(matched, func(r Rule[In, []Out], _ int) []Out {
		return r.Then
	})...)
}
