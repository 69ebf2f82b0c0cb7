// Package check evaluates named predicates against responses and tallies
// the outcomes. A failed check is only ever counted; it never stops the
// caller.
package check

import (
	"time"

	"prload/internal/runner"
	"prload/internal/stats"
)

// Check is a named predicate over a response.
type Check struct {
	Name string
	Pred func(*runner.Response) bool
}

// StatusIs passes when the response carries exactly code. A request that
// never got a response fails it.
func StatusIs(name string, code int) Check {
	return Check{Name: name, Pred: func(r *runner.Response) bool {
		return r.Err == nil && r.Status == code
	}}
}

// DurationUnder passes when the request finished in less than d.
func DurationUnder(name string, d time.Duration) Check {
	return Check{Name: name, Pred: func(r *runner.Response) bool {
		return r.Duration < d
	}}
}

// Run evaluates every check (no short-circuit), records each outcome in st
// and reports whether all of them passed. A panicking predicate counts as a
// failure.
func Run(st *stats.Stats, res *runner.Response, checks ...Check) bool {
	all := true
	for _, c := range checks {
		ok := eval(c, res)
		st.Check(c.Name).Add(ok)
		all = all && ok
	}
	return all
}

func eval(c Check, res *runner.Response) (ok bool) {
	if c.Pred == nil || res == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return c.Pred(res)
}
