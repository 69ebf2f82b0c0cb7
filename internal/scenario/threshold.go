package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Op is a threshold comparison.
type Op string

const (
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
)

// Threshold is a parsed rule such as http_req_duration p(95)<500.
type Threshold struct {
	Metric string
	Expr   string

	// Agg is the summary value the rule reads: avg, min, med, max, count,
	// rate or p(N).
	Agg   string
	Op    Op
	Value float64
}

var thresholdRe = regexp.MustCompile(`^\s*(avg|min|med|max|count|rate|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseThreshold parses one expression for metric.
func ParseThreshold(metric, expr string) (Threshold, error) {
	m := thresholdRe.FindStringSubmatch(expr)
	if m == nil {
		return Threshold{}, fmt.Errorf("%w: cannot parse threshold %q on %s", ErrInvalid, expr, metric)
	}

	agg := m[1]
	if strings.HasPrefix(agg, "p(") {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p < 0 || p > 100 {
			return Threshold{}, fmt.Errorf("%w: percentile out of range in %q", ErrInvalid, expr)
		}
		agg = PercentileKey(p)
	}

	v, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("%w: bad threshold value in %q: %v", ErrInvalid, expr, err)
	}

	return Threshold{
		Metric: metric,
		Expr:   expr,
		Agg:    agg,
		Op:     Op(m[3]),
		Value:  v,
	}, nil
}

// PercentileKey renders the summary key for a percentile, e.g. "p(95)".
func PercentileKey(p float64) string {
	return "p(" + strconv.FormatFloat(p, 'f', -1, 64) + ")"
}

// Percentile extracts N from a "p(N)" aggregation.
func (t Threshold) Percentile() (float64, bool) {
	if !strings.HasPrefix(t.Agg, "p(") {
		return 0, false
	}
	p, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(t.Agg, "p("), ")"), 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// Evaluate applies the rule to a metric's summary values. A missing value
// fails the rule.
func (t Threshold) Evaluate(values map[string]float64) bool {
	got, ok := values[t.Agg]
	if !ok {
		return false
	}
	switch t.Op {
	case OpLess:
		return got < t.Value
	case OpLessEqual:
		return got <= t.Value
	case OpGreater:
		return got > t.Value
	case OpGreaterEqual:
		return got >= t.Value
	case OpEqual:
		return got == t.Value
	case OpNotEqual:
		return got != t.Value
	}
	return false
}
