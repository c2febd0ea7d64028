package metric

import (
	"fmt"

	"github.com/samber/lo"
)

// MatchesEvent reports whether an event's properties pass every numeric and
// categorical filter on the metric. Filters compose as an AND conjunction.
func (m *Metric) MatchesEvent(eventName string, properties map[string]interface{}) bool {
	if m.EventName != eventName {
		return false
	}
	for _, f := range m.NumericFilters {
		v, ok := toFloat(properties[f.PropertyName])
		if !ok || !f.matches(v) {
			return false
		}
	}
	for _, f := range m.CategoricalFilters {
		raw, ok := properties[f.PropertyName]
		if !ok {
			return false
		}
		if !f.matches(fmt.Sprintf("%v", raw)) {
			return false
		}
	}
	return true
}

func (f NumericFilter) matches(v float64) bool {
	switch f.Operator {
	case NumericGT:
		return v > f.Value
	case NumericGTE:
		return v >= f.Value
	case NumericLT:
		return v < f.Value
	case NumericLTE:
		return v <= f.Value
	case NumericEQ:
		return v == f.Value
	}
	return false
}

func (f CategoricalFilter) matches(v string) bool {
	contained := lo.Contains(f.Values, v)
	if f.Operator == CategoricalIsNotIn {
		return !contained
	}
	return contained
}

func toFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
