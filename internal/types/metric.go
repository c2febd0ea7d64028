package types

// MetricType determines which handler computes usage for a metric
type MetricType string

const (
	MetricTypeCounter MetricType = "counter"
	MetricTypeGauge   MetricType = "gauge"
	MetricTypeRate    MetricType = "rate"
)

// AggregationType is the aggregation applied over matching events
type AggregationType string

const (
	AggregationCount   AggregationType = "count"
	AggregationSum     AggregationType = "sum"
	AggregationMax     AggregationType = "max"
	AggregationMin     AggregationType = "min"
	AggregationUnique  AggregationType = "unique"
	AggregationLatest  AggregationType = "latest"
	AggregationAverage AggregationType = "average"
)

// MetricGranularity is the bucket width for continuous aggregates and the
// rolling window for rate metrics
type MetricGranularity string

const (
	GranularityMinute  MetricGranularity = "minute"
	GranularityHour    MetricGranularity = "hour"
	GranularityDay     MetricGranularity = "day"
	GranularityMonth   MetricGranularity = "month"
	GranularityQuarter MetricGranularity = "quarter"
	GranularityYear    MetricGranularity = "year"
	GranularityTotal   MetricGranularity = "total"
)

// MetricEventType applies to gauge metrics only: whether events carry the
// full level or a delta against the previous level
type MetricEventType string

const (
	MetricEventTypeTotal MetricEventType = "total"
	MetricEventTypeDelta MetricEventType = "delta"
)

// allowedAggregations is the (metric_type, usage_aggregation) matrix.
// rate disallows unique; gauge only supports level style aggregations.
var allowedAggregations = map[MetricType]map[AggregationType]bool{
	MetricTypeCounter: {
		AggregationCount:   true,
		AggregationSum:     true,
		AggregationMax:     true,
		AggregationMin:     true,
		AggregationUnique:  true,
		AggregationAverage: true,
	},
	MetricTypeGauge: {
		AggregationMax:     true,
		AggregationLatest:  true,
		AggregationAverage: true,
	},
	MetricTypeRate: {
		AggregationCount:   true,
		AggregationSum:     true,
		AggregationMax:     true,
		AggregationAverage: true,
	},
}

// IsAggregationAllowed reports whether the aggregation is valid for the
// metric type
func IsAggregationAllowed(metricType MetricType, agg AggregationType) bool {
	allowed, ok := allowedAggregations[metricType]
	if !ok {
		return false
	}
	return allowed[agg]
}

func (t MetricType) Validate() bool {
	_, ok := allowedAggregations[t]
	return ok
}

func (g MetricGranularity) Validate() bool {
	switch g {
	case GranularityMinute, GranularityHour, GranularityDay, GranularityMonth,
		GranularityQuarter, GranularityYear, GranularityTotal:
		return true
	}
	return false
}

func (e MetricEventType) Validate() bool {
	return e == MetricEventTypeTotal || e == MetricEventTypeDelta
}
