package clickhouse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/types"
)

// Aggregator builds the ClickHouse query for one aggregation type over the
// raw events table. Queries over closed periods should prefer the
// usage_buckets aggregates; these run against raw events for live usage and
// for aggregations the buckets cannot answer exactly.
type Aggregator interface {
	GetQuery(params *events.UsageParams) (string, []interface{})
	Type() types.AggregationType
}

func GetAggregator(aggType types.AggregationType) Aggregator {
	switch aggType {
	case types.AggregationCount:
		return &CountAggregator{}
	case types.AggregationSum:
		return &SumAggregator{}
	case types.AggregationMax:
		return &MaxAggregator{}
	case types.AggregationMin:
		return &MinAggregator{}
	case types.AggregationUnique:
		return &UniqueAggregator{}
	case types.AggregationAverage:
		return &AverageAggregator{}
	case types.AggregationLatest:
		return &LatestAggregator{}
	}
	return nil
}

// windowExpr maps a granularity to the ClickHouse date truncation applied to
// time_created. Empty string means a single total window.
func windowExpr(g types.MetricGranularity) string {
	switch g {
	case types.GranularityMinute:
		return "toStartOfMinute(time_created)"
	case types.GranularityHour:
		return "toStartOfHour(time_created)"
	case types.GranularityDay:
		return "toStartOfDay(time_created)"
	case types.GranularityMonth:
		return "toStartOfMonth(time_created)"
	case types.GranularityQuarter:
		return "toStartOfQuarter(time_created)"
	case types.GranularityYear:
		return "toStartOfYear(time_created)"
	}
	return ""
}

// propertyExpr extracts a numeric property as Decimal128 so aggregation
// happens in fixed-point arithmetic end to end. Money-bearing values must
// not pass through Float64 on the way to an invoice.
func propertyExpr(propertyName string) string {
	return fmt.Sprintf("toDecimal128OrZero(JSONExtractRaw(properties, '%s'), 9)", sanitizeKey(propertyName))
}

func propertyStringExpr(propertyName string) string {
	return fmt.Sprintf("JSONExtractString(properties, '%s')", sanitizeKey(propertyName))
}

// sanitizeKey strips quote characters from a property name before it is
// interpolated as a JSON path. Property names come from metric definitions,
// not raw requests, but metric definitions are tenant supplied.
func sanitizeKey(key string) string {
	return strings.NewReplacer("'", "", "\\", "", "`", "").Replace(key)
}

// buildFilterClauses renders the AND conjunction property filters. Keys are
// sorted so the generated SQL is stable for a given filter set.
func buildFilterClauses(filters map[string][]string, args *[]interface{}) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		values := filters[k]
		if len(values) == 0 {
			continue
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
		sb.WriteString(fmt.Sprintf(" AND %s IN (%s)", propertyStringExpr(k), placeholders))
		for _, v := range values {
			*args = append(*args, v)
		}
	}
	return sb.String()
}

// buildQuery assembles the shared SELECT skeleton with the aggregation
// expression supplied by the caller.
func buildQuery(params *events.UsageParams, aggExpr string) (string, []interface{}) {
	args := []interface{}{
		params.OrganizationID,
		params.EventName,
		params.StartTime,
		params.EndTime,
	}

	where := `
		WHERE organization_id = ?
			AND event_name = ?
			AND time_created >= ?
			AND time_created < ?`

	if params.CustomerID != "" {
		where += "\n\t\t\tAND customer_id = ?"
		args = append(args, params.CustomerID)
	}
	where += buildFilterClauses(params.Filters, &args)

	window := windowExpr(params.Granularity)
	if window == "" {
		return fmt.Sprintf("SELECT toString(%s) AS value FROM events FINAL%s", aggExpr, where), args
	}
	return fmt.Sprintf(
		"SELECT %s AS window_start, toString(%s) AS value FROM events FINAL%s GROUP BY window_start ORDER BY window_start",
		window, aggExpr, where,
	), args
}

type CountAggregator struct{}

func (a *CountAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, "count()")
}

func (a *CountAggregator) Type() types.AggregationType { return types.AggregationCount }

type SumAggregator struct{}

func (a *SumAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, fmt.Sprintf("sum(%s)", propertyExpr(params.PropertyName)))
}

func (a *SumAggregator) Type() types.AggregationType { return types.AggregationSum }

type MaxAggregator struct{}

func (a *MaxAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, fmt.Sprintf("max(%s)", propertyExpr(params.PropertyName)))
}

func (a *MaxAggregator) Type() types.AggregationType { return types.AggregationMax }

type MinAggregator struct{}

func (a *MinAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, fmt.Sprintf("min(%s)", propertyExpr(params.PropertyName)))
}

func (a *MinAggregator) Type() types.AggregationType { return types.AggregationMin }

type UniqueAggregator struct{}

func (a *UniqueAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, fmt.Sprintf("uniqExact(%s)", propertyStringExpr(params.PropertyName)))
}

func (a *UniqueAggregator) Type() types.AggregationType { return types.AggregationUnique }

type AverageAggregator struct{}

func (a *AverageAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	// avg() returns Float64 whatever the input, so divide decimals directly
	expr := fmt.Sprintf("sum(%s) / toDecimal128(greatest(count(), 1), 0)", propertyExpr(params.PropertyName))
	return buildQuery(params, expr)
}

func (a *AverageAggregator) Type() types.AggregationType { return types.AggregationAverage }

type LatestAggregator struct{}

func (a *LatestAggregator) GetQuery(params *events.UsageParams) (string, []interface{}) {
	return buildQuery(params, fmt.Sprintf("argMax(%s, time_created)", propertyExpr(params.PropertyName)))
}

func (a *LatestAggregator) Type() types.AggregationType { return types.AggregationLatest }
