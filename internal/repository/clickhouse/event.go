package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/whiteghostDev/Saas-lotus-sub000/internal/clickhouse"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/domain/events"
	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
	"github.com/whiteghostDev/Saas-lotus-sub000/internal/logger"
)

// EventRepository persists raw events and the continuous aggregates in
// ClickHouse. The events table is a ReplacingMergeTree ordered by
// (organization_id, idempotency_id) so replayed events collapse to one row;
// usage_buckets is an AggregatingMergeTree keyed by the bucket tuple.
type EventRepository struct {
	store  *clickhouse.ClickHouseStore
	logger *logger.Logger
}

func NewEventRepository(store *clickhouse.ClickHouseStore, logger *logger.Logger) events.Repository {
	return &EventRepository{store: store, logger: logger}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *events.Event) error {
	propertiesJSON, err := json.Marshal(event.Properties)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal event properties").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO events (
			id, organization_id, customer_id, event_name, idempotency_id,
			time_created, ingested_at, properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = r.store.GetConn().Exec(ctx, query,
		event.ID,
		event.OrganizationID,
		event.CustomerID,
		event.EventName,
		event.IdempotencyID,
		event.TimeCreated,
		event.IngestedAt,
		string(propertiesJSON),
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert event").
			WithReportableDetails(map[string]interface{}{
				"event_id":   event.ID,
				"event_name": event.EventName,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *EventRepository) IsDuplicate(ctx context.Context, organizationID, idempotencyID string) (bool, error) {
	query := `
		SELECT count() FROM events FINAL
		WHERE organization_id = ? AND idempotency_id = ?
	`

	var count uint64
	if err := r.store.GetConn().QueryRow(ctx, query, organizationID, idempotencyID).Scan(&count); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check event idempotency").
			Mark(ierr.ErrDatabase)
	}
	return count > 0, nil
}

func (r *EventRepository) UpsertBucket(ctx context.Context, bucket *events.UsageBucket) error {
	// AggregatingMergeTree folds rows with the same key at merge time;
	// inserting partial states keeps the writer contention free
	query := `
		INSERT INTO usage_buckets (
			organization_id, metric_id, customer_id, filter_fingerprint, bucket_start,
			count, sum, max, min, unique_count, latest_value, latest_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.store.GetConn().Exec(ctx, query,
		bucket.OrganizationID,
		bucket.MetricID,
		bucket.CustomerID,
		bucket.FilterFingerprint,
		bucket.BucketStart,
		bucket.Count,
		bucket.Sum,
		bucket.Max,
		bucket.Min,
		bucket.UniqueCount,
		bucket.LatestValue,
		bucket.LatestAt,
	)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert usage bucket").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *EventRepository) GetBuckets(ctx context.Context, organizationID, metricID, customerID, fingerprint string, start, end time.Time) ([]*events.UsageBucket, error) {
	query := `
		SELECT
			bucket_start,
			sum(count) AS count,
			sum(sum) AS sum,
			max(max) AS max,
			min(min) AS min,
			sum(unique_count) AS unique_count,
			argMax(latest_value, latest_at) AS latest_value,
			max(latest_at) AS latest_at
		FROM usage_buckets
		WHERE organization_id = ?
			AND metric_id = ?
			AND customer_id = ?
			AND filter_fingerprint = ?
			AND bucket_start >= ?
			AND bucket_start < ?
		GROUP BY bucket_start
		ORDER BY bucket_start
	`

	rows, err := r.store.GetConn().Query(ctx, query,
		organizationID, metricID, customerID, fingerprint, start, end)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to read usage buckets").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var out []*events.UsageBucket
	for rows.Next() {
		b := &events.UsageBucket{
			OrganizationID:    organizationID,
			MetricID:          metricID,
			CustomerID:        customerID,
			FilterFingerprint: fingerprint,
		}
		if err := rows.Scan(&b.BucketStart, &b.Count, &b.Sum, &b.Max, &b.Min,
			&b.UniqueCount, &b.LatestValue, &b.LatestAt); err != nil {
			return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *EventRepository) GetLatestLevel(ctx context.Context, organizationID, metricID, customerID, fingerprint string) (decimal.Decimal, bool, error) {
	query := `
		SELECT count(), toString(argMax(latest_value, latest_at))
		FROM usage_buckets
		WHERE organization_id = ?
			AND metric_id = ?
			AND customer_id = ?
			AND filter_fingerprint = ?
	`
	var n uint64
	var raw string
	err := r.store.GetConn().QueryRow(ctx, query,
		organizationID, metricID, customerID, fingerprint).Scan(&n, &raw)
	if err != nil {
		return decimal.Zero, false, ierr.WithError(err).
			WithHint("Failed to read the latest gauge level").
			Mark(ierr.ErrDatabase)
	}
	if n == 0 {
		return decimal.Zero, false, nil
	}
	level, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, ierr.WithError(err).
			WithHint("Stored gauge level is not numeric").
			Mark(ierr.ErrDatabase)
	}
	return level, true, nil
}

func (r *EventRepository) HasPriorValue(ctx context.Context, params *events.PriorValueParams) (bool, error) {
	args := []interface{}{
		params.OrganizationID, params.EventName, params.CustomerID,
		params.ExcludeEventID, params.WindowStart, params.WindowEnd,
		params.Value,
	}
	filters := make(map[string][]string, len(params.Filters))
	for k, v := range params.Filters {
		filters[k] = []string{v}
	}
	query := fmt.Sprintf(`
		SELECT count() FROM events FINAL
		WHERE organization_id = ?
			AND event_name = ?
			AND customer_id = ?
			AND id != ?
			AND time_created >= ?
			AND time_created < ?
			AND %s = ?%s
	`, propertyStringExpr(params.PropertyName), buildFilterClauses(filters, &args))

	var n uint64
	if err := r.store.GetConn().QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check for a prior unique value").
			Mark(ierr.ErrDatabase)
	}
	return n > 0, nil
}

func (r *EventRepository) GetUsage(ctx context.Context, params *events.UsageParams) (*events.AggregationResult, error) {
	agg := GetAggregator(params.AggregationType)
	if agg == nil {
		return nil, ierr.NewError("invalid aggregation type").
			WithHintf("No aggregator for %s", params.AggregationType).
			Mark(ierr.ErrValidation)
	}

	query, args := agg.GetQuery(params)

	rows, err := r.store.GetConn().Query(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to query usage").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	result := &events.AggregationResult{
		EventName: params.EventName,
		Type:      params.AggregationType,
		Value:     decimal.Zero,
	}

	windowed := params.Granularity != "" && params.Granularity != "total"
	for rows.Next() {
		if windowed {
			var w events.UsageWindow
			var value string
			if err := rows.Scan(&w.WindowStart, &value); err != nil {
				return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
			}
			w.Value, err = decimal.NewFromString(value)
			if err != nil {
				return nil, ierr.WithError(err).
					WithHint("Aggregation returned a non-numeric value").
					Mark(ierr.ErrDatabase)
			}
			result.Windows = append(result.Windows, w)
			result.Value = result.Value.Add(w.Value)
		} else {
			var value string
			if err := rows.Scan(&value); err != nil {
				return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
			}
			result.Value, err = decimal.NewFromString(value)
			if err != nil {
				return nil, ierr.WithError(err).
					WithHint("Aggregation returned a non-numeric value").
					Mark(ierr.ErrDatabase)
			}
		}
	}
	return result, nil
}

func (r *EventRepository) AdvancePartitionMark(ctx context.Context, organizationID, customerID string, mark time.Time) error {
	// ReplacingMergeTree on (organization_id, customer_id) keyed by the
	// max mark keeps the row monotonic
	query := `
		INSERT INTO partition_marks (organization_id, customer_id, high_water_mark)
		VALUES (?, ?, ?)
	`
	if err := r.store.GetConn().Exec(ctx, query, organizationID, customerID, mark); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to advance partition mark").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *EventRepository) GetPartitionMark(ctx context.Context, organizationID, customerID string) (time.Time, error) {
	query := `
		SELECT max(high_water_mark) FROM partition_marks
		WHERE organization_id = ? AND customer_id = ?
	`
	var mark time.Time
	if err := r.store.GetConn().QueryRow(ctx, query, organizationID, customerID).Scan(&mark); err != nil {
		return time.Time{}, ierr.WithError(err).
			WithHint("Failed to read partition mark").
			Mark(ierr.ErrDatabase)
	}
	return mark, nil
}
