package ingestion

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// Required numeric asset fields, in validation order.
var requiredNumericFields = []string{
	"capacityMWh",
	"powerRatingMW",
	"roundTripEfficiency",
	"availability",
}

// Timestamp layouts accepted besides epoch milliseconds. Zone-less forms are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeAsset validates a decoded JSON object and coerces it into an Asset.
// Numbers may arrive as json.Number, Go numeric types or numeric strings.
func NormalizeAsset(raw any) (models.Asset, error) {
	record, ok := raw.(map[string]any)
	if !ok || record == nil {
		return models.Asset{}, invalid(KindInvalidRecord, "", "")
	}

	assetID := identifier(record["assetId"])
	if assetID == "" {
		return models.Asset{}, invalid(KindMissingIdentifier, "assetId", "")
	}

	numbers := make(map[string]float64, len(requiredNumericFields))
	for _, field := range requiredNumericFields {
		value, ok := toFloat(record[field])
		if !ok {
			return models.Asset{}, invalid(KindInvalidNumericField, field, assetID)
		}
		numbers[field] = value
	}

	status := text(record["status"])
	if status == "" {
		status = models.StatusOnline
	}

	metrics := []models.Metric{}
	if list, ok := record["metrics"].([]any); ok {
		metrics = make([]models.Metric, 0, len(list))
		for _, item := range list {
			metric, err := NormalizeMetric(item, assetID)
			if err != nil {
				return models.Asset{}, err
			}
			metrics = append(metrics, metric)
		}
	}

	return models.Asset{
		AssetID:             assetID,
		Site:                text(record["site"]),
		Region:              text(record["region"]),
		CapacityMWh:         numbers["capacityMWh"],
		PowerRatingMW:       numbers["powerRatingMW"],
		RoundTripEfficiency: numbers["roundTripEfficiency"],
		Availability:        numbers["availability"],
		Status:              status,
		Metrics:             metrics,
	}, nil
}

// NormalizeMetric validates one telemetry sample of assetID.
func NormalizeMetric(raw any, assetID string) (models.Metric, error) {
	record, ok := raw.(map[string]any)
	if !ok || record == nil {
		return models.Metric{}, invalid(KindInvalidMetricValue, "", assetID)
	}

	ts, ok := parseTimestamp(record["timestamp"])
	if !ok {
		return models.Metric{}, invalid(KindInvalidTimestamp, "timestamp", assetID)
	}

	soc, ok := toFloat(record["stateOfCharge"])
	if !ok {
		return models.Metric{}, invalid(KindInvalidMetricValue, "stateOfCharge", assetID)
	}
	temp, ok := toFloat(record["temperatureC"])
	if !ok {
		return models.Metric{}, invalid(KindInvalidMetricValue, "temperatureC", assetID)
	}

	return models.Metric{
		Timestamp:     ts,
		StateOfCharge: soc,
		TemperatureC:  temp,
	}, nil
}

func identifier(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		if finite(id) && id != 0 {
			return strconv.FormatFloat(id, 'f', -1, 64)
		}
	case int:
		if id != 0 {
			return strconv.Itoa(id)
		}
	}
	return ""
}

func text(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, finite(f)
}

func parseTimestamp(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		if ts.IsZero() {
			return time.Time{}, false
		}
		return models.CanonicalInstant(ts), true
	case string:
		s := strings.TrimSpace(ts)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return models.CanonicalInstant(parsed), true
			}
		}
		return time.Time{}, false
	default:
		millis, ok := toFloat(ts)
		if !ok {
			return time.Time{}, false
		}
		return models.CanonicalInstant(time.UnixMicro(int64(math.Round(millis * 1000)))), true
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
