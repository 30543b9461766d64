package analytics

import (
	"time"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// Summarize builds one telemetry digest per asset, in input order. A non-empty
// filter keeps only the listed asset ids; ids that match nothing are ignored.
func Summarize(assets []models.Asset, filterIDs []string) []models.AssetSummary {
	var wanted map[string]struct{}
	if len(filterIDs) > 0 {
		wanted = make(map[string]struct{}, len(filterIDs))
		for _, id := range filterIDs {
			wanted[id] = struct{}{}
		}
	}

	summaries := make([]models.AssetSummary, 0, len(assets))
	for _, asset := range assets {
		if wanted != nil {
			if _, ok := wanted[asset.AssetID]; !ok {
				continue
			}
		}
		summaries = append(summaries, summarize(asset))
	}
	return summaries
}

func summarize(asset models.Asset) models.AssetSummary {
	summary := models.AssetSummary{
		AssetID:      asset.AssetID,
		Site:         asset.Site,
		Region:       asset.Region,
		MetricsCount: len(asset.Metrics),
	}
	if len(asset.Metrics) == 0 {
		return summary
	}

	var (
		latest time.Time
		sum    float64
	)
	for i, metric := range asset.Metrics {
		if i == 0 || metric.Timestamp.After(latest) {
			latest = metric.Timestamp
		}
		sum += orZero(metric.StateOfCharge)
	}
	avg := sum / float64(len(asset.Metrics))

	summary.LatestTimestamp = &latest
	summary.AverageStateOfCharge = &avg
	return summary
}
