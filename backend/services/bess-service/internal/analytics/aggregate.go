package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// Aggregate computes fleet dashboard metrics. It is pure: the same assets always
// yield the same result and the input is not modified.
func Aggregate(assets []models.Asset) models.DashboardMetrics {
	out := models.DashboardMetrics{
		TotalAssets:        len(assets),
		CapacityByRegion:   []models.RegionCapacity{},
		StatusBreakdown:    []models.StatusCount{},
		StateOfChargeTrend: []models.TrendPoint{},
	}
	if len(assets) == 0 {
		return out
	}

	var (
		totalCapacity     float64
		totalAvailability float64
		totalEfficiency   float64
		regionIndex       = make(map[string]int)
		statusIndex       = make(map[string]int)
		trend             = make(map[string]*trendBucket)
	)

	for _, asset := range assets {
		capacity := orZero(asset.CapacityMWh)
		totalCapacity += capacity
		totalAvailability += orZero(asset.Availability)
		totalEfficiency += orZero(asset.RoundTripEfficiency)

		if i, ok := regionIndex[asset.Region]; ok {
			out.CapacityByRegion[i].CapacityMWh += capacity
		} else {
			regionIndex[asset.Region] = len(out.CapacityByRegion)
			out.CapacityByRegion = append(out.CapacityByRegion, models.RegionCapacity{Region: asset.Region, CapacityMWh: capacity})
		}

		if i, ok := statusIndex[asset.Status]; ok {
			out.StatusBreakdown[i].Count++
		} else {
			statusIndex[asset.Status] = len(out.StatusBreakdown)
			out.StatusBreakdown = append(out.StatusBreakdown, models.StatusCount{Status: asset.Status, Count: 1})
		}

		for _, metric := range asset.Metrics {
			key := metric.Key()
			bucket, ok := trend[key]
			if !ok {
				bucket = &trendBucket{at: models.CanonicalInstant(metric.Timestamp)}
				trend[key] = bucket
			}
			bucket.sum += orZero(metric.StateOfCharge)
			bucket.count++
		}
	}

	n := float64(len(assets))
	out.TotalCapacityMWh = round2(totalCapacity)
	out.AverageAvailability = round2(totalAvailability / n * 100)
	out.AverageRoundTripEfficiency = round2(totalEfficiency / n * 100)
	out.StateOfChargeTrend = trendPoints(trend)

	return out
}

type trendBucket struct {
	at    time.Time
	sum   float64
	count int
}

func trendPoints(buckets map[string]*trendBucket) []models.TrendPoint {
	points := make([]models.TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, models.TrendPoint{
			Timestamp:            b.at,
			AverageStateOfCharge: round2(b.sum / float64(b.count)),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// round2 rounds half away from zero to two decimal places.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
