package models

import "time"

// DashboardMetrics is the fleet-level summary served to the dashboard.
type DashboardMetrics struct {
	TotalAssets                int              `json:"totalAssets"`
	TotalCapacityMWh           float64          `json:"totalCapacityMWh"`
	AverageAvailability        float64          `json:"averageAvailability"`
	AverageRoundTripEfficiency float64          `json:"averageRoundTripEfficiency"`
	CapacityByRegion           []RegionCapacity `json:"capacityByRegion"`
	StatusBreakdown            []StatusCount    `json:"statusBreakdown"`
	StateOfChargeTrend         []TrendPoint     `json:"stateOfChargeTrend"`
}

// RegionCapacity is the summed capacity of one region.
type RegionCapacity struct {
	Region      string  `json:"region"`
	CapacityMWh float64 `json:"capacityMWh"`
}

// StatusCount is the number of assets reporting one status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// TrendPoint is the fleet average state of charge at one exact instant.
type TrendPoint struct {
	Timestamp            time.Time `json:"timestamp"`
	AverageStateOfCharge float64   `json:"averageStateOfCharge"`
}

// Dashboard is the payload of the dashboard endpoint.
type Dashboard struct {
	Assets  []Asset          `json:"assets"`
	Metrics DashboardMetrics `json:"metrics"`
}

// AssetSummary is a per-asset telemetry digest used by verification tooling.
type AssetSummary struct {
	AssetID              string     `json:"assetId"`
	Site                 string     `json:"site"`
	Region               string     `json:"region"`
	MetricsCount         int        `json:"metricsCount"`
	LatestTimestamp      *time.Time `json:"latestTimestamp"`
	AverageStateOfCharge *float64   `json:"averageStateOfCharge"`
}

// IngestResult accumulates counters of one ingestion run.
type IngestResult struct {
	AssetsProcessed int `json:"assetsProcessed"`
	NewAssets       int `json:"newAssets"`
	MetricsInserted int `json:"metricsInserted"`
}

// Add folds another result into r.
func (r *IngestResult) Add(other IngestResult) {
	r.AssetsProcessed += other.AssetsProcessed
	r.NewAssets += other.NewAssets
	r.MetricsInserted += other.MetricsInserted
}
