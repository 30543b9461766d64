package models

import "time"

// Asset statuses known to the dashboard. Ingestion accepts any status string.
const (
	StatusOnline        = "online"
	StatusMaintenance   = "maintenance"
	StatusFault         = "fault"
	StatusCommissioning = "commissioning"
)

// Asset is one battery energy storage unit together with its telemetry history.
type Asset struct {
	AssetID             string    `json:"assetId"`
	Site                string    `json:"site"`
	Region              string    `json:"region"`
	CapacityMWh         float64   `json:"capacityMWh"`
	PowerRatingMW       float64   `json:"powerRatingMW"`
	RoundTripEfficiency float64   `json:"roundTripEfficiency"`
	Availability        float64   `json:"availability"`
	Status              string    `json:"status"`
	LastUpdated         time.Time `json:"lastUpdated"`
	Metrics             []Metric  `json:"metrics"`
}

// Metric is a single telemetry sample.
type Metric struct {
	Timestamp     time.Time `json:"timestamp"`
	StateOfCharge float64   `json:"stateOfCharge"`
	TemperatureC  float64   `json:"temperatureC"`
}

// Key returns the canonical dedup key of the sample timestamp.
func (m Metric) Key() string {
	return InstantKey(m.Timestamp)
}

// Clone returns a deep copy so callers can mutate the metric slice freely.
func (a Asset) Clone() Asset {
	out := a
	out.Metrics = make([]Metric, len(a.Metrics))
	copy(out.Metrics, a.Metrics)
	return out
}

// KnownStatus reports whether status is one of the statuses the dashboard knows about.
func KnownStatus(status string) bool {
	switch status {
	case StatusOnline, StatusMaintenance, StatusFault, StatusCommissioning:
		return true
	}
	return false
}
