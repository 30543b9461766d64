package ingestion

import (
	"fmt"
	"strings"
	"time"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// Scalar merge strategy names accepted by StrategyByName.
const (
	StrategyOverwrite    = "overwrite"
	StrategyNewestSample = "newest-sample"
)

// ScalarMergeStrategy decides how the descriptive and rating fields of a stored asset
// are reconciled with an incoming record. Metrics are never touched by a strategy.
type ScalarMergeStrategy interface {
	Name() string
	MergeScalars(existing, incoming models.Asset) models.Asset
}

// OverwriteScalars is last-write-wins: every scalar is replaced unconditionally.
type OverwriteScalars struct{}

// Name implements ScalarMergeStrategy.
func (OverwriteScalars) Name() string { return StrategyOverwrite }

// MergeScalars implements ScalarMergeStrategy.
func (OverwriteScalars) MergeScalars(existing, incoming models.Asset) models.Asset {
	return copyScalars(existing, incoming)
}

// NewestSampleWins replaces scalars only when the incoming record carries a sample
// strictly newer than everything already stored.
type NewestSampleWins struct{}

// Name implements ScalarMergeStrategy.
func (NewestSampleWins) Name() string { return StrategyNewestSample }

// MergeScalars implements ScalarMergeStrategy.
func (NewestSampleWins) MergeScalars(existing, incoming models.Asset) models.Asset {
	storedLatest, hasStored := latestTimestamp(existing.Metrics)
	if !hasStored {
		return copyScalars(existing, incoming)
	}
	incomingLatest, hasIncoming := latestTimestamp(incoming.Metrics)
	if hasIncoming && incomingLatest.After(storedLatest) {
		return copyScalars(existing, incoming)
	}
	return existing
}

// StrategyByName resolves a configured strategy name. Empty means overwrite.
func StrategyByName(name string) (ScalarMergeStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyOverwrite:
		return OverwriteScalars{}, nil
	case StrategyNewestSample:
		return NewestSampleWins{}, nil
	default:
		return nil, fmt.Errorf("ingestion: unknown scalar merge strategy %q", name)
	}
}

// MergeResult is the outcome of reconciling one incoming asset.
type MergeResult struct {
	Asset           models.Asset
	MetricsInserted int
	Created         bool
}

// Merger reconciles normalized assets against stored state.
type Merger struct {
	strategy ScalarMergeStrategy
}

// NewMerger returns a merger using strategy, or overwrite when strategy is nil.
func NewMerger(strategy ScalarMergeStrategy) *Merger {
	if strategy == nil {
		strategy = OverwriteScalars{}
	}
	return &Merger{strategy: strategy}
}

// Strategy returns the scalar merge strategy in use.
func (m *Merger) Strategy() ScalarMergeStrategy {
	return m.strategy
}

// Merge combines existing (nil when the asset is unseen) with incoming. Metrics are
// append-only: stored samples keep their order and a sample whose exact timestamp is
// already present is skipped. LastUpdated is always set to now.
func (m *Merger) Merge(existing *models.Asset, incoming models.Asset, now time.Time) MergeResult {
	now = models.CanonicalInstant(now)

	if existing == nil {
		merged := incoming.Clone()
		merged.Metrics, _ = appendUnseen(make([]models.Metric, 0, len(incoming.Metrics)), incoming.Metrics)
		merged.LastUpdated = now
		return MergeResult{
			Asset:           merged,
			MetricsInserted: len(merged.Metrics),
			Created:         true,
		}
	}

	merged := m.strategy.MergeScalars(existing.Clone(), incoming)
	merged.AssetID = existing.AssetID

	var inserted int
	merged.Metrics, inserted = appendUnseen(merged.Metrics, incoming.Metrics)
	merged.LastUpdated = now

	return MergeResult{
		Asset:           merged,
		MetricsInserted: inserted,
	}
}

func appendUnseen(dst, incoming []models.Metric) ([]models.Metric, int) {
	seen := make(map[string]struct{}, len(dst)+len(incoming))
	for _, metric := range dst {
		seen[metric.Key()] = struct{}{}
	}

	var inserted int
	for _, metric := range incoming {
		key := metric.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, metric)
		inserted++
	}
	return dst, inserted
}

func copyScalars(dst, src models.Asset) models.Asset {
	dst.Site = src.Site
	dst.Region = src.Region
	dst.CapacityMWh = src.CapacityMWh
	dst.PowerRatingMW = src.PowerRatingMW
	dst.RoundTripEfficiency = src.RoundTripEfficiency
	dst.Availability = src.Availability
	dst.Status = src.Status
	return dst
}

func latestTimestamp(metrics []models.Metric) (time.Time, bool) {
	var (
		latest time.Time
		found  bool
	)
	for _, metric := range metrics {
		if !found || metric.Timestamp.After(latest) {
			latest = metric.Timestamp
			found = true
		}
	}
	return latest, found
}
