package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"bessanalytics/backend/services/bess-service/internal/models"
)

// ErrNotArray is returned when a telemetry document is not a JSON array.
var ErrNotArray = errors.New("ingestion: telemetry file must contain a JSON array")

// DecodeRecords reads a JSON array of raw asset records. Numbers are kept as
// json.Number so identifiers and readings are not rounded through float64.
func DecodeRecords(r io.Reader) ([]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("ingestion: decode telemetry: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("ingestion: decode telemetry: trailing data after array")
	}

	records, ok := doc.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	return records, nil
}

// LoadFile reads and decodes the telemetry file at path.
func LoadFile(path string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	return DecodeRecords(bytes.NewReader(data))
}

// NormalizeAll normalizes every record, failing on the first invalid one.
func NormalizeAll(records []any) ([]models.Asset, error) {
	assets := make([]models.Asset, 0, len(records))
	for i, raw := range records {
		asset, err := NormalizeAsset(raw)
		if err != nil {
			return nil, fmt.Errorf("ingestion: record %d: %w", i, err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}
