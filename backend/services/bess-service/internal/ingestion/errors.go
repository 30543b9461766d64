package ingestion

import (
	"errors"
	"fmt"
)

// ErrValidation matches every ValidationError via errors.Is.
var ErrValidation = errors.New("ingestion: validation failed")

// ErrorKind classifies a validation failure.
type ErrorKind string

const (
	KindInvalidRecord       ErrorKind = "InvalidRecord"
	KindMissingIdentifier   ErrorKind = "MissingIdentifier"
	KindInvalidNumericField ErrorKind = "InvalidNumericField"
	KindInvalidTimestamp    ErrorKind = "InvalidTimestamp"
	KindInvalidMetricValue  ErrorKind = "InvalidMetricValue"
)

// ValidationError reports a malformed or missing field in a raw record.
type ValidationError struct {
	Kind    ErrorKind
	Field   string
	AssetID string
}

func (e *ValidationError) Error() string {
	assetID := e.AssetID
	if assetID == "" {
		assetID = "unknown"
	}
	switch e.Kind {
	case KindInvalidRecord:
		return "ingestion: telemetry record must be an object"
	case KindMissingIdentifier:
		return "ingestion: asset is missing an assetId"
	case KindInvalidNumericField:
		return fmt.Sprintf("ingestion: asset %s has missing or non-finite numeric field %s", assetID, e.Field)
	case KindInvalidTimestamp:
		return fmt.Sprintf("ingestion: metric timestamp is invalid for asset %s", assetID)
	case KindInvalidMetricValue:
		if e.Field != "" {
			return fmt.Sprintf("ingestion: metric field %s is invalid for asset %s", e.Field, assetID)
		}
		return fmt.Sprintf("ingestion: invalid metric payload for asset %s", assetID)
	default:
		return fmt.Sprintf("ingestion: invalid record for asset %s", assetID)
	}
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(kind ErrorKind, field, assetID string) error {
	return &ValidationError{Kind: kind, Field: field, AssetID: assetID}
}
