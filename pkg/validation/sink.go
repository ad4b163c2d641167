package validation

import (
	"segvalidate/internal/models"
)

// TraceInfo identifies the case a trace belongs to.
type TraceInfo struct {
	Fold      int
	Patient   string
	Threshold float64
}

// Sink receives the intermediate artifacts of a validation run. Errors
// returned by a Sink are logged and never change the computed metrics.
type Sink interface {
	// LabelVolumes receives the cleaned, relabeled volumes of both inputs.
	LabelVolumes(info TraceInfo, gtLabels, detLabels *models.Volume) error

	// Matches receives the match records of the case.
	Matches(info TraceInfo, matches []models.MatchRecord) error
}
