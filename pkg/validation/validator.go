// Package validation runs the instance detection validation of one case:
// instance extraction on both volumes, overlap matching and metric
// aggregation.
//
// A Validator holds configuration only. Every call works on fresh copies of
// its inputs, so one Validator may serve many cases concurrently.
package validation

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/dustin/go-humanize"

	"segvalidate/internal/models"
	"segvalidate/pkg/labeling"
	"segvalidate/pkg/matching"
	"segvalidate/pkg/metrics"
)

// Validator evaluates detection volumes against ground-truth volumes.
type Validator struct {
	minVoxels int
	logger    *slog.Logger
	sink      Sink
	info      TraceInfo
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the structured logger used for progress messages.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithTrace enables debug dumps of the cleaned label volumes and the match
// table to sink, tagged with info.
func WithTrace(sink Sink, info TraceInfo) Option {
	return func(v *Validator) {
		v.sink = sink
		v.info = info
	}
}

// New creates a Validator discarding instances with fewer than minVoxels
// voxels.
func New(minVoxels int, opts ...Option) (*Validator, error) {
	if minVoxels < 0 {
		return nil, fmt.Errorf("%w: got %d", labeling.ErrInvalidThreshold, minVoxels)
	}

	v := &Validator{
		minVoxels: minVoxels,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// instances holds the extraction output of one case.
type instances struct {
	gtLabels  *models.Volume
	detLabels *models.Volume
	gt        []models.Candidate
	det       []models.Candidate
}

// Run validates one case and returns its metrics. When the detection yields
// no instance at all, matching is skipped and the default result
// (0, 0, 1, 0) is returned.
func (v *Validator) Run(gt, det *models.Volume) (models.Result, error) {
	inst, err := v.selectCandidates(gt, det)
	if err != nil {
		return models.Result{}, err
	}

	if len(inst.det) == 0 {
		v.logger.Info("no detection candidates, skipping matching",
			"gt_candidates", len(inst.gt))
		return models.DefaultResult(), nil
	}

	matches, err := v.pairCandidates(inst)
	if err != nil {
		return models.Result{}, err
	}

	result := metrics.Aggregate(matches, inst.gt, inst.det)
	v.logger.Info("validation complete",
		"matches", len(matches),
		"average_dice", result.AverageDice,
		"recall", result.Recall,
		"precision", result.Precision,
		"largest_component_dice", result.LargestComponentDice)

	return result, nil
}

// Study extracts and matches the instances of one case and returns the raw
// match records, each carrying the isolated ground-truth and detection
// sub-volumes.
func (v *Validator) Study(gt, det *models.Volume) ([]models.MatchRecord, error) {
	inst, err := v.selectCandidates(gt, det)
	if err != nil {
		return nil, err
	}
	return v.pairCandidates(inst, matching.WithSubVolumes())
}

// selectCandidates runs the extraction on both volumes.
func (v *Validator) selectCandidates(gt, det *models.Volume) (*instances, error) {
	if err := gt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ground truth volume: %w", err)
	}
	if err := det.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection volume: %w", err)
	}
	if err := models.CheckShapes(gt, det); err != nil {
		return nil, err
	}

	gtLabels, gtCandidates, err := labeling.Extract(gt, v.minVoxels)
	if err != nil {
		return nil, fmt.Errorf("ground truth extraction failed: %w", err)
	}
	detLabels, detCandidates, err := labeling.Extract(det, v.minVoxels)
	if err != nil {
		return nil, fmt.Errorf("detection extraction failed: %w", err)
	}

	v.logger.Debug("candidates selected",
		"gt_candidates", len(gtCandidates),
		"gt_voxels", humanize.Comma(int64(gtLabels.CountNonZero())),
		"det_candidates", len(detCandidates),
		"det_voxels", humanize.Comma(int64(detLabels.CountNonZero())),
		"min_voxels", v.minVoxels)

	if v.sink != nil {
		if err := v.sink.LabelVolumes(v.info, gtLabels, detLabels); err != nil {
			v.logger.Warn("failed to dump label volumes", "error", err)
		}
	}

	return &instances{
		gtLabels:  gtLabels,
		detLabels: detLabels,
		gt:        gtCandidates,
		det:       detCandidates,
	}, nil
}

// pairCandidates matches the extracted instances.
func (v *Validator) pairCandidates(inst *instances, opts ...matching.Option) ([]models.MatchRecord, error) {
	matches, err := matching.Match(inst.gt, inst.det, inst.gtLabels, inst.detLabels, opts...)
	if err != nil {
		return nil, fmt.Errorf("candidate matching failed: %w", err)
	}

	for _, p := range matching.Pairs(inst.gt, inst.det) {
		v.logger.Debug("box overlap",
			"gt_id", p.GTLabel,
			"det_id", p.DetLabel,
			"score", p.Score,
			"lenient_score", p.Lenient)
	}

	if v.sink != nil {
		if err := v.sink.Matches(v.info, matches); err != nil {
			v.logger.Warn("failed to dump match table", "error", err)
		}
	}

	return matches, nil
}
