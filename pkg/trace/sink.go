// Package trace dumps the intermediate artifacts of a validation run to disk
// for debugging: the cleaned label volumes as NIfTI files and the match table
// as an Arrow IPC file.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/pkg/errors"

	"segvalidate/internal/models"
	"segvalidate/pkg/nifti"
	"segvalidate/pkg/validation"
)

// Spacing is the voxel size written into dumped label volumes.
var Spacing = [3]float64{0.5, 0.5, 0.5}

// matchSchema is the layout of the match table
var matchSchema = arrow.NewSchema([]arrow.Field{
	{Name: "gt_id", Type: arrow.PrimitiveTypes.Float32},
	{Name: "det_id", Type: arrow.PrimitiveTypes.Float32},
	{Name: "dice", Type: arrow.PrimitiveTypes.Float32},
}, nil)

// FileSink writes trace files below Root, one directory per fold and patient.
type FileSink struct {
	Root string
}

var _ validation.Sink = (*FileSink)(nil)

// NewFileSink creates a sink rooted at root.
func NewFileSink(root string) *FileSink {
	return &FileSink{Root: root}
}

// CaseDir returns the directory holding the trace files of a case:
// <root>/<fold>/1_<patient prefix before the first underscore>.
func (s *FileSink) CaseDir(info validation.TraceInfo) string {
	patient, _, _ := strings.Cut(info.Patient, "_")
	return filepath.Join(s.Root, fmt.Sprint(info.Fold), "1_"+patient)
}

// thresholdTag renders the threshold as an integer percentage.
func thresholdTag(threshold float64) string {
	return fmt.Sprint(int(threshold * 100))
}

// LabelVolumes writes gt_labels.nii.gz and detection_labels_<pct>.nii.gz.
func (s *FileSink) LabelVolumes(info validation.TraceInfo, gtLabels, detLabels *models.Volume) error {
	dir := s.CaseDir(info)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create trace directory")
	}

	if err := nifti.Write(filepath.Join(dir, "gt_labels.nii.gz"), gtLabels, Spacing); err != nil {
		return errors.Wrap(err, "failed to dump ground truth labels")
	}
	name := "detection_labels_" + thresholdTag(info.Threshold) + ".nii.gz"
	if err := nifti.Write(filepath.Join(dir, name), detLabels, Spacing); err != nil {
		return errors.Wrap(err, "failed to dump detection labels")
	}
	return nil
}

// Matches writes matching_<pct>.arrow with one row per match record.
func (s *FileSink) Matches(info validation.TraceInfo, matches []models.MatchRecord) (err error) {
	dir := s.CaseDir(info)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create trace directory")
	}

	filename := filepath.Join(dir, "matching_"+thresholdTag(info.Threshold)+".arrow")
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create match table")
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "failed to close match table")
		}
	}()

	return writeMatchTable(f, matches)
}

// writeMatchTable encodes matches as a single record batch Arrow IPC file.
func writeMatchTable(w io.WriteSeeker, matches []models.MatchRecord) error {
	pool := memory.NewGoAllocator()
	writer, err := ipc.NewFileWriter(w, ipc.WithSchema(matchSchema), ipc.WithAllocator(pool))
	if err != nil {
		return errors.Wrap(err, "failed to open arrow writer")
	}

	record := matchRecord(pool, matches)
	defer record.Release()

	if err := writer.Write(record); err != nil {
		if cerr := writer.Close(); cerr != nil {
			return errors.Wrapf(err, "failed to write match table (close also failed: %v)", cerr)
		}
		return errors.Wrap(err, "failed to write match table")
	}
	return errors.Wrap(writer.Close(), "failed to finish match table")
}

// matchRecord builds the arrow record batch of a match list.
func matchRecord(pool memory.Allocator, matches []models.MatchRecord) arrow.Record {
	gtBuilder := array.NewFloat32Builder(pool)
	detBuilder := array.NewFloat32Builder(pool)
	diceBuilder := array.NewFloat32Builder(pool)
	defer func() {
		gtBuilder.Release()
		detBuilder.Release()
		diceBuilder.Release()
	}()

	for _, m := range matches {
		gtBuilder.Append(float32(m.GTLabel))
		detBuilder.Append(float32(m.DetLabel))
		diceBuilder.Append(float32(m.Dice))
	}

	gtArray := gtBuilder.NewArray()
	detArray := detBuilder.NewArray()
	diceArray := diceBuilder.NewArray()
	defer func() {
		gtArray.Release()
		detArray.Release()
		diceArray.Release()
	}()

	return array.NewRecord(matchSchema, []arrow.Array{gtArray, detArray, diceArray}, int64(len(matches)))
}

// ReadMatches loads a match table written by Matches.
func ReadMatches(path string) ([]models.MatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open match table")
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f, ipc.WithSchema(matchSchema))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open arrow reader")
	}
	defer reader.Close()

	var matches []models.MatchRecord
	for i := 0; i < reader.NumRecords(); i++ {
		record, err := reader.Record(i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read record batch %d", i)
		}
		gt := record.Column(0).(*array.Float32)
		det := record.Column(1).(*array.Float32)
		dice := record.Column(2).(*array.Float32)
		for row := 0; row < int(record.NumRows()); row++ {
			matches = append(matches, models.MatchRecord{
				GTLabel:  uint32(gt.Value(row)),
				DetLabel: uint32(det.Value(row)),
				Dice:     float64(dice.Value(row)),
			})
		}
	}
	return matches, nil
}
