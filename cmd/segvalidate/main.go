package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"

	"segvalidate/internal/models"
	"segvalidate/pkg/config"
	"segvalidate/pkg/nifti"
	"segvalidate/pkg/trace"
	"segvalidate/pkg/validation"
	"segvalidate/pkg/visualization"
)

func main() {
	// Parse command line arguments
	gtPath := flag.String("gt", "", "Ground truth volume (.nii or .nii.gz)")
	detPath := flag.String("det", "", "Detection volume (.nii or .nii.gz)")
	gtLabeled := flag.Bool("gt-labeled", false, "Ground truth holds integer instance labels instead of a mask")
	configPath := flag.String("config", "segvalidate.yaml", "YAML configuration file")
	threshold := flag.Float64("threshold", 0.5, "Binarization threshold applied to the detection volume")
	fold := flag.Int("fold", 0, "Fold number used to tag trace files")
	patient := flag.String("patient", "", "Patient identifier used to tag trace files")
	traceFlag := flag.Bool("trace", false, "Dump label volumes and match table (overrides config)")
	study := flag.Bool("study", false, "Print raw matches instead of aggregated metrics")
	previewDir := flag.String("preview", "", "In study mode, save overlay slices of every match to this directory")
	writeConfig := flag.Bool("write-config", false, "Write the default configuration to -config and exit")
	matchesPath := flag.String("matches", "", "Print a match table dumped with -trace and exit")
	flag.Parse()

	if *matchesPath != "" {
		matches, err := trace.ReadMatches(*matchesPath)
		if err != nil {
			log.Fatalf("Failed to read match table: %v", err)
		}
		printMatches(os.Stdout, matches)
		return
	}

	if *writeConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to: %s\n", *configPath)
		return
	}

	// Validate inputs
	if *gtPath == "" || *detPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *traceFlag {
		cfg.Trace.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg)

	gt, det, err := loadCase(*gtPath, *detPath, *threshold, *gtLabeled)
	if err != nil {
		log.Fatalf("Failed to load case: %v", err)
	}
	printCase(os.Stdout, gt, det)

	opts := []validation.Option{validation.WithLogger(logger)}
	if cfg.Trace.Enabled {
		info := validation.TraceInfo{Fold: *fold, Patient: *patient, Threshold: *threshold}
		opts = append(opts, validation.WithTrace(trace.NewFileSink(cfg.Trace.OutputDir), info))
	}

	validator, err := validation.New(int(cfg.Validation.TinyObjectsRemovalThreshold), opts...)
	if err != nil {
		log.Fatalf("Failed to create validator: %v", err)
	}

	startTime := time.Now()

	if *study {
		matches, err := validator.Study(gt, det)
		if err != nil {
			log.Fatalf("Validation failed: %v", err)
		}
		printMatches(os.Stdout, matches)
		if *previewDir != "" {
			savePreviews(matches, *previewDir)
		}
		return
	}

	result, err := validator.Run(gt, det)
	if err != nil {
		log.Fatalf("Validation failed: %v", err)
	}

	fmt.Printf("\nValidation completed in %.2f seconds\n", time.Since(startTime).Seconds())
	fmt.Printf("Instance Detection Metrics:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Average Dice: %.4f\n", result.AverageDice)
	fmt.Printf("Recall: %.4f\n", result.Recall)
	fmt.Printf("Precision: %.4f\n", result.Precision)
	fmt.Printf("Largest Component Dice: %.4f\n", result.LargestComponentDice)
}

// newLogger logs to stderr, or to a rotating file when one is configured.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		fmt.Printf("Sending log messages to: %s\n", cfg.Log.File)
		out = &lumberjack.Logger{
			Filename: cfg.Log.File,
			MaxSize:  cfg.Log.MaxSize, // megabytes
			MaxAge:   cfg.Log.MaxAge,  // days
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// loadCase reads both volumes. Any positive ground truth voxel is foreground,
// or with labeled set the ground truth must hold integer instance ids. The
// detection is binarized at threshold.
func loadCase(gtPath, detPath string, threshold float64, labeled bool) (*models.Volume, *models.Volume, error) {
	gtImg, err := nifti.Read(gtPath)
	if err != nil {
		return nil, nil, err
	}
	detImg, err := nifti.Read(detPath)
	if err != nil {
		return nil, nil, err
	}

	gt := gtImg.Binarize(0)
	if labeled {
		if gt, err = gtImg.Labels(); err != nil {
			return nil, nil, fmt.Errorf("ground truth %s: %w", gtPath, err)
		}
	}
	return gt, detImg.Binarize(threshold), nil
}

// printCase summarizes the foreground of both volumes.
func printCase(w io.Writer, gt, det *models.Volume) {
	shape := gt.Shape()
	fmt.Fprintf(w, "Volume: %dx%dx%d (%s voxels)\n", shape[0], shape[1], shape[2], humanize.Comma(int64(gt.Len())))
	fmt.Fprintf(w, "Ground truth foreground: %s voxels\n", humanize.Comma(int64(gt.CountNonZero())))
	fmt.Fprintf(w, "Detection foreground: %s voxels\n", humanize.Comma(int64(det.CountNonZero())))
}

func printMatches(w io.Writer, matches []models.MatchRecord) {
	fmt.Fprintf(w, "%s matches\n", humanize.Comma(int64(len(matches))))
	fmt.Fprintf(w, "gt_id\tdet_id\tdice\tbox\n")
	for _, m := range matches {
		box := "-"
		if m.GT != nil {
			box = m.GT.Box.String()
		}
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\n", m.GTLabel, m.DetLabel, m.Dice, box)
	}
}

func savePreviews(matches []models.MatchRecord, dir string) {
	for _, m := range matches {
		viewer, err := visualization.NewViewer(m)
		if err != nil {
			log.Printf("Warning: Failed to preview match %d/%d: %v", m.GTLabel, m.DetLabel, err)
			continue
		}
		matchDir := filepath.Join(dir, fmt.Sprintf("gt%03d_det%03d", m.GTLabel, m.DetLabel))
		if err := viewer.SaveSliceSequence("z", matchDir); err != nil {
			log.Printf("Warning: Failed to save slices of match %d/%d: %v", m.GTLabel, m.DetLabel, err)
		}
	}
	fmt.Printf("Match previews saved to: %s\n", dir)
}
