package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/xtxerr/tremor/internal/job"
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// loadJob loads a job file and applies the export directory override.
func loadJob(path, exportDir string) (*job.Config, error) {
	cfg, err := job.Load(path)
	if err != nil {
		return nil, err
	}
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}
	return cfg, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v)
}
