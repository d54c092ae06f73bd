package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/patina/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir            string
	iterationsFile *os.File

	headerWritten bool
}

// NewOutputManager creates an output manager and initializes the output
// directory. Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "iterations.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating iterations.csv: %w", err)
	}
	om.iterationsFile = f

	return om, nil
}

// Dir returns the output directory, or "" when output is disabled.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteConfig saves the active configuration as YAML alongside the results.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteIteration appends one stats record to iterations.csv.
func (om *OutputManager) WriteIteration(stats IterationStats) error {
	if om == nil {
		return nil
	}

	records := []IterationStats{stats}

	if !om.headerWritten {
		if err := gocsv.Marshal(records, om.iterationsFile); err != nil {
			return fmt.Errorf("writing iteration stats: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.iterationsFile); err != nil {
		return fmt.Errorf("writing iteration stats: %w", err)
	}
	return nil
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil || om.iterationsFile == nil {
		return nil
	}
	return om.iterationsFile.Close()
}
