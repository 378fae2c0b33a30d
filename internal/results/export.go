package results

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// ExportConfig describes how a table was produced.
type ExportConfig struct {
	RunID       string `yaml:"run_id"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Marketplace string `yaml:"marketplace"`
	Timestamp   string `yaml:"timestamp"`
}

// Export is the YAML document written by SaveYAML.
type Export struct {
	Config ExportConfig `yaml:"config"`
	Rows   []Row        `yaml:"rows"`
}

// Table returns the exported rows as a table.
func (e *Export) Table() Table {
	return Table{RunID: e.Config.RunID, Marketplace: e.Config.Marketplace, Rows: e.Rows}
}

// SaveYAML writes t to path, creating parent directories.
func SaveYAML(path string, t Table, provider, model string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	export := Export{
		Config: ExportConfig{
			RunID:       t.RunID,
			Provider:    provider,
			Model:       model,
			Marketplace: t.Marketplace,
			Timestamp:   time.Now().Format("2006-01-02_15-04-05"),
		},
		Rows: t.Rows,
	}

	data, err := yaml.Marshal(&export)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

// LoadYAML reads a file written by SaveYAML.
func LoadYAML(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var export Export
	if err := yaml.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}
	return &export, nil
}

// WriteParquet writes the rows of t to path.
func WriteParquet(path string, t Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[Row](file)
	if _, err := writer.Write(t.Rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return file.Close()
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(path string) ([]Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	rows := make([]Row, pf.NumRows())
	read := 0
	for read < len(rows) {
		n, err := reader.Read(rows[read:])
		read += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows[:read], nil
}
