package sources

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"rowriver/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads rows from a local CSV file whose first line is the header.

type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Absolute path to the CSV file"},
			{Key: "delimiter", Label: "Delimiter", Type: "string", Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "nullValue", Label: "Null Value", Type: "string", Default: "", Help: "Cells equal to this text are NULL (default: empty cell)"},
		},
	}
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		filePath := cfg.String("filePath", "")
		if filePath == "" {
			errCh <- fmt.Errorf("filePath is required")
			return
		}
		f, err := os.Open(filePath)
		if err != nil {
			errCh <- fmt.Errorf("open file: %w", err)
			return
		}
		defer f.Close()

		reader := csv.NewReader(f)
		if delim := cfg.String("delimiter", ""); delim != "" {
			reader.Comma = []rune(delim)[0]
		}
		reader.LazyQuotes = true
		// Ragged rows are reported by the river session, not the parser.
		reader.FieldsPerRecord = -1
		nullValue, _ := cfg["nullValue"].(string)

		header, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			errCh <- fmt.Errorf("parse header: %w", err)
			return
		}
		header = append([]string(nil), header...)

		for line := 2; ; line++ {
			row, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("parse line %d: %w", line, err)
				return
			}
			values := make([]*string, len(row))
			for i := range row {
				if row[i] != nullValue {
					v := row[i]
					values[i] = &v
				}
			}
			select {
			case out <- etl.Record{Columns: header, Values: values}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}
