// Package csvutil decodes header-prefixed CSV streams row by row.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
)

// Options configures CSV decoding behavior.
type Options struct {
	// FieldsPerRecord sets the expected number of fields per record.
	// If 0, it's set to the number of fields in the first record.
	FieldsPerRecord int
}

// Each reads CSV rows from r, skips the header, and calls handle for
// every value parse produces. Rows that fail to read or parse are
// logged and counted, never fatal. An error returned by handle stops
// the run. Returns the number of rows dropped as invalid.
func Each[T any](r io.Reader, parse func([]string) (T, error), handle func(T) error, opts Options) (int, error) {
	reader := csv.NewReader(r)
	if opts.FieldsPerRecord > 0 {
		reader.FieldsPerRecord = opts.FieldsPerRecord
	}

	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	invalid := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Error reading record", "error", err)
			invalid++
			continue
		}

		value, err := parse(row)
		if err != nil {
			slog.Warn("Skipping invalid record", "error", err)
			invalid++
			continue
		}

		if err := handle(value); err != nil {
			return invalid, err
		}
	}

	return invalid, nil
}
