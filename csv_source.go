package main

import (
	"archive/zip"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pierrec/lz4"
	"github.com/pivolan/stats_tables/domain/models"
)

const csvSeparator = ','

// csvRowSource reads training rows from a CSV file. The first record is
// the header; empty cells are treated as absent columns (the CSV
// rendition of NULL), which is what outcome predicates test against.
// gzip, lz4 and zip compressed files are read transparently.
type csvRowSource struct {
	path string
	// idColumn, when set, names the column used as the row identifier.
	// Otherwise ids are generated from the record position.
	idColumn string
}

func (s *csvRowSource) Rows() ([]models.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open training data %s: %w", s.path, err)
	}
	defer f.Close()

	reader, closeReader, err := decompress(f, s.path)
	if err != nil {
		return nil, err
	}
	if closeReader != nil {
		defer closeReader()
	}

	r := csv.NewReader(reader)
	r.Comma = csvSeparator
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header from %s: %w", s.path, err)
	}

	var rows []models.Row
	for n := 0; ; n++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record %d from %s: %w", n+2, s.path, err)
		}
		row := models.Row{ID: fmt.Sprintf("row_%06d", n+1)}
		for i, value := range record {
			if i >= len(headers) || value == "" {
				continue
			}
			if headers[i] == s.idColumn && s.idColumn != "" {
				row.ID = value
				continue
			}
			row.Cells = append(row.Cells, models.Cell{Column: headers[i], Value: value})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// decompress wraps the file reader according to the path extension. For
// zip archives the largest member wins, same policy as uploaded data.
func decompress(f *os.File, path string) (io.Reader, func() error, error) {
	switch filepath.Ext(path) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip %s: %w", path, err)
		}
		return zr, zr.Close, nil
	case ".lz4":
		return lz4.NewReader(f), nil, nil
	case ".zip":
		info, err := f.Stat()
		if err != nil {
			return nil, nil, err
		}
		zr, err := zip.NewReader(f, info.Size())
		if err != nil {
			return nil, nil, fmt.Errorf("open zip %s: %w", path, err)
		}
		var largest *zip.File
		for _, member := range zr.File {
			if member.FileInfo().IsDir() {
				continue
			}
			if largest == nil || member.UncompressedSize64 > largest.UncompressedSize64 {
				largest = member
			}
		}
		if largest == nil {
			return nil, nil, fmt.Errorf("zip %s contains no files", path)
		}
		rc, err := largest.Open()
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	}
	return f, nil, nil
}

// csvFeatureSink buffers feature rows and writes them as one CSV on
// Close. Buffering is needed because the full column set is only known
// once every row has been seen (rows missing a selected column emit
// fewer features).
type csvFeatureSink struct {
	path string
	rows []models.FeatureRow
}

func (s *csvFeatureSink) Write(row models.FeatureRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *csvFeatureSink) Close() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create feature dataset %s: %w", s.path, err)
	}
	defer f.Close()

	columns := featureColumns(s.rows)
	w := csv.NewWriter(f)
	if err := w.Write(append([]string{"row"}, columns...)); err != nil {
		return err
	}
	for _, row := range s.rows {
		record := make([]string, 0, len(columns)+1)
		record = append(record, row.ID)
		for _, column := range columns {
			if value, ok := row.Get(column); ok {
				record = append(record, fmt.Sprintf("%d", value))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write feature dataset %s: %w", s.path, err)
	}
	return nil
}

// featureColumns is the sorted union of feature names across all rows.
func featureColumns(rows []models.FeatureRow) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for _, col := range row.Columns {
			seen[col.Name] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Strings(columns)
	return columns
}
