package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVOptions configures the listings CSV
type CSVOptions struct {
	Delimiter     rune
	UseCRLF       bool
	IncludeHeader bool
	DateFormat    string
}

// DefaultCSVOptions returns the layout used by /lands/export.csv
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:     ',',
		IncludeHeader: true,
		DateFormat:    "2006-01-02",
	}
}

// CSVExporter streams listings as CSV rows
type CSVExporter struct {
	writer  *csv.Writer
	options CSVOptions
}

// NewCSVExporter creates a CSV exporter writing to w
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	if options.Delimiter != 0 {
		writer.Comma = options.Delimiter
	}
	writer.UseCRLF = options.UseCRLF
	return &CSVExporter{writer: writer, options: options}
}

// WriteListings writes the header row, one row per listing and flushes
func (e *CSVExporter) WriteListings(listings []Listing) error {
	if e.options.IncludeHeader {
		header := append(append([]string{}, listingColumns...), "Markaz (lat)", "Markaz (lng)")
		if err := e.writer.Write(header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, l := range listings {
		vals := l.values()
		record := make([]string, 0, len(vals)+2)
		for _, v := range vals {
			record = append(record, e.formatValue(v))
		}
		if l.HasCentroid {
			record = append(record, e.formatValue(l.CentroidLat), e.formatValue(l.CentroidLng))
		} else {
			record = append(record, "", "")
		}
		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", l.ID, err)
		}
	}

	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) formatValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(e.options.DateFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}
