package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabprep/pkg/errors"
)

type csvConfig struct {
	kinds map[string]Kind
	comma rune
}

// CSVOption configures ReadCSV.
type CSVOption func(*csvConfig)

// WithKinds forces the kind of the named columns instead of inferring it.
func WithKinds(kinds map[string]Kind) CSVOption {
	return func(c *csvConfig) {
		for name, k := range kinds {
			c.kinds[name] = k
		}
	}
}

// WithComma sets the field delimiter (default ',').
func WithComma(r rune) CSVOption {
	return func(c *csvConfig) {
		c.comma = r
	}
}

// ReadCSV reads a table from CSV data whose first record is the header.
//
// A column is numeric when every non-empty cell parses as a float, otherwise
// it is categorical. Empty cells in a numeric column become NaN and raise a
// DataConversionWarning.
func ReadCSV(r io.Reader, opts ...CSVOption) (*Table, error) {
	cfg := &csvConfig{kinds: make(map[string]Kind), comma: ','}
	for _, opt := range opts {
		opt(cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "table.ReadCSV")
	}
	if len(records) == 0 {
		return nil, errors.NewModelError("table.ReadCSV", "missing header", errors.ErrEmptyData)
	}

	header := records[0]
	rows := records[1:]
	cols := make([]Column, len(header))
	for j, name := range header {
		name = strings.TrimSpace(name)
		raw := make([]string, len(rows))
		for i, rec := range rows {
			raw[i] = rec[j]
		}

		kind, forced := cfg.kinds[name]
		if !forced || kind == AnyKind {
			kind = inferKind(raw)
		}

		switch kind {
		case Numeric:
			values, empty, err := parseFloats(name, raw)
			if err != nil {
				return nil, err
			}
			if empty > 0 {
				errors.Warn(errors.NewDataConversionWarning("string", "float64",
					fmt.Sprintf("%d empty cell(s) in column '%s' read as NaN", empty, name)))
			}
			cols[j] = Column{Name: name, Kind: Numeric, Floats: values}
		default:
			cols[j] = Column{Name: name, Kind: Categorical, Strings: raw}
		}
	}
	return New(cols...)
}

func inferKind(raw []string) Kind {
	seen := false
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return Categorical
		}
		seen = true
	}
	if !seen {
		return Categorical
	}
	return Numeric
}

func parseFloats(name string, raw []string) ([]float64, int, error) {
	values := make([]float64, len(raw))
	empty := 0
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			values[i] = math.NaN()
			empty++
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, 0, errors.NewValueError("table.ReadCSV",
				fmt.Sprintf("column '%s' row %d: cannot parse %q as a number", name, i+1, s))
		}
		values[i] = v
	}
	return values, empty, nil
}
