package etl

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	models "github.com/mortality-signals/signalsx/pkg/db/models/mortality"
)

// Identifier columns of the wide input, in any order.
const (
	entityColumn = "Entity"
	codeColumn   = "Code"
	yearColumn   = "Year"
)

// causeSegmentDelimiter splits the value-column naming convention,
// e.g. "Deaths - Meningitis - Sex: Both - Age: All Ages (Number)".
const causeSegmentDelimiter = " - "

// NormalizeResult is the output of the schema normalizer: the unpivoted
// records (derived fields still zero, filled by the metrics engine) plus the
// non-fatal condition counts for the run summary.
type NormalizeResult struct {
	Records      []*models.EnrichedRecord
	InputRows    int
	CauseColumns int

	// CoercionWarnings counts deaths cells that could not be parsed as a
	// non-negative number and were coerced to zero.
	CoercionWarnings int

	// UnmappedCauseWarnings counts records whose cause had no category
	// mapping and defaulted to Other.
	UnmappedCauseWarnings int
}

// NormalizeFile opens path and normalizes its contents.
func NormalizeFile(path string, categories CategoryMap) (*NormalizeResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return Normalize(f, categories)
}

// Normalize reshapes the wide input into long-format death records: one
// record per (input row × cause column). No row is dropped; output row count
// is exactly InputRows × CauseColumns.
func Normalize(r io.Reader, categories CategoryMap) (*NormalizeResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, schemaErrorf("read header: %v", err)
	}

	layout, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	result := &NormalizeResult{
		CauseColumns: len(layout.causes),
		Records:      make([]*models.EnrichedRecord, 0, 1024),
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, schemaErrorf("read row %d: %v", line, err)
		}
		if len(row) != len(header) {
			return nil, schemaErrorf("row %d has %d fields, header has %d", line, len(row), len(header))
		}

		entity := strings.TrimSpace(row[layout.entityIdx])
		code := strings.TrimSpace(row[layout.codeIdx])
		year, err := parseYear(row[layout.yearIdx])
		if err != nil {
			return nil, schemaErrorf("row %d: %v", line, err)
		}

		result.InputRows++

		for _, cc := range layout.causes {
			deaths, coerced := coerceDeaths(row[cc.index])
			if coerced {
				result.CoercionWarnings++
			}

			category, mapped := categories.Classify(cc.cause)
			if !mapped {
				result.UnmappedCauseWarnings++
			}

			result.Records = append(result.Records, &models.EnrichedRecord{
				Entity:        entity,
				Code:          code,
				Year:          year,
				Cause:         cc.cause,
				Deaths:        deaths,
				CauseCategory: category,
			})
		}
	}

	return result, nil
}

type causeColumn struct {
	index int
	cause string
}

type headerLayout struct {
	entityIdx int
	codeIdx   int
	yearIdx   int
	causes    []causeColumn
}

// parseHeader locates the identifier columns and extracts the cause name
// from every value column. Any value column that does not follow the
// delimited naming convention is a schema error, as is a missing identifier
// column or an input with zero cause columns.
func parseHeader(header []string) (*headerLayout, error) {
	layout := &headerLayout{entityIdx: -1, codeIdx: -1, yearIdx: -1}

	for i, name := range header {
		switch strings.TrimSpace(name) {
		case entityColumn:
			layout.entityIdx = i
		case codeColumn:
			layout.codeIdx = i
		case yearColumn:
			layout.yearIdx = i
		default:
			cause, err := extractCause(name)
			if err != nil {
				return nil, err
			}
			layout.causes = append(layout.causes, causeColumn{index: i, cause: cause})
		}
	}

	if layout.entityIdx == -1 || layout.codeIdx == -1 || layout.yearIdx == -1 {
		return nil, schemaErrorf("missing identifier columns (need %s, %s, %s)",
			entityColumn, codeColumn, yearColumn)
	}
	if len(layout.causes) == 0 {
		return nil, schemaErrorf("no cause columns detected")
	}

	return layout, nil
}

// extractCause takes the second delimited segment of a value-column name as
// the canonical cause name.
func extractCause(column string) (string, error) {
	parts := strings.Split(column, causeSegmentDelimiter)
	if len(parts) < 2 {
		return "", schemaErrorf("column %q does not match the %q naming convention", column, "Deaths - <cause> - ...")
	}
	cause := strings.TrimSpace(parts[1])
	if cause == "" {
		return "", schemaErrorf("column %q has an empty cause segment", column)
	}
	return cause, nil
}

func parseYear(cell string) (uint16, error) {
	year, err := strconv.ParseUint(strings.TrimSpace(cell), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("unparseable year %q", cell)
	}
	return uint16(year), nil
}

// coerceDeaths parses a deaths cell into a non-negative integer. Missing,
// non-numeric, and negative values coerce to zero; the second return reports
// whether coercion happened. This is a lossy, explicit policy: the cell is
// kept (as zero) rather than the row being dropped.
func coerceDeaths(cell string) (uint64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, true
	}

	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, false
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, true
		}
		return uint64(f), false
	}

	return 0, true
}
