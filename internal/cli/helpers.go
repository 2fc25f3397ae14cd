package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

// parseTags parses a list of "key=value" strings into domain.Tags.
func parseTags(pairs []string) (domain.Tags, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(domain.Tags, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid tag %q, expected key=value", p)
		}
		tags[k] = v
	}
	return tags, nil
}

// parseParams parses a list of "key=value" strings into an operation
// parameter map, decoding each value as JSON when possible so that
// numbers, booleans, and objects round-trip; falls back to a raw
// string when the value is not valid JSON.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid param %q, expected key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			decoded = v
		}
		params[k] = decoded
	}
	return params, nil
}

// loadRecords reads a .csv or .json file into row-oriented records.
// CSV values are parsed as int64/float64/bool where possible, else
// left as strings. This is opaque demo ingestion to exercise Store
// from a shell — it is not the tabular engine's own parsing path.
func loadRecords(path string) ([]map[string]any, []string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSV(path)
	case ".json":
		return loadJSON(path)
	default:
		return nil, nil, fmt.Errorf("unsupported file extension %q (want .csv or .json)", filepath.Ext(path))
	}
}

func loadCSV(path string) ([]map[string]any, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: empty CSV", path)
	}

	columns := rows[0]
	records := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row) {
				rec[col] = parseCSVValue(row[i])
			}
		}
		records = append(records, rec)
	}
	return records, columns, nil
}

func parseCSVValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func loadJSON(path string) ([]map[string]any, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, nil, fmt.Errorf("%s: expected a JSON array of objects: %w", path, err)
	}
	return records, nil, nil
}
