package decode

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
)

var (
	jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)
	decimal    = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

func decodeCSV(src CSV, infer bool) (any, error) {
	r := csv.NewReader(bytes.NewReader(src.Data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var header []string
	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "decode CSV input"), errors.ErrConfiguration)
		}
		if src.HasHeader && header == nil {
			header = record
			continue
		}
		rows = append(rows, record)
	}

	if !src.HasHeader {
		width := 0
		for _, row := range rows {
			width = max(width, len(row))
		}
		header = make([]string, width)
		for i := range header {
			header[i] = "col" + strconv.Itoa(i+1)
		}
	}

	out := make([]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(header))
		for i, key := range header {
			if i >= len(row) {
				if src.HasHeader {
					continue
				}
				record[key] = cellValue("", infer)
				continue
			}
			record[key] = cellValue(row[i], infer)
		}
		out = append(out, record)
	}
	return out, nil
}

// cellValue infers booleans, integers and decimals, in that order. Other
// cells become their trimmed text.
func cellValue(raw string, infer bool) any {
	if !infer {
		return raw
	}
	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
		return strings.EqualFold(trimmed, "true")
	}
	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(n, 10))
	}
	if jsonNumber.MatchString(trimmed) {
		return json.Number(trimmed)
	}
	if decimal.MatchString(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return json.Number(strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
	return trimmed
}
