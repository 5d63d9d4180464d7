package analysis

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/edusurvey/microagg/pkg/errors"
)

// Wave is one standardized table reduced to a group-to-value series,
// typically one survey edition.
type Wave struct {
	Label  string
	Values map[string]float64
}

// LoadWave reads a standardized output table back and extracts one
// column keyed by the group column. Rows whose value cell is empty or
// non-numeric are skipped.
func LoadWave(path, label, keyColumn, valueColumn string, delimiter rune) (*Wave, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open wave table").
			WithDetail("path", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to parse wave table").
			WithDetail("path", path)
	}
	if len(records) < 2 {
		return nil, errors.New(errors.ErrorTypeData, "wave table has no data rows").
			WithDetail("path", path)
	}

	keyIdx, valIdx := -1, -1
	for i, name := range records[0] {
		switch strings.TrimSpace(name) {
		case keyColumn:
			keyIdx = i
		case valueColumn:
			valIdx = i
		}
	}
	if keyIdx < 0 || valIdx < 0 {
		return nil, errors.New(errors.ErrorTypeSchema, "wave table missing required columns").
			WithDetail("path", path).
			WithDetail("key_column", keyColumn).
			WithDetail("value_column", valueColumn)
	}

	w := &Wave{Label: label, Values: make(map[string]float64)}
	for _, rec := range records[1:] {
		if keyIdx >= len(rec) || valIdx >= len(rec) {
			continue
		}
		key := strings.TrimSpace(rec[keyIdx])
		raw := strings.TrimSpace(rec[valIdx])
		if key == "" || raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			continue
		}
		w.Values[key] = v
	}
	return w, nil
}

// Align intersects the group keys of all waves and returns the sorted
// common keys plus one value series per wave, in wave order.
func Align(waves []*Wave) ([]string, [][]float64, error) {
	if len(waves) < 2 {
		return nil, nil, errors.New(errors.ErrorTypeAnalysis, "alignment needs at least two waves")
	}

	var keys []string
	for k := range waves[0].Values {
		shared := true
		for _, w := range waves[1:] {
			if _, ok := w.Values[k]; !ok {
				shared = false
				break
			}
		}
		if shared {
			keys = append(keys, k)
		}
	}
	if len(keys) < 2 {
		return nil, nil, errors.New(errors.ErrorTypeAnalysis, "fewer than two groups shared across waves")
	}
	sort.Strings(keys)

	series := make([][]float64, len(waves))
	for i, w := range waves {
		s := make([]float64, len(keys))
		for j, k := range keys {
			s[j] = w.Values[k]
		}
		series[i] = s
	}
	return keys, series, nil
}

// Concordance ranks each wave's series and reports Kendall's W over the
// shared groups.
func Concordance(waves []*Wave) (float64, []string, error) {
	keys, series, err := Align(waves)
	if err != nil {
		return 0, nil, err
	}
	rankings := make([][]float64, len(series))
	for i, s := range series {
		rankings[i] = Ranks(s)
	}
	w, err := KendallW(rankings)
	if err != nil {
		return 0, nil, err
	}
	return w, keys, nil
}
