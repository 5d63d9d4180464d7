// Package schema resolves the logical fields of a Field Catalog against
// the physical header of one concrete input file. The result is valid for
// exactly that file and is immutable once built.
package schema

import (
	"strings"

	"github.com/edusurvey/microagg/pkg/catalog"
	"github.com/edusurvey/microagg/pkg/errors"
)

// Resolved maps logical field names to physical columns for one file.
type Resolved struct {
	Dataset string
	Header  []string

	physical map[string]string
	index    map[string]int
}

// Physical returns the physical column name a logical field resolved to.
func (r *Resolved) Physical(logical string) (string, bool) {
	p, ok := r.physical[logical]
	return p, ok
}

// Index returns the header position a logical field resolved to.
func (r *Resolved) Index(logical string) (int, bool) {
	i, ok := r.index[logical]
	return i, ok
}

// Has reports whether a logical field resolved in this file.
func (r *Resolved) Has(logical string) bool {
	_, ok := r.index[logical]
	return ok
}

// Resolve maps each catalog field onto a physical column. Per field, in
// catalog declaration order:
//
//  1. case-insensitive exact match against the candidate list, first hit wins
//  2. failing that, case-insensitive substring scan when a predicate is declared
//  3. failing that, the field stays unresolved
//
// A physical column is consumed by at most one logical field per pass, so a
// generic column (a bare "UF", say) cannot be double-mapped. The second
// return lists unresolved mandatory fields; the caller must reject the file
// when it is non-empty.
func Resolve(header []string, cat *catalog.Catalog) (*Resolved, []string) {
	res := &Resolved{
		Dataset:  cat.Dataset,
		Header:   header,
		physical: make(map[string]string, len(cat.Fields)),
		index:    make(map[string]int, len(cat.Fields)),
	}

	byUpper := make(map[string]int, len(header))
	for i, h := range header {
		u := strings.ToUpper(strings.TrimSpace(h))
		if _, dup := byUpper[u]; !dup {
			byUpper[u] = i
		}
	}

	consumed := make(map[int]bool, len(cat.Fields))
	var missing []string

	for _, field := range cat.Fields {
		idx, ok := match(field, header, byUpper, consumed)
		if !ok {
			if field.Mandatory {
				missing = append(missing, field.Name)
			}
			continue
		}
		consumed[idx] = true
		res.index[field.Name] = idx
		res.physical[field.Name] = header[idx]
	}

	return res, missing
}

func match(field catalog.Field, header []string, byUpper map[string]int, consumed map[int]bool) (int, bool) {
	for _, cand := range field.Candidates {
		if idx, ok := byUpper[strings.ToUpper(cand)]; ok && !consumed[idx] {
			return idx, true
		}
	}

	if field.Substring != "" {
		token := strings.ToUpper(field.Substring)
		for i, h := range header {
			if consumed[i] {
				continue
			}
			if strings.Contains(strings.ToUpper(h), token) {
				return i, true
			}
		}
	}

	return 0, false
}

// MissingMandatoryError builds the structural error reported when a file
// fails resolution. It names the failed logical fields and carries the
// full observed header so an operator can extend the catalog instead of
// patching code.
func MissingMandatoryError(dataset string, missing, header []string) *errors.Error {
	return errors.New(errors.ErrorTypeSchema, "mandatory logical fields did not resolve").
		WithDetail("dataset", dataset).
		WithDetail("missing_fields", missing).
		WithDetail("header", header)
}
