// Package rowfilter decides per-row inclusion for one aggregation run.
// Criteria are tagged variants over a single discriminating field. When
// that field failed to resolve in a file's schema the filter degrades to
// unconditional instead of failing: older vintages simply lack some
// discriminating columns, and an unfiltered aggregate is the documented
// fallback.
package rowfilter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/edusurvey/microagg/pkg/numeric"
	"github.com/edusurvey/microagg/pkg/schema"
)

// Kind tags a criterion variant.
type Kind string

const (
	// KindUnconditional keeps every row
	KindUnconditional Kind = "unconditional"
	// KindEqualsValue keeps rows whose field equals a category code
	KindEqualsValue Kind = "equals_value"
	// KindNotNull keeps rows whose field is present
	KindNotNull Kind = "not_null"
	// KindNonZero keeps rows whose field is present and numerically non-zero
	KindNonZero Kind = "non_zero"
	// KindValueInSet keeps rows whose field is one of a set of category codes
	KindValueInSet Kind = "value_in_set"
)

// Criterion describes one filtering rule against a logical field.
type Criterion struct {
	Kind  Kind
	Field string
	Value float64
	Set   []float64
}

// Unconditional keeps all rows.
func Unconditional() Criterion {
	return Criterion{Kind: KindUnconditional}
}

// EqualsValue keeps rows where field coerces to exactly value.
func EqualsValue(field string, value float64) Criterion {
	return Criterion{Kind: KindEqualsValue, Field: field, Value: value}
}

// NotNull keeps rows where field is non-empty.
func NotNull(field string) Criterion {
	return Criterion{Kind: KindNotNull, Field: field}
}

// NonZero keeps rows where field coerces to a non-zero number. Used for
// link-proxy filters where a zero identifier means "no link".
func NonZero(field string) Criterion {
	return Criterion{Kind: KindNonZero, Field: field}
}

// ValueInSet keeps rows where field coerces to one of the given codes.
func ValueInSet(field string, values ...float64) Criterion {
	return Criterion{Kind: KindValueInSet, Field: field, Set: values}
}

// Filter is a criterion bound to one file's resolved schema.
type Filter struct {
	crit     Criterion
	index    int
	degraded bool
}

// New binds a criterion to a resolved schema. If the criterion's field did
// not resolve for this file the filter falls back to unconditional and the
// degradation is logged, mirroring the strict-vs-proxy fallback of the
// source pipelines.
func New(crit Criterion, resolved *schema.Resolved, logger *zap.Logger) *Filter {
	if crit.Kind == KindUnconditional {
		return &Filter{crit: crit}
	}

	idx, ok := resolved.Index(crit.Field)
	if !ok {
		if logger != nil {
			logger.Warn("filter field did not resolve, degrading to unconditional",
				zap.String("criterion", string(crit.Kind)),
				zap.String("field", crit.Field),
				zap.String("dataset", resolved.Dataset))
		}
		return &Filter{crit: Unconditional(), degraded: true}
	}

	return &Filter{crit: crit, index: idx}
}

// Degraded reports whether the filter fell back to unconditional because
// its field was absent from the file.
func (f *Filter) Degraded() bool { return f.degraded }

// Keep decides inclusion for one physical row. Raw values are coerced to
// numeric before category-code comparison; non-coercible cells are
// filtered out, not treated as errors.
func (f *Filter) Keep(row []string) bool {
	if f.crit.Kind == KindUnconditional {
		return true
	}
	if f.index >= len(row) {
		return false
	}
	raw := row[f.index]

	switch f.crit.Kind {
	case KindNotNull:
		return strings.TrimSpace(raw) != ""

	case KindNonZero:
		v, ok := numeric.Parse(raw)
		return ok && v != 0

	case KindEqualsValue:
		v, ok := numeric.Parse(raw)
		return ok && v == f.crit.Value

	case KindValueInSet:
		v, ok := numeric.Parse(raw)
		if !ok {
			return false
		}
		for _, want := range f.crit.Set {
			if v == want {
				return true
			}
		}
		return false

	default:
		return true
	}
}
