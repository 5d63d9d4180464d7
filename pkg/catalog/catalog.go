// Package catalog defines the Field Catalog: the declarative mapping from
// stable logical field names to the candidate physical column names observed
// across survey-file vintages. A single ordered catalog replaces the
// per-year column heuristics that would otherwise be duplicated in every
// extraction pipeline.
package catalog

import (
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/edusurvey/microagg/pkg/errors"
)

// Role classifies what a logical field contributes to aggregation.
type Role string

const (
	// RoleGroupKey marks the regional identifier rows are bucketed by
	RoleGroupKey Role = "group_key"
	// RoleMeasure marks a numeric field that is aggregated per group
	RoleMeasure Role = "measure"
	// RoleWeight marks the sampling weight applied to measures
	RoleWeight Role = "weight"
	// RoleFlag marks a categorical discriminator used only for filtering
	RoleFlag Role = "flag"
)

// Field declares one logical field and the physical names it may carry.
// Candidates are tried in order; Substring is an optional case-insensitive
// contains fallback applied after all exact candidates miss.
type Field struct {
	Name          string   `json:"name"`
	Role          Role     `json:"role"`
	Candidates    []string `json:"candidates"`
	Substring     string   `json:"substring,omitempty"`
	Mandatory     bool     `json:"mandatory"`
	ZeroAsMissing bool     `json:"zero_as_missing,omitempty"`
	OutputName    string   `json:"output_name,omitempty"`

	// InGlobalMean marks measures that contribute to the derived overall
	// score. Context measures (a socioeconomic index, say) stay out.
	InGlobalMean bool `json:"in_global_mean,omitempty"`
}

// Catalog is the ordered set of logical fields for one dataset family.
// Order matters: schema resolution walks fields in declaration order and
// consumes each physical column at most once.
type Catalog struct {
	Dataset string  `json:"dataset"`
	Fields  []Field `json:"fields"`

	// MemberToken selects the target member inside an archive by
	// name-contains token (e.g. "TS_ESCOLA"). Empty means largest member.
	MemberToken string `json:"member_token,omitempty"`
}

// Field returns the declaration for a logical field name, or nil.
func (c *Catalog) Field(name string) *Field {
	for i := range c.Fields {
		if c.Fields[i].Name == name {
			return &c.Fields[i]
		}
	}
	return nil
}

// GroupKey returns the group-key field declaration, or nil.
func (c *Catalog) GroupKey() *Field {
	return c.byRole(RoleGroupKey)
}

// Weight returns the sampling-weight field declaration, or nil when the
// dataset carries no weight.
func (c *Catalog) Weight() *Field {
	return c.byRole(RoleWeight)
}

// Measures returns the measure field declarations in catalog order.
func (c *Catalog) Measures() []Field {
	var out []Field
	for _, f := range c.Fields {
		if f.Role == RoleMeasure {
			out = append(out, f)
		}
	}
	return out
}

func (c *Catalog) byRole(role Role) *Field {
	for i := range c.Fields {
		if c.Fields[i].Role == role {
			return &c.Fields[i]
		}
	}
	return nil
}

// Validate checks the catalog for structural problems: a missing dataset
// name, no group key, no measures, duplicate logical names, or a field
// with neither candidates nor a substring predicate.
func (c *Catalog) Validate() error {
	if c.Dataset == "" {
		return errors.New(errors.ErrorTypeConfig, "catalog dataset name is required")
	}
	if c.GroupKey() == nil {
		return errors.New(errors.ErrorTypeConfig, "catalog declares no group_key field").
			WithDetail("dataset", c.Dataset)
	}
	if len(c.Measures()) == 0 {
		return errors.New(errors.ErrorTypeConfig, "catalog declares no measure fields").
			WithDetail("dataset", c.Dataset)
	}
	seen := make(map[string]bool, len(c.Fields))
	for _, f := range c.Fields {
		if f.Name == "" {
			return errors.New(errors.ErrorTypeConfig, "catalog field with empty logical name").
				WithDetail("dataset", c.Dataset)
		}
		lower := strings.ToLower(f.Name)
		if seen[lower] {
			return errors.New(errors.ErrorTypeConfig, "duplicate logical field in catalog").
				WithDetail("dataset", c.Dataset).
				WithDetail("field", f.Name)
		}
		seen[lower] = true
		if len(f.Candidates) == 0 && f.Substring == "" {
			return errors.New(errors.ErrorTypeConfig, "catalog field has no candidates and no substring predicate").
				WithDetail("dataset", c.Dataset).
				WithDetail("field", f.Name)
		}
	}
	return nil
}

// LoadFile reads a catalog from a JSON file and validates it. Operators
// extend coverage of new file vintages by editing the catalog file, not
// the code.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read catalog file").
			WithDetail("path", path)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse catalog file").
			WithDetail("path", path)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
