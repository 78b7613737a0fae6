// Package rules holds the catalog of Legal Metrology disclosure rules and the
// registry that owns them.
package rules

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrDuplicateRuleID = errors.New("duplicate rule id")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrInvalidRule     = errors.New("invalid rule definition")
)

// Priority classifies how serious a missing disclosure is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// IsValid returns true if the priority is a recognized value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// DefaultWeight is the score contribution a rule of this priority gets when
// no explicit weight is configured.
func (p Priority) DefaultWeight() float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Severity is the lower-case label attached to outcomes and violations.
func (p Priority) Severity() string {
	return strings.ToLower(string(p))
}

// ParsePriority accepts any casing of High, Medium or Low.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "medium":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidRule, s)
}

// UnmarshalText lets catalogs and API payloads spell priorities in any case.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// CheckKind selects one of the closed set of checkers a rule runs.
type CheckKind string

const (
	// CheckPresence fails when a field is missing or unreadable.
	CheckPresence CheckKind = "presence"
	// CheckCountry validates country of origin against known country names.
	CheckCountry CheckKind = "country"
	// CheckManufacturer requires a plausible manufacturer name and address.
	CheckManufacturer CheckKind = "manufacturer"
)

// IsValid returns true if the kind has a checker.
func (k CheckKind) IsValid() bool {
	switch k {
	case CheckPresence, CheckCountry, CheckManufacturer:
		return true
	}
	return false
}

// Field names a product.Record attribute a presence check inspects.
type Field string

const (
	FieldMRP                 Field = "mrp"
	FieldNetQuantity         Field = "net_quantity"
	FieldManufactureDate     Field = "manufacture_date"
	FieldImportDate          Field = "import_date"
	FieldConsumerCare        Field = "consumer_care"
	FieldCountryOfOrigin     Field = "country_of_origin"
	FieldManufacturerName    Field = "manufacturer_name"
	FieldManufacturerAddress Field = "manufacturer_address"
)

// IsValid returns true if a presence check can inspect the field.
func (f Field) IsValid() bool {
	switch f {
	case FieldMRP, FieldNetQuantity, FieldManufactureDate, FieldImportDate, FieldConsumerCare,
		FieldCountryOfOrigin, FieldManufacturerName, FieldManufacturerAddress:
		return true
	}
	return false
}

// Rule is a named, versioned disclosure check.
type Rule struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	Category    string    `json:"category" yaml:"category"`
	Active      bool      `json:"active" yaml:"active"`
	Weight      float64   `json:"weight" yaml:"weight"`
	Check       CheckKind `json:"check" yaml:"check"`
	Field       Field     `json:"field,omitempty" yaml:"field,omitempty"`
	Version     int       `json:"version" yaml:"-"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`

	// seq is the insertion position used for stable ordering.
	seq uint64
}

// Validate rejects definitions the evaluator could not run.
func (r Rule) Validate() error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: rule %s: name is required", ErrInvalidRule, r.ID)
	case !r.Priority.IsValid():
		return fmt.Errorf("%w: rule %s: unknown priority %q", ErrInvalidRule, r.ID, r.Priority)
	case !r.Check.IsValid():
		return fmt.Errorf("%w: rule %s: unknown check kind %q", ErrInvalidRule, r.ID, r.Check)
	case r.Check == CheckPresence && !r.Field.IsValid():
		return fmt.Errorf("%w: rule %s: presence check needs a supported field, got %q", ErrInvalidRule, r.ID, r.Field)
	case r.Weight < 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0):
		return fmt.Errorf("%w: rule %s: weight must be a non-negative number", ErrInvalidRule, r.ID)
	}
	return nil
}

// withDefaults fills the weight from the priority when none was given.
func (r Rule) withDefaults() Rule {
	r.ID = strings.TrimSpace(r.ID)
	if r.Weight == 0 {
		r.Weight = r.Priority.DefaultWeight()
	}
	return r
}

// Patch is a partial update. Nil fields are left untouched; id, name, check
// and field cannot change after creation.
type Patch struct {
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Weight      *float64  `json:"weight,omitempty"`
	Active      *bool     `json:"active,omitempty"`
}

func (r Rule) apply(p Patch) Rule {
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Priority != nil {
		if p.Weight == nil && r.Weight == r.Priority.DefaultWeight() {
			r.Weight = p.Priority.DefaultWeight()
		}
		r.Priority = *p.Priority
	}
	if p.Weight != nil {
		r.Weight = *p.Weight
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	return r
}

// DefaultRules is the shipped catalog. The first three are the checks the
// rule-management screen starts with.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "mrp",
			Name:        "MRP Mandatory Check",
			Description: "Ensures Maximum Retail Price is clearly displayed",
			Priority:    PriorityHigh,
			Category:    "Pricing",
			Active:      true,
			Check:       CheckPresence,
			Field:       FieldMRP,
		},
		{
			ID:          "origin",
			Name:        "Country of Origin Validation",
			Description: "Verifies country of origin is mentioned as per FDI guidelines",
			Priority:    PriorityHigh,
			Category:    "Origin",
			Active:      true,
			Check:       CheckCountry,
		},
		{
			ID:          "mfg",
			Name:        "Manufacturer Details Check",
			Description: "Validates manufacturer name and address are present",
			Priority:    PriorityHigh,
			Category:    "Manufacturing",
			Active:      true,
			Check:       CheckManufacturer,
		},
		{
			ID:          "net-quantity",
			Name:        "Net Quantity Declaration",
			Description: "Checks the net quantity is declared with a standard unit",
			Priority:    PriorityHigh,
			Category:    "Quantity",
			Active:      true,
			Check:       CheckPresence,
			Field:       FieldNetQuantity,
		},
		{
			ID:          "consumer-care",
			Name:        "Consumer Care Details",
			Description: "Checks a consumer care phone number, email or address is printed",
			Priority:    PriorityMedium,
			Category:    "Consumer",
			Active:      true,
			Check:       CheckPresence,
			Field:       FieldConsumerCare,
		},
		{
			ID:          "mfg-date",
			Name:        "Date of Manufacture",
			Description: "Checks the month and year of manufacture or packing is declared",
			Priority:    PriorityMedium,
			Category:    "Manufacturing",
			Active:      true,
			Check:       CheckPresence,
			Field:       FieldManufactureDate,
		},
	}
}
