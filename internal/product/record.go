// Package product contains the normalized product snapshot that compliance
// rules are evaluated against.
package product

import (
	"time"
)

// FieldState describes whether an optional attribute was disclosed. Absent and
// invalid are separate states: rules report "missing" and "garbled" differently.
type FieldState string

const (
	StateAbsent  FieldState = "absent"
	StateValid   FieldState = "valid"
	StateInvalid FieldState = "invalid"
)

// Field is an optional typed attribute. Value is only meaningful when State is
// StateValid; Raw keeps the source text so unparseable input is never lost.
type Field[T any] struct {
	State           FieldState `json:"state"`
	Value           T          `json:"value,omitempty"`
	Raw             string     `json:"raw,omitempty"`
	FromOCRFallback bool       `json:"fromOcrFallback,omitempty"`
}

// Valid builds a parsed field.
func Valid[T any](value T, raw string) Field[T] {
	return Field[T]{State: StateValid, Value: value, Raw: raw}
}

// Invalid builds a field that was disclosed but could not be parsed.
func Invalid[T any](raw string) Field[T] {
	return Field[T]{State: StateInvalid, Raw: raw}
}

// IsAbsent reports whether the field was not disclosed at all. The zero Field
// is absent.
func (f Field[T]) IsAbsent() bool {
	return f.State == "" || f.State == StateAbsent
}

// IsValid reports whether Value holds a parsed value.
func (f Field[T]) IsValid() bool {
	return f.State == StateValid
}

// IsInvalid reports whether the field was present but unreadable.
func (f Field[T]) IsInvalid() bool {
	return f.State == StateInvalid
}

// Quantity is a declared net quantity such as 500 g.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Money is a non-negative amount in a single currency.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// Record is the normalized snapshot of one product's disclosed attributes.
type Record struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	ManufacturerName    Field[string]    `json:"manufacturerName"`
	ManufacturerAddress Field[string]    `json:"manufacturerAddress"`
	NetQuantity         Field[Quantity]  `json:"netQuantity"`
	MRP                 Field[Money]     `json:"mrp"`
	ConsumerCare        Field[string]    `json:"consumerCare"`
	ManufactureDate     Field[time.Time] `json:"manufactureDate"`
	ImportDate          Field[time.Time] `json:"importDate"`
	CountryOfOrigin     Field[string]    `json:"countryOfOrigin"`
	RawOCRLines         []string         `json:"rawOcrLines,omitempty"`
}
