// Package evaluate applies disclosure rules to a normalized product record.
// Every checker is a pure function of the record, so evaluations of different
// records can run in parallel without coordination.
package evaluate

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dharsanguruparan/MetroCheck/internal/product"
	"github.com/dharsanguruparan/MetroCheck/internal/rules"
)

const (
	minManufacturerNameLen    = 2
	minManufacturerAddressLen = 8
)

// Outcome is the result of one rule against one record.
type Outcome struct {
	RuleID   string  `json:"ruleId"`
	RuleName string  `json:"ruleName"`
	Category string  `json:"category,omitempty"`
	Passed   bool    `json:"passed"`
	Message  string  `json:"message,omitempty"`
	Severity string  `json:"severity"`
	Weight   float64 `json:"weight"`
	// LowConfidence marks a pass that relied on a fuzzy match or on values
	// recovered from OCR text; Note explains why.
	LowConfidence bool   `json:"lowConfidence,omitempty"`
	Note          string `json:"note,omitempty"`
}

// Evaluate runs every active rule against rec, in the order given. Inactive
// rules produce no outcome.
func Evaluate(rec product.Record, ruleSet []rules.Rule) []Outcome {
	outcomes := make([]Outcome, 0, len(ruleSet))
	for _, rule := range ruleSet {
		if !rule.Active {
			continue
		}
		outcomes = append(outcomes, evaluateRule(rec, rule))
	}
	return outcomes
}

func evaluateRule(rec product.Record, rule rules.Rule) Outcome {
	var v verdict
	switch rule.Check {
	case rules.CheckPresence:
		v = checkPresence(rec, rule.Field)
	case rules.CheckCountry:
		v = checkCountry(rec.CountryOfOrigin)
	case rules.CheckManufacturer:
		v = checkManufacturer(rec.ManufacturerName, rec.ManufacturerAddress)
	default:
		// Registry validation keeps unknown kinds out; fail rather than pass.
		v = fail(fmt.Sprintf("rule uses unsupported check kind %q", rule.Check))
	}
	return Outcome{
		RuleID:        rule.ID,
		RuleName:      rule.Name,
		Category:      rule.Category,
		Passed:        v.passed,
		Message:       v.message,
		Severity:      rule.Priority.Severity(),
		Weight:        rule.Weight,
		LowConfidence: v.lowConfidence,
		Note:          v.note,
	}
}

type verdict struct {
	passed        bool
	message       string
	lowConfidence bool
	note          string
}

func pass() verdict { return verdict{passed: true} }

func fail(msg string) verdict { return verdict{message: msg} }

func lowConfidence(note string) verdict {
	return verdict{passed: true, lowConfidence: true, note: note}
}

var fieldLabels = map[rules.Field]string{
	rules.FieldMRP:                 "MRP",
	rules.FieldNetQuantity:         "Net quantity",
	rules.FieldManufactureDate:     "Date of manufacture",
	rules.FieldImportDate:          "Date of import",
	rules.FieldConsumerCare:        "Consumer care contact",
	rules.FieldCountryOfOrigin:     "Country of origin",
	rules.FieldManufacturerName:    "Manufacturer name",
	rules.FieldManufacturerAddress: "Manufacturer address",
}

// fieldStatus is the type-erased state of a record field.
type fieldStatus struct {
	state   product.FieldState
	raw     string
	fromOCR bool
}

func statusOf[T any](f product.Field[T]) fieldStatus {
	state := f.State
	if f.IsAbsent() {
		state = product.StateAbsent
	}
	return fieldStatus{state: state, raw: f.Raw, fromOCR: f.FromOCRFallback}
}

func lookupField(rec product.Record, field rules.Field) (fieldStatus, bool) {
	switch field {
	case rules.FieldMRP:
		return statusOf(rec.MRP), true
	case rules.FieldNetQuantity:
		return statusOf(rec.NetQuantity), true
	case rules.FieldManufactureDate:
		return statusOf(rec.ManufactureDate), true
	case rules.FieldImportDate:
		return statusOf(rec.ImportDate), true
	case rules.FieldConsumerCare:
		return statusOf(rec.ConsumerCare), true
	case rules.FieldCountryOfOrigin:
		return statusOf(rec.CountryOfOrigin), true
	case rules.FieldManufacturerName:
		return statusOf(rec.ManufacturerName), true
	case rules.FieldManufacturerAddress:
		return statusOf(rec.ManufacturerAddress), true
	}
	return fieldStatus{}, false
}

// checkPresence fails on a missing field and, with a different message, on a
// field whose value could not be read.
func checkPresence(rec product.Record, field rules.Field) verdict {
	status, ok := lookupField(rec, field)
	if !ok {
		return fail(fmt.Sprintf("rule inspects unsupported field %q", field))
	}
	label := fieldLabels[field]
	switch status.state {
	case product.StateValid:
		if status.fromOCR {
			return lowConfidence(fmt.Sprintf("%s read from label text %q", label, status.raw))
		}
		return pass()
	case product.StateInvalid:
		return fail(fmt.Sprintf("%s value is unreadable or garbled: %q", label, status.raw))
	}
	return fail(fmt.Sprintf("%s is missing", label))
}

// checkCountry accepts known country names and, tolerating OCR noise, names
// within a small edit distance of one.
func checkCountry(f product.Field[string]) verdict {
	switch {
	case f.IsAbsent():
		return fail("Country of origin is missing")
	case f.IsInvalid():
		return fail(fmt.Sprintf("Country of origin value is unreadable or garbled: %q", f.Raw))
	}
	match := matchCountry(f.Value)
	switch {
	case !match.found:
		return fail(fmt.Sprintf("Country of origin %q is not a recognized country", f.Value))
	case match.distance > 0:
		return lowConfidence(fmt.Sprintf("low confidence: country of origin %q accepted as %q", f.Value, match.country))
	case f.FromOCRFallback:
		return lowConfidence(fmt.Sprintf("Country of origin read from label text %q", f.Raw))
	}
	return pass()
}

// checkManufacturer requires both a name and an address, each long enough to
// identify someone. Partial and total absence get distinct messages.
func checkManufacturer(name, addr product.Field[string]) verdict {
	hasName := !name.IsAbsent()
	hasAddr := !addr.IsAbsent()
	switch {
	case !hasName && !hasAddr:
		return fail("Manufacturer name and address are missing")
	case !hasAddr:
		return fail("Manufacturer address is missing (only the name is declared)")
	case !hasName:
		return fail("Manufacturer name is missing (only the address is declared)")
	}
	if !plausible(name, minManufacturerNameLen) {
		return fail(fmt.Sprintf("Manufacturer name %q does not identify a manufacturer", rawOrValue(name)))
	}
	if !plausible(addr, minManufacturerAddressLen) {
		return fail(fmt.Sprintf("Manufacturer address %q is too short to locate the manufacturer", rawOrValue(addr)))
	}
	if name.FromOCRFallback || addr.FromOCRFallback {
		return lowConfidence("Manufacturer details read from label text")
	}
	return pass()
}

// plausible rejects single characters and purely numeric text.
func plausible(f product.Field[string], minLen int) bool {
	if !f.IsValid() {
		return false
	}
	v := strings.TrimSpace(f.Value)
	return utf8.RuneCountInString(v) >= minLen && strings.IndexFunc(v, unicode.IsLetter) >= 0
}

func rawOrValue(f product.Field[string]) string {
	if f.Raw != "" {
		return f.Raw
	}
	return f.Value
}
