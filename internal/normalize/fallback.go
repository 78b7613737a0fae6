package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/dharsanguruparan/MetroCheck/internal/product"
)

// Label patterns for printed Legal Metrology declarations. Each is anchored at
// the start of an OCR line; the text after the label (or the next line when
// the label stands alone) is the candidate value.
var (
	mrpLabel     = regexp.MustCompile(`(?i)^(?:m\.?\s?r\.?\s?p\.?|max(?:imum)?\.?\s+retail\s+price)`)
	netQtyLabel  = regexp.MustCompile(`(?i)^net\.?\s*(?:qty|quantity|wt|weight|vol(?:ume)?|contents?|mass)\.?`)
	mfgDateLabel = regexp.MustCompile(`(?i)^(?:date\s+of\s+(?:mfg|manufacture|manufacturing|packing)|month\s+(?:and|&)\s+year\s+of\s+(?:mfg|manufacture|packing)|mfg\.?\s*(?:date|dt)?|mfd\.?\s*(?:date|on)?|pkd\.?(?:\s*date)?|packed\s+on|manufactured\s+on)`)
	importLabel  = regexp.MustCompile(`(?i)^(?:date\s+of\s+import|month\s+(?:and|&)\s+year\s+of\s+import|imported\s+on|import\s+date)`)
	countryLabel = regexp.MustCompile(`(?i)^(?:country\s+of\s+origin|made\s+in|product\s+of|origin)\b`)
	careLabel    = regexp.MustCompile(`(?i)^(?:for\s+)?(?:(?:consumer|customer)\s+(?:care|complaints?|support|service|feedback)(?:\s+(?:no|number|details|cell))?|helpline|toll[\s-]*free(?:\s+no)?|contact\s+us)\.?`)
	byLabel      = regexp.MustCompile(`(?i)^(?:mfd|mfg|manufactured|marketed|mktd|packed|pkd|imported)\.?(?:\s*(?:&|and)\s*(?:packed|marketed|mktd)\.?)?\s*by\b`)
	postalCodeRe = regexp.MustCompile(`(?i)(?:\b(?:pin(?:code)?|zip)\b[\s:.\-]*)?\b(?:\d{6}|\d{3}\s\d{3}|\d{5})\s*[.,]?\s*$`)
)

var declarationLabels = []*regexp.Regexp{mrpLabel, netQtyLabel, mfgDateLabel, importLabel, countryLabel, careLabel, byLabel}

// applyOCRFallback fills absent fields from labeled OCR lines. Values found
// this way are flagged with FromOCRFallback.
func applyOCRFallback(rec *product.Record) {
	lines := rec.RawOCRLines
	if len(lines) == 0 {
		return
	}
	if rec.MRP.IsAbsent() {
		rec.MRP = scan(lines, mrpLabel, nil, func(s string) product.Field[product.Money] { return moneyFromText(s, false) })
	}
	if rec.NetQuantity.IsAbsent() {
		rec.NetQuantity = scan(lines, netQtyLabel, nil, quantityFromText)
	}
	if rec.ManufactureDate.IsAbsent() {
		rec.ManufactureDate = scan(lines, mfgDateLabel, byLabel, func(s string) product.Field[time.Time] { return dateFromText(s) })
	}
	if rec.ImportDate.IsAbsent() {
		rec.ImportDate = scan(lines, importLabel, nil, func(s string) product.Field[time.Time] { return dateFromText(s) })
	}
	if rec.CountryOfOrigin.IsAbsent() {
		rec.CountryOfOrigin = scan(lines, countryLabel, nil, func(s string) product.Field[string] { return textField(s, true) })
	}
	if rec.ConsumerCare.IsAbsent() {
		rec.ConsumerCare = scan(lines, careLabel, nil, func(s string) product.Field[string] { return textField(s, true) })
	}
	if rec.ManufacturerName.IsAbsent() || rec.ManufacturerAddress.IsAbsent() {
		name, addr := scanManufacturer(lines)
		if rec.ManufacturerName.IsAbsent() {
			rec.ManufacturerName = name
		}
		if rec.ManufacturerAddress.IsAbsent() {
			rec.ManufacturerAddress = addr
		}
	}
}

// scan returns the first valid value found after label, or the first invalid
// one when nothing parses. skip excludes lines that share a prefix with label
// but declare something else ("Mfd. by" versus "Mfd. on").
func scan[T any](lines []string, label, skip *regexp.Regexp, parse func(string) product.Field[T]) product.Field[T] {
	var fallback product.Field[T]
	for i, line := range lines {
		if skip != nil && skip.MatchString(line) {
			continue
		}
		value, ok := labelValue(line, label)
		if !ok {
			continue
		}
		if value == "" && i+1 < len(lines) {
			value = lines[i+1]
		}
		f := parse(value)
		if f.IsAbsent() {
			continue
		}
		f.FromOCRFallback = true
		if f.IsValid() {
			return f
		}
		if fallback.IsAbsent() {
			fallback = f
		}
	}
	return fallback
}

func labelValue(line string, label *regexp.Regexp) (string, bool) {
	loc := label.FindStringIndex(line)
	if loc == nil {
		return "", false
	}
	return strings.TrimSpace(strings.TrimLeft(line[loc[1]:], " .:-–—=")), true
}

// scanManufacturer reads a "Manufactured by <name>, <address>" declaration.
// The address may continue over following lines up to the one ending in a
// postal code. Without a by-line, the first unlabeled line ending in a postal
// code is taken as the address.
func scanManufacturer(lines []string) (name, addr product.Field[string]) {
	for i, line := range lines {
		rest, ok := labelValue(line, byLabel)
		if !ok {
			continue
		}
		next := i + 1
		if rest == "" && next < len(lines) {
			rest = lines[next]
			next++
		}
		head, tail, _ := strings.Cut(rest, ",")
		parts := []string{}
		if tail = strings.TrimSpace(tail); tail != "" {
			parts = append(parts, tail)
		}
		if !postalCodeRe.MatchString(rest) {
			var extra []string
			for j := next; j < len(lines) && j < next+3; j++ {
				if isDeclaration(lines[j]) {
					break
				}
				extra = append(extra, lines[j])
				if postalCodeRe.MatchString(lines[j]) {
					parts = append(parts, extra...)
					break
				}
			}
		}
		name = ocrText(head)
		addr = ocrText(strings.Join(parts, ", "))
		return name, addr
	}
	for _, line := range lines {
		if !isDeclaration(line) && hasLetter(line) && postalCodeRe.MatchString(line) {
			return name, ocrText(line)
		}
	}
	return name, addr
}

func ocrText(s string) product.Field[string] {
	f := textField(s, true)
	if !f.IsAbsent() {
		f.FromOCRFallback = true
	}
	return f
}

func isDeclaration(line string) bool {
	for _, re := range declarationLabels {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
