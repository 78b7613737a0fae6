package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/dharsanguruparan/MetroCheck/internal/product"
)

const currencyINR = "INR"

var (
	moneyNoise    = regexp.MustCompile(`(?i)(₹|\brs\.?|\binr|\bm\.?\s?r\.?\s?p\.?|maximum retail price|/-|\(?\s*incl(?:usive|\.|uding)?\s*(?:of)?\s*all\s*taxes\s*\)?|:)`)
	numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	quantityRe    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(kilograms?|kgs?|grams?|gms?|gm|milligrams?|mg|millilit(?:re|er)s?|ml|lit(?:re|er)s?|ltrs?|l|pieces?|pcs|pc|units?|nos?|count|g)\b`)
	dateLabelRe   = regexp.MustCompile(`(?i)^(?:date\s+of\s+(?:manufacture|manufacturing|mfg|import|packing)|month\s+(?:and|&)\s+year\s+of\s+(?:manufacture|mfg|import|packing)|mfg|mfd|pkd|packed\s+on|imported\s+on|import\s+date|date)\.?[\s.:\-]*`)
)

var unitCanonical = map[string]string{
	"kilogram": "kg", "kilograms": "kg", "kg": "kg", "kgs": "kg",
	"gram": "g", "grams": "g", "gm": "g", "gms": "g", "g": "g",
	"milligram": "mg", "milligrams": "mg", "mg": "mg",
	"millilitre": "ml", "millilitres": "ml", "milliliter": "ml", "milliliters": "ml", "ml": "ml",
	"litre": "l", "litres": "l", "liter": "l", "liters": "l", "ltr": "l", "ltrs": "l", "l": "l",
	"piece": "pcs", "pieces": "pcs", "pcs": "pcs", "pc": "pcs",
	"unit": "pcs", "units": "pcs", "no": "pcs", "nos": "pcs", "count": "pcs",
}

// Ordered most specific first. Day-month-year wins over month-day-year when
// both would parse.
var (
	isoLayouts = []string{"2006-01-02", "2006/01/02", time.RFC3339, "2006-01-02T15:04:05"}
	dmyLayouts = []string{
		"2/1/2006", "2-1-2006", "2.1.2006", "2/1/06", "2-1-06", "2.1.06",
		"2 Jan 2006", "2 January 2006", "2-Jan-2006", "2 Jan, 2006", "2 Jan 06", "2-Jan-06",
		"Jan 2, 2006", "January 2, 2006", "Jan 2 2006", "January 2 2006",
	}
	monthYearLayouts = []string{
		"1/2006", "1-2006", "1.2006", "1/06", "1-06",
		"Jan 2006", "January 2006", "Jan-2006", "Jan/2006", "Jan 06", "Jan-06", "Jan/06", "Jan'06",
	}
	mdyLayouts = []string{"1/2/2006", "1-2-2006", "1.2.2006"}
)

// cleanText removes OCR and encoding artifacts: compatibility forms are
// folded, control characters and replacement runes dropped, whitespace collapsed.
func cleanText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case r == unicode.ReplacementChar:
			return -1
		case unicode.IsControl(r) || unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func hasAlnum(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0
}

func hasLetter(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) >= 0
}

func parseMoney(v any, present bool) product.Field[product.Money] {
	if !present {
		return product.Field[product.Money]{}
	}
	if n, ok := number(v); ok {
		raw := strconv.FormatFloat(n, 'f', -1, 64)
		if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return product.Invalid[product.Money](raw)
		}
		return product.Valid(product.Money{Amount: n, Currency: currencyINR}, raw)
	}
	s, _ := stringOf(v)
	return moneyFromText(s, true)
}

// moneyFromText parses an amount out of free text. In strict mode anything
// left over besides currency noise makes the value invalid; lenient mode takes
// the first amount on the line.
func moneyFromText(s string, strict bool) product.Field[product.Money] {
	s = cleanText(s)
	if s == "" {
		return product.Field[product.Money]{}
	}
	stripped := moneyNoise.ReplaceAllString(s, " ")
	loc := numberPattern.FindStringIndex(stripped)
	if loc == nil {
		return product.Invalid[product.Money](s)
	}
	if strings.HasSuffix(strings.TrimSpace(stripped[:loc[0]]), "-") {
		return product.Invalid[product.Money](s)
	}
	if strict && hasAlnum(stripped[:loc[0]]+stripped[loc[1]:]) {
		return product.Invalid[product.Money](s)
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(stripped[loc[0]:loc[1]], ",", ""), 64)
	if err != nil || amount < 0 {
		return product.Invalid[product.Money](s)
	}
	return product.Valid(product.Money{Amount: amount, Currency: currencyINR}, s)
}

func parseQuantity(v any, present bool) product.Field[product.Quantity] {
	if !present {
		return product.Field[product.Quantity]{}
	}
	if m, ok := v.(map[string]any); ok {
		sub := indexKeys(m)
		value, _ := sub.lookup([]string{"value", "amount"})
		unit, _ := sub.lookup([]string{"unit", "uom"})
		vs, _ := stringOf(value)
		us, _ := stringOf(unit)
		v = strings.TrimSpace(vs + " " + us)
	}
	s, _ := stringOf(v)
	return quantityFromText(s)
}

func quantityFromText(s string) product.Field[product.Quantity] {
	s = cleanText(s)
	if s == "" {
		return product.Field[product.Quantity]{}
	}
	loc := quantityRe.FindStringSubmatchIndex(s)
	if loc == nil || signedNegative(s[:loc[0]]) {
		return product.Invalid[product.Quantity](s)
	}
	m := []string{s[loc[2]:loc[3]], s[loc[4]:loc[5]]}
	value, err := strconv.ParseFloat(m[0], 64)
	if err != nil || value <= 0 {
		return product.Invalid[product.Quantity](s)
	}
	unit, ok := unitCanonical[strings.ToLower(m[1])]
	if !ok {
		return product.Invalid[product.Quantity](s)
	}
	return product.Valid(product.Quantity{Value: value, Unit: unit}, s)
}

// signedNegative reports whether the text before a number ends in a minus
// sign. "Net Qty:- 500 g" is label punctuation, "-500 g" is a negative value.
func signedNegative(prefix string) bool {
	p := strings.TrimRight(prefix, " \t")
	if !strings.HasSuffix(p, "-") {
		return false
	}
	before := strings.TrimSuffix(p, "-")
	if before == "" {
		return true
	}
	last := before[len(before)-1]
	return last == ' ' || last == '\t' || last == '('
}

func parseDate(v any, present bool) product.Field[time.Time] {
	if !present {
		return product.Field[time.Time]{}
	}
	s, ok := v.(string)
	if !ok {
		raw, _ := stringOf(v)
		return product.Invalid[time.Time](cleanText(raw))
	}
	return dateFromText(s)
}

func dateFromText(s string) product.Field[time.Time] {
	s = cleanText(s)
	if s == "" {
		return product.Field[time.Time]{}
	}
	candidate := s
	if i := strings.LastIndex(candidate, ":"); i >= 0 && hasLetter(candidate[:i]) && !strings.ContainsFunc(candidate[:i], unicode.IsDigit) {
		candidate = candidate[i+1:]
	}
	// "Mfg. Date 01/2024" carries two stacked labels.
	for i := 0; i < 3; i++ {
		candidate = strings.Trim(dateLabelRe.ReplaceAllString(strings.TrimSpace(candidate), ""), " .,")
	}
	for _, group := range [][]string{isoLayouts, dmyLayouts, monthYearLayouts, mdyLayouts} {
		for _, layout := range group {
			t, err := time.Parse(layout, candidate)
			if err != nil {
				continue
			}
			if t.Year() < 1900 || t.Year() > 2100 {
				return product.Invalid[time.Time](s)
			}
			return product.Valid(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), s)
		}
	}
	return product.Invalid[time.Time](s)
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case interface{ Float64() (float64, error) }:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
