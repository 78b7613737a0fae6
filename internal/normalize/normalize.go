// Package normalize turns heterogeneous extraction output (scraped listing
// fields, OCR lines) into a typed product.Record. Nothing in this package
// returns an error: unusable input degrades to absent or invalid fields.
package normalize

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/MetroCheck/internal/product"
)

// productNamespace seeds deterministic product ids for extractions that carry
// no identifier of their own.
var productNamespace = uuid.MustParse("6f1c2a52-9f0e-4c57-8d0c-3b8f6a0c9e11")

// Alias lists are canonical key forms (lower-case, alphanumerics only). The
// first alias with a usable value wins.
var (
	aliasID                  = []string{"id", "productid", "sku", "asin"}
	aliasURL                 = []string{"url", "producturl", "link", "listingurl"}
	aliasName                = []string{"name", "productname", "title", "producttitle"}
	aliasMRP                 = []string{"mrp", "maximumretailprice", "mrpinr", "price"}
	aliasNetQuantity         = []string{"netquantity", "netqty", "netwt", "netweight", "netcontent", "netcontents", "netvolume", "quantity"}
	aliasManufacturerName    = []string{"manufacturername", "mfrname", "mfgname", "manufacturedby"}
	aliasManufacturerAddress = []string{"manufactureraddress", "mfraddress", "mfgaddress", "addressofmanufacturer", "address"}
	aliasManufacturer        = []string{"manufacturer", "mfr", "manufacturerdetails"}
	aliasConsumerCare        = []string{"consumercare", "customercare", "consumercaredetails", "customercaredetails", "customercarenumber", "helpline", "contact"}
	aliasManufactureDate     = []string{"manufacturedate", "dateofmanufacture", "mfgdate", "mfddate", "manufacturingdate", "packeddate", "pkddate", "datefirstavailable"}
	aliasImportDate          = []string{"importdate", "dateofimport", "monthandyearofimport"}
	aliasCountry             = []string{"countryoforigin", "origin", "madein", "country"}
	aliasOCR                 = []string{"rawocrlines", "ocrlines", "ocrtext", "lines", "text"}
)

// Normalize canonicalizes one raw extraction into a product.Record.
func Normalize(raw map[string]any) product.Record {
	keys := indexKeys(raw)
	var rec product.Record

	if v, ok := keys.lookup(aliasName); ok {
		rec.Name, _ = stringOf(v)
		rec.Name = cleanText(rec.Name)
	}
	rec.MRP = parseMoney(keys.lookup(aliasMRP))
	rec.NetQuantity = parseQuantity(keys.lookup(aliasNetQuantity))
	rec.ConsumerCare = textField(keys.lookup(aliasConsumerCare))
	rec.ManufactureDate = parseDate(keys.lookup(aliasManufactureDate))
	rec.ImportDate = parseDate(keys.lookup(aliasImportDate))
	rec.CountryOfOrigin = textField(keys.lookup(aliasCountry))
	rec.ManufacturerName = textField(keys.lookup(aliasManufacturerName))
	rec.ManufacturerAddress = textField(keys.lookup(aliasManufacturerAddress))
	if v, ok := keys.lookup(aliasManufacturer); ok {
		name, addr := manufacturerParts(v)
		if rec.ManufacturerName.IsAbsent() {
			rec.ManufacturerName = name
		}
		if rec.ManufacturerAddress.IsAbsent() {
			rec.ManufacturerAddress = addr
		}
	}
	if rec.ManufacturerName.IsAbsent() && rec.ManufacturerAddress.IsValid() {
		// Listing scrapers put "Name, street, city PIN" into a single address field.
		if head, _, found := strings.Cut(rec.ManufacturerAddress.Value, ","); found && !strings.ContainsFunc(head, unicode.IsDigit) {
			rec.ManufacturerName = textField(head, true)
		}
	}
	if v, ok := keys.lookup(aliasOCR); ok {
		rec.RawOCRLines = ocrLines(v)
	}
	applyOCRFallback(&rec)
	rec.ID = productID(keys, rec)
	return rec
}

type keyIndex map[string]any

// indexKeys maps canonical key forms to values. Raw keys are visited in sorted
// order so two spellings of the same key resolve the same way every time.
func indexKeys(raw map[string]any) keyIndex {
	names := make([]string, 0, len(raw))
	for k := range raw {
		names = append(names, k)
	}
	sort.Strings(names)
	idx := make(keyIndex, len(raw))
	for _, k := range names {
		canon := canonicalKey(k)
		if canon == "" {
			continue
		}
		if _, seen := idx[canon]; !seen {
			idx[canon] = raw[k]
		}
	}
	return idx
}

func (k keyIndex) lookup(aliases []string) (any, bool) {
	for _, alias := range aliases {
		v, ok := k[alias]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func canonicalKey(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stringOf renders scalar JSON values as text.
func stringOf(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return fmt.Sprintf("%g", t), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

func textField(v any, present bool) product.Field[string] {
	if !present {
		return product.Field[string]{}
	}
	s, ok := stringOf(v)
	if !ok {
		return product.Field[string]{}
	}
	s = cleanText(s)
	if s == "" {
		return product.Field[string]{}
	}
	if !hasAlnum(s) {
		return product.Invalid[string](s)
	}
	return product.Valid(s, s)
}

func manufacturerParts(v any) (name, addr product.Field[string]) {
	switch t := v.(type) {
	case map[string]any:
		sub := indexKeys(t)
		name = textField(sub.lookup([]string{"name", "manufacturername"}))
		addr = textField(sub.lookup([]string{"address", "addr", "manufactureraddress"}))
	case string:
		head, tail, _ := strings.Cut(t, ",")
		name = textField(head, true)
		addr = textField(tail, true)
	}
	return name, addr
}

func ocrLines(v any) []string {
	var chunks []string
	switch t := v.(type) {
	case string:
		chunks = []string{t}
	case []string:
		chunks = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				chunks = append(chunks, s)
			}
		}
	}
	var lines []string
	for _, chunk := range chunks {
		for _, line := range strings.Split(chunk, "\n") {
			if line = cleanText(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}

func productID(keys keyIndex, rec product.Record) string {
	if v, ok := keys.lookup(aliasID); ok {
		if s, _ := stringOf(v); cleanText(s) != "" {
			return cleanText(s)
		}
	}
	if v, ok := keys.lookup(aliasURL); ok {
		if s, _ := stringOf(v); strings.TrimSpace(s) != "" {
			return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(s))).String()
		}
	}
	content := strings.Join([]string{
		rec.Name,
		rec.MRP.Raw,
		rec.NetQuantity.Raw,
		rec.ManufacturerName.Raw,
		rec.ManufacturerAddress.Raw,
		strings.Join(rec.RawOCRLines, "\n"),
	}, "\x1f")
	return uuid.NewSHA1(productNamespace, []byte(content)).String()
}
