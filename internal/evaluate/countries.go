package evaluate

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const maxCountryDistance = 2

// countries is the ISO 3166-1 list: the canonical short name first, then
// spellings seen on labels. ISO codes are left out because most of them are
// ordinary words ("can", "per", "mar") or one edit away from one.
var countries = [][]string{
	{"Afghanistan"},
	{"Åland Islands", "aland islands", "aland"},
	{"Albania"},
	{"Algeria"},
	{"American Samoa"},
	{"Andorra"},
	{"Angola"},
	{"Anguilla"},
	{"Antarctica"},
	{"Antigua and Barbuda", "antigua"},
	{"Argentina"},
	{"Armenia"},
	{"Aruba"},
	{"Australia"},
	{"Austria"},
	{"Azerbaijan"},
	{"Bahamas", "the bahamas"},
	{"Bahrain"},
	{"Bangladesh"},
	{"Barbados"},
	{"Belarus"},
	{"Belgium"},
	{"Belize"},
	{"Benin"},
	{"Bermuda"},
	{"Bhutan"},
	{"Bolivia", "plurinational state of bolivia"},
	{"Bonaire, Sint Eustatius and Saba", "bonaire"},
	{"Bosnia and Herzegovina", "bosnia"},
	{"Botswana"},
	{"Bouvet Island"},
	{"Brazil", "brasil"},
	{"British Indian Ocean Territory"},
	{"Brunei", "brunei darussalam"},
	{"Bulgaria"},
	{"Burkina Faso"},
	{"Burundi"},
	{"Cabo Verde", "cape verde"},
	{"Cambodia"},
	{"Cameroon"},
	{"Canada"},
	{"Cayman Islands"},
	{"Central African Republic"},
	{"Chad"},
	{"Chile"},
	{"China", "prc", "people's republic of china", "peoples republic of china"},
	{"Christmas Island"},
	{"Cocos (Keeling) Islands", "cocos islands", "keeling islands"},
	{"Colombia"},
	{"Comoros"},
	{"Congo", "republic of the congo", "congo-brazzaville"},
	{"Democratic Republic of the Congo", "dr congo", "drc", "congo-kinshasa"},
	{"Cook Islands"},
	{"Costa Rica"},
	{"Côte d'Ivoire", "cote d'ivoire", "cote divoire", "ivory coast"},
	{"Croatia"},
	{"Cuba"},
	{"Curaçao", "curacao"},
	{"Cyprus"},
	{"Czechia", "czech republic"},
	{"Denmark"},
	{"Djibouti"},
	{"Dominica"},
	{"Dominican Republic"},
	{"Ecuador"},
	{"Egypt"},
	{"El Salvador"},
	{"Equatorial Guinea"},
	{"Eritrea"},
	{"Estonia"},
	{"Eswatini", "swaziland"},
	{"Ethiopia"},
	{"Falkland Islands", "falkland islands (malvinas)"},
	{"Faroe Islands"},
	{"Fiji"},
	{"Finland"},
	{"France"},
	{"French Guiana"},
	{"French Polynesia"},
	{"French Southern Territories"},
	{"Gabon"},
	{"Gambia", "the gambia"},
	{"Georgia"},
	{"Germany", "deutschland"},
	{"Ghana"},
	{"Gibraltar"},
	{"Greece"},
	{"Greenland"},
	{"Grenada"},
	{"Guadeloupe"},
	{"Guam"},
	{"Guatemala"},
	{"Guernsey"},
	{"Guinea"},
	{"Guinea-Bissau", "guinea bissau"},
	{"Guyana"},
	{"Haiti"},
	{"Heard Island and McDonald Islands"},
	{"Holy See", "vatican", "vatican city"},
	{"Honduras"},
	{"Hong Kong"},
	{"Hungary"},
	{"Iceland"},
	{"India", "bharat", "republic of india"},
	{"Indonesia"},
	{"Iran", "islamic republic of iran"},
	{"Iraq"},
	{"Ireland", "republic of ireland"},
	{"Isle of Man"},
	{"Israel"},
	{"Italy"},
	{"Jamaica"},
	{"Japan"},
	{"Jersey"},
	{"Jordan"},
	{"Kazakhstan"},
	{"Kenya"},
	{"Kiribati"},
	{"North Korea", "democratic people's republic of korea", "dprk"},
	{"South Korea", "korea", "republic of korea"},
	{"Kuwait"},
	{"Kyrgyzstan"},
	{"Laos", "lao people's democratic republic"},
	{"Latvia"},
	{"Lebanon"},
	{"Lesotho"},
	{"Liberia"},
	{"Libya"},
	{"Liechtenstein"},
	{"Lithuania"},
	{"Luxembourg"},
	{"Macao", "macau"},
	{"Madagascar"},
	{"Malawi"},
	{"Malaysia"},
	{"Maldives"},
	{"Mali"},
	{"Malta"},
	{"Marshall Islands"},
	{"Martinique"},
	{"Mauritania"},
	{"Mauritius"},
	{"Mayotte"},
	{"Mexico"},
	{"Micronesia", "federated states of micronesia"},
	{"Moldova", "republic of moldova"},
	{"Monaco"},
	{"Mongolia"},
	{"Montenegro"},
	{"Montserrat"},
	{"Morocco"},
	{"Mozambique"},
	{"Myanmar", "burma"},
	{"Namibia"},
	{"Nauru"},
	{"Nepal"},
	{"Netherlands", "holland", "the netherlands"},
	{"New Caledonia"},
	{"New Zealand"},
	{"Nicaragua"},
	{"Niger"},
	{"Nigeria"},
	{"Niue"},
	{"Norfolk Island"},
	{"North Macedonia", "macedonia"},
	{"Northern Mariana Islands"},
	{"Norway"},
	{"Oman"},
	{"Pakistan"},
	{"Palau"},
	{"Palestine", "state of palestine"},
	{"Panama"},
	{"Papua New Guinea"},
	{"Paraguay"},
	{"Peru"},
	{"Philippines"},
	{"Pitcairn", "pitcairn islands"},
	{"Poland"},
	{"Portugal"},
	{"Puerto Rico"},
	{"Qatar"},
	{"Réunion", "reunion"},
	{"Romania"},
	{"Russia", "russian federation"},
	{"Rwanda"},
	{"Saint Barthélemy", "saint barthelemy"},
	{"Saint Helena, Ascension and Tristan da Cunha", "saint helena"},
	{"Saint Kitts and Nevis"},
	{"Saint Lucia"},
	{"Saint Martin"},
	{"Saint Pierre and Miquelon"},
	{"Saint Vincent and the Grenadines"},
	{"Samoa"},
	{"San Marino"},
	{"Sao Tome and Principe", "são tomé and príncipe"},
	{"Saudi Arabia", "ksa"},
	{"Senegal"},
	{"Serbia"},
	{"Seychelles"},
	{"Sierra Leone"},
	{"Singapore"},
	{"Sint Maarten"},
	{"Slovakia"},
	{"Slovenia"},
	{"Solomon Islands"},
	{"Somalia"},
	{"South Africa"},
	{"South Georgia and the South Sandwich Islands"},
	{"South Sudan"},
	{"Spain"},
	{"Sri Lanka"},
	{"Sudan"},
	{"Suriname"},
	{"Svalbard and Jan Mayen"},
	{"Sweden"},
	{"Switzerland"},
	{"Syria", "syrian arab republic"},
	{"Taiwan"},
	{"Tajikistan"},
	{"Tanzania", "united republic of tanzania"},
	{"Thailand"},
	{"Timor-Leste", "east timor"},
	{"Togo"},
	{"Tokelau"},
	{"Tonga"},
	{"Trinidad and Tobago"},
	{"Tunisia"},
	{"Türkiye", "turkey", "turkiye"},
	{"Turkmenistan"},
	{"Turks and Caicos Islands"},
	{"Tuvalu"},
	{"Uganda"},
	{"Ukraine"},
	{"United Arab Emirates", "uae", "u.a.e"},
	{"United Kingdom", "uk", "u.k", "great britain", "britain", "england", "scotland", "wales"},
	{"United States", "usa", "us", "u.s.a", "u.s", "united states of america", "america"},
	{"United States Minor Outlying Islands"},
	{"Uruguay"},
	{"Uzbekistan"},
	{"Vanuatu"},
	{"Venezuela", "bolivarian republic of venezuela"},
	{"Vietnam", "viet nam"},
	{"British Virgin Islands"},
	{"U.S. Virgin Islands", "us virgin islands"},
	{"Wallis and Futuna"},
	{"Western Sahara"},
	{"Yemen"},
	{"Zambia"},
	{"Zimbabwe"},
}

var (
	countryIndex = buildCountryIndex()
	originPrefix = regexp.MustCompile(`^(?:country\s+of\s+origin|made\s+in|product\s+of|manufactured\s+in|origin)\s*[:\-]?\s*`)
	countryTrim  = ".,;:!?()[]\"' "
)

type countryName struct {
	key     string
	country string
}

func buildCountryIndex() []countryName {
	var idx []countryName
	for _, entry := range countries {
		canonical := entry[0]
		idx = append(idx, countryName{key: strings.ToLower(canonical), country: canonical})
		for _, alt := range entry[1:] {
			idx = append(idx, countryName{key: alt, country: canonical})
		}
	}
	return idx
}

type countryMatch struct {
	found    bool
	country  string
	distance int
}

// matchCountry resolves free text to a known country. A near miss is accepted
// when it is within maxCountryDistance edits and the edits touch less than
// half of the candidate name, so short names are not rewritten wholesale.
func matchCountry(value string) countryMatch {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.Trim(originPrefix.ReplaceAllString(key, ""), countryTrim)
	key = strings.Join(strings.Fields(key), " ")
	if key == "" {
		return countryMatch{}
	}
	for _, c := range countryIndex {
		if c.key == key {
			return countryMatch{found: true, country: c.country}
		}
	}
	best := countryMatch{distance: maxCountryDistance + 1}
	for _, c := range countryIndex {
		d := levenshtein.ComputeDistance(key, c.key)
		if d < best.distance && d*2 < utf8.RuneCountInString(c.key) {
			best = countryMatch{found: true, country: c.country, distance: d}
		}
	}
	if !best.found {
		return countryMatch{}
	}
	return best
}
