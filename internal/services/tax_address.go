package services

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

const (
	maxStreetLength  = 100
	maxCityLength    = 50
	maxStateLength   = 50
	maxZipLength     = 20
	maxCountryLength = 50
	defaultCountry   = "US"
)

var addressPolicy = bluemonday.StrictPolicy()

var usStateNames = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
	"district of columbia": "DC", "washington dc": "DC",
	"puerto rico": "PR", "guam": "GU", "us virgin islands": "VI", "virgin islands": "VI",
	"american samoa": "AS", "northern mariana islands": "MP",
	"armed forces americas": "AA", "armed forces europe": "AE", "armed forces pacific": "AP",
}

var usStateCodes = func() map[string]struct{} {
	codes := make(map[string]struct{}, len(usStateNames))
	for _, code := range usStateNames {
		codes[code] = struct{}{}
	}
	return codes
}()

var usCountryAliases = map[string]struct{}{
	"us": {}, "usa": {}, "united states": {}, "united states of america": {}, "america": {},
}

// NormalizeTaxAddress sanitises a shopper supplied address into the form the
// tax oracle expects. US addresses must carry a known state and a 5 or 9
// digit zip.
func NormalizeTaxAddress(in TaxAddressInput) (TaxAddress, error) {
	country := NormalizeCountry(in.Country)
	addr := TaxAddress{
		Street:  sanitizeAddressField(in.Street, maxStreetLength),
		City:    sanitizeAddressField(in.City, maxCityLength),
		Country: country,
	}

	state := sanitizeAddressField(in.State, maxStateLength)
	zip := sanitizeAddressField(in.ZipCode, maxZipLength)

	if country != defaultCountry {
		addr.State = strings.ToUpper(state)
		addr.Zip = strings.ToUpper(zip)
		if addr.Zip == "" {
			return TaxAddress{}, fmt.Errorf("%w: zip is required", ErrTaxInvalidInput)
		}
		return addr, nil
	}

	code, ok := NormalizeState(state)
	if !ok {
		return TaxAddress{}, fmt.Errorf("%w: state %q is not a US state", ErrTaxInvalidInput, state)
	}
	addr.State = code

	normalizedZip, ok := NormalizeZip(zip)
	if !ok {
		return TaxAddress{}, fmt.Errorf("%w: zip must be 5 digits with an optional 4 digit extension", ErrTaxInvalidInput)
	}
	addr.Zip = normalizedZip
	return addr, nil
}

// NormalizeState maps a US state name or abbreviation to its 2-letter code.
func NormalizeState(raw string) (string, bool) {
	folded := foldAddressKey(strings.ReplaceAll(raw, ".", ""))
	if folded == "" {
		return "", false
	}
	if upper := strings.ToUpper(folded); len(upper) == 2 {
		if _, ok := usStateCodes[upper]; ok {
			return upper, true
		}
	}
	code, ok := usStateNames[folded]
	return code, ok
}

// NormalizeZip returns zip or zip-plus4 from any input carrying 5 or 9 digits.
func NormalizeZip(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '-' || r == ' ':
		default:
			return "", false
		}
	}
	d := digits.String()
	switch len(d) {
	case 5:
		return d, true
	case 9:
		return d[:5] + "-" + d[5:], true
	default:
		return "", false
	}
}

// NormalizeCountry maps the usual spellings of the United States to US and
// upper-cases anything else. Empty input defaults to US.
func NormalizeCountry(raw string) string {
	cleaned := sanitizeAddressField(raw, maxCountryLength)
	key := foldAddressKey(strings.ReplaceAll(cleaned, ".", ""))
	if key == "" {
		return defaultCountry
	}
	if _, ok := usCountryAliases[key]; ok {
		return defaultCountry
	}
	return strings.ToUpper(cleaned)
}

func sanitizeAddressField(value string, limit int) string {
	cleaned := html.UnescapeString(addressPolicy.Sanitize(value))
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, cleaned)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if utf8.RuneCountInString(cleaned) > limit {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:limit]))
	}
	return cleaned
}

// foldAddressKey builds a lookup key. Casers keep state, so one is made per call.
func foldAddressKey(value string) string {
	return strings.Join(strings.Fields(cases.Fold().String(value)), " ")
}
