package honeypot

import (
	"regexp"
	"strings"
)

// ──────────────────────────────────────────────
// Extractor — structured intelligence from raw text
// ──────────────────────────────────────────────
//
// Matchers run in a fixed order (URLs → UPI → phones → bank accounts) and
// each match consumes its text span, so a digit run never gets classified
// twice. Extract is a pure function; merging into a session is plain set
// union over normalized values.

// Intelligence is the set-valued record of extracted artifacts.
// Every element is non-empty and normalized for its category.
type Intelligence struct {
	UPIIDs       []string `json:"upi_ids"`
	BankAccounts []string `json:"bank_accounts"`
	URLs         []string `json:"urls"`
	Phones       []string `json:"phones"`
}

// Clone returns a deep copy.
func (i Intelligence) Clone() Intelligence {
	return Intelligence{
		UPIIDs:       append([]string(nil), i.UPIIDs...),
		BankAccounts: append([]string(nil), i.BankAccounts...),
		URLs:         append([]string(nil), i.URLs...),
		Phones:       append([]string(nil), i.Phones...),
	}
}

// Canonical returns a copy with non-nil slices, for JSON encoding as arrays.
func (i Intelligence) Canonical() Intelligence {
	c := i.Clone()
	if c.UPIIDs == nil {
		c.UPIIDs = []string{}
	}
	if c.BankAccounts == nil {
		c.BankAccounts = []string{}
	}
	if c.URLs == nil {
		c.URLs = []string{}
	}
	if c.Phones == nil {
		c.Phones = []string{}
	}
	return c
}

// Merge unions other into i and returns the number of newly added items.
// Values are assumed normalized; duplicates are dropped, so merging the
// same extraction twice is a no-op and merge order does not matter.
func (i *Intelligence) Merge(other Intelligence) int {
	added := 0
	added += mergeSet(&i.UPIIDs, other.UPIIDs)
	added += mergeSet(&i.BankAccounts, other.BankAccounts)
	added += mergeSet(&i.URLs, other.URLs)
	added += mergeSet(&i.Phones, other.Phones)
	return added
}

// Total returns the number of items across all categories.
func (i Intelligence) Total() int {
	return len(i.UPIIDs) + len(i.BankAccounts) + len(i.URLs) + len(i.Phones)
}

// Complete reports whether every category has at least one item.
func (i Intelligence) Complete() bool {
	return len(i.UPIIDs) > 0 && len(i.BankAccounts) > 0 && len(i.URLs) > 0 && len(i.Phones) > 0
}

func mergeSet(dst *[]string, src []string) int {
	added := 0
	for _, v := range src {
		if v == "" {
			continue
		}
		seen := false
		for _, existing := range *dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			*dst = append(*dst, v)
			added++
		}
	}
	return added
}

// upiHandles is the closed set of payment-provider suffixes that
// distinguishes a UPI identifier from an ordinary email address.
var upiHandles = map[string]bool{
	"ybl": true, "upi": true, "paytm": true, "oksbi": true, "okicici": true,
	"okhdfcbank": true, "okaxis": true, "axl": true, "ibl": true, "sbi": true,
	"icici": true, "hdfc": true, "axis": true, "kotak": true, "freecharge": true,
	"apl": true, "pnb": true, "boi": true, "cbin": true, "federal": true,
}

var (
	schemeURLPattern  = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)
	bareDomainPattern = regexp.MustCompile(`(?i)\b(?:[a-z0-9][a-z0-9-]*\.)+(?:com|net|org|in|io|co|info|biz|online|site|shop|xyz|me|ly|app)\b(?:/[^\s<>"']*)?`)
	upiPattern        = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9._-]*@[a-z]+\b`)
	phonePattern      = regexp.MustCompile(`\+91[-\s]?[6-9]\d{9}\b|\+91[-\s]?\d{5}[-\s]?\d{5}\b|\+\d{10,13}\b|\b91[6-9]\d{9}\b|\b0?[6-9]\d{9}\b|\b\d{5}[-\s]\d{5}\b`)
	bankPattern       = regexp.MustCompile(`\b\d{9,18}\b`)
	phoneSepPattern   = regexp.MustCompile(`[-\s()]`)
)

type span struct{ start, end int }

func overlaps(spans []span, start, end int) bool {
	for _, s := range spans {
		if start < s.end && end > s.start {
			return true
		}
	}
	return false
}

// Extractor scans raw text for intelligence artifacts.
type Extractor struct {
	countryCode string // default prefix for bare national phone numbers
}

// NewExtractor creates an extractor. countryCode defaults to "+91".
func NewExtractor(countryCode ...string) *Extractor {
	cc := "+91"
	if len(countryCode) > 0 && countryCode[0] != "" {
		cc = countryCode[0]
	}
	return &Extractor{countryCode: cc}
}

// Extract scans text and returns the normalized artifacts found.
// It has no side effects; calling it twice on the same text yields
// identical results.
func (e *Extractor) Extract(text string) Intelligence {
	intel := Intelligence{
		UPIIDs:       []string{},
		BankAccounts: []string{},
		URLs:         []string{},
		Phones:       []string{},
	}
	if text == "" {
		return intel
	}

	var consumed []span

	// 1. Scheme-prefixed URLs
	for _, loc := range schemeURLPattern.FindAllStringIndex(text, -1) {
		raw := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)\"'")
		mergeSet(&intel.URLs, []string{normalizeURL(raw)})
		consumed = append(consumed, span{loc[0], loc[0] + len(raw)})
	}

	// 2. Bare domains, skipping email/UPI hosts and spans already taken
	for _, loc := range bareDomainPattern.FindAllStringIndex(text, -1) {
		if overlaps(consumed, loc[0], loc[1]) {
			continue
		}
		if loc[0] > 0 && text[loc[0]-1] == '@' {
			continue
		}
		raw := strings.TrimRight(text[loc[0]:loc[1]], ".,;:!?)\"'")
		mergeSet(&intel.URLs, []string{normalizeURL(raw)})
		consumed = append(consumed, span{loc[0], loc[0] + len(raw)})
	}

	// 3. UPI identifiers (localpart@handle, handle from the closed set)
	for _, loc := range upiPattern.FindAllStringIndex(text, -1) {
		if overlaps(consumed, loc[0], loc[1]) {
			continue
		}
		raw := strings.ToLower(text[loc[0]:loc[1]])
		at := strings.LastIndexByte(raw, '@')
		if at < 0 || !upiHandles[raw[at+1:]] {
			continue
		}
		mergeSet(&intel.UPIIDs, []string{raw})
		consumed = append(consumed, span{loc[0], loc[1]})
	}

	// 4. Phone numbers
	for _, loc := range phonePattern.FindAllStringIndex(text, -1) {
		if overlaps(consumed, loc[0], loc[1]) {
			continue
		}
		normalized, ok := e.normalizePhone(text[loc[0]:loc[1]])
		if !ok {
			continue
		}
		mergeSet(&intel.Phones, []string{normalized})
		consumed = append(consumed, span{loc[0], loc[1]})
	}

	// 5. Bank accounts: leftover digit runs in the 9-18 bracket
	for _, loc := range bankPattern.FindAllStringIndex(text, -1) {
		if overlaps(consumed, loc[0], loc[1]) {
			continue
		}
		mergeSet(&intel.BankAccounts, []string{text[loc[0]:loc[1]]})
		consumed = append(consumed, span{loc[0], loc[1]})
	}

	return intel
}

// normalizePhone strips separators and applies the default country code.
func (e *Extractor) normalizePhone(raw string) (string, bool) {
	s := phoneSepPattern.ReplaceAllString(raw, "")
	plus := strings.HasPrefix(s, "+")
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 10 || len(digits) > 13 {
		return "", false
	}
	switch {
	case plus:
		return "+" + digits, true
	case len(digits) == 11 && digits[0] == '0':
		return e.countryCode + digits[1:], true
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return "+" + digits, true
	case len(digits) == 10:
		return e.countryCode + digits, true
	}
	return "", false
}

// normalizeURL lower-cases the scheme and host, leaving the path as-is.
func normalizeURL(raw string) string {
	rest := raw
	prefixLen := 0
	if idx := strings.Index(raw, "://"); idx >= 0 {
		prefixLen = idx + 3
		rest = raw[prefixLen:]
	}
	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return strings.ToLower(raw)
	}
	return strings.ToLower(raw[:prefixLen+slash]) + rest[slash:]
}
