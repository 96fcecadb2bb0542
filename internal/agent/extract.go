package agent

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"shuttle-market/internal/domain"
)

// ErrInvalidValue is returned when an update value cannot be coerced
var ErrInvalidValue = errors.New("invalid value")

// maxNameWords is how many leading words become the name in free-form parsing
const maxNameWords = 4

// ProposedFields is a best-effort reading of a free-text product description.
// Nothing in it is authoritative; an empty Name means extraction failed.
type ProposedFields struct {
	Name        string
	Price       int64
	PriceFound  bool
	Description string
	Brand       string
	Category    domain.Category
	Condition   domain.Condition
	Stock       *int
	Specs       map[string]string
}

var (
	thousandsSep = regexp.MustCompile(`(\d),(\d{3})\b`)

	// A whole segment that is only a price, e.g. "15000", "Rs. 15k", "PKR 4,500/-"
	priceSegment = regexp.MustCompile(`(?i)^(?:rs\.?|pkr|₨|price)?\s*:?\s*(\d+(?:\.\d+)?)\s*(k)?\s*(?:/-|rs|pkr|rupees)?$`)

	currencyPrice = regexp.MustCompile(`(?i)(?:\brs\.?|\bpkr|₨|\bprice)\s*:?\s*(\d+(?:\.\d+)?)\s*(k\b)?`)
	thousandPrice = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*k\b`)
	barePrice     = regexp.MustCompile(`\b(\d{3,})\b`)

	stockPattern  = regexp.MustCompile(`(?i)\b(?:stock|qty|quantity)\s*:?\s*(\d+)\b|\b(\d+)\s*(?:pcs|pieces|units)\b`)
	weightPattern = regexp.MustCompile(`(?i)\b([2-6])u\b`)
	sizePattern   = regexp.MustCompile(`(?i)\b(?:size|uk|eu)\s*:?\s*(\d{1,2}(?:\.5)?)\b`)
)

var knownBrands = []struct {
	token string
	name  string
}{
	{"yonex", "Yonex"},
	{"li-ning", "Li-Ning"},
	{"lining", "Li-Ning"},
	{"li ning", "Li-Ning"},
	{"victor", "Victor"},
	{"apacs", "Apacs"},
	{"ashaway", "Ashaway"},
	{"carlton", "Carlton"},
	{"babolat", "Babolat"},
	{"mizuno", "Mizuno"},
	{"asics", "Asics"},
	{"kawasaki", "Kawasaki"},
	{"felet", "Felet"},
	{"forza", "FZ Forza"},
	{"adidas", "Adidas"},
	{"nike", "Nike"},
	{"dunlop", "Dunlop"},
	{"wilson", "Wilson"},
}

var categoryKeywords = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategoryRackets, []string{"racket", "rackets", "racquet", "racquets", "raquet"}},
	{domain.CategoryShoes, []string{"shoe", "shoes", "sneaker", "sneakers", "trainers"}},
	{domain.CategoryShuttles, []string{"shuttle", "shuttles", "shuttlecock", "shuttlecocks", "feather", "nylon", "cock"}},
	{domain.CategoryBags, []string{"bag", "bags", "kitbag", "backpack", "thermobag"}},
	{domain.CategoryApparel, []string{"shirt", "tshirt", "t-shirt", "shorts", "jersey", "apparel", "socks", "trouser", "tracksuit", "skirt"}},
	{domain.CategoryAccessories, []string{"grip", "grips", "string", "strings", "towel", "wristband", "headband", "overgrip"}},
}

var productKeywords = map[string]bool{
	"add": true, "price": true, "rs": true, "rs.": true, "pkr": true, "sell": true, "selling": true,
	"brand": true, "new": true, "used": true, "stock": true, "condition": true,
}

var fillerWords = map[string]bool{
	"add": true, "adding": true, "sell": true, "selling": true, "for": true,
	"price": true, "rs": true, "rs.": true, "pkr": true, "only": true, "is": true,
}

// LooksLikeProductDescription is the keyword heuristic that decides whether idle text is buffered
func LooksLikeProductDescription(text string) bool {
	lower := strings.ToLower(text)
	for _, word := range strings.Fields(normalizeWords(text)) {
		if productKeywords[word] {
			return true
		}
	}
	for _, group := range categoryKeywords {
		for _, w := range group.words {
			if containsWord(lower, w) {
				return true
			}
		}
	}
	return detectBrand(lower) != ""
}

// ExtractProductDetails reads name, price and the optional attributes out of free text
func ExtractProductDetails(text string) ProposedFields {
	text = thousandsSep.ReplaceAllString(strings.TrimSpace(text), "$1$2")

	var fields ProposedFields
	if segments := splitSegments(text); len(segments) >= 2 {
		fields = parseSegments(text, segments)
	} else {
		fields = parseFreeform(text)
	}

	lower := strings.ToLower(text)
	fields.Brand = detectBrand(lower)
	fields.Category = detectCategory(lower)
	fields.Condition = detectCondition(lower)
	fields.Stock = detectStock(text)
	fields.Specs = detectSpecs(text, fields.Category)
	return fields
}

func splitSegments(text string) []string {
	parts := strings.Split(text, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// parseSegments handles "name, price, description...". The first later segment that is a
// price wins; every other segment goes to the description in order.
func parseSegments(text string, segments []string) ProposedFields {
	fields := ProposedFields{}
	name := segments[0]
	rest := []string{}

	for _, seg := range segments[1:] {
		if !fields.PriceFound {
			if price, ok := parsePriceSegment(seg); ok {
				fields.Price = price
				fields.PriceFound = true
				continue
			}
		}
		rest = append(rest, seg)
	}

	if !fields.PriceFound {
		// The price may be inside the name or a description segment
		if price, span, ok := findPrice(text); ok {
			fields.Price = price
			fields.PriceFound = true
			matched := text[span[0]:span[1]]
			if strings.Contains(name, matched) {
				name = strings.TrimSpace(strings.Replace(name, matched, "", 1))
			} else {
				for i, seg := range rest {
					if strings.Contains(seg, matched) {
						rest[i] = strings.TrimSpace(strings.Replace(seg, matched, "", 1))
						break
					}
				}
			}
		}
	}

	fields.Name = strings.Trim(strings.Join(trimFiller(strings.Fields(name)), " "), " -:")
	fields.Description = joinNonEmpty(rest, ", ")
	return fields
}

func parseFreeform(text string) ProposedFields {
	fields := ProposedFields{}
	remaining := text

	if price, span, ok := findPrice(text); ok {
		fields.Price = price
		fields.PriceFound = true
		remaining = text[:span[0]] + " " + text[span[1]:]
	}

	words := trimFiller(strings.Fields(remaining))
	n := min(len(words), maxNameWords)
	fields.Name = strings.Trim(strings.Join(words[:n], " "), " -:")
	fields.Description = strings.Join(words[n:], " ")
	return fields
}

// trimFiller drops leading words like "add" or "selling" that are not part of a name
func trimFiller(words []string) []string {
	for len(words) > 0 && fillerWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return words
}

func parsePriceSegment(seg string) (int64, bool) {
	m := priceSegment.FindStringSubmatch(strings.TrimSpace(seg))
	if m == nil {
		return 0, false
	}
	return toRupees(m[1], m[2] != "")
}

// findPrice looks for a currency-prefixed amount, then "<n>k", then a bare 3+ digit number.
// It returns the amount and the byte span of the match.
func findPrice(text string) (int64, []int, bool) {
	if m := currencyPrice.FindStringSubmatchIndex(text); m != nil {
		price, ok := toRupees(text[m[2]:m[3]], m[4] >= 0)
		return price, m[:2], ok
	}
	if m := thousandPrice.FindStringSubmatchIndex(text); m != nil {
		price, ok := toRupees(text[m[2]:m[3]], true)
		return price, m[:2], ok
	}
	if m := barePrice.FindStringSubmatchIndex(text); m != nil {
		price, ok := toRupees(text[m[2]:m[3]], false)
		return price, m[:2], ok
	}
	return 0, nil, false
}

func toRupees(number string, thousands bool) (int64, bool) {
	v, err := strconv.ParseFloat(number, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	if thousands {
		v *= 1000
	}
	if v > math.MaxInt32*1000.0 {
		return 0, false
	}
	return int64(math.Round(v)), true
}

func detectBrand(lower string) string {
	for _, b := range knownBrands {
		if containsWord(lower, b.token) {
			return b.name
		}
	}
	return ""
}

func detectCategory(lower string) domain.Category {
	for _, group := range categoryKeywords {
		for _, w := range group.words {
			if containsWord(lower, w) {
				return group.category
			}
		}
	}
	return domain.CategoryAccessories
}

func detectCondition(lower string) domain.Condition {
	for _, w := range []string{"used", "second hand", "secondhand", "pre-owned", "preowned"} {
		if containsWord(lower, w) {
			return domain.ConditionUsed
		}
	}
	return domain.ConditionNew
}

func detectStock(text string) *int {
	m := stockPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	raw := m[1]
	if raw == "" {
		raw = m[2]
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}

func detectSpecs(text string, category domain.Category) map[string]string {
	specs := map[string]string{}
	switch category {
	case domain.CategoryRackets:
		if m := weightPattern.FindStringSubmatch(text); m != nil {
			specs["weight"] = m[1] + "U"
		}
	case domain.CategoryShoes, domain.CategoryApparel:
		if m := sizePattern.FindStringSubmatch(text); m != nil {
			specs["size"] = m[1]
		}
	}
	return specs
}

func containsWord(lower, word string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		if isBoundary(lower, start-1) && isBoundary(lower, end) {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}

func joinNonEmpty(parts []string, sep string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// CoercePrice strips everything but digits ("15k" means 15000) and rejects empty results
func CoercePrice(input string) (int64, error) {
	lower := strings.ToLower(strings.TrimSpace(input))
	lower = thousandsSep.ReplaceAllString(lower, "$1$2")

	if m := thousandPrice.FindStringSubmatch(lower); m != nil {
		if price, ok := toRupees(m[1], true); ok {
			return price, nil
		}
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, lower)
	if digits == "" {
		return 0, ErrInvalidValue
	}
	price, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || price > math.MaxInt32*1000 {
		return 0, ErrInvalidValue
	}
	return price, nil
}

// CoerceStock accepts a non-negative integer that fits the INTEGER stock column
func CoerceStock(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 0 || n > math.MaxInt32 {
		return 0, ErrInvalidValue
	}
	return n, nil
}

// CoerceName trims the input and rejects blanks
func CoerceName(input string) (string, error) {
	name := strings.Join(strings.Fields(input), " ")
	if name == "" || len([]rune(name)) > 255 {
		return "", ErrInvalidValue
	}
	return name, nil
}
