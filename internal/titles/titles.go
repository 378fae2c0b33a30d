package titles

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pl-listing/lister/internal/models"
)

// DefaultMarketplace is used for unknown marketplace names.
const DefaultMarketplace = "athena_default"

// Marketplace holds the title rules of one sales channel.
type Marketplace struct {
	Name     string
	TitleMax int
	// Priority lists the fields used, in order, when a title has to be rebuilt.
	Priority []string
}

// Field names accepted in Marketplace.Priority.
const (
	FieldManagementNumber = "management_number"
	FieldBrand            = "brand"
	FieldProductType      = "product_type"
	FieldColor            = "color"
	FieldSize             = "size"
)

var Marketplaces = map[string]Marketplace{
	"yahoo":          {"yahoo", 65, []string{FieldManagementNumber, FieldBrand, FieldProductType, FieldColor, FieldSize}},
	"rakuten":        {"rakuten", 127, []string{FieldManagementNumber, FieldBrand, FieldProductType, FieldColor, FieldSize}},
	"amazon":         {"amazon", 127, []string{FieldBrand, FieldProductType, FieldColor, FieldSize, FieldManagementNumber}},
	"mercari":        {"mercari", 80, []string{FieldBrand, FieldProductType, FieldColor}},
	"athena_default": {"athena_default", 140, []string{FieldManagementNumber, FieldBrand, FieldProductType, FieldColor, FieldSize}},
}

// Lookup returns the rules for name, falling back to DefaultMarketplace.
func Lookup(name string) Marketplace {
	if m, ok := Marketplaces[strings.ToLower(strings.TrimSpace(name))]; ok {
		return m
	}
	return Marketplaces[DefaultMarketplace]
}

// Fields are the product values a rebuilt title is assembled from.
type Fields struct {
	ManagementNumber string
	Brand            string
	ProductType      string
	Color            string
	Size             string
}

// FieldsFrom builds Fields from extracted attributes.
func FieldsFrom(id models.ProductID, a models.Attributes) Fields {
	return Fields{
		ManagementNumber: string(id),
		Brand:            a.Brand,
		ProductType:      a.ProductType,
		Color:            a.Color,
		Size:             a.Size,
	}
}

func (f Fields) value(name string) string {
	switch name {
	case FieldManagementNumber:
		return f.ManagementNumber
	case FieldBrand:
		return f.Brand
	case FieldProductType:
		return f.ProductType
	case FieldColor:
		return f.Color
	case FieldSize:
		return f.Size
	}
	return ""
}

const prohibited = `<>"&'\/|*?:;`

var (
	spaceRe      = regexp.MustCompile(`\s+`)
	emptyParenRe = regexp.MustCompile(`\(\s*\)`)
	emptyBrackRe = regexp.MustCompile(`\[\s*\]`)
	dotsRe       = regexp.MustCompile(`\.{2,}`)
	dashesRe     = regexp.MustCompile(`-{2,}`)
	mgmt13Re     = regexp.MustCompile(`\b(\d{13})\b`)
	mgmt12Re     = regexp.MustCompile(`\b(\d{12})\b`)
	letterCodeRe = regexp.MustCompile(`\b([A-Z]{2,4}\d{8,12})\b`)
	hyphenCodeRe = regexp.MustCompile(`\b([A-Z0-9]+(?:-[A-Z0-9]+){2,})\b`)
	leadingNumRe = regexp.MustCompile(`^(\d+)`)
	mgmtPatterns = []*regexp.Regexp{mgmt13Re, mgmt12Re, letterCodeRe, hyphenCodeRe, leadingNumRe}
)

// Clean removes prohibited characters, collapses whitespace and drops empty
// brackets.
func Clean(title string) string {
	if title == "" {
		return title
	}
	title = strings.Map(func(r rune) rune {
		if strings.ContainsRune(prohibited, r) {
			return -1
		}
		return r
	}, title)
	title = strings.TrimSpace(spaceRe.ReplaceAllString(title, " "))
	title = emptyParenRe.ReplaceAllString(title, "")
	title = emptyBrackRe.ReplaceAllString(title, "")
	title = dotsRe.ReplaceAllString(title, "...")
	title = dashesRe.ReplaceAllString(title, "-")
	return strings.TrimSpace(spaceRe.ReplaceAllString(title, " "))
}

// ExtractManagementNumber finds a product code in title, preferring 13 digits.
func ExtractManagementNumber(title string) string {
	title = strings.TrimSpace(title)
	for _, re := range mgmtPatterns {
		if m := re.FindStringSubmatch(title); m != nil {
			return m[1]
		}
	}
	return ""
}

// Length is the character count used for marketplace limits.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// Optimize cleans title and, when it is over the marketplace limit, rebuilds
// it from the management number and the marketplace's priority fields.
// The second result reports whether the title was rebuilt.
func Optimize(title, marketplace string, f Fields) (string, bool) {
	m := Lookup(marketplace)
	cleaned := Clean(title)
	if Length(cleaned) <= m.TitleMax {
		return cleaned, false
	}

	var parts []string
	mgmt := ExtractManagementNumber(cleaned)
	if mgmt == "" && f.ManagementNumber != "" {
		mgmt = ExtractManagementNumber(f.ManagementNumber)
	}
	if mgmt != "" {
		parts = append(parts, mgmt)
	}

	for _, name := range m.Priority {
		if name == FieldManagementNumber {
			continue
		}
		v := cleanField(f.value(name))
		if models.IsUnknown(v) {
			continue
		}
		remaining := m.TitleMax - Length(strings.Join(parts, " ")) - 1
		if Length(v) <= remaining {
			parts = append(parts, v)
			continue
		}
		if remaining > 5 {
			parts = append(parts, truncate(v, remaining-3)+"...")
		}
		break
	}

	out := strings.Join(parts, " ")
	if Length(out) > m.TitleMax {
		out = truncate(out, m.TitleMax-3) + "..."
	}
	return Clean(out), true
}

func cleanField(v string) string {
	v = strings.TrimSpace(spaceRe.ReplaceAllString(v, " "))
	v = emptyParenRe.ReplaceAllString(v, "")
	if isLower(v) {
		r, size := utf8.DecodeRuneInString(v)
		v = string(unicode.ToUpper(r)) + v[size:]
	}
	return v
}

func isLower(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsUpper(r) {
			return false
		}
		if unicode.IsLower(r) {
			cased = true
		}
	}
	return cased
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
