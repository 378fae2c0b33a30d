package grouping

import (
	"strings"

	"github.com/pl-listing/lister/internal/models"
)

// ManagementNumberLength is the digit count of the management number
// embedded in product photo filenames.
const ManagementNumberLength = 13

// ExtractID derives a product identifier from a bare filename (no directory).
//
// In priority order: the first digit run of exactly 13 digits, the first digit
// run of any length, and finally the filename without its extension. Only
// ASCII digits count, so the result does not depend on locale.
func ExtractID(filename string) models.ProductID {
	stem := stripExt(filename)

	var first string
	for _, run := range digitRuns(stem) {
		if len(run) == ManagementNumberLength {
			return models.ProductID(run)
		}
		if first == "" {
			first = run
		}
	}
	if first != "" {
		return models.ProductID(first)
	}
	return models.ProductID(stem)
}

// stripExt removes the final extension. A name that is only an extension
// (".jpg") is returned unchanged.
func stripExt(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name
	}
	return name[:i]
}

// Ext returns the lower-cased extension without the dot, or "" when there is none.
func Ext(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		switch {
		case isDigit && start < 0:
			start = i
		case !isDigit && start >= 0:
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}
