package service

import (
	"regexp"
	"strings"
	"unicode"
)

// An identifier or call, optionally chained with dots: FirstName,
// Trim(FirstName), FirstName.strip().upper().
var expressionPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\([^)]*\))?(\.[a-zA-Z_][a-zA-Z0-9_]*(\([^)]*\))?)*$`)

// Compound expressions are accepted when they use one of these functions.
var knownFunctions = []string{"upper", "lower", "strip", "title", "replace", "substring", "left", "right"}

// ValidateExpression reports whether expr is an acceptable mapping expression.
func ValidateExpression(expr string) bool {
	compact := strings.ReplaceAll(expr, " ", "")
	if expressionPattern.MatchString(compact) {
		return true
	}
	lower := strings.ToLower(compact)
	for _, fn := range knownFunctions {
		if strings.Contains(lower, fn) {
			return true
		}
	}
	return false
}

// PreviewTransformation applies the first recognised case or trim function
// in expr to sample. Other expressions leave sample unchanged.
func PreviewTransformation(expr, sample string) string {
	lower := strings.ToLower(expr)
	switch {
	case strings.Contains(lower, "upper("):
		return strings.ToUpper(sample)
	case strings.Contains(lower, "lower("):
		return strings.ToLower(sample)
	case strings.Contains(lower, "strip("), strings.Contains(lower, "trim("):
		return strings.TrimSpace(sample)
	case strings.Contains(lower, "title("):
		return titleCase(sample)
	}
	return sample
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "o'neil-SMITH" becomes "O'Neil-Smith".
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
