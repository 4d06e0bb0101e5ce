package matching

import (
	"strings"
)

const (
	// vendorNameLength is KotaPay's individual-name field width. The
	// vendor truncates to this length on its side, sometimes cutting a
	// business suffix mid-word, so normalization truncates identically.
	vendorNameLength = 20

	// DefaultPrefixLength is the comparison prefix used when full
	// normalization of the two sides can diverge (vendor truncation vs
	// local suffix stripping).
	DefaultPrefixLength = 12

	// MinPrefixLength is the shortest prefix considered reliable enough
	// for fallback matching.
	MinPrefixLength = 6
)

// businessSuffixes are trailing tokens stripped before comparison. PLL is
// PLLC after the vendor's 20-char truncation cut it mid-word.
var businessSuffixes = map[string]bool{
	"LLC":         true,
	"INC":         true,
	"PA":          true,
	"PLLC":        true,
	"PLL":         true,
	"DBA":         true,
	"MD":          true,
	"DDS":         true,
	"PC":          true,
	"CORP":        true,
	"LTD":         true,
	"LP":          true,
	"GP":          true,
	"ASSOC":       true,
	"ASSOCIATES":  true,
	"ASSOCIATION": true,
}

var namePunctuationReplacer = strings.NewReplacer(
	",", "",
	".", "",
	"'", "",
	`"`, "",
	"&", "",
)

// NormalizeName canonicalizes a free-text payee name for comparison:
// uppercase, punctuation stripped, one trailing business-suffix token
// removed, whitespace collapsed, truncated to the vendor's field width.
func NormalizeName(name string) string {
	fields := strings.Fields(cleanName(name))
	if len(fields) > 1 && businessSuffixes[fields[len(fields)-1]] {
		fields = fields[:len(fields)-1]
	}

	s := strings.Join(fields, " ")
	if len(s) > vendorNameLength {
		s = strings.TrimSpace(s[:vendorNameLength])
	}
	return s
}

// NamePrefix returns the first length characters of the cleaned name. No
// suffix stripping: the prefix exists precisely for the cases where suffix
// stripping and vendor truncation disagree about the tail of the name.
func NamePrefix(name string, length int) string {
	s := strings.Join(strings.Fields(cleanName(name)), " ")
	if len(s) > length {
		s = strings.TrimSpace(s[:length])
	}
	return s
}

func cleanName(name string) string {
	return namePunctuationReplacer.Replace(strings.ToUpper(name))
}
