// Package textfilter softens narration for family content ratings.
package textfilter

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// replacements maps strong language to family-friendly alternatives.
var replacements = map[string]string{
	"fuck":         "fudge",
	"shit":         "shoot",
	"damn":         "dang",
	"hell":         "heck",
	"ass":          "butt",
	"bitch":        "jerk",
	"bastard":      "jerk",
	"crap":         "crud",
	"piss":         "ticked",
	"whore":        "[censored]",
	"slut":         "[censored]",
	"motherfucker": "mother-trucker",
	"goddamn":      "gosh-dang",
	"jesus christ": "jeez",
	"christ":       "crikey",
	"asshole":      "jerk",
	"dumbass":      "dummy",
	"jackass":      "jerk",
	"smartass":     "smarty",
	"badass":       "tough",
	"bullshit":     "baloney",
	"horseshit":    "nonsense",
	"dipshit":      "dummy",
	"shithead":     "jerk",
	"dickhead":     "jerk",
	"prick":        "jerk",
	"douche":       "jerk",
	"douchebag":    "jerk",
}

// Filter replaces strong language with family-friendly alternatives.
type Filter struct {
	words   []string
	regexes map[string]*regexp.Regexp
}

// New creates a filter with patterns compiled for every known word.
func New() *Filter {
	f := &Filter{
		words:   make([]string, 0, len(replacements)),
		regexes: make(map[string]*regexp.Regexp, len(replacements)),
	}

	for word := range replacements {
		f.words = append(f.words, word)
	}
	// Longest first so multi-word entries win over their suffixes
	// ("jesus christ" before "christ").
	sort.Slice(f.words, func(i, j int) bool {
		if len(f.words[i]) != len(f.words[j]) {
			return len(f.words[i]) > len(f.words[j])
		}
		return f.words[i] < f.words[j]
	})

	for _, word := range f.words {
		// Optional trailing s covers simple plurals.
		pattern := `(?i)\b` + regexp.QuoteMeta(word) + `s?\b`
		f.regexes[word] = regexp.MustCompile(pattern)
	}

	return f
}

// Apply replaces strong language in text, preserving the case pattern
// and plural form of each match.
func (f *Filter) Apply(text string) string {
	result := text
	for _, word := range f.words {
		replacement := replacements[word]
		result = f.regexes[word].ReplaceAllStringFunc(result, func(match string) string {
			r := replacement
			if len(match) > len(word) {
				r += "s"
			}
			return preserveCase(match, r)
		})
	}
	return result
}

// Matches reports whether text contains any filtered language.
func (f *Filter) Matches(text string) bool {
	for _, word := range f.words {
		if f.regexes[word].MatchString(text) {
			return true
		}
	}
	return false
}

// preserveCase applies the case pattern of the original word to the
// replacement.
func preserveCase(original, replacement string) string {
	if len(original) == 0 {
		return replacement
	}

	if strings.ToUpper(original) == original {
		return strings.ToUpper(replacement)
	}

	if strings.ToLower(original) == original {
		return strings.ToLower(replacement)
	}

	titleCaser := cases.Title(language.English)
	if titleCaser.String(strings.ToLower(original)) == original {
		return titleCaser.String(replacement)
	}

	// Mixed case: carry the case of each original character across.
	result := make([]rune, 0, len(replacement))
	originalRunes := []rune(original)
	for i, r := range replacement {
		if i < len(originalRunes) && unicode.IsUpper(originalRunes[i]) {
			result = append(result, unicode.ToUpper(r))
		} else {
			result = append(result, unicode.ToLower(r))
		}
	}
	return string(result)
}

// ShouldFilterContent reports whether narration under the given rating
// must pass through the filter.
func ShouldFilterContent(rating string) bool {
	rating = strings.ToUpper(strings.TrimSpace(rating))
	switch rating {
	case "G", "PG", "PG13", "PG-13":
		return true
	default:
		return false
	}
}
