package nurseries

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugLen = 80

// Slugify lower-cases name and collapses every run of non-alphanumerics into a
// single hyphen.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "nursery"
	}
	return slug
}

// slugWithSuffix disambiguates a taken slug with a short random suffix.
func slugWithSuffix(base string) string {
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}
