package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// CleanText strips HTML markup, unescapes entities and collapses whitespace.
func CleanText(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(raw))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was collected.
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if isRawTextTag(name) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isRawTextTag(name []byte) bool {
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}

// Truncate caps s at max runes, trimming any trailing whitespace left by the cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

var categorySeparators = regexp.MustCompile(`[,;&/|]`)

// NormalizeCategories splits raw category strings on , ; & / and |,
// lower-cases and dedupes them, and keeps at most limit entries.
func NormalizeCategories(raw []string, limit int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, entry := range raw {
		for _, part := range categorySeparators.Split(entry, -1) {
			part = strings.Join(strings.Fields(strings.ToLower(part)), " ")
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// ExtractYear returns the first four-digit run in s, or 0.
func ExtractYear(s string) int {
	m := yearPattern.FindString(s)
	if m == "" {
		return 0
	}
	year := 0
	for _, c := range m {
		year = year*10 + int(c-'0')
	}
	return year
}

var academicPattern = regexp.MustCompile(`(?i)\b(?:textbooks?|handbooks?|manuals?|encyclopa?edias?|dictionar(?:y|ies)|thes[ie]s|dissertations?|proceedings|workbooks?|study guides?|lecture notes|coursebooks?|syllabus|syllabi|exam prep|introduction to|principles of|fundamentals of)\b`)

// AcademicMatch returns the first academic keyword found in any of texts.
func AcademicMatch(texts ...string) (string, bool) {
	for _, text := range texts {
		if m := academicPattern.FindString(text); m != "" {
			return strings.ToLower(m), true
		}
	}
	return "", false
}
