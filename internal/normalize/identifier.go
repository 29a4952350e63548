package normalize

import (
	"strings"
	"unicode"
)

// cleanISBN strips hyphens and whitespace and upper-cases a trailing x.
func cleanISBN(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// ValidISBN10 reports whether s has the ISBN-10 shape: nine digits followed by
// a digit or X. The check digit itself is not verified.
func ValidISBN10(s string) bool {
	if len(s) != 10 {
		return false
	}
	for i := range 9 {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	last := s[9]
	return (last >= '0' && last <= '9') || last == 'X'
}

// ISBN10CheckDigit computes the check character for nine ISBN-10 digits.
func ISBN10CheckDigit(first9 string) byte {
	sum := 0
	for i := range 9 {
		sum += (10 - i) * int(first9[i]-'0')
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'X'
	}
	return byte('0' + check)
}

// ISBN13To10 converts a 978-prefixed ISBN-13 to ISBN-10. It returns false for
// any other prefix, since 979 numbers have no ISBN-10 form.
func ISBN13To10(isbn13 string) (string, bool) {
	s := cleanISBN(isbn13)
	if len(s) != 13 || !strings.HasPrefix(s, "978") || strings.ContainsRune(s, 'X') {
		return "", false
	}
	core := s[3:12]
	return core + string(ISBN10CheckDigit(core)), true
}

// resolveIdentifier picks the record id. The bool reports whether the id is a
// real ISBN rather than a synthesized one.
func (n *Normalizer) resolveIdentifier(isbn10, isbn13, sourceKey string) (string, bool) {
	if s := cleanISBN(isbn10); ValidISBN10(s) {
		return s, true
	}
	if s, ok := ISBN13To10(isbn13); ok {
		return s, true
	}
	return n.ids.Generate(sourceKey), false
}
