// Package dedup collapses records that describe the same book.
package dedup

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Fold lower-cases s, strips accents and drops everything that is not a
// letter or digit.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	for _, r := range folder.String(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Key is the textual identity of a record: folded title plus the folded,
// sorted author list.
func Key(rec catalog.Record) string {
	authors := rec.AuthorList()
	folded := make([]string, 0, len(authors))
	for _, a := range authors {
		if f := Fold(a); f != "" {
			folded = append(folded, f)
		}
	}
	sort.Strings(folded)
	return Fold(rec.Title) + "|" + strings.Join(folded, ",")
}

// Deduper remembers which books it has seen. It is not safe for concurrent use.
type Deduper struct {
	keys map[string]struct{}
	ids  map[string]struct{}
}

// New returns an empty Deduper.
func New() *Deduper {
	return &Deduper{
		keys: make(map[string]struct{}),
		ids:  make(map[string]struct{}),
	}
}

// SeenAndRecord reports whether rec duplicates an earlier record, by textual
// key or by ExternalID. Unseen records are remembered.
func (d *Deduper) SeenAndRecord(rec catalog.Record) bool {
	key := Key(rec)
	_, keySeen := d.keys[key]
	_, idSeen := d.ids[rec.ExternalID]
	if keySeen || idSeen {
		return true
	}
	d.keys[key] = struct{}{}
	d.ids[rec.ExternalID] = struct{}{}
	return false
}

// Unique returns the records not seen before, in first-seen order.
func (d *Deduper) Unique(records []catalog.Record) []catalog.Record {
	out := make([]catalog.Record, 0, len(records))
	for _, rec := range records {
		if !d.SeenAndRecord(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Len returns how many distinct records have been recorded.
func (d *Deduper) Len() int {
	return len(d.keys)
}
