// Package catalog defines the canonical book record that flows through the
// ingestion pipeline and the projections persisted from it.
package catalog

import (
	"strings"
	"time"
)

// Record is the validated, normalized representation of one catalog item.
// Records are immutable once accepted: stores only ever insert them.
type Record struct {
	// ExternalID is the store key, usually an ISBN-10, synthesized when the
	// source has none.
	ExternalID string `json:"isbn10"`

	Title string `json:"title"`

	// Authors is a comma-joined author list.
	Authors string `json:"authors"`

	// Categories is a comma-joined, lowercase genre list.
	Categories string `json:"categories"`

	ThumbnailURL  string  `json:"thumbnail"`
	Description   string  `json:"description"`
	PublishedYear int     `json:"published_year"`
	AverageRating float64 `json:"average_rating"`
	RatingsCount  int     `json:"ratings_count"`

	// Source names the fetcher that produced the record.
	Source string `json:"source,omitempty"`

	// IngestedAt is stamped by the sync step right before the insert.
	IngestedAt time.Time `json:"ingested_at"`
}

// AuthorList splits the comma-joined author string.
func (r Record) AuthorList() []string {
	return SplitList(r.Authors)
}

// PrimaryAuthor returns the first listed author or an empty string.
func (r Record) PrimaryAuthor() string {
	authors := r.AuthorList()
	if len(authors) == 0 {
		return ""
	}
	return authors[0]
}

// SplitList splits a comma-joined list, dropping empty entries.
func SplitList(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinList joins values the way Record stores list fields.
func JoinList(values []string) string {
	return strings.Join(values, ", ")
}

// SharesAuthor reports whether two comma-joined author lists have at least
// one author in common, compared case-insensitively.
func SharesAuthor(a, b string) bool {
	seen := make(map[string]struct{})
	for _, name := range SplitList(a) {
		seen[strings.ToLower(name)] = struct{}{}
	}
	for _, name := range SplitList(b) {
		if _, ok := seen[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}
