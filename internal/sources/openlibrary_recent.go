package sources

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/querygen"
)

// OpenLibraryRecentName identifies records found by the newest-first search.
const OpenLibraryRecentName = "openlibrary_recent"

type searchResponse struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	Subject          []string `json:"subject"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverI           int      `json:"cover_i"`
	ISBN             []string `json:"isbn"`
}

// OpenLibraryRecent searches OpenLibrary for the newest works in a genre.
type OpenLibraryRecent struct {
	client   *client
	lookup   Lookup
	pageSize int
	batch    batchSettings
}

// NewOpenLibraryRecent creates the newest-first search fetcher. lookup may be nil.
func NewOpenLibraryRecent(s config.SourceSettings, lookup Lookup, opts ...Option) *OpenLibraryRecent {
	return &OpenLibraryRecent{
		client:   newClient(OpenLibraryRecentName, s, opts),
		lookup:   lookup,
		pageSize: max(s.PageSize, 1),
		batch:    batchSettings{size: s.BatchSize, delay: s.InterBatchDelay},
	}
}

// Name implements Fetcher.
func (o *OpenLibraryRecent) Name() string { return OpenLibraryRecentName }

// Policy implements Fetcher.
func (o *OpenLibraryRecent) Policy() normalize.Policy {
	return normalize.SubjectPolicy(OpenLibraryRecentName)
}

// Fetch implements Fetcher. Sorting by date makes the year and qualifier
// irrelevant, so one request is made per genre and page.
func (o *OpenLibraryRecent) Fetch(ctx context.Context, queries []querygen.Query, budget int) []normalize.RawItem {
	items := runBatches(ctx, OpenLibraryRecentName, o.batch, uniqueGenres(queries), budget, o.search)
	o.client.metrics.AddFetched(OpenLibraryRecentName, len(items))
	return items
}

func uniqueGenres(queries []querygen.Query) []querygen.Query {
	seen := make(map[string]struct{})
	var out []querygen.Query
	for _, q := range queries {
		genre := strings.ToLower(strings.TrimSpace(q.Genre))
		if genre == "" {
			continue
		}
		key := genre + "|" + strconv.Itoa(q.Page)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, querygen.Query{Genre: q.Genre, Page: q.Page})
	}
	return out
}

func (o *OpenLibraryRecent) searchURL(q querygen.Query) string {
	params := url.Values{}
	params.Set("q", strings.ToLower(q.Genre))
	params.Set("sort", "new")
	params.Set("has_fulltext", "false")
	params.Set("limit", strconv.Itoa(o.pageSize))
	params.Set("page", strconv.Itoa(q.Page+1))
	return o.client.baseURL + "/search.json?" + params.Encode()
}

func (o *OpenLibraryRecent) search(ctx context.Context, q querygen.Query) ([]normalize.RawItem, error) {
	var resp searchResponse
	if err := o.client.getJSON(ctx, o.searchURL(q), &resp); err != nil {
		return nil, err
	}
	slog.Debug("Recent search", "genre", q.Genre, "page", q.Page, "found", resp.NumFound, "docs", len(resp.Docs))

	items := make([]normalize.RawItem, 0, len(resp.Docs))
	for _, d := range resp.Docs {
		work := normalize.SubjectAPIWork{
			Key:              d.Key,
			Title:            d.Title,
			Authors:          d.AuthorName,
			Subjects:         d.Subject,
			FirstPublishYear: d.FirstPublishYear,
			CoverID:          d.CoverI,
			GenreHint:        q.Genre,
		}
		work.Supplemental = withDocISBN(supplementWork(ctx, o.lookup, OpenLibraryRecentName, work), d.ISBN)
		items = append(items, work)
	}
	return items, nil
}

// withDocISBN fills ISBNs the lookup did not find from the search document.
func withDocISBN(sup *normalize.Supplement, isbns []string) *normalize.Supplement {
	var isbn10, isbn13 string
	for _, isbn := range isbns {
		switch {
		case len(isbn) == 10 && isbn10 == "":
			isbn10 = isbn
		case len(isbn) == 13 && isbn13 == "":
			isbn13 = isbn
		}
	}
	if isbn10 == "" && isbn13 == "" {
		return sup
	}
	var out normalize.Supplement
	if sup != nil {
		out = *sup
	}
	if out.ISBN10 == "" && out.ISBN13 == "" {
		out.ISBN10, out.ISBN13 = isbn10, isbn13
	}
	return &out
}
