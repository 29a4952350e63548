package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/querygen"
)

// OpenLibraryName identifies records fetched from OpenLibrary.
const OpenLibraryName = "openlibrary"

// Lookup completes a subject work with data from a search API.
type Lookup interface {
	Lookup(ctx context.Context, title, author string) (*normalize.Supplement, error)
}

type subjectResponse struct {
	Name      string        `json:"name"`
	WorkCount int           `json:"work_count"`
	Works     []subjectWork `json:"works"`
}

type subjectWork struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Subject          []string `json:"subject"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_id"`
}

// OpenLibrary browses OpenLibrary subjects, optionally completing each work
// through a Lookup.
type OpenLibrary struct {
	client   *client
	lookup   Lookup
	pageSize int
	batch    batchSettings
}

// NewOpenLibrary creates an OpenLibrary subject fetcher. lookup may be nil.
func NewOpenLibrary(s config.SourceSettings, lookup Lookup, opts ...Option) *OpenLibrary {
	return &OpenLibrary{
		client:   newClient(OpenLibraryName, s, opts),
		lookup:   lookup,
		pageSize: max(s.PageSize, 1),
		batch:    batchSettings{size: s.BatchSize, delay: s.InterBatchDelay},
	}
}

// Name implements Fetcher.
func (o *OpenLibrary) Name() string { return OpenLibraryName }

// Policy implements Fetcher. Subject works rarely carry descriptions, so
// short ones are backfilled and missing covers get the stock image.
func (o *OpenLibrary) Policy() normalize.Policy { return normalize.SubjectPolicy(OpenLibraryName) }

// Fetch implements Fetcher. Queries that map to the same subject, year and
// page are requested once.
func (o *OpenLibrary) Fetch(ctx context.Context, queries []querygen.Query, budget int) []normalize.RawItem {
	items := runBatches(ctx, OpenLibraryName, o.batch, uniqueSubjects(queries), budget, o.browse)
	o.client.metrics.AddFetched(OpenLibraryName, len(items))
	return items
}

func uniqueSubjects(queries []querygen.Query) []querygen.Query {
	seen := make(map[string]struct{})
	var out []querygen.Query
	for _, q := range queries {
		key := fmt.Sprintf("%s|%d|%d", q.Subject(), q.Year, q.Page)
		if q.Subject() == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, querygen.Query{Genre: q.Genre, Year: q.Year, Page: q.Page})
	}
	return out
}

func (o *OpenLibrary) subjectURL(q querygen.Query) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(o.pageSize))
	params.Set("offset", strconv.Itoa(q.Page*o.pageSize))
	if q.Year > 0 {
		params.Set("published_in", fmt.Sprintf("%d-%d", q.Year, q.Year))
	}
	return o.client.baseURL + "/subjects/" + url.PathEscape(q.Subject()) + ".json?" + params.Encode()
}

func (o *OpenLibrary) browse(ctx context.Context, q querygen.Query) ([]normalize.RawItem, error) {
	var resp subjectResponse
	if err := o.client.getJSON(ctx, o.subjectURL(q), &resp); err != nil {
		return nil, err
	}

	items := make([]normalize.RawItem, 0, len(resp.Works))
	for _, w := range resp.Works {
		work := normalize.SubjectAPIWork{
			Key:              w.Key,
			Title:            w.Title,
			Subjects:         w.Subject,
			FirstPublishYear: w.FirstPublishYear,
			CoverID:          w.CoverID,
			GenreHint:        q.Genre,
		}
		for _, a := range w.Authors {
			work.Authors = append(work.Authors, a.Name)
		}
		work.Supplemental = supplementWork(ctx, o.lookup, OpenLibraryName, work)
		items = append(items, work)
	}
	return items, nil
}

// supplementWork runs the per-work lookup. Failures leave the work as it is.
func supplementWork(ctx context.Context, lookup Lookup, source string, work normalize.SubjectAPIWork) *normalize.Supplement {
	if lookup == nil || work.Title == "" || ctx.Err() != nil {
		return nil
	}

	author := ""
	if len(work.Authors) > 0 {
		author = work.Authors[0]
	}

	sup, err := lookup.Lookup(ctx, work.Title, author)
	if err != nil {
		slog.Debug("Supplemental lookup failed", "source", source, "title", work.Title, "error", err)
		return nil
	}
	return sup
}
