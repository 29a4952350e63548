package sources

import (
	"context"
	"net/url"
	"strconv"

	"github.com/lepinkainen/bookfeed/internal/config"
	"github.com/lepinkainen/bookfeed/internal/normalize"
	"github.com/lepinkainen/bookfeed/internal/querygen"
)

// GoogleBooksName identifies records fetched from Google Books.
const GoogleBooksName = "googlebooks"

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	AverageRating       float64  `json:"averageRating"`
	RatingsCount        int      `json:"ratingsCount"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		SmallThumbnail string `json:"smallThumbnail"`
		Thumbnail      string `json:"thumbnail"`
	} `json:"imageLinks"`
}

func (v volumeInfo) isbns() (isbn10, isbn13 string) {
	for _, id := range v.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			isbn10 = id.Identifier
		case "ISBN_13":
			isbn13 = id.Identifier
		}
	}
	return isbn10, isbn13
}

func (v volumeInfo) thumbnail() string {
	if v.ImageLinks.Thumbnail != "" {
		return v.ImageLinks.Thumbnail
	}
	return v.ImageLinks.SmallThumbnail
}

// GoogleBooks searches Google Books volumes by free-text relevance.
type GoogleBooks struct {
	client   *client
	apiKey   string
	pageSize int
	batch    batchSettings
}

// NewGoogleBooks creates a Google Books fetcher.
func NewGoogleBooks(s config.SourceSettings, opts ...Option) *GoogleBooks {
	return &GoogleBooks{
		client:   newClient(GoogleBooksName, s, opts),
		apiKey:   s.APIKey,
		pageSize: max(s.PageSize, 1),
		batch:    batchSettings{size: s.BatchSize, delay: s.InterBatchDelay},
	}
}

// Name implements Fetcher.
func (g *GoogleBooks) Name() string { return GoogleBooksName }

// Policy implements Fetcher. Search results must carry their own description
// and image.
func (g *GoogleBooks) Policy() normalize.Policy { return normalize.SearchPolicy(GoogleBooksName) }

// Fetch implements Fetcher.
func (g *GoogleBooks) Fetch(ctx context.Context, queries []querygen.Query, budget int) []normalize.RawItem {
	items := runBatches(ctx, GoogleBooksName, g.batch, queries, budget, g.search)
	g.client.metrics.AddFetched(GoogleBooksName, len(items))
	return items
}

func (g *GoogleBooks) volumesURL(q string, maxResults, startIndex int) string {
	params := url.Values{}
	params.Set("q", q)
	params.Set("orderBy", "relevance")
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("startIndex", strconv.Itoa(startIndex))
	params.Set("printType", "books")
	params.Set("langRestrict", "en")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	return g.client.baseURL + "/volumes?" + params.Encode()
}

func (g *GoogleBooks) search(ctx context.Context, q querygen.Query) ([]normalize.RawItem, error) {
	var resp volumesResponse
	if err := g.client.getJSON(ctx, g.volumesURL(q.Text(), g.pageSize, q.Page*g.pageSize), &resp); err != nil {
		return nil, err
	}

	items := make([]normalize.RawItem, 0, len(resp.Items))
	for _, v := range resp.Items {
		info := v.VolumeInfo
		isbn10, isbn13 := info.isbns()
		items = append(items, normalize.SearchAPIItem{
			VolumeID:      v.ID,
			Title:         info.Title,
			Subtitle:      info.Subtitle,
			Authors:       info.Authors,
			Categories:    info.Categories,
			Description:   info.Description,
			PublishedDate: info.PublishedDate,
			ISBN10:        isbn10,
			ISBN13:        isbn13,
			Thumbnail:     info.thumbnail(),
			AverageRating: info.AverageRating,
			RatingsCount:  info.RatingsCount,
			GenreHint:     q.Genre,
		})
	}
	return items, nil
}

// Lookup finds the best single volume for a title and author. It returns
// nil when nothing matches.
func (g *GoogleBooks) Lookup(ctx context.Context, title, author string) (*normalize.Supplement, error) {
	q := "intitle:" + strconv.Quote(title)
	if author != "" {
		q += " inauthor:" + strconv.Quote(author)
	}

	var resp volumesResponse
	if err := g.client.getJSON(ctx, g.volumesURL(q, 1, 0), &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}

	info := resp.Items[0].VolumeInfo
	isbn10, isbn13 := info.isbns()
	return &normalize.Supplement{
		Description:   info.Description,
		PublishedDate: info.PublishedDate,
		ISBN10:        isbn10,
		ISBN13:        isbn13,
		Thumbnail:     info.thumbnail(),
		AverageRating: info.AverageRating,
		RatingsCount:  info.RatingsCount,
	}, nil
}
