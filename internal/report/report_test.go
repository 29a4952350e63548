package report

import (
	"net/url"
	"testing"

	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/trending"
	"github.com/stretchr/testify/assert"
)

const stock = "https://placehold.co/300x450.png?text=No+Cover"

func TestClassifyThumbnail(t *testing.T) {
	tests := []struct {
		name      string
		thumbnail string
		want      string
	}{
		{"google image", "https://books.google.com/books/content?id=abc", ThumbnailSource},
		{"openlibrary cover id", "https://covers.openlibrary.org/b/id/12345-M.jpg", ThumbnailSource},
		{"isbn cover", "https://covers.openlibrary.org/b/isbn/0441013597-M.jpg", ThumbnailDerived},
		{"stock", stock, ThumbnailStock},
		{"proxied isbn cover", "https://img.example.com/?url=" + url.QueryEscape("https://covers.openlibrary.org/b/isbn/0441013597-M.jpg"), ThumbnailDerived},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyThumbnail(tt.thumbnail, stock))
		})
	}
}

func TestCompute(t *testing.T) {
	records := []catalog.Record{
		{PublishedYear: 2020, AverageRating: 4.0, Source: "googlebooks", ThumbnailURL: "https://books.google.com/x"},
		{PublishedYear: 2010, AverageRating: 3.5, Source: "openlibrary", ThumbnailURL: stock},
	}

	s := Compute(records, stock)

	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 1, s.Thumbnails[ThumbnailSource])
	assert.Equal(t, 1, s.Thumbnails[ThumbnailStock])
	assert.Equal(t, map[string]int{"googlebooks": 1, "openlibrary": 1}, s.BySource)
	assert.InDelta(t, 2015.0, s.AverageYear, 0.001)
	assert.InDelta(t, 3.75, s.AverageRating, 0.001)

	empty := Compute(nil, stock)
	assert.Zero(t, empty.Records)
	assert.Zero(t, empty.AverageYear)
}

func TestSummary(t *testing.T) {
	res := pipeline.Result{
		RunID:          "run-1",
		Success:        true,
		TargetCount:    5,
		NewRecordCount: 3,
		Shortfall:      2,
		Attempts:       5,
		PerStore: pipeline.PerStore{
			Trending: pipeline.StoreTally{Added: 3},
			Catalog:  pipeline.StoreTally{Added: 2, Existing: 1},
		},
	}
	stats := Stats{
		Records:       3,
		Thumbnails:    map[string]int{ThumbnailSource: 2, ThumbnailStock: 1},
		BySource:      map[string]int{"openlibrary": 1, "googlebooks": 2},
		AverageYear:   2019.4,
		AverageRating: 4.123,
	}

	out := Summary(res, stats)

	assert.Contains(t, out, "Trending refresh run-1")
	assert.Contains(t, out, "short by 2")
	assert.Contains(t, out, "3 / 5")
	assert.Contains(t, out, "added 2, existing 1, errors 0")
	assert.Contains(t, out, "2 from source, 0 derived, 1 stock")
	assert.Contains(t, out, "googlebooks 2, openlibrary 1")
	assert.Contains(t, out, "2019")
	assert.Contains(t, out, "4.12")
}

func TestSummary_Failed(t *testing.T) {
	out := Summary(pipeline.Result{RunID: "r", Error: "no store reachable"}, Stats{})

	assert.Contains(t, out, "failed: no store reachable")
	assert.NotContains(t, out, "Thumbnails")
}

func TestCollections(t *testing.T) {
	out := Collections([]trending.CollectionStats{{Name: "trending_books", Count: 12}, {Name: "catalog_books", Count: 340}})

	assert.Contains(t, out, "trending_books")
	assert.Contains(t, out, "340")
}
