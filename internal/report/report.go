// Package report renders refresh results and collection stats for the terminal.
package report

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lepinkainen/bookfeed/internal/catalog"
	"github.com/lepinkainen/bookfeed/internal/pipeline"
	"github.com/lepinkainen/bookfeed/internal/trending"
)

// Thumbnail origins.
const (
	ThumbnailSource  = "source"
	ThumbnailDerived = "derived"
	ThumbnailStock   = "stock"
)

// Stats summarizes the records of one run.
type Stats struct {
	Records       int
	Thumbnails    map[string]int
	BySource      map[string]int
	AverageYear   float64
	AverageRating float64
}

// ClassifyThumbnail tells whether a thumbnail came from the source, was derived
// from the ISBN, or is the stock placeholder. Proxied URLs are unwrapped first.
func ClassifyThumbnail(thumbnail, stock string) string {
	raw := thumbnail
	if unescaped, err := url.QueryUnescape(thumbnail); err == nil {
		raw = unescaped
	}
	switch {
	case stock != "" && (strings.Contains(thumbnail, stock) || strings.Contains(raw, stock)):
		return ThumbnailStock
	case strings.Contains(raw, "covers.openlibrary.org/b/isbn/"):
		return ThumbnailDerived
	default:
		return ThumbnailSource
	}
}

// Compute builds run stats from the committed records.
func Compute(records []catalog.Record, stockThumbnail string) Stats {
	s := Stats{
		Records:    len(records),
		Thumbnails: map[string]int{},
		BySource:   map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var years, ratings float64
	for _, rec := range records {
		s.Thumbnails[ClassifyThumbnail(rec.ThumbnailURL, stockThumbnail)]++
		s.BySource[rec.Source]++
		years += float64(rec.PublishedYear)
		ratings += rec.AverageRating
	}
	s.AverageYear = years / float64(len(records))
	s.AverageRating = ratings / float64(len(records))
	return s
}

type styles struct {
	box   lipgloss.Style
	title lipgloss.Style
	label lipgloss.Style
	ok    lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
}

func newStyles() styles {
	return styles{
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("254")),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("247")).Width(18),
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("78")),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func (st styles) row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, st.label.Render(label), value)
}

func tally(t pipeline.StoreTally) string {
	return fmt.Sprintf("added %d, existing %d, errors %d", t.Added, t.Existing, t.Errors)
}

// Summary renders a finished refresh.
func Summary(res pipeline.Result, stats Stats) string {
	st := newStyles()

	status := st.ok.Render("ok")
	switch {
	case !res.Success:
		status = st.bad.Render("failed: " + res.Error)
	case res.Shortfall > 0:
		status = st.warn.Render(fmt.Sprintf("short by %d", res.Shortfall))
	}

	lines := []string{
		st.title.Render("Trending refresh " + res.RunID),
		st.row("Status", status),
		st.row("New records", fmt.Sprintf("%d / %d", res.NewRecordCount, res.TargetCount)),
		st.row("Rounds", fmt.Sprint(res.Attempts)),
		st.row("Trending", tally(res.PerStore.Trending)),
		st.row("Catalog", tally(res.PerStore.Catalog)),
		st.row("Duration", fmt.Sprintf("%.1fs", res.ProcessingTimeSeconds)),
	}

	if stats.Records > 0 {
		lines = append(lines,
			"",
			st.row("Thumbnails", fmt.Sprintf("%d from source, %d derived, %d stock",
				stats.Thumbnails[ThumbnailSource], stats.Thumbnails[ThumbnailDerived], stats.Thumbnails[ThumbnailStock])),
			st.row("Sources", formatCounts(stats.BySource)),
			st.row("Average year", fmt.Sprintf("%.0f", stats.AverageYear)),
			st.row("Average rating", fmt.Sprintf("%.2f", stats.AverageRating)),
		)
	}

	return st.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Collections renders per-collection row counts.
func Collections(stats []trending.CollectionStats) string {
	st := newStyles()
	lines := []string{st.title.Render("Collections")}
	for _, c := range stats {
		lines = append(lines, st.row(c.Name, fmt.Sprint(c.Count)))
	}
	return st.box.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
