// Package querygen builds the search queries each refresh round sends to the
// catalog sources.
package querygen

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Query is one search request against a catalog source.
type Query struct {
	Genre         string
	Year          int
	Qualifier     string
	Publisher     string
	AuthorInitial string
	// Page is the zero-based result page to request.
	Page int
}

// Text renders the free-text form used by relevance search.
func (q Query) Text() string {
	var parts []string
	if q.AuthorInitial != "" {
		parts = append(parts, "inauthor:"+q.AuthorInitial)
	}
	if q.Genre != "" {
		parts = append(parts, q.Genre)
	}
	if q.Qualifier != "" {
		parts = append(parts, q.Qualifier)
	}
	if q.Year > 0 {
		parts = append(parts, strconv.Itoa(q.Year))
	}
	if q.Publisher != "" {
		publisher := q.Publisher
		if strings.ContainsAny(publisher, " &") {
			publisher = strconv.Quote(publisher)
		}
		parts = append(parts, "inpublisher:"+publisher)
	}
	return strings.Join(parts, " ")
}

// Subject renders the genre as a subject-browse slug.
func (q Query) Subject() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Genre)), "_")
}

// Shuffler permutes a sequence in place. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Generator expands a Vocabulary into rounds of queries.
type Generator struct {
	vocab       Vocabulary
	now         func() time.Time
	newShuffler func() Shuffler
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the clock that anchors the recent-year range.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithShuffler overrides the source of randomness. The factory is called once
// per Generate call.
func WithShuffler(factory func() Shuffler) Option {
	return func(g *Generator) { g.newShuffler = factory }
}

// NewGenerator creates a Generator over vocab.
func NewGenerator(vocab Vocabulary, opts ...Option) *Generator {
	g := &Generator{
		vocab: vocab,
		now:   time.Now,
		newShuffler: func() Shuffler {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Years returns the publication years covered by round, newest first.
// Round N reaches N years further back than the base range.
func (g *Generator) Years(round int) []int {
	span := max(g.vocab.BaseYears, 1) + max(round, 0)
	current := g.now().Year()

	years := make([]int, 0, span)
	for i := range span {
		years = append(years, current-i)
	}
	return years
}

// Generate returns the deduplicated, shuffled query set for round (1-based).
func (g *Generator) Generate(round int) []Query {
	page := max(round-1, 0)
	years := g.Years(round)

	seen := make(map[string]struct{})
	var queries []Query
	add := func(q Query) {
		key := strings.ToLower(q.Text())
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		queries = append(queries, q)
	}

	qualifiers := g.vocab.Qualifiers
	if len(qualifiers) == 0 {
		qualifiers = []string{""}
	}
	// The publisher-free variant keeps broad queries in the pool.
	publishers := append([]string{""}, g.vocab.Publishers...)

	for _, genre := range g.vocab.Genres {
		for _, year := range years {
			for _, qualifier := range qualifiers {
				for _, publisher := range publishers {
					add(Query{Genre: genre, Year: year, Qualifier: qualifier, Publisher: publisher, Page: page})
				}
			}
		}
		for _, initial := range g.vocab.Initials {
			add(Query{Genre: genre, AuthorInitial: initial, Page: page})
		}
	}

	g.newShuffler().Shuffle(len(queries), func(i, j int) {
		queries[i], queries[j] = queries[j], queries[i]
	})
	return queries
}
