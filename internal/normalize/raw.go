package normalize

// RawItem is one unvalidated item as returned by a catalog source. The set of
// implementations is closed: SearchAPIItem and SubjectAPIWork.
type RawItem interface {
	rawItem()
}

// SearchAPIItem is a volume from a free-text relevance search.
type SearchAPIItem struct {
	// VolumeID is the source's own key for the volume.
	VolumeID      string
	Title         string
	Subtitle      string
	Authors       []string
	Categories    []string
	Description   string
	PublishedDate string
	ISBN10        string
	ISBN13        string
	Thumbnail     string
	AverageRating float64
	RatingsCount  int
	// GenreHint is the genre of the query that found the item.
	GenreHint string
}

func (SearchAPIItem) rawItem() {}

// SubjectAPIWork is a work from a subject browse, optionally completed by a
// supplemental lookup.
type SubjectAPIWork struct {
	// Key is the source work key, e.g. "/works/OL45804W".
	Key              string
	Title            string
	Authors          []string
	Subjects         []string
	FirstPublishYear int
	CoverID          int
	GenreHint        string

	// Supplemental carries what the per-work lookup found, if anything.
	Supplemental *Supplement
}

func (SubjectAPIWork) rawItem() {}

// Supplement holds the fields a supplemental lookup can fill in for a work.
type Supplement struct {
	Description   string  `json:"description,omitempty"`
	PublishedDate string  `json:"published_date,omitempty"`
	ISBN10        string  `json:"isbn10,omitempty"`
	ISBN13        string  `json:"isbn13,omitempty"`
	Thumbnail     string  `json:"thumbnail,omitempty"`
	AverageRating float64 `json:"average_rating,omitempty"`
	RatingsCount  int     `json:"ratings_count,omitempty"`
}
