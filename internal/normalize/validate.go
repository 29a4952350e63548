package normalize

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/lepinkainen/bookfeed/internal/catalog"
)

// Rejection is returned when an item fails normalization or validation.
// It is an expected outcome, not a failure of the pipeline.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "rejected: " + r.Reason
}

func reject(format string, args ...any) *Rejection {
	return &Rejection{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a *Rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Validate applies the full acceptance gate to a finished record.
func (n *Normalizer) Validate(rec catalog.Record) error {
	switch {
	case len(rec.ExternalID) < 10:
		return reject("identifier %q shorter than 10 characters", rec.ExternalID)
	case utf8.RuneCountInString(rec.Title) <= 2:
		return reject("title too short")
	case len(rec.AuthorList()) == 0:
		return reject("no authors")
	case utf8.RuneCountInString(rec.Description) < n.opts.MinDescription:
		return reject("description shorter than %d characters", n.opts.MinDescription)
	case !n.thumbs.Valid(rec.ThumbnailURL):
		return reject("invalid thumbnail %q", rec.ThumbnailURL)
	case rec.PublishedYear < n.opts.MinYear || rec.PublishedYear > n.now().Year():
		return reject("published year %d out of range", rec.PublishedYear)
	case rec.AverageRating < 0 || rec.AverageRating > 5:
		return reject("rating %.2f out of range", rec.AverageRating)
	case rec.RatingsCount < 0:
		return reject("negative ratings count")
	}

	if keyword, ok := AcademicMatch(rec.Title, rec.Description, rec.Categories); ok {
		return reject("academic keyword %q", keyword)
	}
	return nil
}
