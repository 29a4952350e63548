package normalize

// DescriptionPolicy decides what happens to a description below the minimum length.
type DescriptionPolicy int

const (
	// RejectShortDescription disqualifies the item.
	RejectShortDescription DescriptionPolicy = iota
	// BackfillShortDescription replaces it with a templated sentence.
	BackfillShortDescription
)

// ThumbnailPolicy decides what happens when no usable thumbnail is found.
type ThumbnailPolicy int

const (
	// RejectMissingThumbnail disqualifies the item.
	RejectMissingThumbnail ThumbnailPolicy = iota
	// StockMissingThumbnail substitutes the configured stock image.
	StockMissingThumbnail
)

// Policy is the per-source leniency applied while normalizing.
type Policy struct {
	// Source is stamped on every record normalized under this policy.
	Source      string
	Description DescriptionPolicy
	Thumbnail   ThumbnailPolicy
}

// SearchPolicy is the strict policy used for relevance search results.
func SearchPolicy(source string) Policy {
	return Policy{Source: source, Description: RejectShortDescription, Thumbnail: RejectMissingThumbnail}
}

// SubjectPolicy is the lenient policy used for subject browse results.
func SubjectPolicy(source string) Policy {
	return Policy{Source: source, Description: BackfillShortDescription, Thumbnail: StockMissingThumbnail}
}
