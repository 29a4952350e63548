package querygen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the word pool queries are built from.
type Vocabulary struct {
	Genres     []string `yaml:"genres"`
	Qualifiers []string `yaml:"qualifiers"`
	Publishers []string `yaml:"publishers"`
	Initials   []string `yaml:"initials"`
	// BaseYears is how many recent years round zero would cover.
	BaseYears int `yaml:"base_years"`
}

// DefaultVocabulary returns the built-in vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Genres: []string{
			"fiction", "fantasy", "mystery", "thriller", "romance",
			"science fiction", "historical fiction", "literary fiction",
			"horror", "young adult", "biography", "memoir",
		},
		Qualifiers: []string{"bestseller", "new release", "award winning", "popular"},
		Publishers: []string{"Penguin", "HarperCollins", "Simon & Schuster", "Macmillan", "Hachette", "Random House"},
		Initials:   []string{"A", "B", "C", "D", "E", "G", "H", "J", "K", "L", "M", "P", "R", "S", "T", "W"},
		BaseYears:  1,
	}
}

// LoadVocabulary reads a YAML vocabulary file. Lists missing from the file
// keep their built-in defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()

	data, err := os.ReadFile(path)
	if err != nil {
		return vocab, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(data, &override); err != nil {
		return vocab, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	if len(override.Genres) > 0 {
		vocab.Genres = override.Genres
	}
	if len(override.Qualifiers) > 0 {
		vocab.Qualifiers = override.Qualifiers
	}
	if len(override.Publishers) > 0 {
		vocab.Publishers = override.Publishers
	}
	if len(override.Initials) > 0 {
		vocab.Initials = override.Initials
	}
	if override.BaseYears > 0 {
		vocab.BaseYears = override.BaseYears
	}
	return vocab, nil
}
