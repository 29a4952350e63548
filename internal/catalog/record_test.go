package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("  "))
	assert.Equal(t, []string{"Ursula K. Le Guin", "Jo Walton"}, SplitList("Ursula K. Le Guin, , Jo Walton"))
}

func TestPrimaryAuthor(t *testing.T) {
	rec := Record{Authors: "N. K. Jemisin, Someone Else"}
	assert.Equal(t, "N. K. Jemisin", rec.PrimaryAuthor())
	assert.Equal(t, "", Record{}.PrimaryAuthor())
}

func TestSharesAuthor(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "same author different case", a: "Ann Leckie", b: "ann leckie", want: true},
		{name: "overlap in list", a: "A, B", b: "C, b", want: true},
		{name: "no overlap", a: "Ann Leckie", b: "Martha Wells", want: false},
		{name: "empty side", a: "", b: "Martha Wells", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SharesAuthor(tt.a, tt.b))
		})
	}
}
