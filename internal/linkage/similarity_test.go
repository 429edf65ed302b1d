package linkage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSetRatio_Punctuation(t *testing.T) {
	assert.Equal(t, 100, TokenSetRatio("AMAZON.COM INC", "AMAZON COM INC"))
	// A plain ratio on the same pair is lower.
	assert.Equal(t, 93, Ratio("AMAZON.COM INC", "AMAZON COM INC"))
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "ACME CORP", "ACME CORP", 100},
		{"reordered", "INTERNATIONAL BUSINESS MACHINES", "MACHINES BUSINESS INTERNATIONAL", 100},
		{"subset", "APPLE", "APPLE INC", 100},
		{"abbreviation", "ACME CORP", "ACME CORPORATION", 72},
		{"suffix", "FOO INC", "FOO INCORPORATED", 61},
		{"empty vs name", "", "ACME", 0},
		{"punctuation only", "!!!", "ACME", 0},
		{"both empty", "", "", 100},
		{"case sensitive", "acme", "ACME", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenSetRatio(tt.a, tt.b))
		})
	}
}

func TestTokenSetRatio_Symmetric(t *testing.T) {
	names := []string{
		"ACME CORP", "ACME CORPORATION", "AMAZON.COM INC", "AMAZON COM INC",
		"BANK OF AMERICA CORP", "AMERICA BANK", "", "3M CO", "MINNESOTA MINING & MFG CO",
	}
	for _, a := range names {
		assert.Equal(t, 100, TokenSetRatio(a, a))
		for _, b := range names {
			assert.Equal(t, TokenSetRatio(a, b), TokenSetRatio(b, a), "%q vs %q", a, b)
		}
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"AMAZON", "COM", "INC"}, Tokens("AMAZON.COM, INC."))
	assert.Equal(t, []string{"AT", "T", "INC"}, Tokens("AT&T  INC"))
	assert.Empty(t, Tokens(" - "))
}
