package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"01712345678":       "01712345678",
		"+8801712345678":    "01712345678",
		"8801712345678":     "01712345678",
		" 017-1234-5678 ":   "01712345678",
		"+880 1712 345 678": "01712345678",
		"12345":             "12345",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("01712345678"))
	assert.True(t, Valid("+8801912345678"))
	assert.False(t, Valid("01212345678"))
	assert.False(t, Valid("0171234567"))
	assert.False(t, Valid("abc"))
}

func TestAlternate(t *testing.T) {
	alt, ok := Alternate("01712345678")
	assert.True(t, ok)
	assert.Equal(t, "8801712345678", alt)

	alt, ok = Alternate("8801712345678")
	assert.True(t, ok)
	assert.Equal(t, "01712345678", alt)

	_, ok = Alternate("12345")
	assert.False(t, ok)
}
