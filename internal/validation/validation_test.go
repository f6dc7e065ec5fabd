package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequired(t *testing.T) {
	v := Violations{}
	Required("project_name", "   ", v)
	assert.Equal(t, "required", v["project_name"])
	assert.False(t, v.Empty())
}

func TestNonNegativeInt(t *testing.T) {
	v := Violations{}
	n, ok := NonNegativeInt("price", " 250 ", v)
	assert.True(t, ok)
	assert.EqualValues(t, 250, n)

	for _, bad := range []string{"-1", "12.5", "abc", ""} {
		v := Violations{}
		_, ok := NonNegativeInt("price", bad, v)
		assert.False(t, ok, bad)
		assert.Equal(t, "invalid_price", v["price"])
	}
}

func TestIsEightDigits(t *testing.T) {
	assert.True(t, IsEightDigits("12345678"))
	assert.False(t, IsEightDigits("1234567"))
	assert.False(t, IsEightDigits("123456789"))
	assert.False(t, IsEightDigits("1234567a"))
	assert.False(t, IsEightDigits(""))
}

func TestPassword(t *testing.T) {
	cases := map[string]string{
		"Short1":      "password_too_short",
		"alllower1":   "password_needs_upper",
		"ALLUPPER1":   "password_needs_lower",
		"NoDigitsHere": "password_needs_digit",
		"Valid123":    "",
	}
	for pw, want := range cases {
		v := Violations{}
		Password("password", pw, v)
		assert.Equal(t, want, v["password"], pw)
	}
}

func TestLettersAndSpaces(t *testing.T) {
	v := Violations{}
	LettersAndSpaces("full_name", "Ada Lovelace", v)
	assert.True(t, v.Empty())
	LettersAndSpaces("full_name", "R2 D2", v)
	assert.Equal(t, "letters_spaces_only", v["full_name"])
}

func TestContentTypeAndSize(t *testing.T) {
	v := Violations{}
	ContentType("image", "image/png", []string{"image/jpeg", "image/png"}, v)
	MaxBytes("image", 1<<20, 1<<20, v)
	assert.True(t, v.Empty())
	ContentType("image", "image/gif", []string{"image/jpeg", "image/png"}, v)
	assert.Equal(t, "unsupported_file_type", v["image"])
	v2 := Violations{}
	MaxBytes("image", 1<<20+1, 1<<20, v2)
	assert.Equal(t, "file_too_large", v2["image"])
}
