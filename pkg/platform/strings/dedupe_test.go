package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	t.Run("empty input yields nil", func(t *testing.T) {
		assert.Nil(t, Dedupe(nil))
		assert.Nil(t, Dedupe([]string{"", "  \t"}))
	})

	t.Run("whitespace variants are the same reason", func(t *testing.T) {
		got := Dedupe([]string{
			"closing date is required",
			"  closing   date is required ",
			"buyer name is required",
			"closing date is required",
		})
		assert.Equal(t, []string{"closing date is required", "buyer name is required"}, got)
	})

	t.Run("case is significant", func(t *testing.T) {
		assert.Equal(t, []string{"TIN", "tin"}, Dedupe([]string{"TIN", "tin"}))
	})
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "12 Main St", CollapseSpace("  12   Main\tSt "))
	assert.Equal(t, "", CollapseSpace("   "))
	assert.Equal(t, "Austin", CollapseSpace("Austin"))
}

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "123456789", DigitsOnly("12-3456789"))
	assert.Equal(t, "", DigitsOnly("abc"))
	assert.Equal(t, "0042", DigitsOnly(" 00 42 "))
}
