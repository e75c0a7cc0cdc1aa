package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	t.Run("nil gives empty", func(t *testing.T) {
		assert.Empty(t, DedupeAndTrim(nil))
	})
	t.Run("trims and drops blanks", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, DedupeAndTrim([]string{" a ", "", "  ", "b"}))
	})
	t.Run("keeps first occurrence", func(t *testing.T) {
		assert.Equal(t, []string{"sub-2", "sub-1"}, DedupeAndTrim([]string{"sub-2", "sub-1", " sub-2"}))
	})
	t.Run("case sensitive", func(t *testing.T) {
		assert.Equal(t, []string{"/api/**", "/API/**"}, DedupeAndTrim([]string{"/api/**", "/API/**"}))
	})
}
