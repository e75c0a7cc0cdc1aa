package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameFromAddress(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"pat.doe@example.com", "Pat Doe"},
		{"PAT_DOE@example.com", "Pat Doe"},
		{"pat.doe+portal@example.com", "Pat Doe"},
		{"mary-jane.watson@example.com", "Mary Jane Watson"},
		{"pat.1234@example.com", "Pat"},
		{"1234@example.com", ""},
		{"", ""},
		{"nodomain", "Nodomain"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, NameFromAddress(tt.addr))
		})
	}
}
