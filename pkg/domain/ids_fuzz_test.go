//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseSessionID checks that parsing never panics on arbitrary cookie
// values and that any accepted value round-trips unchanged.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE sessions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			if id != "" {
				t.Errorf("rejected input returned non-empty id %q", id)
			}
			return
		}
		if id != input {
			t.Errorf("accepted id changed value: %q -> %q", input, id)
		}
		if len(id) != sessionIDLength {
			t.Errorf("accepted id has length %d", len(id))
		}
	})
}
