package id

import (
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
)

var idPattern = regexp.MustCompile(`^[a-z2-7]{26}$`)

func TestNewIDIsLowercaseBase32UUID(t *testing.T) {
	seen := map[string]bool{}
	for range 32 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if !idPattern.MatchString(value) {
			t.Fatalf("id %q does not match %s", value, idPattern)
		}
		if seen[value] {
			t.Fatalf("duplicate id %q", value)
		}
		seen[value] = true

		raw, err := encoding.DecodeString(strings.ToUpper(value))
		if err != nil {
			t.Fatalf("decode %q: %v", value, err)
		}
		parsed, err := uuid.FromBytes(raw)
		if err != nil {
			t.Fatalf("uuid from bytes: %v", err)
		}
		if parsed.Version() != 4 || parsed.Variant() != uuid.RFC4122 {
			t.Fatalf("uuid %s: version %d variant %s", parsed, parsed.Version(), parsed.Variant())
		}
	}
}
