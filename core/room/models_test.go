package room

import (
	"strings"
	"testing"
)

func TestNewAccessCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewAccessCode()
		if err != nil {
			t.Fatalf("NewAccessCode() error = %v", err)
		}
		if len(code) != accessCodeLen {
			t.Errorf("NewAccessCode() = %q; want %d characters", code, accessCodeLen)
		}
		for _, c := range code {
			if !strings.ContainsRune(accessCodeChars, c) {
				t.Errorf("NewAccessCode() = %q; unexpected character %q", code, c)
			}
		}
		if seen[code] {
			t.Errorf("NewAccessCode() = %q; already generated", code)
		}
		seen[code] = true
	}
}
