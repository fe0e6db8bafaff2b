package server

import (
	"strings"
	"testing"
)

// FuzzSanitizeBase checks that any input yields either "" or a path with a
// leading slash and no trailing slash.
func FuzzSanitizeBase(f *testing.F) {
	f.Add("")
	f.Add("/")
	f.Add("api")
	f.Add("/api/v1/")
	f.Add("  //x// ")
	f.Add("unicode한글")

	f.Fuzz(func(t *testing.T, in string) {
		got := sanitizeBase(in)
		if got == "" {
			return
		}
		if !strings.HasPrefix(got, "/") {
			t.Fatalf("sanitizeBase(%q)=%q lacks leading slash", in, got)
		}
		if strings.HasSuffix(got, "/") {
			t.Fatalf("sanitizeBase(%q)=%q has trailing slash", in, got)
		}
	})
}
