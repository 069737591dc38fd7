package tryon

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"low-rise jeans", "mid-rise jeans"},
		{"Bare shoulders", "covered shoulders"},
		{"a see-through top", "a opaque top"},
		{"visible nipples", "visible sensitive area"},
		{"boxers and briefs", "short athletic shorts and short athletic shorts"},
		{"thong with briefs", "thong with briefs"},
		{"soft layered bob", "soft layered bob"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			if got := Sanitize(tc.in); got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBuildInstructions(t *testing.T) {
	got := BuildInstructions("Hush Cut", "keep my bangs", true)
	if !strings.Contains(got, "HAIRSTYLE REFERENCE") || !strings.Contains(got, "Target hairstyle: Hush Cut.") {
		t.Fatalf("missing reference wording: %q", got)
	}
	if !strings.Contains(got, "USER PRIORITY REQUEST: keep my bangs") {
		t.Fatalf("missing note: %q", got)
	}

	plain := BuildInstructions("", "  ", false)
	if strings.Contains(plain, "HAIRSTYLE REFERENCE") || strings.Contains(plain, "USER PRIORITY") {
		t.Fatalf("unexpected sections: %q", plain)
	}
}
