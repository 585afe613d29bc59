package crawler

import "testing"

func TestNormalizerNormalize(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"example.com"}, []string{".pdf", "JPG"})

	tests := []struct {
		name string
		raw  string
		base string
		want string
		ok   bool
	}{
		{name: "relative path", raw: "/about", base: "https://example.com/", want: "https://example.com/about", ok: true},
		{name: "relative to directory", raw: "team", base: "https://example.com/about/", want: "https://example.com/about/team", ok: true},
		{name: "parent reference", raw: "../contact", base: "https://example.com/a/b", want: "https://example.com/contact", ok: true},
		{name: "strips fragment", raw: "/page#section", base: "https://example.com/", want: "https://example.com/page", ok: true},
		{name: "strips query", raw: "/page?utm=1", base: "https://example.com/", want: "https://example.com/page", ok: true},
		{name: "lowercases scheme and host", raw: "HTTPS://EXAMPLE.COM/Path", base: "https://example.com/", want: "https://example.com/Path", ok: true},
		{name: "drops default port", raw: "https://example.com:443/x", base: "https://example.com/", want: "https://example.com/x", ok: true},
		{name: "keeps explicit port", raw: "http://example.com:8080/x", base: "https://example.com/", want: "http://example.com:8080/x", ok: true},
		{name: "trims trailing slash", raw: "/docs/", base: "https://example.com/", want: "https://example.com/docs", ok: true},
		{name: "keeps root slash", raw: "https://example.com", base: "https://example.com/x", want: "https://example.com/", ok: true},
		{name: "www is same domain", raw: "https://www.example.com/x", base: "https://example.com/", want: "https://www.example.com/x", ok: true},
		{name: "subdomain allowed", raw: "https://blog.example.com/", base: "https://example.com/", want: "https://blog.example.com/", ok: true},
		{name: "other domain rejected", raw: "https://other.com/", base: "https://example.com/"},
		{name: "suffix lookalike rejected", raw: "https://badexample.com/", base: "https://example.com/"},
		{name: "excluded extension", raw: "/file.pdf", base: "https://example.com/"},
		{name: "excluded extension case insensitive", raw: "/photo.JPG", base: "https://example.com/"},
		{name: "extension without dot configured", raw: "/photo.jpg", base: "https://example.com/"},
		{name: "mailto rejected", raw: "mailto:a@example.com", base: "https://example.com/"},
		{name: "javascript rejected", raw: "javascript:void(0)", base: "https://example.com/"},
		{name: "ftp rejected", raw: "ftp://example.com/file", base: "https://example.com/"},
		{name: "fragment only rejected", raw: "#top", base: "https://example.com/"},
		{name: "empty rejected", raw: "  ", base: "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := n.Normalize(tt.raw, tt.base)
			if ok != tt.ok {
				t.Fatalf("Normalize(%q, %q) ok = %v, want %v (got %q)", tt.raw, tt.base, ok, tt.ok, got)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
			}
		})
	}
}

func TestNormalizerDeterministic(t *testing.T) {
	t.Parallel()

	n := NewNormalizer([]string{"example.com"}, nil)
	variants := []string{
		"https://example.com/a/",
		"https://EXAMPLE.com/a",
		"https://example.com:443/a#frag",
		"/a/",
		"a",
	}

	for _, v := range variants {
		got, ok := n.Normalize(v, "https://example.com/")
		if !ok {
			t.Fatalf("Normalize(%q) rejected", v)
		}
		if got != "https://example.com/a" {
			t.Errorf("Normalize(%q) = %q, want %q", v, got, "https://example.com/a")
		}
	}
}

func TestNormalizerEmptyAllowedDomains(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)
	if got, ok := n.Normalize("/a", "https://example.com/"); ok {
		t.Errorf("expected rejection with no allowed domains, got %q", got)
	}
}

func TestNormalizerCanonicalize(t *testing.T) {
	t.Parallel()

	n := NewNormalizer(nil, nil)

	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "https://Example.com", want: "https://example.com/", ok: true},
		{raw: "example.com/docs/", want: "http://example.com/docs", ok: true},
		{raw: "https://example.com/?q=1#x", want: "https://example.com/", ok: true},
		{raw: "", ok: false},
		{raw: "ftp://example.com", ok: false},
	}

	for _, tt := range tests {
		got, ok := n.Canonicalize(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Canonicalize(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}
