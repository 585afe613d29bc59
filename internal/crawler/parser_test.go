package crawler

import (
	"bytes"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestParser(t *testing.T) {
	t.Parallel()

	t.Run("extracts metadata", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
			<title>  Test
			Page </title>
			<meta name="Description" content="A test page">
		</head><body><h1>Welcome</h1><h1>Second</h1></body></html>`

		result, err := NewParser().Parse(strings.NewReader(html), "text/html")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		if result.Title != "Test Page" {
			t.Errorf("expected title 'Test Page', got %q", result.Title)
		}
		if result.Description != "A test page" {
			t.Errorf("expected description 'A test page', got %q", result.Description)
		}
		if result.Heading != "Welcome" {
			t.Errorf("expected heading 'Welcome', got %q", result.Heading)
		}
	})

	t.Run("falls back to og description", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><meta property="og:description" content="From OpenGraph"></head></html>`
		result, err := NewParser().Parse(strings.NewReader(html), "")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Description != "From OpenGraph" {
			t.Errorf("expected og description, got %q", result.Description)
		}
	})

	t.Run("extracts links in document order", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/first">1</a>
			<a href=" https://example.com/second ">2</a>
			<a href="mailto:x@example.com">mail</a>
			<a href="javascript:void(0)">js</a>
			<a href="#top">top</a>
			<a>no href</a>
			<a href="third">3</a>
		</body></html>`

		result, err := NewParser().Parse(strings.NewReader(html), "text/html; charset=utf-8")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}

		want := []string{"/first", "https://example.com/second", "third"}
		if len(result.Links) != len(want) {
			t.Fatalf("expected %d links, got %d: %v", len(want), len(result.Links), result.Links)
		}
		for i := range want {
			if result.Links[i] != want[i] {
				t.Errorf("link %d = %q, want %q", i, result.Links[i], want[i])
			}
		}
	})

	t.Run("malformed html yields empty metadata", func(t *testing.T) {
		t.Parallel()

		result, err := NewParser().Parse(strings.NewReader(`<div><p>unclosed <a href="/x">x`), "text/html")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "" || result.Description != "" || result.Heading != "" {
			t.Errorf("expected empty metadata, got %+v", result)
		}
		if len(result.Links) != 1 {
			t.Errorf("expected 1 link, got %v", result.Links)
		}
	})

	t.Run("decodes declared charset", func(t *testing.T) {
		t.Parallel()

		encoded, err := charmap.ISO8859_1.NewEncoder().String("<title>Café</title>")
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		result, err := NewParser().Parse(bytes.NewReader([]byte(encoded)), "text/html; charset=iso-8859-1")
		if err != nil {
			t.Fatalf("failed to parse: %v", err)
		}
		if result.Title != "Café" {
			t.Errorf("expected title 'Café', got %q", result.Title)
		}
	})
}
