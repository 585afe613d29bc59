package crawler

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"
)

// Parser extracts page metadata and anchors from HTML content.
//
// Parsing is done with golang.org/x/net/html, which tolerates the malformed
// markup common on the web, and queried through goquery.
type Parser struct{}

// ParseResult contains the information extracted from one HTML page.
type ParseResult struct {
	// Title is the text of the first <title> element.
	Title string

	// Description is the content of <meta name="description">, falling back
	// to <meta property="og:description">.
	Description string

	// Heading is the text of the first <h1> element.
	Heading string

	// Links are the raw href values of <a> elements in document order.
	// They are neither resolved nor filtered; see Normalizer.
	Links []string
}

// NewParser creates a new HTML parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse parses HTML content. contentType is the response Content-Type header
// and is used to pick the character encoding; it may be empty.
func (p *Parser) Parse(content io.Reader, contentType string) (*ParseResult, error) {
	reader, err := charset.NewReader(content, contentType)
	if err != nil {
		// Unknown charset label: fall back to the raw bytes.
		reader = content
	}

	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	result := &ParseResult{
		Title:       cleanText(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
		Heading:     cleanText(doc.Find("h1").First().Text()),
		Links:       make([]string, 0),
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || isNonNavigable(href) {
			return
		}
		result.Links = append(result.Links, href)
	})

	return result, nil
}

// metaDescription returns the page description, preferring the standard
// meta tag over OpenGraph.
func metaDescription(doc *goquery.Document) string {
	var description, og string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if name, _ := s.Attr("name"); strings.EqualFold(name, "description") && description == "" {
			description = content
		}
		if prop, _ := s.Attr("property"); strings.EqualFold(prop, "og:description") && og == "" {
			og = content
		}
	})
	if d := cleanText(description); d != "" {
		return d
	}
	return cleanText(og)
}

// isNonNavigable reports whether href can never name a crawlable page.
func isNonNavigable(href string) bool {
	if href == "#" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

// cleanText collapses whitespace runs and applies NFC normalization so that
// titles compare equal across snapshots regardless of source formatting.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
