package crawler

import (
	"net"
	"net/url"
	"strings"
)

// Normalizer canonicalizes URLs and filters them by host and extension.
// It holds no mutable state; the same input always produces the same output,
// which the visited set relies on for deduplication.
type Normalizer struct {
	// allowedDomains are lowercase hostnames with any leading "www." removed.
	allowedDomains []string

	// excludeExtensions are lowercase suffixes starting with a dot.
	excludeExtensions []string
}

// NewNormalizer creates a Normalizer.
//
// A host is allowed when it equals an allowed domain or is a subdomain of it,
// ignoring a leading "www." on both sides. An empty allowedDomains rejects
// every URL. Extensions are matched case-insensitively against the end of
// the URL path; "pdf" and ".pdf" are equivalent.
func NewNormalizer(allowedDomains, excludeExtensions []string) *Normalizer {
	n := &Normalizer{
		allowedDomains:    make([]string, 0, len(allowedDomains)),
		excludeExtensions: make([]string, 0, len(excludeExtensions)),
	}
	for _, d := range allowedDomains {
		d = stripWWW(strings.ToLower(strings.TrimSpace(d)))
		if d != "" {
			n.allowedDomains = append(n.allowedDomains, d)
		}
	}
	for _, ext := range excludeExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		n.excludeExtensions = append(n.excludeExtensions, ext)
	}
	return n
}

// Normalize resolves rawURL against baseURL, canonicalizes it and applies
// the filters. It returns false when the URL is rejected; rejection is not an
// error.
func (n *Normalizer) Normalize(rawURL, baseURL string) (string, bool) {
	href := strings.TrimSpace(rawURL)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	u, ok := canonicalize(base.ResolveReference(ref))
	if !ok {
		return "", false
	}
	if !n.AllowedHost(u.Hostname()) || n.Excluded(u.Path) {
		return "", false
	}
	return u.String(), true
}

// Canonicalize returns the canonical form of an absolute URL without
// applying the filters. It is used for the start URL.
func (n *Normalizer) Canonicalize(rawURL string) (string, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	c, ok := canonicalize(u)
	if !ok {
		return "", false
	}
	return c.String(), true
}

// AllowedHost reports whether host passes the domain filter.
func (n *Normalizer) AllowedHost(host string) bool {
	host = stripWWW(strings.ToLower(host))
	if host == "" {
		return false
	}
	for _, d := range n.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Excluded reports whether path ends with an excluded extension.
func (n *Normalizer) Excluded(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range n.excludeExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// canonicalize reduces u to its canonical form:
// http/https only, lowercase scheme and host, no default port, no user info,
// no query or fragment, and no trailing slash except for the root path.
func canonicalize(u *url.URL) (*url.URL, bool) {
	c := *u
	c.Scheme = strings.ToLower(c.Scheme)
	if c.Scheme != "http" && c.Scheme != "https" {
		return nil, false
	}
	if c.Opaque != "" || c.Host == "" {
		return nil, false
	}

	host := strings.ToLower(c.Hostname())
	if host == "" {
		return nil, false
	}
	port := c.Port()
	if (c.Scheme == "http" && port == "80") || (c.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		c.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		c.Host = "[" + host + "]"
	} else {
		c.Host = host
	}

	c.User = nil
	c.RawQuery = ""
	c.ForceQuery = false
	c.Fragment = ""
	c.RawFragment = ""

	escaped := strings.TrimRight(c.EscapedPath(), "/")
	if escaped == "" {
		escaped = "/"
	}
	path, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, false
	}
	c.Path = path
	c.RawPath = escaped

	return &c, true
}

// stripWWW removes a single leading "www." label.
func stripWWW(host string) string {
	return strings.TrimPrefix(host, "www.")
}
