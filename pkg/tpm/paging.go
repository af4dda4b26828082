package tpm

import (
	"fmt"
	"net/url"
	"strings"
)

// apiRoot separates the host part of a TPM URL from the API path.
const apiRoot = "/index.php/"

// nextPagePath extracts the API path of the rel="next" target from Link
// header values, e.g.
//
//	<https://host/index.php/api/v4/passwords/search/x/page/2.json>; rel="next"
func nextPagePath(values []string) (string, bool, error) {
	for _, value := range values {
		for _, link := range splitLinks(value) {
			target, ok := parseNextLink(link)
			if !ok {
				continue
			}
			path, err := apiPath(target)
			if err != nil {
				return "", false, err
			}
			return path, true, nil
		}
	}
	return "", false, nil
}

// splitLinks splits a Link header value into link-values on the commas
// outside <...>. Search queries may put unencoded commas in the URI.
func splitLinks(value string) []string {
	var (
		links []string
		inURI bool
		start int
	)
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '<':
			inURI = true
		case '>':
			inURI = false
		case ',':
			if !inURI {
				links = append(links, value[start:i])
				start = i + 1
			}
		}
	}
	return append(links, value[start:])
}

// parseNextLink returns the URL of a single link-value if its rel is next.
func parseNextLink(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if !strings.HasPrefix(link, "<") {
		return "", false
	}
	end := strings.IndexByte(link, '>')
	if end < 0 {
		return "", false
	}
	target := link[1:end]

	for _, param := range strings.Split(link[end+1:], ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
			if strings.EqualFold(rel, "next") {
				return target, true
			}
		}
	}
	return "", false
}

// apiPath strips everything up to and including /index.php/ from target.
func apiPath(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid next page link %q: %w", target, err)
	}
	escaped := u.EscapedPath()
	idx := strings.Index(escaped, apiRoot)
	if idx < 0 {
		return "", fmt.Errorf("next page link %q is outside the API root", target)
	}
	path := escaped[idx+len(apiRoot):]
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path, nil
}

// escapeQuery percent-encodes a search query for use in a path segment.
// Unreserved characters and '/' are kept, everything else is encoded byte
// by byte from its UTF-8 form.
func escapeQuery(q string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(q); i++ {
		c := q[i]
		if isUnreserved(c) || c == '/' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
