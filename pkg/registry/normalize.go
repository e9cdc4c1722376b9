package registry

import (
	"net/url"
	"slices"
	"strings"

	"github.com/agentstation/studiosync/internal/transport"
)

// Option configures registry clients.
type Option func(*options)

type options struct {
	transport []transport.Option
}

// WithTransport passes options through to the HTTP transport.
func WithTransport(opts ...transport.Option) Option {
	return func(o *options) {
		o.transport = append(o.transport, opts...)
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// asset is an image URL with an optional tag such as "logo" or "poster".
type asset struct {
	URL string
	Tag string
}

// ValidURL reports whether s is an absolute http or https URL.
func ValidURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func imageRank(a asset) int {
	tag := strings.ToLower(a.Tag)
	u := strings.ToLower(a.URL)
	switch {
	case tag == "logo" || strings.Contains(u, "logo"):
		return 0
	case tag == "poster" || strings.Contains(u, "poster"):
		return 1
	}
	return 2
}

// normalizeImages drops invalid and duplicate URLs and orders logos first,
// then posters, then the rest. Relative order within a rank is kept.
func normalizeImages(assets []asset) []string {
	kept := make([]asset, 0, len(assets))
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		a.URL = strings.TrimSpace(a.URL)
		if !ValidURL(a.URL) || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		kept = append(kept, a)
	}
	slices.SortStableFunc(kept, func(a, b asset) int {
		return imageRank(a) - imageRank(b)
	})
	out := make([]string, len(kept))
	for i, a := range kept {
		out[i] = a.URL
	}
	return out
}

// typedURL is a stash-box site link.
type typedURL struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// pickHomeURL prefers a HOME link, else the first valid one.
func pickHomeURL(urls []typedURL) string {
	first := ""
	for _, u := range urls {
		if !ValidURL(u.URL) {
			continue
		}
		if strings.EqualFold(u.Type, "HOME") {
			return strings.TrimSpace(u.URL)
		}
		if first == "" {
			first = strings.TrimSpace(u.URL)
		}
	}
	return first
}

// cleanURL returns s when it is a valid http(s) URL, else "".
func cleanURL(s string) string {
	if ValidURL(s) {
		return strings.TrimSpace(s)
	}
	return ""
}
