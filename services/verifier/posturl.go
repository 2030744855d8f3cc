package verifier

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

var ErrInvalidPostURL = errors.New("invalid post url")

var statusPath = regexp.MustCompile(`/status(?:es)?/(\d+)`)

var postHosts = map[string]bool{
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
}

// ParsePostURL extracts the numeric post id from a twitter.com or x.com status link.
func ParsePostURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidPostURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidPostURL
	}
	if !postHosts[strings.ToLower(u.Hostname())] {
		return "", ErrInvalidPostURL
	}

	m := statusPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", ErrInvalidPostURL
	}

	return m[1], nil
}
