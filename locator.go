package video_acquirer

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	ErrInvalidSourceID = errors.New("invalid source id")
)

type LocatorForm string

const (
	LocatorCanonical LocatorForm = "canonical"
	LocatorShorts    LocatorForm = "shorts"
	LocatorShortLink LocatorForm = "short-link"
)

// A Locator is one fully-formed address for the requested asset.
type Locator struct {
	Form LocatorForm
	URL  string
}

func (l Locator) String() string {
	return l.URL
}

// LocatorResolver turns a source id into the ordered candidate locators to try.
type LocatorResolver interface {
	Resolve(sourceID string) []Locator
}

type youtubeLocatorResolver struct{}

// DefaultLocatorResolver produces the canonical watch URL, the shorts path and the youtu.be short link.
var DefaultLocatorResolver LocatorResolver = youtubeLocatorResolver{}

func (youtubeLocatorResolver) Resolve(sourceID string) []Locator {
	id := url.PathEscape(sourceID)
	return []Locator{
		{Form: LocatorCanonical, URL: "https://www.youtube.com/watch?v=" + url.QueryEscape(sourceID)},
		{Form: LocatorShorts, URL: "https://www.youtube.com/shorts/" + id},
		{Form: LocatorShortLink, URL: "https://youtu.be/" + id},
	}
}

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ParseSourceID accepts either a bare source id or a URL in any of the forms the resolver produces (plus the
// m./v/ variants), and returns the bare id.
//
// Allowed URL formats:
//
//	http(s?)://(www|m).youtube.com/(watch|details)?v={ID}
//	http(s?)://(www|m).youtube.com/(v|shorts|embed)/{ID}
//	http(s?)://youtu.be/{ID}
func ParseSourceID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if sourceIDPattern.MatchString(s) {
		return s, nil
	}
	parsedURL, err := url.Parse(s)
	if err != nil || parsedURL.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSourceID, s)
	}
	var id string
	switch strings.ToLower(parsedURL.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		path := strings.Trim(parsedURL.Path, "/")
		if path == "watch" || path == "details" {
			if !parsedURL.Query().Has("v") {
				return "", fmt.Errorf("%w: missing ?v= query parameter", ErrInvalidSourceID)
			}
			id = parsedURL.Query().Get("v")
		} else if parts := strings.SplitN(path, "/", 3); len(parts) >= 2 {
			switch parts[0] {
			case "v", "shorts", "embed":
				id = parts[1]
			}
		}
	case "youtu.be":
		id = strings.Trim(parsedURL.Path, "/")
	default:
		return "", fmt.Errorf("%w: unrecognised hostname %q", ErrInvalidSourceID, parsedURL.Hostname())
	}
	if !sourceIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: could not extract id from %q", ErrInvalidSourceID, s)
	}
	return id, nil
}
