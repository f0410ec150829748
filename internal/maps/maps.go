// Package maps extracts business details from Google Maps links so a brief can
// be seeded with a real name and location. Parsing is pure; short-link
// expansion and caching live in expander.go.
package maps

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnsupportedLink is returned when a URL is not a recognizable Google Maps
// business link.
var ErrUnsupportedLink = errors.New("unsupported Google Maps link")

// Business holds what a maps link reveals about a place.
type Business struct {
	Name      string  `json:"name"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	CID       string  `json:"cid,omitempty"`
	SourceURL string  `json:"sourceUrl"`
}

// ParseLink extracts a Business from a full-length Google Maps URL. Supported
// shapes, in the order they are tried:
//
//	https://www.google.com/maps/place/<Name>/@<lat>,<lng>,<zoom>...
//	https://www.google.com/maps/search/<Name>/...
//	https://www.google.com/maps?q=<Name>  (also /maps/search?q= and plain ?q=)
//	https://maps.google.com/?cid=<id>
//
// Short links (maps.app.goo.gl, goo.gl/maps) must be expanded first; ParseLink
// rejects them with ErrUnsupportedLink.
func ParseLink(rawURL string) (*Business, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLink, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedLink, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if IsShortLink(rawURL) {
		return nil, fmt.Errorf("%w: short link must be expanded first", ErrUnsupportedLink)
	}
	if !isGoogleHost(host) {
		return nil, fmt.Errorf("%w: host %q", ErrUnsupportedLink, host)
	}

	biz := &Business{SourceURL: rawURL}

	if name, rest, ok := pathSegmentAfter(u.EscapedPath(), "place"); ok {
		biz.Name = decodeSegment(name)
		biz.Latitude, biz.Longitude = parseCoordinates(rest)
		if biz.Name != "" {
			return biz, nil
		}
	}
	if name, rest, ok := pathSegmentAfter(u.EscapedPath(), "search"); ok {
		biz.Name = decodeSegment(name)
		biz.Latitude, biz.Longitude = parseCoordinates(rest)
		if biz.Name != "" {
			return biz, nil
		}
	}

	query := u.Query()
	if q := query.Get("q"); q != "" {
		biz.Name = strings.TrimSpace(q)
		return biz, nil
	}
	if cid := query.Get("cid"); cid != "" {
		biz.CID = cid
		return biz, nil
	}

	return nil, fmt.Errorf("%w: no place, query or cid in %q", ErrUnsupportedLink, rawURL)
}

// IsShortLink reports whether the URL is a Google Maps short link that needs
// an HTTP redirect before it can be parsed.
func IsShortLink(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "maps.app.goo.gl" {
		return true
	}
	return host == "goo.gl" && strings.HasPrefix(u.Path, "/maps")
}

func isGoogleHost(host string) bool {
	if host == "maps.google.com" {
		return true
	}
	return strings.HasPrefix(host, "www.google.") || strings.HasPrefix(host, "google.")
}

// pathSegmentAfter returns the path segment following marker and everything
// after it, e.g. ("/maps/place/Joe%27s/@1,2,3z", "place") yields
// ("Joe%27s", "/@1,2,3z", true).
func pathSegmentAfter(escapedPath, marker string) (string, string, bool) {
	segments := strings.Split(escapedPath, "/")
	for i, seg := range segments {
		if seg != marker || i+1 >= len(segments) {
			continue
		}
		rest := ""
		if i+2 < len(segments) {
			rest = "/" + strings.Join(segments[i+2:], "/")
		}
		return segments[i+1], rest, true
	}
	return "", "", false
}

func decodeSegment(seg string) string {
	decoded, err := url.PathUnescape(seg)
	if err != nil {
		decoded = seg
	}
	return strings.TrimSpace(strings.ReplaceAll(decoded, "+", " "))
}

// parseCoordinates pulls "lat,lng" out of an "/@lat,lng,zoom" path remainder.
// Missing or malformed coordinates yield zeros.
func parseCoordinates(rest string) (float64, float64) {
	idx := strings.Index(rest, "@")
	if idx < 0 {
		return 0, 0
	}
	parts := strings.Split(rest[idx+1:], ",")
	if len(parts) < 2 {
		return 0, 0
	}
	lat, latErr := strconv.ParseFloat(parts[0], 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSuffix(parts[1], "/"), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0
	}
	return lat, lng
}
