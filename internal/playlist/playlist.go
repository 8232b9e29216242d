// Package playlist turns a shared Spotify link into its embeddable player URL.
package playlist

import (
	"net/url"
	"strings"
)

const embedBase = "https://open.spotify.com/embed/"

var embeddable = map[string]bool{
	"playlist": true,
	"album":    true,
	"artist":   true,
}

// EmbedURL returns the embed URL for a playlist, album or artist link.
// ok is false for empty, unparseable or unsupported links, meaning no playlist is loaded.
func EmbedURL(raw string) (embed string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	parts := strings.Split(u.Path, "/")
	if len(parts) < 3 {
		return "", false
	}
	kind, id := parts[1], parts[2]
	if !embeddable[kind] || id == "" {
		return "", false
	}
	return embedBase + kind + "/" + url.PathEscape(id) + "?utm_source=generator&theme=0", true
}
