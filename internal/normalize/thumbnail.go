package normalize

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// DefaultThumbnailHosts are the host patterns (path.Match syntax) whose images
// are accepted without an image file extension.
var DefaultThumbnailHosts = []string{
	"books.google.com",
	"books.googleusercontent.com",
	"*.googleusercontent.com",
	"covers.openlibrary.org",
	"*.archive.org",
	"placehold.co",
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

// ThumbnailChecker validates thumbnail URLs syntactically. It never fetches them.
type ThumbnailChecker struct {
	hosts []string
}

// NewThumbnailChecker allows DefaultThumbnailHosts plus any extra patterns.
func NewThumbnailChecker(extra ...string) ThumbnailChecker {
	hosts := append([]string(nil), DefaultThumbnailHosts...)
	for _, h := range extra {
		if h != "" {
			hosts = append(hosts, strings.ToLower(h))
		}
	}
	return ThumbnailChecker{hosts: hosts}
}

// Valid reports whether raw is an HTTPS URL on an allowed host or pointing
// at a file with an image extension.
func (c ThumbnailChecker) Valid(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, pattern := range c.hosts {
		if ok, _ := path.Match(pattern, host); ok {
			return true
		}
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}

// UpgradeHTTPS rewrites an http:// URL to https://.
func UpgradeHTTPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") {
		return "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// CoverURL returns the OpenLibrary medium cover for an ISBN.
func CoverURL(isbn string) string {
	return "https://covers.openlibrary.org/b/isbn/" + isbn + "-M.jpg"
}

// CoverIDURL returns the OpenLibrary medium cover for a cover id.
func CoverIDURL(id int) string {
	return "https://covers.openlibrary.org/b/id/" + strconv.Itoa(id) + "-M.jpg"
}

// proxied routes an image through the configured proxy prefix, if any.
func (n *Normalizer) proxied(image string) string {
	if n.opts.ImageProxy == "" {
		return image
	}
	return n.opts.ImageProxy + url.QueryEscape(image)
}

// resolveThumbnail applies the thumbnail priority: the source image, then a
// cover derived from a real ISBN, then the stock image if the policy allows it.
func (n *Normalizer) resolveThumbnail(source, id string, realISBN bool, policy Policy) (string, error) {
	if source = UpgradeHTTPS(source); source != "" {
		if candidate := n.proxied(source); n.thumbs.Valid(candidate) {
			return candidate, nil
		}
	}
	if realISBN {
		return CoverURL(id), nil
	}
	if policy.Thumbnail == StockMissingThumbnail && n.thumbs.Valid(n.opts.StockThumbnail) {
		return n.opts.StockThumbnail, nil
	}
	return "", reject("missing or invalid thumbnail")
}
