package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"
)

// CanonicalURL normalises a listing URL so that trivially different spellings
// of the same link produce the same fingerprint. The scheme and host are
// lower-cased, default ports and fragments are dropped. Query parameters are
// kept as-is because job sites routinely carry the listing id there.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// HashURL creates a SHA256 hash of a URL string.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint returns the dedup key of a listing: the hash of its canonical URL.
// Unparseable URLs are hashed verbatim.
func Fingerprint(rawURL string) string {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return HashURL(strings.TrimSpace(rawURL))
	}
	return HashURL(canonical)
}

// HasExtension reports whether the URL path ends in one of exts
// (compared case-insensitively, with or without the leading dot).
func HasExtension(rawURL string, exts []string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}

// ToAbsoluteURL converts a relative URL to an absolute URL given a base URL.
func ToAbsoluteURL(base *url.URL, relative string) (string, error) {
	relURL, err := url.Parse(strings.TrimSpace(relative))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(relURL).String(), nil
}
