package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// CanonicalURL returns rawURL with its query re-encoded in sorted key order,
// so that callers building the same parameters in a different order hit the
// same entry. Unparseable URLs are returned unchanged.
func CanonicalURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.RawQuery == "" {
		return u.String()
	}
	u.RawQuery = u.Query().Encode()
	return u.String()
}

// Key returns the content address of rawURL: the hex SHA-256 of its canonical form.
//
// Example:
//
//	Key("https://kos.example.com/api/3/courses?offset=0&lang=cs")
//	// == Key("https://kos.example.com/api/3/courses?lang=cs&offset=0")
func Key(rawURL string) string {
	sum := sha256.Sum256([]byte(CanonicalURL(rawURL)))
	return hex.EncodeToString(sum[:])
}
