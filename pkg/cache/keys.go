package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Key joins parts with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey returns the hex MD5 of s, used to keep long plan fingerprints short.
func HashKey(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
