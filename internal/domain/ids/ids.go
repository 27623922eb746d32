// Package ids generates the prefixed opaque object identifiers used on every
// externally visible record (bots, recordings, webhook subscriptions, ...).
//
// Shape: "<prefix>_<16 random alphanumerics>", e.g. "bot_aB3dEfGhIjKlMnOp".
// No pack repository carries a matching base62/nanoid-style generator, so
// this one corner is hand-rolled against crypto/rand rather than borrowed.
package ids

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const suffixLen = 16

// New returns a fresh object id for the given prefix, e.g. New("bot") -> "bot_...".
// Panics only if the system CSPRNG is unavailable (crypto.Store.Seal, by
// contrast, returns that failure as an error).
func New(prefix string) string {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ids: crypto/rand unavailable: %v", err))
	}
	out := make([]byte, suffixLen)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return prefix + "_" + string(out)
}

var validPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+_[A-Za-z0-9]{16}$`)

// Valid reports whether id looks like a well-formed object id for the given
// prefix. It does not check that the record actually exists.
func Valid(prefix, id string) bool {
	if !validPattern.MatchString(id) {
		return false
	}
	want := prefix + "_"
	return len(id) > len(want) && id[:len(want)] == want
}
