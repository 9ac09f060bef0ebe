package gallery

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kozaktomas/rollcall/internal/facematch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyIdentity is returned when an enrollment names no identity.
	ErrEmptyIdentity = errors.New("identity cannot be empty")
	// ErrInvalidIdentity is returned for identities that cannot be used as a bucket name.
	ErrInvalidIdentity = errors.New("invalid identity")
)

// NormalizeIdentity trims surrounding whitespace and converts the key to NFC,
// so that composed and decomposed spellings of a name share one bucket.
// The key stays case-sensitive.
func NormalizeIdentity(identity string) string {
	return norm.NFC.String(strings.TrimSpace(identity))
}

// ValidateIdentity normalizes identity and checks it can name a storage bucket.
func ValidateIdentity(identity string) (string, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return "", ErrEmptyIdentity
	}
	if identity == "." || identity == ".." || strings.HasPrefix(identity, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	if identity == facematch.Unknown {
		return "", fmt.Errorf("%w: %q is reserved for unmatched faces", ErrInvalidIdentity, identity)
	}
	if strings.ContainsAny(identity, `/\`) {
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidIdentity, identity)
	}
	for _, r := range identity {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains control characters", ErrInvalidIdentity, identity)
		}
	}
	return identity, nil
}

// removeDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// foldIdentity reduces a name to a loose comparison form (lowercase, no
// diacritics, dashes and underscores as spaces). It is only used to warn about
// enrollments that look like a typo of an existing identity; matching and
// storage always use the exact key.
func foldIdentity(name string) string {
	name = removeDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
