package cfn

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Domain prefixes for content-addressed identity. The version suffix
// leaves room for algorithm migration without colliding with old hashes.
const (
	domainTemplate  = "alluvium/template/v1"
	domainLogicalID = "alluvium/logical-id/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data), hex-encoded.
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// TemplateHash computes the content hash of a template over its canonical
// encoding. Structurally equal templates hash equal; any difference in
// resources, properties, edges, or outputs changes the hash.
func TemplateHash(t *Template) (string, error) {
	canonical, err := MarshalCanonical(t.Value())
	if err != nil {
		return "", fmt.Errorf("template hash: %w", err)
	}
	return hashWithDomain(domainTemplate, canonical), nil
}

// MustTemplateHash is TemplateHash panicking on error. For tests and
// values already known to marshal.
func MustTemplateHash(t *Template) string {
	h, err := TemplateHash(t)
	if err != nil {
		panic(err)
	}
	return h
}

// LogicalID derives a template logical ID from a construct path. The ID
// is the PascalCase concatenation of the path elements (non-alphanumerics
// stripped) followed by the first 8 hex chars, uppercased, of the path
// hash. A pure function of the path: the same path always yields the same
// ID, and distinct paths get distinct suffixes.
func LogicalID(path []string) string {
	if len(path) == 0 {
		return ""
	}

	var b strings.Builder
	for _, elem := range path {
		b.WriteString(pascalize(elem))
	}

	digest := hashWithDomain(domainLogicalID, []byte(strings.Join(path, "/")))
	b.WriteString(strings.ToUpper(digest[:8]))
	return b.String()
}

// pascalize strips non-alphanumeric runes and uppercases the first letter
// of each resulting fragment, so "delivery-stream" becomes
// "DeliveryStream".
func pascalize(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
