// Package norm contains functions to help normalize data; mainly, turning a
// raw email header value into a canonical sender identity.
package norm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/andrew-d/mailident/internal/brand"
)

// Identity is the canonical form of a single email address.
type Identity struct {
	// RawInput is the lowercased input that was normalized.
	RawInput string `json:"raw_input"`
	// Address is the canonical "local@domain" address.
	Address string `json:"address"`
	// Domain is the alias-resolved domain of the address.
	Domain string `json:"domain"`
	// RootDomain is the registrable part of Domain, e.g. "example.co.uk"
	// for "mail.example.co.uk".
	RootDomain string `json:"root_domain"`
	// BrandDomain is the alias-resolved RootDomain used to group messages
	// from one organization. It is empty for personal addresses.
	BrandDomain string `json:"brand_domain,omitempty"`
}

// IsPersonal reports whether the identity belongs to an individual rather
// than an organization.
func (id Identity) IsPersonal() bool {
	return id.BrandDomain == ""
}

// Normalize parses raw, which is either a bare address or a header value of
// the form "Display Name <address>", into an Identity. It returns false if
// no address could be found in raw.
func Normalize(raw string, kb *brand.KnowledgeBase) (Identity, bool) {
	addr, ok := extractAddress(raw)
	if !ok {
		return Identity{}, false
	}

	addr = strings.ToLower(addr)
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return Identity{}, false
	}
	local, domainPart := addr[:at], addr[at+1:]

	switch domainPart {
	case "gmail.com", "googlemail.com":
		local, _, _ = strings.Cut(local, "+")
	}

	domain := kb.AliasedDomain(domainPart)
	root := RegistrableDomain(domain, kb)
	normalizedRoot := kb.AliasedDomain(root)

	id := Identity{
		RawInput:   strings.ToLower(raw),
		Address:    local + "@" + domainPart,
		Domain:     domain,
		RootDomain: root,
	}
	if !kb.IsPersonalDomain(domainPart) &&
		!kb.IsPersonalDomain(domain) &&
		!kb.IsPersonalDomain(normalizedRoot) {
		id.BrandDomain = normalizedRoot
	}
	return id, true
}

// Address returns the canonical address for raw, or the empty string if raw
// does not contain an address.
func Address(raw string, kb *brand.KnowledgeBase) string {
	id, ok := Normalize(raw, kb)
	if !ok {
		return ""
	}
	return id.Address
}

// GroupKey returns the key that messages from id are grouped under: the
// brand domain for organizations, and the full address for individuals.
func GroupKey(id Identity) string {
	if id.BrandDomain != "" {
		return id.BrandDomain
	}
	return id.Address
}

// extractAddress finds the address portion of a header value. An address in
// angle brackets wins over the rest of the input.
func extractAddress(raw string) (string, bool) {
	if open := strings.IndexByte(raw, '<'); open >= 0 {
		if n := strings.IndexByte(raw[open+1:], '>'); n > 0 {
			return strings.TrimSpace(raw[open+1 : open+1+n]), true
		}
	}
	if strings.Contains(raw, "@") {
		return strings.TrimSpace(raw), true
	}
	return "", false
}

// RegistrableDomain returns the part of domain that a registry would sell,
// using the public suffixes known to kb. The longest matching suffix wins;
// if none match, the last two labels are used.
func RegistrableDomain(domain string, kb *brand.KnowledgeBase) string {
	labels := strings.Split(domain, ".")
	n := len(labels)
	if n < 2 {
		return domain
	}

	// Scan from shortest to longest so that the last match is the longest.
	best := 0
	for k := 1; k < n; k++ {
		if kb.IsPublicSuffix(strings.Join(labels[n-k:], ".")) {
			best = k
		}
	}
	if best == 0 {
		return strings.Join(labels[n-2:], ".")
	}
	return strings.Join(labels[n-min(n, best+1):], ".")
}

// Initials returns a one or two letter label for an avatar. The display
// name takes priority over the email address; "?" is returned if neither
// has anything usable.
func Initials(name, email string) string {
	words := strings.Fields(name)
	switch {
	case len(words) >= 2:
		return upperFirst(words[0]) + upperFirst(words[1])
	case len(words) == 1:
		return upperFirst(words[0])
	}

	local := email
	if at := strings.LastIndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	local = strings.TrimSpace(local)
	if local != "" {
		return upperFirst(local)
	}
	return "?"
}

func upperFirst(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r))
}
