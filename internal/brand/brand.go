// Package brand contains the brand knowledge base: the static tables used to
// classify email domains as personal or organizational, resolve domain
// aliases, and look up per-domain logos and colors.
package brand

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

//go:embed brands.json
var bundled []byte

// KnowledgeBase is an immutable set of lookup tables keyed by lowercase
// domain. All methods are safe for concurrent use, and all methods may be
// called on a nil *KnowledgeBase, which behaves like an empty one.
type KnowledgeBase struct {
	personal map[string]struct{}
	aliases  map[string]string
	logos    map[string]string
	colors   map[string]string
	suffixes map[string]struct{}
}

// document is the on-disk representation of a KnowledgeBase.
type document struct {
	PersonalDomains []string          `json:"personal_domains"`
	DomainAliases   map[string]string `json:"domain_aliases"`
	LogoOverrides   map[string]string `json:"logo_overrides"`
	BrandColors     map[string]string `json:"brand_colors"`
	PublicSuffixes  []string          `json:"public_suffixes"`
}

// Empty returns a KnowledgeBase with no entries; every query on it returns
// the "no information" answer.
func Empty() *KnowledgeBase {
	return &KnowledgeBase{
		personal: map[string]struct{}{},
		aliases:  map[string]string{},
		logos:    map[string]string{},
		colors:   map[string]string{},
		suffixes: map[string]struct{}{},
	}
}

// Parse decodes a KnowledgeBase from a JSON document. Either every
// collection is populated or an error is returned.
func Parse(r io.Reader) (*KnowledgeBase, error) {
	var doc document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding knowledge base: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decoding knowledge base: trailing data after document")
	}

	kb := Empty()
	for _, d := range doc.PersonalDomains {
		kb.personal[strings.ToLower(d)] = struct{}{}
	}
	for _, s := range doc.PublicSuffixes {
		kb.suffixes[strings.ToLower(s)] = struct{}{}
	}
	lowerInto(kb.aliases, doc.DomainAliases)
	lowerInto(kb.logos, doc.LogoOverrides)
	lowerInto(kb.colors, doc.BrandColors)
	return kb, nil
}

func lowerInto(dst, src map[string]string) {
	for k, v := range src {
		dst[strings.ToLower(k)] = strings.ToLower(v)
	}
}

// LoadFile reads and parses the knowledge base at path.
func LoadFile(path string) (*KnowledgeBase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

var (
	defaultKB   *KnowledgeBase
	defaultOnce sync.Once
)

// Default returns the knowledge base bundled with the binary. It is parsed
// once, on first use; if the bundled data cannot be parsed a warning is
// logged and an empty knowledge base is used for the rest of the process.
func Default() *KnowledgeBase {
	defaultOnce.Do(func() {
		kb, err := Parse(bytes.NewReader(bundled))
		if err != nil {
			slog.Default().Warn("bundled brand data unusable, continuing without it",
				slog.String("error", err.Error()))
			kb = Empty()
		}
		defaultKB = kb
	})
	return defaultKB
}

// OrDefault returns the knowledge base at path, or Default if path is empty.
// A file that cannot be loaded is logged and replaced by an empty knowledge
// base, so that callers keep working in a degraded mode.
func OrDefault(log *slog.Logger, path string) *KnowledgeBase {
	if path == "" {
		return Default()
	}
	if log == nil {
		log = slog.Default()
	}
	kb, err := LoadFile(path)
	if err != nil {
		log.Warn("failed to load brand data, continuing without it",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return Empty()
	}
	return kb
}

// IsPersonalDomain reports whether addresses at domain belong to individuals
// (e.g. a free mail provider) rather than an organization.
func (kb *KnowledgeBase) IsPersonalDomain(domain string) bool {
	if kb == nil {
		return false
	}
	_, ok := kb.personal[strings.ToLower(domain)]
	return ok
}

// AliasedDomain returns the canonical domain for domain, or the lowercased
// domain itself if it is not an alias.
func (kb *KnowledgeBase) AliasedDomain(domain string) string {
	domain = strings.ToLower(domain)
	if kb == nil {
		return domain
	}
	if canonical, ok := kb.aliases[domain]; ok {
		return canonical
	}
	return domain
}

// BrandColor returns the hex color associated with domain, if any.
func (kb *KnowledgeBase) BrandColor(domain string) (string, bool) {
	if kb == nil {
		return "", false
	}
	c, ok := kb.colors[strings.ToLower(domain)]
	return c, ok
}

// IsPublicSuffix reports whether suffix (e.g. "co.uk") is a known public
// suffix.
func (kb *KnowledgeBase) IsPublicSuffix(suffix string) bool {
	if kb == nil {
		return false
	}
	_, ok := kb.suffixes[strings.ToLower(suffix)]
	return ok
}

// PublicSuffixes returns a sorted copy of the known public suffixes.
func (kb *KnowledgeBase) PublicSuffixes() []string {
	if kb == nil {
		return nil
	}
	return sortedKeys(kb.suffixes)
}

// PersonalDomains returns a sorted copy of the personal domains.
func (kb *KnowledgeBase) PersonalDomains() []string {
	if kb == nil {
		return nil
	}
	return sortedKeys(kb.personal)
}

// Domains returns every domain mentioned anywhere in the knowledge base
// (personal domains, both sides of each alias, and logo and color keys),
// sorted and de-duplicated.
func (kb *KnowledgeBase) Domains() []string {
	if kb == nil {
		return nil
	}
	all := make(map[string]struct{}, len(kb.personal)+2*len(kb.aliases))
	for d := range kb.personal {
		all[d] = struct{}{}
	}
	for from, to := range kb.aliases {
		all[from] = struct{}{}
		all[to] = struct{}{}
	}
	for d := range kb.logos {
		all[d] = struct{}{}
	}
	for d := range kb.colors {
		all[d] = struct{}{}
	}
	return sortedKeys(all)
}

// Stats holds the number of entries in each collection.
type Stats struct {
	PersonalDomains int `json:"personal_domains"`
	DomainAliases   int `json:"domain_aliases"`
	LogoOverrides   int `json:"logo_overrides"`
	BrandColors     int `json:"brand_colors"`
	PublicSuffixes  int `json:"public_suffixes"`
}

// Stats returns the size of each collection.
func (kb *KnowledgeBase) Stats() Stats {
	if kb == nil {
		return Stats{}
	}
	return Stats{
		PersonalDomains: len(kb.personal),
		DomainAliases:   len(kb.aliases),
		LogoOverrides:   len(kb.logos),
		BrandColors:     len(kb.colors),
		PublicSuffixes:  len(kb.suffixes),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
