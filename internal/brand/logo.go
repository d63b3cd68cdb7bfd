package brand

import (
	"fmt"
	"strings"
)

// faviconURLFormat is the favicon service URL used when a domain has no
// explicit logo. The query parameters and their order must not change;
// clients cache logos by this exact URL.
const faviconURLFormat = "https://t3.gstatic.com/faviconV2?client=SOCIAL&type=FAVICON&fallback_opts=TYPE,SIZE,URL&url=http://%s&size=256"

// LogoOverride returns the explicit logo URL configured for domain, if any.
func (kb *KnowledgeBase) LogoOverride(domain string) (string, bool) {
	if kb == nil {
		return "", false
	}
	u, ok := kb.logos[strings.ToLower(domain)]
	return u, ok
}

// LogoURL returns the logo URL for domain: the configured override if there
// is one, otherwise a favicon service URL derived from the domain.
func (kb *KnowledgeBase) LogoURL(domain string) string {
	if u, ok := kb.LogoOverride(domain); ok {
		return u
	}
	return FaviconURL(domain)
}

// FaviconURL returns the favicon service URL for domain.
func FaviconURL(domain string) string {
	return fmt.Sprintf(faviconURLFormat, strings.ToLower(domain))
}
