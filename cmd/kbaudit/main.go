// Command kbaudit checks the public suffixes in a brand knowledge base
// against the Public Suffix List.
//
// For every domain the knowledge base names, it compares the registrable
// domain computed from the knowledge base's own suffix table with the one
// computed from the Public Suffix List, and reports each disagreement. It
// exits with a non-zero status if there are any.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"
	"golang.org/x/net/publicsuffix"

	"github.com/andrew-d/mailident/internal/brand"
	"github.com/andrew-d/mailident/internal/norm"
)

var (
	kbPath  = flag.String("kb", "", "path to a brand knowledge base JSON file (default: bundled)")
	verbose = flag.BoolP("verbose", "v", false, "also print domains that agree")
)

// mismatch is a domain whose registrable domain differs between the
// knowledge base and the Public Suffix List.
type mismatch struct {
	Domain string
	KB     string
	PSL    string
}

func (m mismatch) String() string {
	return fmt.Sprintf("%s: knowledge base says %q, public suffix list says %q", m.Domain, m.KB, m.PSL)
}

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	kb := brand.OrDefault(logger, *kbPath)

	stats := kb.Stats()
	logger.Info("auditing knowledge base",
		slog.Int("domains", len(kb.Domains())),
		slog.Int("public_suffixes", stats.PublicSuffixes))

	if n := audit(os.Stdout, kb, *verbose); n > 0 {
		logger.Error("knowledge base disagrees with the public suffix list", slog.Int("mismatches", n))
		os.Exit(1)
	}
}

// audit writes one line per mismatching domain in kb to w and returns the
// number of mismatches. If verbose is set, agreeing domains are written too.
func audit(w io.Writer, kb *brand.KnowledgeBase, verbose bool) int {
	var n int
	for _, domain := range kb.Domains() {
		m, ok := check(kb, domain)
		if !ok {
			fmt.Fprintln(w, m)
			n++
		} else if verbose {
			fmt.Fprintf(w, "%s: ok (%s)\n", domain, m.KB)
		}
	}
	return n
}

// check compares the registrable domain of domain under kb and under the
// Public Suffix List.
func check(kb *brand.KnowledgeBase, domain string) (mismatch, bool) {
	m := mismatch{
		Domain: domain,
		KB:     norm.RegistrableDomain(domain, kb),
	}
	psl, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		m.PSL = "error: " + err.Error()
		return m, false
	}
	m.PSL = psl
	return m, m.KB == m.PSL
}
