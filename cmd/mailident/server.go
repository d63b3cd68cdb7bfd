package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andrew-d/mailident/internal/brand"
	"github.com/andrew-d/mailident/internal/db"
	"github.com/andrew-d/mailident/internal/netstate"
	"github.com/andrew-d/mailident/internal/norm"
	"github.com/andrew-d/mailident/internal/searches"
	"github.com/andrew-d/mailident/internal/summary"
)

// server holds the state shared by every command. Only logger, kb and
// summaries are always set; the rest are nil unless configured.
type server struct {
	logger    *slog.Logger
	kb        *brand.KnowledgeBase
	summaries *summary.Cache

	db       *db.DB
	searches *searches.History
	netstate *netstate.Observer
}

// Close releases the server's resources.
func (s *server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(s.logger))

	r.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok\n")
	})
	r.Get("/readyz", s.serveReadyz)

	r.Get("/identity", s.serveIdentity)
	r.Get("/initials", s.serveInitials)
	r.Get("/domains/{domain}", s.serveDomain)
	r.Get("/logo/{domain}", s.serveLogo)

	if s.db != nil {
		r.Get("/senders", s.serveSenders)
		r.Get("/groups/{key}/messages", s.serveGroupMessages)
		r.Get("/messages/{id}/summary", s.serveSummary)
	}
	if s.searches != nil {
		r.Get("/searches", s.serveSearches)
		r.Delete("/searches", s.serveClearSearches)
	}
	return r
}

func (s *server) serveReadyz(w http.ResponseWriter, r *http.Request) {
	if s.netstate != nil && !s.netstate.Online() {
		http.Error(w, "offline", http.StatusServiceUnavailable)
		return
	}
	io.WriteString(w, "ok\n")
}

// identityResponse is a normalized identity along with the presentation
// details that callers need to render a sender.
type identityResponse struct {
	norm.Identity
	LogoURL  string `json:"logo_url"`
	Color    string `json:"color,omitempty"`
	Initials string `json:"initials"`
}

func (s *server) describe(id norm.Identity, name string) identityResponse {
	// Organizations are shown with their brand's logo; individuals with
	// their mail provider's.
	logoDomain := id.BrandDomain
	if logoDomain == "" {
		logoDomain = id.Domain
	}
	color, _ := s.kb.BrandColor(logoDomain)
	return identityResponse{
		Identity: id,
		LogoURL:  s.kb.LogoURL(logoDomain),
		Color:    color,
		Initials: norm.Initials(name, id.Address),
	}
}

func (s *server) serveIdentity(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("addr")
	id, ok := norm.Normalize(addr, s.kb)
	if !ok {
		AddRequestLogAttrs(r, slog.Bool("not_an_address", true))
		http.Error(w, "not an email address", http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, s.describe(id, r.URL.Query().Get("name")))
}

func (s *server) serveInitials(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeJSON(w, map[string]string{
		"initials": norm.Initials(q.Get("name"), q.Get("email")),
	})
}

type domainResponse struct {
	Domain     string `json:"domain"`
	Alias      string `json:"alias"`
	RootDomain string `json:"root_domain"`
	Personal   bool   `json:"personal"`
	LogoURL    string `json:"logo_url"`
	Color      string `json:"color,omitempty"`
}

func (s *server) serveDomain(w http.ResponseWriter, r *http.Request) {
	domain := s.kb.AliasedDomain(chi.URLParam(r, "domain"))
	root := s.kb.AliasedDomain(norm.RegistrableDomain(domain, s.kb))
	color, _ := s.kb.BrandColor(root)
	s.writeJSON(w, domainResponse{
		Domain:     chi.URLParam(r, "domain"),
		Alias:      domain,
		RootDomain: root,
		Personal:   s.kb.IsPersonalDomain(domain) || s.kb.IsPersonalDomain(root),
		LogoURL:    s.kb.LogoURL(root),
		Color:      color,
	})
}

func (s *server) serveLogo(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.kb.LogoURL(chi.URLParam(r, "domain")), http.StatusFound)
}

type senderGroupResponse struct {
	Key          string `json:"key"`
	BrandDomain  string `json:"brand_domain,omitempty"`
	Messages     int    `json:"messages"`
	LastReceived int64  `json:"last_received"` // Unix milliseconds
	LogoURL      string `json:"logo_url"`
}

func (s *server) serveSenders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var groups []db.SenderGroup
	if err := s.db.Read(ctx, func(tx *db.Tx) (err error) {
		groups, err = tx.ListSenderGroups(ctx)
		return err
	}); err != nil {
		s.internalError(w, r, "failed to list senders", err)
		return
	}

	resp := make([]senderGroupResponse, 0, len(groups))
	for _, g := range groups {
		logoDomain := g.BrandDomain
		if logoDomain == "" {
			logoDomain = norm.RegistrableDomain(s.kb.AliasedDomain(domainOf(g.Key)), s.kb)
		}
		resp = append(resp, senderGroupResponse{
			Key:          g.Key,
			BrandDomain:  g.BrandDomain,
			Messages:     g.Messages,
			LastReceived: g.LastReceived.UnixMilli(),
			LogoURL:      s.kb.LogoURL(logoDomain),
		})
	}
	s.writeJSON(w, resp)
}

type messageResponse struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Address     string `json:"address"`
	BrandDomain string `json:"brand_domain,omitempty"`
	Subject     string `json:"subject"`
	ReceivedAt  int64  `json:"received_at"` // Unix milliseconds
}

func (s *server) serveGroupMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	if s.searches != nil {
		if err := s.searches.Add(key); err != nil {
			// Not fatal to the request; the search just isn't remembered.
			s.logger.Warn("failed to record search", slog.String("query", key), errAttr(err))
		}
	}

	var msgs []*db.Message
	if err := s.db.Read(ctx, func(tx *db.Tx) (err error) {
		msgs, err = tx.ListGroupMessages(ctx, key, limit)
		return err
	}); err != nil {
		s.internalError(w, r, "failed to list messages", err)
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, messageResponse{
			ID:          m.ID,
			Sender:      m.Sender,
			Address:     m.Address,
			BrandDomain: m.BrandDomain,
			Subject:     m.Subject,
			ReceivedAt:  m.ReceivedAt.UnixMilli(),
		})
	}
	s.writeJSON(w, resp)
}

type summaryResponse struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Cached  bool   `json:"cached"`
}

func (s *server) serveSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if text, ok := s.summaries.Get(id); ok {
		s.writeJSON(w, summaryResponse{ID: id, Summary: text, Cached: true})
		return
	}

	var msg *db.Message
	err := s.db.Read(ctx, func(tx *db.Tx) (err error) {
		msg, err = tx.GetMessage(ctx, id)
		return err
	})
	if errors.Is(err, db.ErrNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		s.internalError(w, r, "failed to get message", err)
		return
	}

	text := s.summaries.Put(id, msg.Snippet)
	s.writeJSON(w, summaryResponse{ID: id, Summary: text})
}

func (s *server) serveSearches(w http.ResponseWriter, r *http.Request) {
	n, _ := strconv.Atoi(r.URL.Query().Get("n"))
	entries := s.searches.Recent(n)
	if entries == nil {
		entries = []searches.Entry{}
	}
	s.writeJSON(w, entries)
}

func (s *server) serveClearSearches(w http.ResponseWriter, r *http.Request) {
	if err := s.searches.Clear(); err != nil {
		s.internalError(w, r, "failed to clear searches", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	jenc := json.NewEncoder(w)
	jenc.SetIndent("", "  ")
	if err := jenc.Encode(v); err != nil {
		s.logger.Error("failed to encode response", errAttr(err))
	}
}

func (s *server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, errAttr(err))
	AddRequestLogAttrs(r, errAttr(err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// domainOf returns the part of addr after the last "@", or addr itself.
func domainOf(addr string) string {
	return addr[strings.LastIndexByte(addr, '@')+1:]
}
