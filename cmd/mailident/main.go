package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/andrew-d/mailident/internal/brand"
	"github.com/andrew-d/mailident/internal/db"
	"github.com/andrew-d/mailident/internal/netstate"
	"github.com/andrew-d/mailident/internal/searches"
	"github.com/andrew-d/mailident/internal/summary"
)

var (
	listen        = flag.StringP("listen", "l", ":8080", "Address to listen on for the serve command")
	dbPath        = flag.String("db", "", "Path to the message database")
	kbPath        = flag.String("kb", "", "Path to a brand data file to use instead of the bundled one")
	searchesPath  = flag.String("searches", "", "Path to the recent-search history file")
	summarySize   = flag.Int("summary-size", summary.DefaultSize, "Number of message summaries to keep in memory")
	summaryRunes  = flag.Int("summary-runes", summary.DefaultMaxRunes, "Maximum length of a message summary")
	probeAddr     = flag.String("probe-addr", "", "host:port to dial to check network reachability (disabled if empty)")
	probeInterval = flag.Duration("probe-interval", 30*time.Second, "How often to check network reachability")
	verbose       = flag.BoolP("verbose", "v", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command> [args]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  normalize ADDR...   print the normalized identity of each address\n")
	fmt.Fprintf(os.Stderr, "  ingest FILE...      store the sender metadata of .eml files (requires --db)\n")
	fmt.Fprintf(os.Stderr, "  senders             list stored senders grouped by brand (requires --db)\n")
	fmt.Fprintf(os.Stderr, "  kb                  print the size of the brand knowledge base\n")
	fmt.Fprintf(os.Stderr, "  serve               run the HTTP server\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s, err := newServer(logger)
	if err != nil {
		fatal(logger, "failed to initialize", errAttr(err))
	}
	defer s.Close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "normalize":
		if !s.runNormalize(os.Stdout, args) {
			os.Exit(1)
		}
	case "ingest":
		if s.db == nil {
			fatal(logger, "the ingest command requires --db")
		}
		if err := s.runIngest(ctx, args); err != nil {
			fatal(logger, "ingest failed", errAttr(err))
		}
	case "senders":
		if s.db == nil {
			fatal(logger, "the senders command requires --db")
		}
		if err := s.runSenders(ctx, os.Stdout, time.Now()); err != nil {
			fatal(logger, "listing senders failed", errAttr(err))
		}
	case "kb":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(s.kb.Stats())
	case "serve":
		serve(ctx, logger, s)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

// newServer builds the shared application state from the command-line
// flags.
func newServer(logger *slog.Logger) (_ *server, retErr error) {
	s := &server{
		logger: logger.With(slog.String("service", "mailident")),
		kb:     brand.OrDefault(logger, *kbPath),
	}
	defer func() {
		if retErr != nil {
			s.Close()
		}
	}()

	var err error
	s.summaries, err = summary.New(*summarySize, *summaryRunes)
	if err != nil {
		return nil, err
	}
	if *dbPath != "" {
		s.db, err = db.NewDB(logger.With(slog.String("service", "db")), *dbPath)
		if err != nil {
			return nil, err
		}
	}
	if *searchesPath != "" {
		s.searches, err = searches.Open(*searchesPath, searches.DefaultMax)
		if err != nil {
			return nil, err
		}
	}
	if *probeAddr != "" {
		s.netstate = netstate.New(
			logger.With(slog.String("service", "netstate")),
			netstate.DialProber(*probeAddr, 5*time.Second),
			*probeInterval,
		)
	}
	return s, nil
}

func serve(ctx context.Context, logger *slog.Logger, s *server) {
	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fatal(logger, "failed to listen", "addr", *listen, errAttr(err))
	}

	if s.netstate != nil {
		go s.netstate.Run(ctx)
	}

	srv := &http.Server{Handler: s.routes()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	defer logger.Info("mailident finished")

	logger.Info("mailident listening, press Ctrl+C to stop", "addr", ln.Addr().String())
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "error running server", errAttr(err))
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	// Try a graceful shutdown then a hard one.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = srv.Shutdown(shutdownCtx)
	if err == nil {
		return
	}

	logger.Error("error shutting down gracefully", errAttr(err))
	if err := srv.Close(); err != nil {
		logger.Error("error during hard shutdown", errAttr(err))
	}
}

func fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Error("fatal error: "+msg, args...)
	os.Exit(1)
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}

	return slog.String("error", err.Error())
}
