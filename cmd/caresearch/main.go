package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/config"
	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/logger"
	"github.com/dshills/caresearch/internal/mcp"
	"github.com/dshills/caresearch/internal/metrics"
	"github.com/dshills/caresearch/internal/searcher"
	"github.com/dshills/caresearch/internal/sqlitedb"
	"github.com/dshills/caresearch/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:    "caresearch",
		Usage:   "Full-text search over doctor, patient and appointment records",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (in-memory stores when omitted)",
				EnvVars: []string{"CARESEARCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the MCP tools on stdio",
				Action: serveCommand,
			},
			{
				Name:   "rebuild",
				Usage:  "Rebuild full-text indexes from the record store",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Entity kind to rebuild (doctor, patient, appointment, all)",
						Value:   "all",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search records and print one page as JSON",
				ArgsUsage: "[query terms]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Aliases:  []string{"k"},
						Usage:    "Entity kind to search (doctor, patient, appointment)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Free-text query; positional arguments are used when empty",
					},
					&cli.IntFlag{
						Name:  "page",
						Usage: "1-based page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Results per page (default: search.default_page_size)",
					},
					&cli.StringSliceFlag{
						Name:  "sort",
						Usage: "Sort field; repeat for secondary keys",
					},
					&cli.StringFlag{
						Name:  "order",
						Usage: "Sort direction (asc, desc)",
						Value: "asc",
					},
				},
			},
			{
				Name:   "version",
				Usage:  "Print build information",
				Action: versionCommand,
			},
		},
	}
}

// setup loads configuration, builds the logger and wires the components
func setup(c *cli.Context) (*app, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	level := cfg.Logging.Level
	if override := c.String("log-level"); override != "" {
		level = override
	}
	zl, err := logger.NewLogger(cfg.Env, level)
	if err != nil {
		return nil, err
	}

	a, err := newApp(c.Context, cfg, zl)
	if err != nil {
		_ = zl.Sync()
		return nil, err
	}
	return a, nil
}

func serveCommand(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	if a.cfg.Index.RebuildOnStart {
		stats, err := a.records.RebuildAll(ctx)
		if err != nil {
			return fmt.Errorf("initial rebuild failed: %w", err)
		}
		for _, st := range stats {
			a.log.Info("index rebuilt",
				zap.String("kind", string(st.Kind)),
				zap.Int("documents", st.Documents),
				zap.Duration("duration", st.Duration))
		}
	}

	if addr := a.cfg.Metrics.Addr; addr != "" {
		srv := serveMetrics(addr, a.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := mcp.NewServer(a.searcher, a.records, a.index, mcp.Options{
		DefaultPageSize: a.cfg.Search.DefaultPageSize,
		Logger:          a.log,
	})
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		a.log.Info("caresearch ready", zap.String("version", version))
		errChan <- server.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		return nil
	case err := <-errChan:
		return err
	}
}

// serveMetrics starts the Prometheus scrape endpoint in the background
func serveMetrics(addr string, zl *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("metrics server failed", zap.Error(err))
		}
	}()

	return srv
}

func rebuildCommand(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var stats []indexer.RebuildStats
	if name := c.String("kind"); name == "" || strings.EqualFold(name, "all") {
		stats, err = a.records.RebuildAll(c.Context)
	} else {
		kind, kerr := types.ParseKind(name)
		if kerr != nil {
			return kerr
		}
		var st indexer.RebuildStats
		st, err = a.records.RebuildIndex(c.Context, kind)
		stats = []indexer.RebuildStats{st}
	}
	if err != nil {
		return err
	}

	for _, st := range stats {
		fmt.Fprintf(c.App.Writer, "%-12s %8d documents  %s\n",
			st.Kind, st.Documents, st.Duration.Round(time.Millisecond))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	kind, err := types.ParseKind(c.String("kind"))
	if err != nil {
		return err
	}

	a, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	text := c.String("query")
	if text == "" {
		text = strings.Join(c.Args().Slice(), " ")
	}
	size := c.Int("page-size")
	if size == 0 {
		size = a.cfg.Search.DefaultPageSize
	}

	page, err := a.searcher.Search(c.Context, searcher.Request{
		Kind:       kind,
		Text:       text,
		PageNumber: c.Int("page"),
		PageSize:   size,
		Sort:       c.StringSlice("sort"),
		Order:      c.String("order"),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(page)
}

func versionCommand(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, "caresearch")
	fmt.Fprintf(c.App.Writer, "Version: %s\n", version)
	fmt.Fprintf(c.App.Writer, "Build Time: %s\n", buildTime)
	fmt.Fprintf(c.App.Writer, "Build Mode: %s\n", sqlitedb.BuildMode)
	fmt.Fprintf(c.App.Writer, "SQLite Driver: %s\n", sqlitedb.DriverName)
	return nil
}
