package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ambiyansyah-risyal/fetchagent"
	"github.com/ambiyansyah-risyal/fetchagent/cache"
	"github.com/ambiyansyah-risyal/fetchagent/config"
	"github.com/ambiyansyah-risyal/fetchagent/cookie"
	"github.com/ambiyansyah-risyal/fetchagent/persist"
)

var (
	// CLI flags
	configFlag      string
	dbFlag          string
	snapshotFlag    string
	addrFlag        string
	developmentFlag bool
	verboseFlag     bool
	logFileFlag     string
)

func init() {
	flag.StringVar(&configFlag, "config", "fetchagent.yaml", "Configuration file")
	flag.StringVar(&dbFlag, "db", "", "Snapshot DB file name (overrides config, use 'memory' for in-memory db)")
	flag.StringVar(&snapshotFlag, "snapshot", "", "Snapshot name (overrides config)")
	flag.StringVar(&addrFlag, "addr", "", "Serve /metrics and /cache on this address after the run (overrides config)")
	flag.BoolVar(&developmentFlag, "dev", false, "Development mode: fail on unserializable cache entries")
	flag.BoolVar(&verboseFlag, "v", false, "Verbosity: debug logging")
	flag.StringVar(&logFileFlag, "log-file", "", "Log file to use (in addition to stderr)")
}

func main() {
	flag.Parse()
	setupLogging()

	cfg, err := config.Load(configFlag)
	if err != nil {
		log.Fatal().Err(err).Str("config", configFlag).Msg("Cannot load config")
	}
	if developmentFlag {
		cfg.Development = true
	}
	if dbFlag != "" {
		cfg.Snapshot.DB = dbFlag
	}
	if snapshotFlag != "" {
		cfg.Snapshot.Name = snapshotFlag
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}
}

func setupLogging() {
	logLevel := zerolog.InfoLevel
	if verboseFlag {
		logLevel = zerolog.DebugLevel
	}

	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if logFileFlag != "" {
		if logFileOutput, err := os.OpenFile(logFileFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	log.Logger = log.Level(logLevel).Output(zerolog.MultiLevelWriter(logOutputs...)).
		With().Str("version", fetchagent.Version).Logger()
}

func run(ctx context.Context, cfg config.Config) error {
	store := cache.New(
		cache.WithDevelopment(cfg.Development),
		cache.WithLogger(log.Logger),
	)

	var snapshots *persist.SQLite
	if cfg.Snapshot.DB != "" {
		filename := cfg.Snapshot.DB
		if filename == "memory" {
			filename = ""
		}
		db, err := persist.OpenSQLite(filename)
		if err != nil {
			return err
		}
		defer db.Close()
		snapshots = db

		if cfg.Snapshot.Name == "" {
			cfg.Snapshot.Name = "default"
		}
		restored, err := snapshots.LoadStore(ctx, cfg.Snapshot.Name, store)
		if err != nil {
			log.Warn().Err(err).Msg("Cannot restore cache snapshot, starting empty")
		} else if restored {
			log.Info().Str("snapshot", cfg.Snapshot.Name).Int("entries", store.Len()).Msg("Cache restored")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	agent := fetchagent.New(cfg.AgentOptions(
		fetchagent.WithCache(store),
		fetchagent.WithCookieStore(cookie.NewStorage()),
		fetchagent.WithMetricsRegistry(registry),
		fetchagent.WithLogger(fetchagent.NewZerologLogger(log.Logger)),
	)...)
	if !agent.IsValid() {
		return agent.ValidationError()
	}

	issueRequests(ctx, agent, cfg.Requests)

	if snapshots != nil {
		if err := snapshots.SaveStore(ctx, cfg.Snapshot.Name, store); err != nil {
			return err
		}
		log.Info().Str("snapshot", cfg.Snapshot.Name).Int("entries", store.Len()).Msg("Cache saved")
	}

	if cfg.Server.Addr == "" {
		return nil
	}
	return serve(ctx, cfg.Server.Addr, newRouter(store, registry))
}

// issueRequests runs every configured request concurrently. Identical
// requests share one network call through the agent.
func issueRequests(ctx context.Context, agent *fetchagent.Agent, requests []config.Request) {
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req config.Request) {
			defer wg.Done()

			name := req.Name
			if name == "" {
				name = fmt.Sprintf("request-%d", i)
			}
			var data any
			if req.Data != nil {
				data = req.Data
			}

			start := time.Now()
			resp, err := agent.Request(ctx, req.MethodOrDefault(), req.URL, data, req.RequestOptions()...)
			if err != nil {
				var agentErr *fetchagent.Error
				if errors.As(err, &agentErr) {
					log.Error().Str("request", name).Str("kind", string(agentErr.Kind)).Int("status", agentErr.Status).
						Bool("cached", agentErr.Cached).Int("repeats", agentErr.Attempt).Msg(agentErr.Message)
					return
				}
				log.Error().Err(err).Str("request", name).Msg("Request failed")
				return
			}
			log.Info().Str("request", name).Int("status", resp.Status).Bool("cached", resp.Cached).
				Dur("duration", time.Since(start)).Msg("Request completed")
		}(i, req)
	}
	wg.Wait()
}

func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving /metrics and /cache")
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
