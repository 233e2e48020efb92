package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ashpect/cacheproxy/pkg/admin"
	"github.com/ashpect/cacheproxy/pkg/cache"
	"github.com/ashpect/cacheproxy/pkg/client"
	"github.com/ashpect/cacheproxy/pkg/config"
	"github.com/ashpect/cacheproxy/pkg/forward"
	"github.com/ashpect/cacheproxy/pkg/logger"
	"github.com/ashpect/cacheproxy/pkg/proxy"
	"github.com/ashpect/cacheproxy/pkg/server"
)

const shutdownGrace = 10 * time.Second

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file")
		port       = flag.Int("port", 0, "port to listen on")
		origin     = flag.String("origin", "", "origin URL requests are forwarded to")
		storeName  = flag.String("store", "", "cache store: memory or sqlite")
		adminAddr  = flag.String("admin", "", "address of the admin API, disabled when empty")
		verbose    = flag.Bool("vv", false, "trace logging")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// flags only override the file when given
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "origin":
			cfg.Origin = *origin
		case "store":
			cfg.Cache.Store = *storeName
		case "admin":
			cfg.AdminAddr = *adminAddr
		case "vv":
			if *verbose {
				cfg.Log.Level = zerolog.TraceLevel.String()
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	base, err := logger.New(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.Logger = base

	store, err := cache.New(cfg.Cache, logger.Component(base, "cache"))
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.Cache.Store).Msg("Could not open cache")
	}
	defer store.Close()

	fetcher := forward.New(cfg.Origin,
		forward.WithClient(client.FromConfig(cfg.Client)),
		forward.WithLogger(logger.Component(base, "forward")),
	)
	handler := proxy.NewHandler(store, fetcher,
		proxy.WithCacheErrors(cfg.Cache.CacheErrors),
		proxy.WithLogger(logger.Component(base, "proxy")),
	)
	srv := server.New(handler,
		server.WithMaxConns(cfg.MaxConns),
		server.WithReadTimeout(cfg.ReadTimeout.Duration),
		server.WithLogger(logger.Component(base, "server")),
	)

	ln, err := server.Listen(cfg.ListenAddr())
	if err != nil {
		log.Fatal().Err(err).Msg("Could not bind")
	}
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("origin", cfg.Origin).
		Str("store", cfg.Cache.Store).
		Msg("Caching proxy listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		adminSrv = &http.Server{
			Addr:    cfg.AdminAddr,
			Handler: admin.NewRouter(store, handler, logger.Component(base, "admin")),
		}
		go func() {
			log.Info().Str("addr", cfg.AdminAddr).Msg("Admin API listening")
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Admin API stopped")
			}
		}()
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		log.Info().Msg("Signal received, shutting down")
	case err := <-served:
		log.Fatal().Err(err).Msg("Listener stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Admin API shutdown")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Connections still open after grace period")
	}
	log.Info().Interface("stats", handler.Stats()).Msg("Stopped")
}
