package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jtlab/internal/choreo"
	"jtlab/internal/config"
	"jtlab/internal/handlers"
	"jtlab/internal/intro"
)

//go:generate templ generate -path ../../views

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:          "jtlab-web",
		Short:        "Serve the jtlab landing page and its intro",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, verbose)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "jtlab.toml", "path to the TOML config")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, verbose bool) error {
	logger := cfg.NewLogger(os.Stderr, verbose)

	_ = mime.AddExtensionType(".js", "application/javascript")
	_ = mime.AddExtensionType(".css", "text/css")

	introCfg, err := cfg.Choreography()
	if err != nil {
		return err
	}
	themes, closeThemes, err := cfg.ThemeProvider()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeThemes(); err != nil {
			logger.Warn("close theme store", "err", err)
		}
	}()

	store := intro.NewStore(intro.Options{
		Choreo:  introCfg,
		Themes:  themes,
		Runners: intro.LoopFactory(cfg.Server.FrameRate),
		Logger:  logger.WithPrefix("intro"),
	})
	defer store.Close()

	r, err := newRouter(introCfg, cfg.Server.BaseURL, store, logger)
	if err != nil {
		return err
	}
	server := newServer(cfg.Server.Addr, r, store)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "theme", cfg.Theme.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down", "sessions", store.Len())
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(introCfg choreo.Config, baseURL string, store *intro.Store, logger *log.Logger) (chi.Router, error) {
	staticFS, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The snapshot stream is long-lived and stays outside the request timeout.
	introHandler := handlers.NewIntroHandler(store, logger.WithPrefix("http"))
	introHandler.RegisterStream(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))
		r.Mount("/static", http.StripPrefix("/static", http.FileServer(http.FS(staticFS))))
		handlers.NewHomeHandler(introCfg, baseURL).RegisterRoutes(r)
		introHandler.RegisterRoutes(r)
	})
	return r, nil
}

// newServer builds the HTTP server. Shutdown waits for active handlers, so it
// ends every intro session first: that closes their hubs and lets open
// streams return.
func newServer(addr string, handler http.Handler, store *intro.Store) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(store.Close)
	return server
}

//go:embed static/*
var embeddedStatic embed.FS
