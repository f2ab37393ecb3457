// Command flagscope-demo serves a page rendered with server-fetched flags
// and hydrates them into the page, plus the admin and webhook endpoints of
// a long-lived scope.
//
// Configuration is read from the environment (and a .env file if present):
//
//	FLAGS_PROJECT_KEY, FLAGS_ENVIRONMENT_KEY  flag service credentials
//	FLAGS_OFFLINE=true                        serve built-in demo flags
//	FLAGS_OTEL_ENDPOINT                       OTLP/HTTP trace collector
//	DEMO_ADDR                                 listen address (:8080)
//	DEMO_WEBHOOK_SECRET                       webhook HMAC secret
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OrlandoBitencourt/flagscope"
	"github.com/OrlandoBitencourt/flagscope/internal/remote"
	"github.com/OrlandoBitencourt/flagscope/internal/telemetry"
	"github.com/a-h/templ"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type demoConfig struct {
	Addr          string `env:"DEMO_ADDR" envDefault:":8080"`
	WebhookSecret string `env:"DEMO_WEBHOOK_SECRET"`
	Offline       bool   `env:"FLAGS_OFFLINE"`

	Telemetry telemetry.SetupConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("demo failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var demo demoConfig
	if err := env.Parse(&demo); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	demo.Telemetry.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, demo.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdown(context.Background())

	cfg := flagscope.DefaultConfig()
	var opts []flagscope.Option
	if demo.Offline {
		opts = append(opts, flagscope.WithFetcher(offlineFlags()))
	} else if cfg, err = flagscope.LoadConfigFromEnv(); err != nil {
		return err
	}
	opts = append(opts,
		flagscope.WithLogger(logger),
		flagscope.WithOTel(),
		flagscope.WithOnError(func(err error) {
			logger.Warn("flag populate failed", slog.Any("error", err))
		}),
	)

	scope, err := flagscope.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer scope.Close()
	scope.Start(ctx)

	admin := scope.AdminHandler()
	mux := http.NewServeMux()
	mux.Handle("/", scope.Middleware(pageHandler(logger)))
	mux.Handle("/health", admin)
	mux.Handle("/admin/", admin)
	mux.Handle("POST /webhook", scope.WebhookHandler(demo.WebhookSecret))
	mux.Handle("GET /debug/hydration", hydrationHandler(scope))

	srv := &http.Server{
		Addr:              demo.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("demo listening", slog.String("addr", demo.Addr), slog.Bool("offline", demo.Offline))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// pageHandler renders a page from the request's scope and hydrates the
// flags it used, the way a browser bootstrap would pick them up.
func pageHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := flagscope.FromContext(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		h, err := scope.Flag("new-checkout", flagscope.WithFallbackEnabled(false))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		res, err := h.Await(ctx)
		if err != nil {
			logger.WarnContext(r.Context(), "flag not settled", slog.Any("error", err))
		}

		page := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			heading := "Classic checkout"
			if res.Enabled {
				heading = "New checkout"
			}
			if _, err := io.WriteString(w, "<!doctype html><html><head><title>flagscope</title>"); err != nil {
				return err
			}
			if err := scope.HydrationScript().Render(ctx, w); err != nil {
				return err
			}
			_, err := fmt.Fprintf(w, "</head><body><h1>%s</h1></body></html>", templ.EscapeString(heading))
			return err
		})
		templ.Handler(page).ServeHTTP(w, r)
	})
}

// hydrationHandler renders the scope's hydration script, runs it in a
// JavaScript VM and reports what a client bootstrap would read back.
func hydrationHandler(scope *flagscope.Scope) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		script, err := flagscope.EncodeHydration(scope.Snapshot().Flags(), "")
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		vm := flagscope.NewJSRuntime()
		if err := vm.Exec(script); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		flags, ok := flagscope.ReadHydratedFlags(vm, "")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"hydrated": ok,
			"count":    len(flags),
			"flags":    flags,
		})
	})
}

func offlineFlags() *remote.MockClient {
	now := time.Now().UTC()
	return remote.NewMockClient(
		flagscope.Flag{
			Key:         "new-checkout",
			Enabled:     true,
			Payload:     map[string]any{"variant": "B"},
			CreatedAt:   now,
			UpdatedAt:   now,
			Description: "Redesigned checkout flow",
		},
		flagscope.Flag{
			Key:         "dark-mode",
			Enabled:     false,
			CreatedAt:   now,
			UpdatedAt:   now,
			Description: "Dark color scheme",
		},
	)
}
