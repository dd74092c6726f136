// Command zkekyc-verifierd runs the development verifier: challenge
// sessions, enrollment and re-authentication checks, session tokens.
// State lives in memory and is lost on restart.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/allsmog/zkekyc-go/pkg/config"
	"github.com/allsmog/zkekyc-go/pkg/crypto/curve"
	"github.com/allsmog/zkekyc-go/pkg/jwt"
	"github.com/allsmog/zkekyc-go/pkg/logging"
	"github.com/allsmog/zkekyc-go/pkg/metrics"
	"github.com/allsmog/zkekyc-go/pkg/storage"
	"github.com/allsmog/zkekyc-go/pkg/verifier"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "zkekyc-verifierd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("zkekyc-verifierd", flag.ContinueOnError)
	var (
		configPath      = fs.String("config", "", "YAML config file (optional)")
		addr            = fs.String("addr", "", "Listen address")
		curveName       = fs.String("curve", "", "Group to verify proofs over (secp256k1|ristretto255)")
		keyFile         = fs.String("key", "", "Session token signing key (PEM, created if missing)")
		issuer          = fs.String("issuer", "", "Session token issuer")
		audience        = fs.String("audience", "", "Session token audience")
		rateLimit       = fs.Int("rate-limit", 0, "Max requests per minute per client, 0 disables")
		requireApproval = fs.Bool("require-approval", false, "Refuse enrollments without liveness approval")
		logLevel        = fs.String("log-level", "", "Log level (debug|info|warn|error)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadVerifier(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "curve":
			cfg.Curve = *curveName
		case "key":
			cfg.SigningKeyPath = *keyFile
		case "issuer":
			cfg.Issuer = *issuer
		case "audience":
			cfg.Audience = *audience
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "require-approval":
			cfg.RequireApproval = *requireApproval
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}

	crv, err := curve.FromName(cfg.Curve)
	if err != nil {
		return err
	}

	key, created, err := jwt.LoadOrCreateKey(cfg.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}
	if created {
		logger.Info("generated signing key", "path", cfg.SigningKeyPath)
	}
	signer, err := jwt.NewES256Signer(key, cfg.KeyID)
	if err != nil {
		return err
	}

	store := storage.NewMemoryStore(cfg.SessionTTL)
	defer store.Close()

	m := metrics.New()
	adminToken := os.Getenv(cfg.AdminTokenEnv)
	handlers := verifier.NewHandlers(store, crv, signer, verifier.Config{
		Issuer:          cfg.Issuer,
		Audience:        cfg.Audience,
		TokenTTL:        cfg.TokenTTL,
		MaxClockSkew:    cfg.MaxClockSkew,
		RequireApproval: cfg.RequireApproval,
		AdminToken:      adminToken,
	}, verifier.WithMetrics(m), verifier.WithLogger(logger))

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: verifier.NewRouter(verifier.RouterConfig{
			Handlers:      handlers,
			TokenVerifier: jwt.NewVerifier(signer.JWKS(), cfg.Issuer, cfg.Audience),
			Metrics:       m,
			Logger:        logger,
			RateLimit:     cfg.RateLimit,
			RateWindow:    time.Minute,
			Timeout:       cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("verifier starting",
		slog.String("addr", cfg.Addr),
		slog.String("curve", crv.Name()),
		slog.String("issuer", cfg.Issuer),
		slog.String("audience", cfg.Audience),
		slog.Duration("token_ttl", cfg.TokenTTL),
		slog.Duration("session_ttl", cfg.SessionTTL),
		slog.Int("rate_limit", cfg.RateLimit),
		slog.Bool("require_approval", cfg.RequireApproval),
		slog.Bool("admin_routes", adminToken != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
