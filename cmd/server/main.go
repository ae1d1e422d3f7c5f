package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/npezzotti/go-messenger/internal/api"
	"github.com/npezzotti/go-messenger/internal/attachments"
	"github.com/npezzotti/go-messenger/internal/auth"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/stats"
	"golang.org/x/sync/errgroup"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

// parseFlags overrides environment settings with command line flags.
func parseFlags(p config.Params) config.Params {
	if p.SigningKey == "" {
		p.SigningKey = defaultSigningKey
	}

	var origins stringSliceFlag
	flag.StringVar(&p.ServerAddr, "addr", p.ServerAddr, "server address")
	flag.StringVar(&p.DatabaseDSN, "dsn", p.DatabaseDSN, `database connection string, or "memory"`)
	flag.StringVar(&p.SigningKey, "signing-key", p.SigningKey, "base64 encoded signing key")
	flag.Var(&origins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&p.UploadsDir, "uploads-dir", p.UploadsDir, "directory for message attachments")
	flag.StringVar(&p.TokenIssuer, "token-issuer", p.TokenIssuer, "issuer claim of session tokens")
	flag.DurationVar(&p.TokenTTL, "token-ttl", p.TokenTTL, "lifetime of session tokens")
	flag.IntVar(&p.MaxConnections, "max-connections", p.MaxConnections, "maximum concurrent websocket connections")
	flag.BoolVar(&p.Migrate, "migrate", p.Migrate, "apply database migrations on start")
	flag.Parse()

	if len(origins) > 0 {
		p.AllowedOrigins = origins
	}

	return p
}

func openRepository(cfg *config.Config, logger *log.Logger) (database.GoChatRepository, error) {
	if cfg.UseMemoryStore() {
		logger.Println("using in-memory repository")
		return database.NewMemoryGoChatRepository(), nil
	}

	if cfg.Migrate {
		if err := database.Migrate(cfg.DatabaseDSN); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	db, err := database.NewPgGoChatRepository(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func run(ctx context.Context, logger *log.Logger) error {
	params, err := config.LoadParams()
	if err != nil {
		return err
	}

	cfg, err := config.NewConfig(parseFlags(params))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := openRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	files, err := attachments.NewLocalStore(cfg.UploadsDir)
	if err != nil {
		return fmt.Errorf("attachments: %w", err)
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)
	verifier := auth.NewVerifier(cfg.SigningKey, cfg.TokenIssuer)
	gateway := server.NewGateway(logger, db, verifier, files, statsUpdater, cfg.MaxConnections)
	srv := api.NewGoChatApp(mux, logger, gateway, db, verifier, files, cfg)

	statsUpdater.Run()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutDownCtx); err != nil {
			logger.Println("HTTP server shutdown:", err)
		}

		logger.Println("shutting down chat gateway...")
		if err := gateway.Shutdown(shutDownCtx); err != nil {
			logger.Println("chat gateway shutdown:", err)
		}

		statsUpdater.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Println("shutdown complete")
	return nil
}

func main() {
	logger := log.New(os.Stderr, "[go-messenger] ", log.LstdFlags)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Fatal(err)
	}
}
