package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/duetapp/duet-server/internal/api"
	"github.com/duetapp/duet-server/internal/config"
	"github.com/duetapp/duet-server/internal/database"
	"github.com/duetapp/duet-server/internal/push"
	"github.com/duetapp/duet-server/internal/server"
	"github.com/duetapp/duet-server/internal/stats"
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

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	pushAuthKey    string
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional, flags and real env vars take precedence
	_ = godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("DUET_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("DUET_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("DUET_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&pushAuthKey, "push-auth-key", envOr("DUET_PUSH_AUTH_KEY", ""), "push vendor server key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if v := os.Getenv("DUET_ALLOWED_ORIGINS"); v != "" {
			allowedOrigins = strings.Split(v, ",")
		}
	}

	logger := log.New(os.Stderr, "[duet] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, signingKey, pushAuthKey, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	dispatcher := push.NewDispatcher(logger, dbConn, push.NewHTTPSender(cfg.PushAuthKey))

	relayServer, err := server.NewRelayServer(logger, dbConn, dispatcher, statsUpdater)
	if err != nil {
		logger.Fatal("new relay server:", err)
	}

	srv := api.NewDuetApp(logger, relayServer, dbConn, cfg, mux)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay server...")
	relayServer.Shutdown()

	logger.Println("shutdown complete")
}
