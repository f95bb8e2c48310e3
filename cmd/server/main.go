package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-chatsync/internal/api"
	"github.com/npezzotti/go-chatsync/internal/attachments"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/push"
	"github.com/npezzotti/go-chatsync/internal/server"
	"github.com/npezzotti/go-chatsync/internal/stats"
)

const pushTimeout = 10 * time.Second

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func main() {
	logger := log.New(os.Stderr, "[go-chat] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatal("load .env:", err)
	}

	var p config.Params
	var allowedOrigins stringSliceFlag
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		allowedOrigins.Set(v)
	}

	flag.StringVar(&p.ServerAddr, "addr", envOr("ADDR", "localhost:8000"), "server address")
	flag.StringVar(&p.DatabaseDSN, "dsn", envOr("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.BoolVar(&p.Dev, "dev", envBoolOr("DEV", false), "development mode, allows the built-in signing key")
	flag.StringVar(&p.SigningSecret, "signing-key", envOr("SIGNING_KEY", ""), "base64 encoded signing key")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.StringVar(&p.PublicURL, "public-url", envOr("PUBLIC_URL", "http://localhost:8000"), "base URL used in links to uploaded files")
	flag.StringVar(&p.UploadDir, "upload-dir", envOr("UPLOAD_DIR", "uploads"), "directory for uploaded files")
	flag.StringVar(&p.VAPIDPublicKey, "vapid-public-key", envOr("VAPID_PUBLIC_KEY", ""), "VAPID public key for web push")
	flag.StringVar(&p.VAPIDPrivateKey, "vapid-private-key", envOr("VAPID_PRIVATE_KEY", ""), "VAPID private key for web push")
	flag.StringVar(&p.VAPIDSubject, "vapid-subject", envOr("VAPID_SUBJECT", "mailto:admin@example.com"), "VAPID subject (mailto: or https: URL)")
	flag.IntVar(&p.MessagePageLimit, "message-page-limit", envIntOr("MESSAGE_PAGE_LIMIT", server.DefaultMessagePageLimit), "maximum messages returned per history request")
	flag.Parse()
	p.AllowedOrigins = allowedOrigins

	cfg, err := config.NewConfig(p)
	if err != nil {
		logger.Fatal("config:", err)
	}
	if cfg.Dev && (p.SigningSecret == "" || p.SigningSecret == config.DevSigningSecret) {
		logger.Println("WARNING: dev mode is using the built-in signing key, sessions can be forged by anyone with the source")
	}

	dbConn, err := database.NewPgGoChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Println("db close:", err)
		}
	}()

	if err := database.Migrate(dbConn.DB()); err != nil {
		logger.Fatal("migrate:", err)
	}

	files, err := attachments.NewLocalStore(cfg.UploadDir, cfg.PublicURL)
	if err != nil {
		logger.Fatal("upload store:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	var (
		notifier   server.Notifier
		dispatcher *push.Dispatcher
	)
	if cfg.PushEnabled() {
		sender := push.NewWebPushSender(push.VAPIDKeys{
			PublicKey:  cfg.VAPIDPublicKey,
			PrivateKey: cfg.VAPIDPrivateKey,
			Subject:    cfg.VAPIDSubject,
		}, &http.Client{Timeout: pushTimeout})
		dispatcher = push.NewDispatcher(logger, dbConn, sender, statsUpdater)
		notifier = dispatcher
	} else {
		logger.Println("VAPID keys not configured, push notifications disabled")
	}

	chatServer, err := server.NewChatServer(logger, dbConn, statsUpdater, notifier, files, cfg.MessagePageLimit)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewGoChatApp(mux, logger, chatServer, dbConn, files, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

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
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Println("chat server shutdown:", err)
	}

	if dispatcher != nil {
		logger.Println("waiting for push deliveries...")
		if err := dispatcher.Wait(shutDownCtx); err != nil {
			logger.Println("push dispatcher:", err)
		}
	}

	logger.Println("shutdown complete")
}
