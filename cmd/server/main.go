package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sleepstars/chatproxy/internal/clients"
	"github.com/sleepstars/chatproxy/internal/config"
	"github.com/sleepstars/chatproxy/internal/identity"
	"github.com/sleepstars/chatproxy/internal/logger"
	"github.com/sleepstars/chatproxy/internal/metrics"
	"github.com/sleepstars/chatproxy/internal/proxy"
	"github.com/sleepstars/chatproxy/internal/secrets"
	"github.com/sleepstars/chatproxy/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (defaults are used when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	logger.InitLogger(level, "chatproxy")
	rootLog := logger.GetLogger()

	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = rootLog.WithComponent("gin").Writer(logger.DEBUG)
	gin.DefaultErrorWriter = rootLog.WithComponent("gin").Writer(logger.ERROR)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}

	handler := proxy.NewHandler(
		clients.NewOpenAIClient(clients.ChatClientConfig{
			Endpoint: cfg.Upstream.URL,
			Timeout:  cfg.Upstream.Timeout,
		}),
		secrets.NewEnvProvider(cfg.Secret.Name, cfg.Secret.EnvFile),
		m,
	)

	var verifier identity.Verifier
	if len(cfg.Auth.Tokens) > 0 {
		verifier = identity.NewTokenVerifier(cfg.Auth.Tokens)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.New(cfg.Server, handler, verifier, m).Run(ctx); err != nil {
		rootLog.Fatal("Server stopped: %v", err)
	}
}
