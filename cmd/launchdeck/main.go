// launchdeck orchestrator server - terminates the Session Gateway's
// WebSocket transport, drives per-session Orchestrators, and runs the
// Pipeline Engine against a managed build/serverless target.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/launchdeck/launchdeck/internal/analyzer"
	"github.com/launchdeck/launchdeck/internal/broker"
	"github.com/launchdeck/launchdeck/internal/gateway"
	"github.com/launchdeck/launchdeck/internal/health"
	"github.com/launchdeck/launchdeck/internal/orchestrator"
	"github.com/launchdeck/launchdeck/internal/pipeline"
	"github.com/launchdeck/launchdeck/internal/progress"
	"github.com/launchdeck/launchdeck/internal/recipe"
	"github.com/launchdeck/launchdeck/internal/session"
	"github.com/launchdeck/launchdeck/pkg/cleanup"
	"github.com/launchdeck/launchdeck/pkg/config"
	"github.com/launchdeck/launchdeck/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	httpPortFlag := flag.String("http-port", "", "Override HTTP_PORT")
	flag.Parse()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	if *httpPortFlag != "" {
		cfg.HTTPPort = *httpPortFlag
	}

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", cfg.HTTPPort)
	log.Printf("Config Directory: %s", cfg.ConfigDir())

	gin.SetMode(cfg.GinMode)

	primary, err := broker.NewGRPCClient(cfg.Broker.PrimaryAddr)
	if err != nil {
		log.Fatalf("Failed to dial primary LLM service: %v", err)
	}
	defer primary.Close()

	var backup broker.ProviderClient
	if cfg.Broker.BackupEnabled {
		backup, err = broker.NewAnthropicClient()
		if err != nil {
			log.Printf("Warning: backup LLM client unavailable: %v", err)
		}
	}

	// A dedicated Broker for the Analyzer/Recipe Synthesizer's LLM-assisted
	// classification, distinct from each session's conversational Broker
	// (spec §4.6, §4.7 "falls back to an LLM classification call").
	classificationBroker := broker.NewBroker(primary, backup, classificationInstruction, nil)

	bus := progress.NewBus()
	engine := &pipeline.Engine{
		Analyzer: analyzer.New(classificationBroker),
		Recipe:   recipe.New(classificationBroker),
		Health:   health.New(),
		Bus:      bus,
		// Git, Build, Serverless are deliberately left nil here: per spec
		// §1 the Git host API and managed build/serverless platforms are
		// out-of-scope external systems. internal/collaborators ships the
		// contracts, REST clients for the build and serverless platforms
		// (not constructed by this binary) and no GitClient
		// implementation. An operator wires concrete
		// collaborators.GitClient/CloudBuildClient/ServerlessClient
		// implementations for their chosen platforms before running the
		// pipeline for real.
	}

	cloud := orchestrator.CloudConfig{
		ProjectID:     cfg.Target.ProjectID,
		Region:        cfg.Target.Region,
		Registry:      cfg.Target.Registry,
		StagingBucket: cfg.Target.StagingBucket,
		Resources:     cfg.Cloud,
	}

	factory := func(s *session.Session) *orchestrator.Orchestrator {
		sessionBroker := broker.NewBroker(primary, backup, orchestrator.SystemInstruction, orchestrator.Tools())
		return orchestrator.New(s.ID, s.Context, sessionBroker, engine, bus, cloud)
	}

	hub := gateway.NewHub(factory)
	gw := gateway.New(hub, slog.Default())

	sweeper := cleanup.NewService(hub, cfg.Retention.GraceThreshold, cfg.Retention.SweepInterval)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	router := gin.Default()
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Full()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		handleWS(c, gw, cfg.Origins)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	waitForShutdown(srv)
}

const classificationInstruction = `You classify a software project's language, framework, entry point,
build tool, and exposed port from a directory listing and key file
contents. Respond concisely and only with what you can infer.`

func handleWS(c *gin.Context, gw *gateway.Gateway, origins *config.OriginRegistry) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: origins.All(),
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "connection terminated")

	if err := gw.Accept(c.Request.Context(), conn); err != nil {
		slog.Warn("gateway: transport ended", "error", err)
	}
}

func waitForShutdown(srv *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
