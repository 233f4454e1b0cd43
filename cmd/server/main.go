package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"postop-monitor/internal/config"
	"postop-monitor/internal/core"
	"postop-monitor/internal/db"
	"postop-monitor/internal/extract"
	"postop-monitor/internal/heatmap"
	httpserver "postop-monitor/internal/http"
	"postop-monitor/internal/llm"
	"postop-monitor/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	logger.Init()
	log := logger.Log

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("failed to ping database")
	}
	if err := db.Migrate(context.Background(), dbConn); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	repo := db.NewRepository(dbConn)
	notifier := db.NewNotifier(dbConn, cfg.NotifyChannel)

	alerts, err := notifier.Listen(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to listen on alert channel")
	}
	go func() {
		for payload := range alerts {
			log.WithField("payload", payload).Warn("doctor alert dispatched")
		}
	}()

	llmClient := llm.NewOpenAIClient(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	if cfg.LLMAPIKey == "" {
		log.Warn("LLM_API_KEY is not set; chat will degrade to fallback replies")
	}

	store := core.NewMemoryStore()
	tracker := core.NewTracker(core.MustLoadSymptomCatalog())
	policy := core.NewPolicy(tracker, cfg.LLMMaxToken)
	dashboard := core.NewDashboard(store)
	reminders := &core.LoggingScheduler{Logger: log}
	chat := core.NewChatService(store, tracker, policy, llmClient, repo, notifier, reminders, dashboard, log)

	extractor := extract.New(true)
	analyzer := heatmap.New(cfg.UploadDir)
	intake := core.NewIntakeService(store, llmClient, extractor, analyzer, cfg.UploadDir, log)

	srv := httpserver.NewServer(
		chat, intake, store, dashboard, repo, log,
		cfg.MaxUploadMiB*1024*1024, cfg.DefaultLanguage,
	)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	log.WithField("addr", cfg.ListenAddr).Info("listening")
	if err := httpSrv.ListenAndServe(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
