package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	redisclient "github.com/lectoria/storyforge-backend/internal/clients/redis"
	"github.com/lectoria/storyforge-backend/internal/db"
	"github.com/lectoria/storyforge-backend/internal/handlers"
	"github.com/lectoria/storyforge-backend/internal/pipeline"
	"github.com/lectoria/storyforge-backend/internal/platform/elevenlabs"
	"github.com/lectoria/storyforge-backend/internal/platform/gcp"
	"github.com/lectoria/storyforge-backend/internal/platform/localmedia"
	"github.com/lectoria/storyforge-backend/internal/platform/logger"
	"github.com/lectoria/storyforge-backend/internal/platform/openai"
	"github.com/lectoria/storyforge-backend/internal/repos"
	"github.com/lectoria/storyforge-backend/internal/server"
	"github.com/lectoria/storyforge-backend/internal/services"
	"github.com/lectoria/storyforge-backend/internal/temporalx"
	"github.com/lectoria/storyforge-backend/internal/temporalx/worker"
	"github.com/lectoria/storyforge-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	storyRepo := repos.NewStoryRepo(thePG, log)
	questionSetRepo := repos.NewQuestionSetRepo(thePG, log)

	// Title cache is a soft dependency; the pipeline degrades to a DB lookup.
	titleCache, err := redisclient.NewTitleCache(log)
	if err != nil {
		log.Warn("Could not init title cache", "error", err)
		titleCache = nil
	}

	// External services
	log.Info("Setting up clients from main...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	ttsClient, err := elevenlabs.NewClient(log)
	if err != nil {
		log.Error("Could not init ElevenLabs client", "error", err)
		os.Exit(1)
	}
	mediaTools := localmedia.New(log)
	if err := mediaTools.AssertReady(ctx); err != nil {
		log.Error("Local media tooling unavailable", "error", err)
		os.Exit(1)
	}
	bucketService, err := gcp.NewBucketService(log)
	if err != nil {
		log.Error("Could not init bucket service", "error", err)
		os.Exit(1)
	}

	// Temporal
	log.Info("Setting up Temporal from main...")
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Could not connect to Temporal", "error", err)
		os.Exit(1)
	}
	if temporalClient == nil {
		log.Error("TEMPORAL_ADDRESS is not configured")
		os.Exit(1)
	}
	defer temporalClient.Close()

	acts := &pipeline.Activities{
		Log:          log,
		DB:           thePG,
		Stories:      storyRepo,
		QuestionSets: questionSetRepo,
		Titles:       titleCache,
		AI:           openaiClient,
		TTS:          ttsClient,
		Media:        mediaTools,
		Bucket:       bucketService,
	}
	runner, err := worker.NewRunner(log, temporalClient, acts)
	if err != nil {
		log.Error("Could not build worker", "error", err)
		os.Exit(1)
	}
	if err := runner.Start(ctx); err != nil {
		log.Error("Could not start worker", "error", err)
		os.Exit(1)
	}

	// Services and handlers
	generationService, err := services.NewGenerationService(log, temporalClient)
	if err != nil {
		log.Error("Could not init GenerationService", "error", err)
		os.Exit(1)
	}
	generationHandler := handlers.NewGenerationHandler(generationService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		GenerationHandler: generationHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
