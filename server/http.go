package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"consult-worker/audio"
	"consult-worker/auth"
	"consult-worker/config"
	"consult-worker/constant"
	jobHandler "consult-worker/handler"
	"consult-worker/pkg/cache"
	"consult-worker/pkg/rabbitmq"
	"consult-worker/repository"
	"consult-worker/service"
	"consult-worker/speech"
	"consult-worker/storage"
	"consult-worker/summarize"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)

	var store storage.Store
	if cfg.StorageMode == "flat" {
		store = storage.NewFlatMinIOStore(cfg.Storage, cfg.MinIOBucket)
	} else {
		store = storage.NewMinIOStore(cfg.Storage, cfg.MinIOBucket)
	}

	resultCache := cache.NewRedisCache(cfg.Redis)

	speechClient := speech.NewClient(speech.Config{
		URL:              cfg.Speech.URL,
		APIKey:           cfg.Speech.APIKey,
		OperationTimeout: cfg.Speech.OperationTimeout,
		PollInterval:     cfg.Speech.PollInterval,
	})
	summarizer := summarize.NewClient(summarize.Config{
		URL:      cfg.Summarizer.URL,
		APIKey:   cfg.Summarizer.APIKey,
		Model:    cfg.Summarizer.Model,
		Sections: cfg.Summarizer.Sections,
	})
	fallback := summarize.NewRuleBased(cfg.Summarizer.Sections)
	optimizer := audio.NewOptimizer(cfg.Pipeline.FFmpegBinary)
	authClient := auth.NewClient(auth.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     cfg.Auth.TokenURL,
		RevokeURL:    cfg.Auth.RevokeURL,
		UserInfoURL:  cfg.Auth.UserInfoURL,
	})

	pipeline := service.NewPipeline(repo, store, resultCache, speechClient, summarizer, fallback, optimizer, authClient, service.PipelineOptions{
		SpeakerRoles: cfg.Speech.SpeakerRoles,
		PhraseHints:  cfg.Speech.PhraseHints,
		ResultsTTL:   cfg.Pipeline.ResultsTTL,
		LockTTL:      cfg.Pipeline.LockTTL,
		LockWait:     cfg.Pipeline.LockWait,
	})

	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)
	recordingService := service.NewRecordingService(repo, store, resultCache, publisher, cfg.Pipeline.LockTTL, cfg.Pipeline.LockWait)

	serviceDeps := jobHandler.ServiceDependencies{
		Pipeline: pipeline,
	}

	consumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, cfg.Pipeline.MaxAttempts, jobHandler.TranscriptionJobHandler)
	go func() {
		if err := consumer.Consume(ctx, serviceDeps); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Transcription consumer error")
		}
	}()

	r := gin.Default()
	addHealth(r)
	addRecordingRoutes(ctx, r, recordingService)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
