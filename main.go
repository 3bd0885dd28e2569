package main

import (
	"psyeval/internal/catalog"
	"psyeval/internal/config"
	"psyeval/internal/database"
	"psyeval/internal/events"
	"psyeval/internal/handlers"
	"psyeval/internal/inference"
	logger "psyeval/internal/logging"
	"psyeval/internal/repository"
	"psyeval/internal/router"
	"psyeval/internal/services"
	"psyeval/internal/storage"

	"go.uber.org/zap"
)

func main() {
	log, err := logger.Init(logger.DefaultRotation("."))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := config.Init(".", log); err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := database.New(log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	cat, err := catalog.Load("config/catalog.yaml")
	if err != nil {
		log.Fatal("Failed to load test catalog", zap.Error(err))
	}
	if err := catalog.Seed(db, cat, log); err != nil {
		log.Fatal("Failed to seed test catalog", zap.Error(err))
	}

	var bus events.Bus
	if addr := config.Conf.Redis.Addr; addr != "" {
		redisBus, err := events.NewRedisBus(addr, config.Conf.Redis.Channel, log)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		bus = redisBus
	} else {
		log.Info("No redis address configured, using in-memory event bus")
		bus = events.NewMemoryBus()
	}
	defer bus.Close()

	userRepo := repository.NewUserRepo(db)
	catalogRepo := repository.NewCatalogRepo(db)
	caseRepo := repository.NewCaseRepo(db)
	attemptRepo := repository.NewAttemptRepo(db)
	scoreRepo := repository.NewScoreRepo(db)
	profileRepo := repository.NewProfileRepo(db)
	signatureRepo := repository.NewSignatureRepo(db)

	inferClient := inference.NewClient(
		config.Conf.Inference.BaseURL,
		config.Conf.Inference.Timeout,
		config.Conf.Inference.TopK,
		log,
	)
	objectStore := storage.NewHTTPStore(
		config.Conf.Storage.BaseURL,
		config.Conf.Storage.Bucket,
		config.Conf.Storage.ServiceKey,
		log,
	)

	notifier := services.NewNotifier(log)
	caseSvc := services.NewCaseService(log, caseRepo, userRepo, bus, notifier)
	scoringSvc := services.NewScoringService(log, attemptRepo, scoreRepo, catalogRepo, caseRepo, userRepo, "")
	attemptSvc := services.NewAttemptService(log, attemptRepo, caseRepo, catalogRepo, scoringSvc, caseSvc, bus)
	profileSvc := services.NewProfileService(log, profileRepo, attemptRepo, scoreRepo, catalogRepo, inferClient, bus)
	signatureSvc := services.NewSignatureService(log, signatureRepo, attemptRepo, caseRepo, objectStore, bus, config.Conf.Signature.MinStrokePx)

	scheduler := services.NewScheduler(
		log, caseRepo, attemptRepo, attemptSvc, caseSvc, bus,
		config.Conf.Scheduler.Interval, config.Conf.Scheduler.IdleTimeout,
	)
	scheduler.Start()
	defer scheduler.Stop()

	r := router.Setup(log, router.Deps{
		Auth:       handlers.NewAuthHandler(log, userRepo),
		Cases:      handlers.NewCaseHandler(log, caseSvc, scoringSvc),
		Attempts:   handlers.NewAttemptHandler(log, attemptSvc, scoringSvc),
		Profiles:   handlers.NewProfileHandler(log, profileSvc),
		Signatures: handlers.NewSignatureHandler(log, signatureSvc),
		Catalog:    handlers.NewCatalogHandler(log, catalogRepo),
		Charts:     handlers.NewChartsHandler(log, profileRepo, caseRepo, attemptRepo),
		Events:     handlers.NewEventsHandler(log, bus),
		Health:     handlers.NewHealthHandler(log, db, inferClient),
		UserLoader: router.UserLoader(log, userRepo),
	})

	port := ":" + config.Conf.Server.Port
	log.Info("Server listening", zap.String("addr", "http://localhost"+port))
	if err := r.Run(port); err != nil {
		log.Fatal("Failed to run Gin server", zap.Error(err))
	}
}
