package main

import (
	"context"
	"log"
	"os"

	"github.com/hilbertp/hypermvp/cmd/controllers"
	"github.com/hilbertp/hypermvp/internal/config"
	"github.com/hilbertp/hypermvp/internal/logger"
	"github.com/hilbertp/hypermvp/internal/middleware"
	"github.com/hilbertp/hypermvp/internal/repo"
	"github.com/hilbertp/hypermvp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const defaultConfigPath = "config.json"

func main() {
	// Optional .env for local runs; a missing file is fine.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}

	db, err := repo.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}

	if err := repo.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	logService, err := services.NewLogService(db)
	if err != nil {
		log.Fatalf("create log service: %v", err)
	}

	xlsxService, err := services.NewXlsxService()
	if err != nil {
		log.Fatalf("create xlsx service: %v", err)
	}

	afrrService, err := services.NewAfrrService(appLog)
	if err != nil {
		log.Fatalf("create afrr service: %v", err)
	}

	cleanService, err := services.NewCleanService(cfg.DeliveryDateFormats, appLog)
	if err != nil {
		log.Fatalf("create clean service: %v", err)
	}

	bidBookService, err := services.NewBidBookService(appLog)
	if err != nil {
		log.Fatalf("create bid book service: %v", err)
	}

	ingestService, err := services.NewIngestService(db, xlsxService, afrrService, cleanService, logService, appLog)
	if err != nil {
		log.Fatalf("create ingest service: %v", err)
	}

	resolverService, err := services.NewResolverService(db, bidBookService, logService, appLog)
	if err != nil {
		log.Fatalf("create resolver service: %v", err)
	}

	archiveService, err := services.NewArchiveService(db, cfg.ArchiveDir, logService, appLog)
	if err != nil {
		log.Fatalf("create archive service: %v", err)
	}

	pipelineService, err := services.NewPipelineService(
		ingestService,
		resolverService,
		archiveService,
		logService,
		appLog,
		cfg.ProviderInputDir,
		cfg.AfrrInputDir,
	)
	if err != nil {
		log.Fatalf("create pipeline service: %v", err)
	}

	ingestController, err := controllers.NewIngestController(ingestService)
	if err != nil {
		log.Fatalf("create ingest controller: %v", err)
	}

	pricesController, err := controllers.NewPricesController(resolverService)
	if err != nil {
		log.Fatalf("create prices controller: %v", err)
	}

	logsController, err := controllers.NewLogsController(logService)
	if err != nil {
		log.Fatalf("create logs controller: %v", err)
	}

	pipelineController, err := controllers.NewPipelineController(pipelineService)
	if err != nil {
		log.Fatalf("create pipeline controller: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	if err := controllers.RegisterHealthRoutes(router); err != nil {
		log.Fatalf("register health routes: %v", err)
	}
	if err := ingestController.RegisterRoutes(router); err != nil {
		log.Fatalf("register ingest routes: %v", err)
	}
	if err := pricesController.RegisterRoutes(router); err != nil {
		log.Fatalf("register prices routes: %v", err)
	}
	if err := logsController.RegisterRoutes(router); err != nil {
		log.Fatalf("register logs routes: %v", err)
	}
	if err := pipelineController.RegisterRoutes(router); err != nil {
		log.Fatalf("register pipeline routes: %v", err)
	}

	if err := startCron(pipelineService, cfg.CronSchedule); err != nil {
		log.Fatalf("start cron: %v", err)
	}

	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}

type pipelineRunner interface {
	Run(ctx context.Context) error
}

func startCron(service pipelineRunner, schedule string) error {
	if service == nil {
		return nil
	}

	scheduler := cron.New()

	if _, err := scheduler.AddFunc(schedule, func() {
		if err := service.Run(context.Background()); err != nil {
			log.Printf("pipeline run: %v", err)
		}
	}); err != nil {
		return err
	}

	scheduler.Start()
	return nil
}
