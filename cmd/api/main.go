package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/isms-go-api/internal/audit"
	"github.com/noah-isme/isms-go-api/internal/config"
	"github.com/noah-isme/isms-go-api/internal/database"
	"github.com/noah-isme/isms-go-api/internal/handler"
	"github.com/noah-isme/isms-go-api/internal/lifecycle"
	"github.com/noah-isme/isms-go-api/internal/middleware"
	"github.com/noah-isme/isms-go-api/internal/models"
	"github.com/noah-isme/isms-go-api/internal/repository"
	"github.com/noah-isme/isms-go-api/internal/router"
	"github.com/noah-isme/isms-go-api/internal/scheduler"
	"github.com/noah-isme/isms-go-api/internal/service"
	"github.com/noah-isme/isms-go-api/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Asset{},
		&models.Control{},
		&models.Risk{},
		&models.RiskTreatmentPlan{},
		&models.Incident{},
		&models.Document{},
		&models.AuditLogEntry{},
		&models.WorkflowDefinition{},
		&models.WorkflowStep{},
		&models.WorkflowInstance{},
		&models.Notification{},
		&models.ScheduledReport{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, js, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())

	auditLogRepo := repository.NewAuditLogRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	incidentRepo := repository.NewIncidentRepository(db)
	riskRepo := repository.NewRiskRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reportRepo := repository.NewScheduledReportRepository(db)

	notificationService := service.NewNotificationService(notificationRepo, redisClient, natsConn, logger)

	engine := workflow.NewEngine(workflowRepo, userRepo, notificationService, logger)
	evaluator := workflow.NewEvaluator(engine, logger)
	capture := audit.NewCapture(service.NewAuditSink(auditLogRepo), logger)

	if err := db.Use(lifecycle.New(capture, evaluator, logger)); err != nil {
		log.Fatalf("failed to register lifecycle plugin: %v", err)
	}

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := workflow.SeedDefinitions(seedCtx, workflowRepo, logger); err != nil {
		seedCancel()
		log.Fatalf("failed to seed workflow definitions: %v", err)
	}
	seedCancel()

	auditQueryService := service.NewAuditQueryService(auditLogRepo, validate, logger)
	workflowService := service.NewWorkflowService(engine, workflowRepo, userRepo, validate, logger)
	incidentService := service.NewIncidentService(incidentRepo, validate, logger)
	documentService := service.NewDocumentService(documentRepo, validate, logger)
	treatmentService := service.NewTreatmentPlanService(riskRepo, validate, logger)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	tasks := scheduler.NewTasks(
		riskRepo, incidentRepo, workflowRepo, userRepo, auditLogRepo, reportRepo,
		notificationService, redisClient,
		cfg.AuditRetentionDays, cfg.ReviewReminderWindow, logger,
	)
	dispatcher := scheduler.NewDispatcher(js, cfg.TaskQueueGroup, logger)
	dispatcher.Register(scheduler.TaskCheckDueReviews, tasks.CheckDueReviews)
	dispatcher.Register(scheduler.TaskGenerateReport, tasks.GenerateReport)
	dispatcher.Register(scheduler.TaskCleanupExpired, tasks.CleanupExpired)
	dispatcher.Register(scheduler.TaskExecuteReport, tasks.ExecuteReport)
	if err := dispatcher.Start(runCtx); err != nil {
		log.Fatalf("failed to start task dispatcher: %v", err)
	}
	defer dispatcher.Stop()

	scheduler.NewCron(dispatcher, logger).Start(runCtx)

	auditLogHandler := handler.NewAuditLogHandler(auditQueryService, logger)
	workflowHandler := handler.NewWorkflowHandler(workflowService, logger)
	incidentHandler := handler.NewIncidentHandler(incidentService, logger)
	documentHandler := handler.NewDocumentHandler(documentService, logger)
	treatmentHandler := handler.NewTreatmentPlanHandler(treatmentService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		AuditLogHandler:      auditLogHandler,
		WorkflowHandler:      workflowHandler,
		IncidentHandler:      incidentHandler,
		DocumentHandler:      documentHandler,
		TreatmentPlanHandler: treatmentHandler,
		NotificationHandler:  notificationHandler,
		JWTMiddleware:        middleware.JWTProtected(cfg.JWTSecret),
		SessionMiddleware:    middleware.SessionTouch(redisClient, cfg.SessionTTL),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, stopRun)
}

func waitForShutdown(app *fiber.App, stopRun context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopRun()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
