package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/practicum-api/api/swagger"
	"github.com/noah-isme/practicum-api/internal/dto"
	"github.com/noah-isme/practicum-api/internal/handler"
	"github.com/noah-isme/practicum-api/internal/middleware"
	"github.com/noah-isme/practicum-api/internal/models"
	"github.com/noah-isme/practicum-api/internal/repository"
	"github.com/noah-isme/practicum-api/internal/service"
	"github.com/noah-isme/practicum-api/pkg/cache"
	"github.com/noah-isme/practicum-api/pkg/config"
	"github.com/noah-isme/practicum-api/pkg/database"
	"github.com/noah-isme/practicum-api/pkg/export"
	"github.com/noah-isme/practicum-api/pkg/jobs"
	"github.com/noah-isme/practicum-api/pkg/logger"
	"github.com/noah-isme/practicum-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/practicum-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/practicum-api/pkg/middleware/requestid"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

// @title Practicum API
// @version 1.0.0
// @description Teaching practicum platform
// @BasePath /api
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	objects, err := storage.NewObjectStore(cfg)
	if err != nil {
		logr.Fatal("failed to init object storage", zap.Error(err))
	}
	backupFiles, err := storage.NewLocalStorage(cfg.System.BackupDir, "")
	if err != nil {
		logr.Fatal("failed to init backup storage", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	tokenRepo := repository.NewTokenRepository(cacheRepo)
	observationRepo := repository.NewObservationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	mentorRepo := repository.NewMentorRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)
	systemRepo := repository.NewSystemRepository(db)
	settingsRepo := repository.NewConfigurationRepository(db)
	maintenanceRepo := repository.NewMaintenanceRepository(db)
	backupRepo := repository.NewBackupRepository(db)

	authSvc := service.NewAuthService(userRepo, sessionRepo, tokenRepo, mail.New(cfg.Mail, logr), systemRepo, validate, logr, service.AuthConfig{
		Secret:        cfg.Session.Secret,
		Issuer:        "practicum-api",
		TTL:           cfg.Session.TTL,
		RememberTTL:   cfg.Session.RememberTTL,
		IdleTimeout:   cfg.Session.IdleTimeout,
		MismatchLimit: cfg.Session.MismatchLimit,
		ResetTokenTTL: cfg.Mail.ResetTokenTTL,
		ResetURLBase:  cfg.Mail.ResetURLBase,
	})
	eligibilitySvc := service.NewEligibilityService(observationRepo, schoolRepo, mentorRepo, service.EligibilityConfig{
		SchoolWindowDays:       cfg.Practicum.SchoolWindowDays,
		SchoolChangeWindowDays: cfg.Practicum.SchoolChangeWindowDays,
	}, logr)
	schoolSvc := service.NewSchoolService(eligibilitySvc, schoolRepo, mentorRepo, evaluationRepo, systemRepo, metricsSvc, validate, logr)
	mentorSvc := service.NewMentorService(eligibilitySvc, mentorRepo, systemRepo, metricsSvc, validate, logr)
	evaluationSvc := service.NewEvaluationService(eligibilitySvc, evaluationRepo, enrollmentRepo, objects, systemRepo, metricsSvc, validate, logr, service.EvaluationConfig{
		LessonPlanMaxBytes: cfg.Uploads.LessonPlanMaxBytes,
		LessonPlanMIMEs:    cfg.Uploads.LessonPlanMIMEs,
	}).WithStudents(userRepo)
	reportSvc := service.NewReportService(evaluationRepo, enrollmentRepo, observationRepo, logr)
	exportSvc := service.NewExportService(logr, export.NewCSVExporter(), export.NewPDFExporter())
	observationSvc := service.NewObservationService(observationRepo, systemRepo, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, observationRepo, userRepo, systemRepo, validate, logr)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, userRepo, systemRepo, metricsSvc, validate, logr, cfg.Practicum.FeedbackMinAccountAge)
	profileSvc := service.NewProfileService(userRepo, objects, systemRepo, validate, logr, service.ProfileConfig{
		ImageMaxBytes:  cfg.Uploads.ProfileImageMaxBytes,
		ImageDimension: cfg.Uploads.ProfileImageDimension,
	})
	userSvc := service.NewUserService(userRepo, sessionRepo, systemRepo, validate, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	systemSvc := service.NewSystemService(service.SystemServiceParams{
		Settings:   settingsRepo,
		Journal:    systemRepo,
		Challenges: tokenRepo,
		Resetter:   maintenanceRepo,
		Sessions:   sessionRepo,
		Cache:      cacheSvc,
		Validator:  validate,
		Logger:     logr,
		Config: service.SystemServiceConfig{
			StatusCacheTTL:        cfg.System.StatusCacheTTL,
			ResetChallengeTTL:     cfg.System.ResetChallengeTTL,
			RequireResetChallenge: cfg.System.RequireResetChallenge,
			BootstrapAdminID:      cfg.System.BootstrapAdminID,
			BootstrapAdminEmail:   cfg.System.BootstrapAdminEmail,
			BootstrapAdminPass:    cfg.System.BootstrapAdminPass,
		},
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Eligibility: eligibilitySvc,
		Schools:     schoolRepo,
		Mentors:     mentorRepo,
		Evaluations: evaluationRepo,
		Counts:      maintenanceRepo,
		Status:      systemSvc,
		Metrics:     metricsSvc,
		Cache:       cacheSvc,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	backupWorker := service.NewBackupWorker(backupRepo, maintenanceRepo, backupFiles, nil, logr).WithMetrics(metricsSvc)
	backupQueue := jobs.NewQueue("backups", backupWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.System.BackupWorkers,
		MaxRetries: cfg.System.BackupRetries,
		OnFailure:  backupWorker.OnFailure,
		Logger:     logr,
	})
	backupQueue.Start(ctx)
	backupSvc := service.NewBackupService(backupRepo, backupQueue, backupFiles, storage.NewSignedURLSigner(cfg.System.BackupSignedSecret, cfg.System.BackupSignedTTL), systemRepo, logr, service.BackupServiceConfig{
		DownloadPath: cfg.APIPrefix + "/system/backups",
		Retention:    cfg.System.BackupRetention,
	})

	scheduler := jobs.NewScheduler(logr, 5*time.Minute)
	if cfg.Scheduler.Enabled {
		mustSchedule(logr, scheduler.Register("complete-expired-periods", cfg.Scheduler.PeriodCloserSpec, func(ctx context.Context) error {
			n, err := observationSvc.CompleteExpired(ctx)
			if n > 0 {
				logr.Info("observation periods completed", zap.Int64("count", n))
			}
			return err
		}))
		mustSchedule(logr, scheduler.Register("backup-cleanup", cfg.Scheduler.BackupCleanupSpec, func(ctx context.Context) error {
			_, err := backupSvc.Cleanup(ctx)
			return err
		}))
		scheduler.Start()
	}

	authHandler := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Name:   cfg.Session.CookieName,
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.Session.CookieSecure,
	})
	eligibilityHandler := handler.NewEligibilityHandler(eligibilitySvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	mentorHandler := handler.NewMentorHandler(mentorSvc)
	evaluationHandler := handler.NewEvaluationHandler(evaluationSvc)
	observationHandler := handler.NewObservationHandler(observationSvc, enrollmentSvc)
	reportHandler := handler.NewReportHandler(reportSvc, exportSvc)
	feedbackHandler := handler.NewFeedbackHandler(feedbackSvc)
	profileHandler := handler.NewProfileHandler(profileSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	userHandler := handler.NewUserHandler(userSvc)
	systemHandler := handler.NewSystemHandler(systemSvc, backupSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.SystemLog(systemSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)
	api.GET("/system/status", systemHandler.Status)
	api.GET("/system/backups/:id/download",
		middleware.Audit(systemRepo, models.ActivityBackupDownload, "backup downloaded", logr),
		systemHandler.DownloadBackup)

	authed := api.Group("")
	authed.Use(middleware.Session(authSvc, cfg.Session.CookieName))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	system := authed.Group("/system")
	system.Use(middleware.RequireRoles(models.RoleAdmin))
	system.POST("/status", systemHandler.UpdateStatus)
	system.GET("/logs", systemHandler.Logs)
	system.GET("/activities", systemHandler.Activities)
	system.POST("/reset-database/challenge", systemHandler.ResetChallenge)
	system.POST("/reset-database", systemHandler.ResetDatabase)
	system.POST("/backup", systemHandler.RequestBackup)
	system.GET("/backups", systemHandler.Backups)

	gated := authed.Group("")
	gated.Use(middleware.Maintenance(systemSvc, logr))

	gated.GET("/profile", profileHandler.Get)
	gated.PUT("/profile", profileHandler.Update)
	gated.POST("/profile/image", profileHandler.UploadImage)

	gated.GET("/website-evaluation/check-eligibility", feedbackHandler.Eligibility)
	gated.POST("/website-evaluation/submit", feedbackHandler.Submit)

	student := gated.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent))
	student.GET("/dashboard/student", dashboardHandler.Student)
	student.GET("/school-info/check-eligibility", eligibilityHandler.Check(dto.PurposeSchool))
	student.GET("/school-info/my-submission", schoolHandler.MySubmission)
	student.GET("/school-info/search", schoolHandler.Search)
	student.POST("/school-info/save", schoolHandler.Save)
	student.GET("/mentor-info/check-eligibility", eligibilityHandler.Check(dto.PurposeMentor))
	student.GET("/mentor-info/my-submission", mentorHandler.MySubmission)
	student.GET("/mentor-info/search", mentorHandler.Search)
	student.POST("/mentor-info/save", mentorHandler.Save)
	student.GET("/evaluation/check-eligibility", eligibilityHandler.Check(dto.PurposeEvaluation))
	student.GET("/evaluation/my-evaluations", evaluationHandler.MyEvaluations)
	student.POST("/evaluation/save-week", evaluationHandler.SaveWeek)
	student.POST("/evaluation/submit-lesson-plan", evaluationHandler.SubmitLessonPlan)
	student.POST("/evaluation/submit-video", evaluationHandler.SubmitVideo)

	staff := gated.Group("")
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	staff.GET("/dashboard/admin", dashboardHandler.Admin)
	staff.GET("/observations", observationHandler.List)
	staff.GET("/observations/:id", observationHandler.Get)
	staff.POST("/observations", observationHandler.Create)
	staff.PUT("/observations/:id", observationHandler.Update)
	staff.POST("/observations/:id/complete", observationHandler.Complete)
	staff.GET("/observations/:id/students", observationHandler.Students)
	staff.POST("/observations/:id/students", observationHandler.Enroll)
	staff.PUT("/observations/:id/students/:enrollmentId", observationHandler.UpdateEnrollment)
	staff.GET("/reports/evaluation-summary", reportHandler.Summary)
	staff.GET("/reports/evaluation-summary/export",
		middleware.Audit(systemRepo, models.ActivityReportExport, "evaluation summary exported", logr),
		reportHandler.Export)
	staff.GET("/reports/observations/:id/students", reportHandler.Students)
	staff.GET("/website-evaluation", feedbackHandler.List)
	staff.GET("/website-evaluation/summary", feedbackHandler.Summary)

	users := gated.Group("/users")
	users.GET("/:id", middleware.RequireRolesOrSelf(models.RoleAdmin), userHandler.Get)
	admin := users.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.GET("", userHandler.List)
	admin.POST("", userHandler.Create)
	admin.PATCH("/:id/status", userHandler.SetActive)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	backupQueue.Stop()
}

func mustSchedule(logr *zap.Logger, err error) {
	if err != nil {
		logr.Fatal("failed to schedule task", zap.Error(err))
	}
}
