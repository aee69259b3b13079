// Package container provides dependency injection.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/riwatch/backend/internal/analyzer"
	"github.com/riwatch/backend/internal/archive"
	"github.com/riwatch/backend/internal/config"
	"github.com/riwatch/backend/internal/jobs"
	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/notification"
	"github.com/riwatch/backend/internal/provider"
	"github.com/riwatch/backend/internal/provider/azure"
	"github.com/riwatch/backend/internal/report"
	"github.com/riwatch/backend/internal/repository"
)

// Container holds all application dependencies.
type Container struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sql.DB
	scheduler *jobs.Scheduler

	usageRepo repository.UsageRepository
	runRepo   repository.RunRepository

	usageSource  provider.UsageSource
	notifService *notification.Service
	emitter      *report.Emitter
}

// New creates a new dependency container.
func New(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		cfg:    cfg,
		logger: logger,
	}

	db, err := sql.Open("pgx", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	logger.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.Name)

	usageRepo := repository.NewPostgresUsageRepository(db)
	if err := usageRepo.EnsureTable(ctx); err != nil {
		return nil, err
	}
	c.usageRepo = usageRepo

	runRepo := repository.NewPostgresRunRepository(db)
	if err := runRepo.EnsureTable(ctx); err != nil {
		return nil, err
	}
	c.runRepo = runRepo

	if cfg.Azure.Enabled {
		source, err := azure.NewSource(cfg.Azure, logger)
		if err != nil {
			logger.Warn("failed to initialize Azure source", "error", err)
		} else {
			c.usageSource = source
			logger.Info("Azure source initialized", "subscription", cfg.Azure.SubscriptionID)
		}
	}

	c.notifService = notification.NewService(notification.Config{
		EmailSMTPHost:    cfg.Notification.EmailSMTPHost,
		EmailSMTPPort:    cfg.Notification.EmailSMTPPort,
		EmailFrom:        cfg.Notification.EmailFrom,
		EmailPassword:    cfg.Notification.EmailPassword,
		LogicAppEndpoint: cfg.Notification.LogicAppEndpoint,
	}, logger)
	logger.Info("notification service initialized", "channels", len(c.notifService.Channels()))

	var archiver report.Archiver
	if cfg.Archive.Enabled {
		store, err := archive.NewS3Store(ctx, archive.Config{
			Bucket:          cfg.Archive.Bucket,
			Prefix:          cfg.Archive.Prefix,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize report archive", "error", err)
		} else {
			archiver = store
			logger.Info("report archive initialized", "bucket", cfg.Archive.Bucket)
		}
	}

	c.emitter = report.NewEmitter(c.notifService, archiver, cfg.Analysis.DefaultRecipient, logger)

	c.scheduler = jobs.NewScheduler(cfg.Jobs.JobTimeout, logger)

	return c, nil
}

// Start registers and starts background jobs.
func (c *Container) Start(ctx context.Context) error {
	c.scheduler.Register("usage-sync", c.cfg.Jobs.UsageSyncSchedule, c.usageSyncJob)
	c.scheduler.Register("analyze-report", c.cfg.Jobs.AnalyzeSchedule, c.analyzeReportJob)

	return c.scheduler.Start()
}

// Stop gracefully stops all components.
func (c *Container) Stop(ctx context.Context) error {
	c.logger.Info("stopping container components")

	if c.scheduler != nil {
		c.scheduler.Stop()
	}

	if c.usageSource != nil {
		c.usageSource.Close()
	}

	if c.db != nil {
		c.db.Close()
	}

	return nil
}

// Accessors

func (c *Container) Config() *config.Config                    { return c.cfg }
func (c *Container) Logger() *slog.Logger                      { return c.logger }
func (c *Container) DB() *sql.DB                               { return c.db }
func (c *Container) Scheduler() *jobs.Scheduler                { return c.scheduler }
func (c *Container) UsageRepository() repository.UsageRepository { return c.usageRepo }
func (c *Container) RunRepository() repository.RunRepository   { return c.runRepo }
func (c *Container) UsageSource() provider.UsageSource         { return c.usageSource }
func (c *Container) NotificationService() *notification.Service { return c.notifService }
func (c *Container) Emitter() *report.Emitter                  { return c.emitter }

// Background job implementations

// usageSyncJob pulls daily reservation utilization from Azure and
// upserts it into the usage store.
func (c *Container) usageSyncJob(ctx context.Context) error {
	c.logger.Info("running usage sync job")

	if c.usageSource == nil {
		c.logger.Info("no usage source configured, skipping sync")
		return nil
	}

	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -(c.cfg.Analysis.WindowDays - 1))

	observations, err := c.usageSource.GetUsage(ctx, provider.UsageRequest{
		Range: model.DateRange{Start: startDate, End: endDate},
	})
	if err != nil {
		c.logger.Error("failed to fetch usage", "source", c.usageSource.Name(), "error", err)
		return err
	}

	if len(observations) == 0 {
		c.logger.Info("no observations returned, nothing to persist")
		return nil
	}

	if err := c.usageRepo.CreateBatch(ctx, observations); err != nil {
		c.logger.Error("failed to persist usage", "error", err)
		return err
	}

	c.logger.Info("usage sync completed", "observations", len(observations))
	return nil
}

// analyzeReportJob analyzes every RI against the latest ingested report
// date, archives the run, and sends per-recipient reports.
func (c *Container) analyzeReportJob(ctx context.Context) error {
	c.logger.Info("running analyze and report job")

	referenceDate, err := c.usageRepo.LatestReportDate(ctx)
	if err != nil {
		c.logger.Error("failed to determine reference date", "error", err)
		return err
	}

	run, err := c.RunAnalysis(ctx, referenceDate)
	if err != nil {
		return err
	}

	if err := c.emitter.Emit(ctx, run); err != nil {
		c.logger.Error("report emit failed", "run_id", run.ID, "error", err)
		return err
	}

	return nil
}

// Analyze runs the analyzer over all stored histories against the given
// reference date without persisting the result.
func (c *Container) Analyze(ctx context.Context, referenceDate time.Time) (*model.AnalysisRun, error) {
	histories, err := c.usageRepo.GetHistories(ctx, c.cfg.Analysis.WindowDays, referenceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage histories: %w", err)
	}

	result := analyzer.AnalyzeBatch(histories, referenceDate, c.cfg.Analysis, c.cfg.Jobs.AnalyzeWorkers)

	for key, err := range result.Errors {
		c.logger.Warn("analysis failed for RI", "ri", key.String(), "error", err)
	}

	return model.NewAnalysisRun(referenceDate, result.Records, len(result.Errors)), nil
}

// RunAnalysis analyzes all stored histories against the given reference
// date and archives the resulting run.
func (c *Container) RunAnalysis(ctx context.Context, referenceDate time.Time) (*model.AnalysisRun, error) {
	run, err := c.Analyze(ctx, referenceDate)
	if err != nil {
		return nil, err
	}

	if err := c.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to archive analysis run: %w", err)
	}

	c.logger.Info("analysis run completed",
		"run_id", run.ID,
		"reference_date", referenceDate.Format("2006-01-02"),
		"records", len(run.Records),
		"errors", run.ErrorCount,
	)
	return run, nil
}
