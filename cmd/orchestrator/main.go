package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hde_orchestrator/internal/campaign"
	"hde_orchestrator/internal/config"
	"hde_orchestrator/internal/domain"
	"hde_orchestrator/internal/helpdesk"
	"hde_orchestrator/internal/logging"
	"hde_orchestrator/internal/spreadsheet"
	"hde_orchestrator/internal/store"
	"hde_orchestrator/internal/telegram"
	"hde_orchestrator/internal/whatsapp"
)

const (
	mongoConnectTimeout    = 10 * time.Second
	mongoIndexTimeout      = 5 * time.Second
	mongoWriteTimeout      = 10 * time.Second
	mongoDisconnectTimeout = 5 * time.Second
	notifyTimeout          = 30 * time.Second
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if opts.configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":    "startup",
		"archive":  cfg.ArchiveEnabled(),
		"notifier": cfg.NotifierEnabled(),
	}).Info("configuration loaded")

	campaignCfg, err := opts.campaignConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "campaign settings error: %v\n", err)
		os.Exit(2)
	}

	phones, err := spreadsheet.ReadContactsFile(opts.input)
	if err != nil {
		logger.WithError(err).Error("contacts read error")
		fmt.Fprintf(os.Stderr, "contacts read error: %v\n", err)
		os.Exit(1)
	}

	runID := uuid.NewString()
	runLogger := logging.WithContext(logging.Context{RunID: runID})
	runLogger.WithFields(logging.Fields{
		"event":    "run_parameters",
		"input":    opts.input,
		"phones":   len(phones),
		"mode":     campaignCfg.SendMode,
		"type":     campaignCfg.TicketTypeLabel,
		"tags":     campaignCfg.Tags,
		"template": campaignCfg.TemplateName,
	}).Info("campaign parameters")

	if opts.dryRun {
		fmt.Println(describeCampaign(campaignCfg, len(phones)))
		return
	}

	desk, err := helpdesk.NewClient(cfg, runLogger)
	if err != nil {
		runLogger.WithError(err).Error("helpdesk client setup error")
		fmt.Fprintf(os.Stderr, "helpdesk client setup error: %v\n", err)
		os.Exit(1)
	}

	messenger, err := whatsapp.NewClient(cfg, runLogger)
	if err != nil {
		runLogger.WithError(err).Error("whatsapp client setup error")
		fmt.Fprintf(os.Stderr, "whatsapp client setup error: %v\n", err)
		os.Exit(1)
	}

	runner, err := campaign.NewRunner(desk, messenger, cfg.ContactDelay, runLogger)
	if err != nil {
		runLogger.WithError(err).Error("runner setup error")
		fmt.Fprintf(os.Stderr, "runner setup error: %v\n", err)
		os.Exit(1)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now().UTC()
	rows, err := runner.Run(signalCtx, phones, campaignCfg, func(done, total int, row domain.OutcomeRow) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", done, total, row.Phone, row.Overall)
	})
	if err != nil {
		runLogger.WithError(err).Error("campaign run error")
		fmt.Fprintf(os.Stderr, "campaign run error: %v\n", err)
		os.Exit(1)
	}
	finishedAt := time.Now().UTC()

	if signalCtx.Err() != nil {
		logging.Warn("run interrupted, remaining contacts were not delivered", logging.Fields{
			"event":  "shutdown_signal",
			"run_id": runID,
		})
	}

	totals := domain.Summarize(rows)
	runLogger.WithFields(logging.Fields{
		"event":         "run_finished",
		"processed":     totals.Processed,
		"success":       totals.Succeeded,
		"error":         totals.Failed,
		"telegram_sent": totals.TelegramSent,
		"whatsapp_sent": totals.WhatsAppSent,
	}).Info("campaign finished")

	output := opts.output
	if output == "" {
		output = spreadsheet.ReportFilename(time.Now())
	}

	reportData, err := spreadsheet.EncodeReport(rows)
	if err == nil {
		err = os.WriteFile(output, reportData, 0o644)
	}
	if err != nil {
		runLogger.WithError(err).Error("report write error")
		fmt.Fprintf(os.Stderr, "report write error: %v\n", err)
		os.Exit(1)
	}
	runLogger.WithFields(logging.Fields{"event": "report_written", "path": output}).Info("report written")
	fmt.Println(output)

	report := domain.Report{
		RunID:      runID,
		Source:     filepath.Base(opts.input),
		Config:     campaignCfg,
		Rows:       rows,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}

	if cfg.ArchiveEnabled() {
		if err := archiveReport(cfg, report, runLogger); err != nil {
			runLogger.WithField("event", "archive_failed").WithError(err).Error("report archive error")
		}
	}

	if cfg.NotifierEnabled() {
		if err := notifyOperators(cfg, filepath.Base(output), reportData, runID, totals, runLogger); err != nil {
			runLogger.WithField("event", "notify_failed").WithError(err).Error("report notification error")
		}
	}
}

func archiveReport(cfg config.Config, report domain.Report, logger *logrus.Entry) error {
	connectCtx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	manager, err := store.NewManager(connectCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancelShutdown()
		if err := manager.Close(shutdownCtx); err != nil {
			logger.WithError(err).Error("mongo disconnect error")
		}
	}()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), mongoIndexTimeout)
	err = manager.EnsureBaseIndexes(indexCtx)
	cancelIndexes()
	if err != nil {
		return err
	}

	writeCtx, cancelWrite := context.WithTimeout(context.Background(), mongoWriteTimeout)
	defer cancelWrite()

	stored, err := storeReport(writeCtx, domain.NewReportRepository(manager.Reports()), report)
	if err != nil {
		return err
	}

	fields := logging.Fields{
		"event":      "report_archived",
		"collection": store.CollectionReports,
		"processed":  stored.Totals.Processed,
	}
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats := store.NewArchiveStats(manager.Reports())
	if total, err := stats.CountReports(writeCtx); err == nil {
		fields["runs_total"] = total
	}
	if today, err := stats.CountReportsSince(writeCtx, dayStart); err == nil {
		fields["runs_today"] = today
	}
	logger.WithFields(fields).Info("report archived")

	return nil
}

type reportArchive interface {
	Create(ctx context.Context, report domain.Report) (domain.Report, error)
	GetByRunID(ctx context.Context, runID string) (domain.Report, error)
}

// storeReport inserts the report and reads it back by run id.
func storeReport(ctx context.Context, archive reportArchive, report domain.Report) (domain.Report, error) {
	created, err := archive.Create(ctx, report)
	if err != nil {
		return domain.Report{}, err
	}

	stored, err := archive.GetByRunID(ctx, created.RunID)
	if err != nil {
		return domain.Report{}, fmt.Errorf("confirm archived report: %w", err)
	}
	if len(stored.Rows) != len(created.Rows) {
		return domain.Report{}, fmt.Errorf("archived report %s has %d rows, want %d", created.RunID, len(stored.Rows), len(created.Rows))
	}

	return stored, nil
}

func notifyOperators(cfg config.Config, filename string, data []byte, runID string, totals domain.Totals, logger *logrus.Entry) error {
	notifier, err := telegram.NewNotifier(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	return notifier.SendReport(ctx, filename, data, runID, totals)
}
