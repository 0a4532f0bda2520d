package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/stratamem/stratamem/internal/audit"
	"github.com/stratamem/stratamem/internal/config"
	"github.com/stratamem/stratamem/internal/dedup"
	"github.com/stratamem/stratamem/internal/ingest"
	"github.com/stratamem/stratamem/internal/logging"
	"github.com/stratamem/stratamem/internal/notify"
	"github.com/stratamem/stratamem/internal/objstore"
	"github.com/stratamem/stratamem/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the ingestion worker until interrupted",
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	storage, err := objstore.NewGCS(ctx, cfg.Storage.Bucket)
	if err != nil {
		return err
	}

	warm := store.NewWarmStore(cfg.Database.Path)
	if err := warm.Initialize(ctx); err != nil {
		return err
	}
	defer warm.Close()

	hot := store.NewHotStore(store.HotStoreConfig{
		MaxEntries: cfg.Hot.MaxEntries,
		MaxAge:     cfg.Hot.MaxAge(),
	})
	go hot.Run(ctx)

	var recorder audit.Recorder = audit.Noop{}
	if cfg.Audit.Enabled {
		kr := audit.NewKafkaRecorder(cfg.Audit.Brokers, cfg.Audit.Topic)
		defer kr.Close()
		recorder = kr
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Slack.Token != "" {
		notifier = notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel)
	}

	worker := ingest.NewWorker(ingest.Config{
		Prefix:       cfg.Storage.Prefix,
		PollInterval: cfg.Ingest.PollInterval(),
		ErrorBackoff: cfg.Ingest.ErrorBackoff(),
		MaxAttempts:  cfg.Ingest.MaxAttempts,
		Concurrency:  cfg.Ingest.Concurrency,
	}, storage, dedup.NewService(dedup.Config{
		Permutations: cfg.Dedup.Permutations,
		Threshold:    cfg.Dedup.Threshold,
		MaxTracked:   cfg.Dedup.MaxTracked,
	}), hot, warm, recorder, notifier)

	if err := worker.Start(ctx); err != nil {
		return err
	}

	scheduler := startRetention(ctx, cfg, warm)

	<-ctx.Done()
	slog.Info("shutting down")
	worker.Stop()
	hot.Stop()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	return nil
}

// startRetention schedules the warm-tier prune job. Returns nil when no
// retention TTL is configured.
func startRetention(ctx context.Context, cfg *config.Config, warm *store.WarmStore) *cron.Cron {
	if cfg.Retention.TTLDays <= 0 {
		return nil
	}
	rm := store.NewRetentionManager(warm, []store.RetentionPolicy{
		{TTL: cfg.Retention.TTL()},
	})

	c := cron.New()
	_, err := c.AddFunc(cfg.Retention.Schedule, func() {
		if deleted, err := rm.Prune(ctx); err != nil {
			slog.Warn("retention prune failed", "error", err)
		} else if deleted > 0 {
			slog.Info("retention prune complete", "deleted", deleted)
		}
	})
	if err != nil {
		slog.Warn("invalid retention schedule, pruning disabled",
			"schedule", cfg.Retention.Schedule, "error", err)
		return nil
	}
	c.Start()
	return c
}
