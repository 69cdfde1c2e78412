package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexatlas/toc-extractor/cmd/toc-extractor/ui"
	"github.com/lexatlas/toc-extractor/internal/async"
	"github.com/lexatlas/toc-extractor/internal/cache"
	"github.com/lexatlas/toc-extractor/internal/storage"
)

var (
	purgeOlderThan time.Duration
	purgeTicket    string
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old job records and cached results",
	Long: `Purge removes asynchronous job records older than the retention period,
or a single record by ticket id, and clears cached extraction results.`,
	RunE: runPurge,
}

func init() {
	purgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 0, "delete records older than this age (default: configured retention)")
	purgeCmd.Flags().StringVar(&purgeTicket, "ticket", "", "delete a single record by ticket id")
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := storage.Open(cfg.Jobs.DBPath)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer db.Close()
	repo := storage.NewJobRepository(db)

	if purgeTicket != "" {
		deleted, err := repo.Delete(ctx, purgeTicket)
		if err != nil {
			return fmt.Errorf("delete ticket: %w", err)
		}
		if !deleted {
			ui.Warning("Ticket %s not found", purgeTicket)
			return nil
		}
		ui.Success("Deleted ticket %s", purgeTicket)
		return nil
	}

	retention := purgeOlderThan
	if retention <= 0 {
		retention = cfg.Jobs.Retention
	}

	evictor := async.NewEvictor(repo, logger, retention, cfg.Jobs.EvictionInterval)
	deleted, err := evictor.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("purge job records: %w", err)
	}
	ui.Success("Deleted %d job records older than %s", deleted, retention)

	cacheClient, err := cache.New(cfg.Cache)
	if err != nil {
		ui.Warning("Cache unavailable, skipping cached results: %v", err)
		return nil
	}
	if cacheClient != nil {
		defer cacheClient.Close()
		if err := cacheClient.DeleteByPrefix(ctx, "extract"); err != nil {
			ui.Warning("Failed to clear cached results: %v", err)
		} else {
			ui.Info("Cleared cached extraction results")
		}
	}

	return nil
}
