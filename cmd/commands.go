package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"walletledger/config"
	"walletledger/models"
	"walletledger/service"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// withApp wires the application for a single command and tears it down afterwards
func withApp(ctx context.Context, fn func(app *App) error) error {
	cfg := config.Get()
	SetupLogging(cfg)

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

// Transfer handles: transfer <from> <to> <amount> <kind> <actor-id> [idempotency-key]
func Transfer(ctx context.Context, args []string) error {
	if len(args) < 5 {
		return fmt.Errorf("usage: walletledger transfer <from> <to> <amount> <kind> <actor-id> [idempotency-key]")
	}

	from, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid source account %q: %w", args[0], err)
	}
	to, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid destination account %q: %w", args[1], err)
	}
	amount, err := models.ParseAmount(args[2])
	if err != nil {
		return err
	}
	kind := models.TransactionKind(args[3])
	if !kind.IsValid() {
		return fmt.Errorf("%w: %s", service.ErrInvalidKind, args[3])
	}
	actorID, err := strconv.ParseInt(args[4], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid actor %q: %w", args[4], err)
	}

	var key string
	if len(args) > 5 {
		key = args[5]
	}

	req := models.TransferRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        amount,
		Kind:          kind,
		Actor:         models.Actor{ID: actorID},
	}

	return withApp(ctx, func(app *App) error {
		var entry *models.LedgerEntry
		var err error
		switch {
		case key == "":
			entry, err = app.Transfers.Transfer(ctx, req)
		case app.Idempotent == nil:
			return fmt.Errorf("idempotency key given but REDIS_ADDR is not configured")
		default:
			entry, err = app.Idempotent.Transfer(ctx, key, req)
		}
		if err != nil {
			return err
		}

		fmt.Printf("entry %d: %s -> %s %s (%s)\n", entry.ID, entry.FromDisplayName, entry.ToDisplayName,
			entry.Amount.StringFixed(models.AmountScale), entry.Kind)
		return nil
	})
}

// Archive handles: archive [months]
func Archive(ctx context.Context, args []string) error {
	return withApp(ctx, func(app *App) error {
		months := app.Config.LedgerRetentionMonths
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid retention months %q", args[0])
			}
			months = n
		}

		result, err := app.Scheduler.RunArchiveWithRetention(ctx, months)
		// Let the failure alert go out before the process exits
		app.Bus.Wait()
		if result != nil {
			fmt.Printf("batch %s: moved %d rows older than %s, %d failures\n",
				result.BatchID, result.MovedCount, result.Cutoff.Format(time.RFC3339), len(result.Failures))
			for _, failure := range result.Failures {
				fmt.Printf("  entry %d: %s\n", failure.OriginalID, failure.Error)
			}
		}
		return err
	})
}

// Purge handles: purge [days]
func Purge(ctx context.Context, args []string) error {
	return withApp(ctx, func(app *App) error {
		days := app.Config.OperationalLogRetentionDays
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid retention days %q", args[0])
			}
			days = n
		}

		result, err := app.Scheduler.RunPurgeWithRetention(ctx, days)
		app.Bus.Wait()
		if err != nil {
			return err
		}

		fmt.Printf("deleted %d operational logs older than %s\n", result.DeletedCount, result.Cutoff.Format(time.RFC3339))
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}
		return nil
	})
}

// Restore handles: restore <batch-id>
func Restore(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: walletledger restore <batch-id>")
	}
	batchID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid batch id %q: %w", args[0], err)
	}

	return withApp(ctx, func(app *App) error {
		result, err := app.Archive.RestoreBatch(ctx, batchID)
		if err != nil {
			return err
		}
		fmt.Printf("batch %s: restored %d rows\n", result.BatchID, result.RestoredCount)
		return nil
	})
}

// Stats handles: stats
func Stats(ctx context.Context) error {
	return withApp(ctx, func(app *App) error {
		now := time.Now()

		archive, err := app.Archive.Stats(ctx, service.LedgerArchiveCutoff(now, app.Config.LedgerRetentionMonths))
		if err != nil {
			return err
		}
		retention, err := app.Retention.Stats(ctx, service.LogPurgeCutoff(now, app.Config.OperationalLogRetentionDays))
		if err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"hotEntries":         archive.HotEntries,
			"archivedEntries":    archive.ArchivedEntries,
			"archiveBatches":     archive.ArchiveBatches,
			"eligibleForArchive": archive.EligibleForArchive,
			"hotTableSize":       archive.HotTableSize,
			"archiveTableSize":   archive.ArchiveTableSize,
		}).Info("Ledger storage")

		log.WithFields(log.Fields{
			"totalLogs":   retention.TotalLogs,
			"expiredLogs": retention.ExpiredLogs,
			"tableSize":   retention.TableSize,
			"windowDays":  retention.WindowDays,
		}).Info("Operational logs")

		return nil
	})
}
