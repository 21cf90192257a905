package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"walletledger/cmd"
	"walletledger/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	var err error
	if len(os.Args) < 2 {
		err = cmd.Run(ctx)
	} else {
		args := os.Args[2:]
		switch os.Args[1] {
		case "migrate":
			err = handleMigrationCommand(args)
		case "transfer":
			err = cmd.Transfer(ctx, args)
		case "archive":
			err = cmd.Archive(ctx, args)
		case "purge":
			err = cmd.Purge(ctx, args)
		case "restore":
			err = cmd.Restore(ctx, args)
		case "stats":
			err = cmd.Stats(ctx)
		default:
			err = fmt.Errorf("unknown command: %s", os.Args[1])
		}
	}

	if err != nil {
		log.WithError(err).Fatal("Command failed")
	}
}

func handleMigrationCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: walletledger migrate [up|down|status] [args...]")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp()
	case "down":
		steps := "1"
		if len(args) > 1 {
			steps = args[1]
		}
		return database.MigrateDown(steps)
	case "status":
		return database.MigrateStatus()
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}
