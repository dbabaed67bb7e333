// Command fund credits an asset balance to an existing user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/watasiwa/tradegate/internal/funding"
	"github.com/watasiwa/tradegate/internal/identity"
	"github.com/watasiwa/tradegate/internal/infra"
	"github.com/watasiwa/tradegate/internal/ledger"
	"github.com/watasiwa/tradegate/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	userID := flag.String("user", "", "user id to credit")
	asset := flag.String("asset", "USDT", "asset symbol")
	amount := flag.String("amount", "", "decimal amount to credit")
	reference := flag.String("ref", "", "optional reference for the deposit")
	flag.Parse()

	logger := logging.New(os.Getenv("LOG_LEVEL"))
	if *userID == "" || *amount == "" {
		fmt.Fprintln(os.Stderr, "usage: fund -user <id> -amount <decimal> [-asset USDT]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := infra.NewPostgresPool(ctx, os.Getenv("DATABASE_URL"), "tradegate-fund")
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := infra.EnsureSchema(ctx, db, ledger.DefaultAssets...); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	svc, err := funding.NewService(ledger.NewPostgresLedger(db), identity.NewPostgresRepository(db))
	if err != nil {
		logger.Error("build funding service", "error", err)
		os.Exit(1)
	}
	res, err := svc.Deposit(ctx, funding.DepositInput{UserID: *userID, Asset: *asset, Amount: *amount, Reference: *reference})
	if err != nil {
		logger.Error("deposit failed", "user_id", *userID, "error", err)
		os.Exit(1)
	}
	logger.Info("deposit recorded",
		"user_id", *userID,
		"asset", res.Balance.Asset,
		"balance", res.Balance.Balance.String(),
		"reference", res.Reference,
	)
}
