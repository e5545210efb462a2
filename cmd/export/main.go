package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pair-trade-tracker-go/internal/config"
	"pair-trade-tracker-go/internal/database"
	"pair-trade-tracker-go/internal/ledger"
	"pair-trade-tracker-go/internal/ledger/csvio"
	"pair-trade-tracker-go/internal/logger"
	"pair-trade-tracker-go/internal/models"
)

func main() {
	configPath := flag.String("config", "./configs", "Path to the config directory")
	pairName := flag.String("pair", "", "Pair name to export or import into")
	outPath := flag.String("out", "", "Output file; defaults to the dated export name")
	importPath := flag.String("import", "", "CSV file to import instead of exporting")
	skipValidation := flag.Bool("skip-validation", false, "Import rows without replaying them against holdings")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *pairName == "" {
		fmt.Fprintln(os.Stderr, "The -pair flag is required")
		os.Exit(1)
	}

	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	store := ledger.NewStore(db)

	ctx := context.Background()
	pair, trades, err := loadPair(ctx, store, *pairName)
	if err != nil {
		log.Fatal("Failed to load pair", zap.String("pair", *pairName), zap.Error(err))
	}

	if *importPath != "" {
		if err := runImport(ctx, log, store, pair, trades, *importPath, *skipValidation); err != nil {
			log.Fatal("Import failed", zap.Error(err))
		}
		return
	}
	if err := runExport(log, pair, trades, *outPath); err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}
}

func loadPair(ctx context.Context, store *ledger.Store, name string) (*models.Pair, []models.Trade, error) {
	pairs, err := store.ListPairs(ctx)
	if err != nil {
		return nil, nil, err
	}
	for i := range pairs {
		if pairs[i].PairName == name {
			trades, err := store.TradesForPair(ctx, pairs[i].ID)
			if err != nil {
				return nil, nil, err
			}
			return &pairs[i], trades, nil
		}
	}
	return nil, nil, fmt.Errorf("no pair named %q", name)
}

func runExport(log *zap.Logger, pair *models.Pair, trades []models.Trade, outPath string) error {
	if outPath == "" {
		outPath = csvio.ExportFilename(pair.PairName, time.Now())
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := csvio.Export(f, trades); err != nil {
		return err
	}
	log.Info("Exported trade log",
		zap.String("pair", pair.PairName),
		zap.Int("trades", len(trades)),
		zap.String("file", outPath))
	return nil
}

func runImport(ctx context.Context, log *zap.Logger, store *ledger.Store, pair *models.Pair, trades []models.Trade, path string, skipValidation bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := csvio.Import(f, pair, trades, csvio.ImportOptions{SkipValidation: skipValidation})
	if err != nil {
		return err
	}
	for _, rej := range result.Rejected {
		log.Warn("Rejected row", zap.Int("row", rej.Row), zap.String("reason", rej.Reason))
	}
	if err := store.BulkAddTrades(ctx, result.Trades); err != nil {
		return err
	}
	log.Info("Imported trade log",
		zap.String("pair", pair.PairName),
		zap.Int("imported", len(result.Trades)),
		zap.Int("rejected", len(result.Rejected)))
	return nil
}
