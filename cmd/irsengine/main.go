package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/config"
	"github.com/ignacioaranguren1/lite-irs/internal/custody"
	"github.com/ignacioaranguren1/lite-irs/internal/journal"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/swap"
	"github.com/ignacioaranguren1/lite-irs/internal/version"
)

func main() {
	// Command line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		configFile  = flag.String("config", "", "Path to swap TOML file (default: reference swap)")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
		journalDSN  = flag.String("journal", "", "Journal database DSN, overrides IRS_JOURNAL_DSN")
		settleAt    = flag.String("settle-at", "", "RFC3339 time of an interim settlement")
		liquidateAt = flag.String("liquidate-at", "", "RFC3339 time of a liquidation attempt")
		liquidator  = flag.String("liquidator", "0x00000000000000000000000000000000000000ee", "Address paid the liquidation fee")
	)
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	// Handle help flag
	if *showHelp {
		fmt.Printf("IRS Engine %s\n\n", version.Short())
		fmt.Println("Runs one fixed-for-floating swap from initialization to final settlement.")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// Load configuration
	cfg := config.Load()
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *journalDSN != "" {
		cfg.JournalDSN = *journalDSN
	}

	// Initialize logger
	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.SetDefault(log)

	log.Info("Starting IRS Engine",
		"version", version.Short(),
		"environment", cfg.Environment,
	)

	swapFile := config.DefaultSwapFile()
	if *configFile != "" {
		var err error
		if swapFile, err = config.LoadFile(*configFile); err != nil {
			log.Error("Failed to load swap file", "file", *configFile, "error", err)
			os.Exit(1)
		}
	}

	plan := runPlan{liquidator: common.HexToAddress(*liquidator)}
	for _, opt := range []struct {
		value string
		dst   *time.Time
	}{
		{*settleAt, &plan.settleAt},
		{*liquidateAt, &plan.liquidateAt},
	} {
		if opt.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, opt.value)
		if err != nil {
			log.Error("Invalid time", "value", opt.value, "error", err)
			os.Exit(1)
		}
		*opt.dst = t
	}

	state, err := run(cfg, swapFile, plan, log)
	if err != nil {
		log.Error("Application error", "error", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Error("Failed to encode swap state", "error", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
	log.Info("IRS Engine stopped")
}

type runPlan struct {
	settleAt    time.Time
	liquidateAt time.Time
	liquidator  common.Address
}

// run drives one swap over a simulated clock and pays both parties out.
func run(cfg *config.Config, f *config.SwapFile, plan runPlan, log *logger.Logger) (swap.State, error) {
	fixedPayer, floatingPayer := f.FixedPayerAddress(), f.FloatingPayerAddress()
	account := f.AccountAddress()

	vault := custody.NewVault()
	for _, party := range []common.Address{fixedPayer, floatingPayer} {
		if err := vault.Mint(party, f.Funding); err != nil {
			return swap.State{}, err
		}
		if !vault.Approve(party, account, f.Funding) {
			return swap.State{}, fmt.Errorf("%w: %s refused approval of %s for %s",
				custody.ErrCustodyTransferFailed, party.Hex(), account.Hex(), f.Funding)
		}
	}

	feed, err := f.Feed()
	if err != nil {
		return swap.State{}, err
	}

	now := f.Start
	opts := []swap.Option{
		swap.WithClock(func() time.Time { return now }),
		swap.WithLogger(log.WithComponent("swap")),
	}
	if cfg.JournalDSN != "" {
		db, err := journal.Open(cfg.JournalDSN)
		if err != nil {
			return swap.State{}, err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Failed to close journal", "error", err)
			}
		}()
		opts = append(opts, swap.WithRecorder(db))
	}

	contract, err := swap.New(swap.Config{
		Account:     account,
		FixedRate:   f.FixedRate,
		Requirement: f.Requirement(),
	}, vault, feed, opts...)
	if err != nil {
		return swap.State{}, err
	}

	if err := contract.Init(fixedPayer, fixedPayer, floatingPayer, f.Notional, f.Maturity); err != nil {
		return swap.State{}, err
	}

	if !plan.settleAt.IsZero() {
		now = plan.settleAt
		_, err := contract.SettlePeriod(fixedPayer)
		switch {
		case errors.Is(err, swap.ErrMarginShortfall):
			log.Warn("Interim settlement short of margin", "at", now, "error", err)
		case err != nil:
			return swap.State{}, err
		}
	}

	if !plan.liquidateAt.IsZero() {
		now = plan.liquidateAt
		_, err := contract.Liquidate(plan.liquidator)
		switch {
		case errors.Is(err, swap.ErrNotEligible):
			log.Info("Swap not eligible for liquidation", "at", now)
		case err != nil:
			return swap.State{}, err
		}
	}

	if contract.State().Status == swap.Active {
		if now.Before(f.Maturity) {
			now = f.Maturity
		}
		if _, err := contract.SettleAtMaturity(fixedPayer); err != nil {
			return swap.State{}, err
		}
	}

	for _, party := range []common.Address{fixedPayer, floatingPayer} {
		if _, err := contract.Withdraw(party); err != nil {
			return swap.State{}, err
		}
	}
	if err := contract.Audit(); err != nil {
		return swap.State{}, err
	}
	return contract.State(), nil
}
