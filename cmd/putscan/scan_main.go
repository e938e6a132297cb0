package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/putscan/internal/candidate"
	"github.com/sawpanic/putscan/internal/config"
	plog "github.com/sawpanic/putscan/internal/log"
	"github.com/sawpanic/putscan/internal/metrics"
	"github.com/sawpanic/putscan/internal/provider/yahoo"
	"github.com/sawpanic/putscan/internal/scan"
	"github.com/sawpanic/putscan/internal/universe"
)

type scanOptions struct {
	tickers      string
	limit        int
	format       string
	configPath   string
	envFile      string
	metricsFile  string
	minPOP       float64
	minMoneyness float64
	progress     bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the universe and print ranked put candidates",
		Long: `Scan resolves the ticker universe (--tickers, or the holdings store when
omitted), fetches the coming Friday's put chains and prints the best
candidate per ticker. Store-sourced universes are truncated to --limit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}
	bindScanFlags(cmd.Flags(), opts)
	return cmd
}

func bindScanFlags(fs *pflag.FlagSet, opts *scanOptions) {
	fs.StringVar(&opts.tickers, "tickers", "", "Comma-separated tickers to scan (skips the holdings store)")
	fs.IntVar(&opts.limit, "limit", 0, "Maximum candidates for store-sourced universes (default from config)")
	fs.StringVar(&opts.format, "format", formatJSON, "Output format (json|table)")
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML config")
	fs.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before environment overrides")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the scan")
	fs.Float64Var(&opts.minPOP, "min-pop", 0, "Minimum probability of profit in percent (default from config)")
	fs.Float64Var(&opts.minMoneyness, "min-moneyness", 0, "Exclusive strike/spot floor (default from config)")
	fs.BoolVar(&opts.progress, "progress", false, "Log progress after every batch")
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	if opts.format != formatJSON && opts.format != formatTable {
		return fmt.Errorf("unknown format %q (want json or table)", opts.format)
	}

	cfg, err := config.Load(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd.Flags(), opts, cfg)
	if err := cfg.Scan.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	closer, err := plog.Setup(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()

	store, cleanup, err := buildStore(ctx, cfg.Universe)
	if err != nil {
		return err
	}
	defer cleanup()

	tickers, explicit, err := universe.NewManager(store, cfg.Universe.Count).Resolve(ctx, opts.tickers)
	if err != nil {
		return err
	}

	client := yahoo.NewClient(cfg.Provider, nil, reg)
	session := yahoo.NewSession(client, cfg.Provider.GetSessionTTL(), reg,
		yahoo.WithHandshakeTimeout(cfg.Provider.GetHandshakeTimeout()))
	builder := candidate.NewBuilder(candidate.Filters{
		MinPOP:       cfg.Scan.MinPOP,
		MinMoneyness: cfg.Scan.MinMoneyness,
	}, reg)

	var scanOpts []scan.Option
	if opts.progress {
		scanOpts = append(scanOpts, scan.WithProgress())
	}
	orch := scan.New(client, session, builder, cfg.Scan, reg, scanOpts...)

	candidates, report := orch.Scan(ctx, scan.Request{
		Tickers:  tickers,
		Limit:    cfg.Scan.Limit,
		Explicit: explicit,
	})

	if err := writeCandidates(cmd.OutOrStdout(), opts.format, candidates); err != nil {
		return err
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("tickers", report.Tickers).
		Int("chains", report.Chains).
		Int("unavailable", report.Unavailable).
		Int("failed", report.Failed).
		Int("candidates", report.Candidates).
		Dur("duration", report.Duration).
		Msg("scan summary")

	if opts.metricsFile != "" {
		if err := reg.WriteTextfile(opts.metricsFile); err != nil {
			log.Warn().Err(err).Str("path", opts.metricsFile).Msg("failed to write metrics")
		}
	}
	return nil
}

// applyFlagOverrides lets explicitly set flags win over file and env values.
func applyFlagOverrides(fs *pflag.FlagSet, opts *scanOptions, cfg *config.Config) {
	if fs.Changed("limit") {
		cfg.Scan.Limit = opts.limit
	}
	if fs.Changed("min-pop") {
		cfg.Scan.MinPOP = opts.minPOP
	}
	if fs.Changed("min-moneyness") {
		cfg.Scan.MinMoneyness = opts.minMoneyness
	}
}

// buildStore wires the holdings store, with the Redis cache in front when an
// address is configured. No DSN means explicit ticker lists only.
func buildStore(ctx context.Context, cfg config.UniverseConfig) (universe.Store, func(), error) {
	noop := func() {}
	if cfg.DSN == "" {
		return nil, noop, nil
	}

	db, err := universe.Open(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}
	var store universe.Store = universe.NewPostgresStore(db, cfg)
	if cfg.RedisAddr == "" {
		return store, func() { db.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store = universe.NewCachedStore(rdb, store, cfg.GetCacheTTL())
	return store, func() {
		rdb.Close()
		db.Close()
	}, nil
}
