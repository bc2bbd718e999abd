package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"harpoon/internal/advisor"
	"harpoon/internal/config"
	"harpoon/internal/exchange"
	"harpoon/internal/market"
	"harpoon/internal/metrics"
	"harpoon/internal/risk"
	"harpoon/internal/scheduler"
	"harpoon/internal/sniper"
	"harpoon/internal/spot"
	"harpoon/internal/store"
)

func main() {
	once := flag.Bool("once", false, "Run a single sniper invocation and exit")
	seedPath := flag.String("seed", "", "JSON file of quotes to seed the paper exchange with")
	flag.Parse()

	// Credentials and overrides come from the environment; .env is optional.
	_ = godotenv.Load()

	configPath := "config.toml"
	if p := os.Getenv("HARPOON_CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.General.LogLevel),
	})))
	slog.Info("harpoon starting", "dry_run", cfg.Sniper.DryRun)

	st, err := store.Open(cfg.General.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("database initialized", "path", cfg.General.DBPath)

	// The live exchange client is wired in by the deployment; this binary
	// ships with the paper exchange for dry runs.
	client := exchange.NewPaperClient(100_000)
	if *seedPath != "" {
		if err := seedPaperQuotes(client, *seedPath); err != nil {
			slog.Error("failed to seed paper exchange", "error", err)
			os.Exit(1)
		}
	}

	cache := market.NewCache(client, cfg.Schedule.CacheTTL.Duration)
	gate := risk.NewGate(cfg.Risk, client, st)
	spotSrc := spot.NewCoinGecko(cfg.Spot.Endpoint, cfg.Spot.TTL.Duration)

	var adv advisor.Advisor // external; nil disables the confidence gate

	sn := sniper.New(cfg, client, cache, st, gate, spotSrc, adv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if addr := cfg.General.MetricsAddr; addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			slog.Info("metrics listener started", "addr", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
	}

	if *once {
		summary, err := sn.Run(ctx)
		if err != nil {
			slog.Error("sniper invocation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("invocation summary",
			"scanned", summary.Scanned,
			"skipped", summary.Skipped,
			"orders", summary.Orders,
			"filled", summary.Filled,
			"stopped_reason", summary.StoppedReason,
			"selected", summary.SelectedTicker,
		)
		return
	}

	sched := scheduler.New(sn, cache, cfg.Schedule)
	if err := sched.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	slog.Info("harpoon stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func seedPaperQuotes(client *exchange.PaperClient, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var quotes []exchange.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return err
	}
	client.SeedQuotes(quotes)
	slog.Info("paper exchange seeded", "quotes", len(quotes))
	return nil
}
