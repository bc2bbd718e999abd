package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	Schedule ScheduleConfig `toml:"schedule"`
	Scan     ScanConfig     `toml:"scan"`
	Risk     RiskConfig     `toml:"risk"`
	Sniper   SniperConfig   `toml:"sniper"`
	Spot     SpotConfig     `toml:"spot"`
}

type GeneralConfig struct {
	DBPath      string `toml:"db_path"`
	LogLevel    string `toml:"log_level"`
	MetricsAddr string `toml:"metrics_addr"` // empty disables the /metrics listener
}

type ScheduleConfig struct {
	PollInterval Duration `toml:"poll_interval"`
	CacheTTL     Duration `toml:"cache_ttl"`
}

type ScanConfig struct {
	Prefixes        []string `toml:"prefixes"`          // event-ticker allow-list; empty allows all
	TimeWindowHours float64  `toml:"time_window_hours"` // only fetch markets closing within this window
	TopN            int      `toml:"top_n"`             // cap on quotes considered, by 24h volume
	MinVolume24h    int      `toml:"min_volume_24h"`
	MinPrice        int      `toml:"min_price"` // cents
	MaxPrice        int      `toml:"max_price"` // cents
	MaxDollarRank   int      `toml:"max_dollar_rank"`
	MinDollarVolume int      `toml:"min_dollar_volume"` // dollars of 24h volume
	MaxSpreadPct    float64  `toml:"max_spread_pct"`
	MaxHours        float64  `toml:"max_hours"` // qualification expiry ceiling
}

type RiskConfig struct {
	RiskPct      float64 `toml:"risk_pct"`       // fraction of balance per trade
	DailyLossPct float64 `toml:"daily_loss_pct"` // realized loss at or above this fraction of balance halts the day
	MaxPositions int     `toml:"max_positions"`
}

type SniperConfig struct {
	DryRun           bool     `toml:"dry_run"`
	PriceCeiling     int      `toml:"price_ceiling"`      // limit price when no live ask is available
	ExpiryWindow     float64  `toml:"expiry_window"`      // hours; default tradeable window
	TightSpreadPct   float64  `toml:"tight_spread_pct"`   // spreads at or under this earn the longer window
	TightSpreadHours float64  `toml:"tight_spread_hours"` // hours; window granted to tight spreads
	VelocityWindow   Duration `toml:"velocity_window"`    // candle lookback for the velocity gate
	MaxRisePct       float64  `toml:"max_rise_pct"`       // reject when the ask rose more than this within the window
	SpotBufferPct    float64  `toml:"spot_buffer_pct"`    // directional gate tolerance around the strike
	UseAdvisor       bool     `toml:"use_advisor"`
	MinConfidence    int      `toml:"min_confidence"`
}

type SpotConfig struct {
	Endpoint string   `toml:"endpoint"`
	TTL      Duration `toml:"ttl"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Load reads a TOML config over the defaults. A missing file is not an
// error: the defaults alone are a runnable dry-run configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:   "./data/harpoon.db",
			LogLevel: "info",
		},
		Schedule: ScheduleConfig{
			PollInterval: Duration{60 * time.Second},
			CacheTTL:     Duration{300 * time.Second},
		},
		Scan: ScanConfig{
			Prefixes:        []string{"KXNFL", "KXNBA", "KXBTC", "KXETH"},
			TimeWindowHours: 24,
			TopN:            500,
			MinVolume24h:    10000,
			MinPrice:        95,
			MaxPrice:        99,
			MaxDollarRank:   200,
			MinDollarVolume: 10000,
			MaxSpreadPct:    5.0,
			MaxHours:        24.0,
		},
		Risk: RiskConfig{
			RiskPct:      0.01,
			DailyLossPct: 0.05,
			MaxPositions: 10,
		},
		Sniper: SniperConfig{
			DryRun:           true,
			PriceCeiling:     98,
			ExpiryWindow:     2.0,
			TightSpreadPct:   2.5,
			TightSpreadHours: 10.0,
			VelocityWindow:   Duration{3 * time.Minute},
			MaxRisePct:       10.0,
			SpotBufferPct:    0.5,
			UseAdvisor:       false,
			MinConfidence:    75,
		},
		Spot: SpotConfig{
			Endpoint: "https://api.coingecko.com/api/v3/simple/price",
			TTL:      Duration{2 * time.Minute},
		},
	}
}
