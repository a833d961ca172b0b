package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKETS_FILE", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("SLIPPAGE_SCALING", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "ordercalc" || cfg.HTTPPort != 8090 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SessionIdleTTL != 30*time.Minute || cfg.SessionSweepSpec != "@every 1m" {
		t.Fatalf("unexpected session defaults %v %s", cfg.SessionIdleTTL, cfg.SessionSweepSpec)
	}
	if cfg.SlippageScaling.String() != "1" || cfg.DefaultMaxLeverage.String() != "25" {
		t.Fatalf("unexpected decimal defaults %s %s", cfg.SlippageScaling, cfg.DefaultMaxLeverage)
	}
	if cfg.Tracing.Enabled {
		t.Fatal("expected tracing disabled by default")
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("expected no allowed origins by default, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadAllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected allowed origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SESSION_IDLE_TTL", "5m")
	t.Setenv("DEFAULT_MAX_LEVERAGE", "12.5")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPPort != 9000 || cfg.SessionIdleTTL != 5*time.Minute {
		t.Fatalf("unexpected env overrides %+v", cfg)
	}
	if cfg.DefaultMaxLeverage.String() != "12.5" || !cfg.Tracing.Enabled {
		t.Fatalf("unexpected env overrides %+v", cfg)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "n"}
	want := "host=db port=5432 user=u password=p dbname=n sslmode=disable"
	if cfg.DSN() != want {
		t.Fatalf("expected %q, got %q", want, cfg.DSN())
	}
}

func TestLoadMarketsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.yaml")
	content := `markets:
  - pair: ETH/USD
    fairPrice: "2000.5"
    maxLeverage: "10"
  - pair: BTC/USD
    maxLeverage: "20"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MARKETS_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	eth := cfg.MarketDefaults("ETH/USD")
	if eth.FairPrice.String() != "2000.5" || eth.MaxLeverage.String() != "10" {
		t.Fatalf("unexpected ETH defaults %+v", eth)
	}
	btc := cfg.MarketDefaults("BTC/USD")
	if btc.FairPrice.String() != "1" || btc.MaxLeverage.String() != "20" {
		t.Fatalf("expected global fair price fallback, got %+v", btc)
	}
	other := cfg.MarketDefaults("SOL/USD")
	if other.MaxLeverage.String() != "25" {
		t.Fatalf("expected global defaults, got %+v", other)
	}
}

func TestParseMarketsErrors(t *testing.T) {
	cases := map[string]string{
		"missing pair": "markets:\n  - fairPrice: \"1\"\n",
		"bad decimal":  "markets:\n  - pair: ETH/USD\n    fairPrice: abc\n",
		"invalid yaml": "markets: [",
	}
	for name, raw := range cases {
		if _, err := ParseMarkets([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	t.Setenv("MARKETS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing markets file")
	}
}
