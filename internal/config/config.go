// Package config 配置
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	envconfig "github.com/exchange/ordercalc/pkg/config"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	ServiceName string
	HTTPPort    int
	LogLevel    string

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// 行情 key 前缀
	DepthKeyPrefix       string
	FairPriceKeyPrefix   string
	MaxLeverageKeyPrefix string

	// 状态推送频道，{sessionId} 会被替换
	StateChannel string

	// websocket 允许的 Origin，逗号分隔，"*" 表示全部
	AllowedOrigins []string

	SessionIdleTTL   time.Duration
	SessionSweepSpec string
	SnapshotTimeout  time.Duration

	SlippageScaling    decimal.Decimal
	DefaultFairPrice   decimal.Decimal
	DefaultMaxLeverage decimal.Decimal

	// 交易对默认值文件（YAML）
	MarketsFile string
	Markets     map[string]MarketDefaults

	Tracing TracingConfig
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

// MarketDefaults 预言机无数据时使用的交易对默认值
type MarketDefaults struct {
	FairPrice   decimal.Decimal
	MaxLeverage decimal.Decimal
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: envconfig.GetEnv("SERVICE_NAME", "ordercalc"),
		HTTPPort:    envconfig.GetEnvInt("HTTP_PORT", 8090),
		LogLevel:    envconfig.GetEnv("LOG_LEVEL", "info"),

		DBHost:     envconfig.GetEnv("DB_HOST", "localhost"),
		DBPort:     envconfig.GetEnvInt("DB_PORT", 5436), // 默认使用5436避免与其他项目冲突
		DBUser:     envconfig.GetEnv("DB_USER", "exchange"),
		DBPassword: envconfig.GetEnv("DB_PASSWORD", "exchange123"),
		DBName:     envconfig.GetEnv("DB_NAME", "exchange"),

		RedisAddr:     envconfig.GetEnv("REDIS_ADDR", "localhost:6380"), // 默认使用6380避免与本地Redis冲突
		RedisPassword: envconfig.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       envconfig.GetEnvInt("REDIS_DB", 0),

		DepthKeyPrefix:       envconfig.GetEnv("DEPTH_KEY_PREFIX", "depth:"),
		FairPriceKeyPrefix:   envconfig.GetEnv("FAIR_PRICE_KEY_PREFIX", "fairprice:"),
		MaxLeverageKeyPrefix: envconfig.GetEnv("MAX_LEVERAGE_KEY_PREFIX", "maxleverage:"),

		StateChannel: envconfig.GetEnv("STATE_CHANNEL", "ordercalc:state:{sessionId}"),

		AllowedOrigins: envconfig.GetEnvSlice("ALLOWED_ORIGINS", nil),

		SessionIdleTTL:   envconfig.GetEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionSweepSpec: envconfig.GetEnv("SESSION_SWEEP_SPEC", "@every 1m"),
		SnapshotTimeout:  envconfig.GetEnvDuration("SNAPSHOT_TIMEOUT", 2*time.Second),

		SlippageScaling:    envconfig.GetEnvDecimal("SLIPPAGE_SCALING", decimal.NewFromInt(1)),
		DefaultFairPrice:   envconfig.GetEnvDecimal("DEFAULT_FAIR_PRICE", decimal.NewFromInt(1)),
		DefaultMaxLeverage: envconfig.GetEnvDecimal("DEFAULT_MAX_LEVERAGE", decimal.NewFromInt(25)),

		MarketsFile: envconfig.GetEnv("MARKETS_FILE", ""),

		Tracing: TracingConfig{
			Enabled:    envconfig.GetEnvBool("TRACING_ENABLED", false),
			Endpoint:   envconfig.GetEnv("TRACING_ENDPOINT", "http://localhost:14268/api/traces"),
			SampleRate: envconfig.GetEnvFloat64("TRACING_SAMPLE_RATE", 1),
		},
	}

	if cfg.MarketsFile != "" {
		markets, err := LoadMarkets(cfg.MarketsFile)
		if err != nil {
			return nil, err
		}
		cfg.Markets = markets
	}
	return cfg, nil
}

// DSN 返回数据库连接字符串
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + strconv.Itoa(c.DBPort) +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=disable"
}

// MarketDefaults 返回交易对默认值，未配置的字段使用全局默认
func (c *Config) MarketDefaults(pair string) MarketDefaults {
	out := MarketDefaults{FairPrice: c.DefaultFairPrice, MaxLeverage: c.DefaultMaxLeverage}
	if m, ok := c.Markets[pair]; ok {
		if m.FairPrice.IsPositive() {
			out.FairPrice = m.FairPrice
		}
		if m.MaxLeverage.IsPositive() {
			out.MaxLeverage = m.MaxLeverage
		}
	}
	return out
}

type marketsFile struct {
	Markets []struct {
		Pair        string `yaml:"pair"`
		FairPrice   string `yaml:"fairPrice"`
		MaxLeverage string `yaml:"maxLeverage"`
	} `yaml:"markets"`
}

// LoadMarkets 读取交易对默认值文件
func LoadMarkets(path string) (map[string]MarketDefaults, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read markets file: %w", err)
	}
	return ParseMarkets(raw)
}

// ParseMarkets 解析交易对默认值
func ParseMarkets(raw []byte) (map[string]MarketDefaults, error) {
	var file marketsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse markets file: %w", err)
	}

	out := make(map[string]MarketDefaults, len(file.Markets))
	for _, m := range file.Markets {
		if m.Pair == "" {
			return nil, fmt.Errorf("market entry without pair")
		}
		var d MarketDefaults
		if m.FairPrice != "" {
			v, err := decimal.NewFromString(m.FairPrice)
			if err != nil {
				return nil, fmt.Errorf("market %s fairPrice: %w", m.Pair, err)
			}
			d.FairPrice = v
		}
		if m.MaxLeverage != "" {
			v, err := decimal.NewFromString(m.MaxLeverage)
			if err != nil {
				return nil, fmt.Errorf("market %s maxLeverage: %w", m.Pair, err)
			}
			d.MaxLeverage = v
		}
		out[m.Pair] = d
	}
	return out, nil
}
