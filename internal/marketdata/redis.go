// Package marketdata 行情快照读取
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Keys Redis key 前缀
type Keys struct {
	Depth       string
	FairPrice   string
	MaxLeverage string
}

// DefaultKeys 默认 key 前缀
var DefaultKeys = Keys{
	Depth:       "depth:",
	FairPrice:   "fairprice:",
	MaxLeverage: "maxleverage:",
}

func (k Keys) withDefaults() Keys {
	if k.Depth == "" {
		k.Depth = DefaultKeys.Depth
	}
	if k.FairPrice == "" {
		k.FairPrice = DefaultKeys.FairPrice
	}
	if k.MaxLeverage == "" {
		k.MaxLeverage = DefaultKeys.MaxLeverage
	}
	return k
}

// PriceLevel 深度档位（JSON 中为十进制字符串）
type PriceLevel struct {
	Price string `json:"price"`
	Qty   string `json:"qty"`
}

// Depth 深度快照
type Depth struct {
	Pair string       `json:"pair"`
	Bids []PriceLevel `json:"bids"`
	Asks []PriceLevel `json:"asks"`
}

// RedisBook 从 Redis 读取订单簿深度
type RedisBook struct {
	client redis.Cmdable
	prefix string
}

// NewRedisBook 创建订单簿读取器
func NewRedisBook(client redis.Cmdable, keys Keys) *RedisBook {
	return &RedisBook{client: client, prefix: keys.withDefaults().Depth}
}

// Book 读取交易对深度，无数据时返回空订单簿
func (b *RedisBook) Book(ctx context.Context, pair string) (market.Book, error) {
	raw, err := b.client.Get(ctx, b.prefix+pair).Bytes()
	if errors.Is(err, redis.Nil) {
		return market.Book{}, nil
	}
	if err != nil {
		return market.Book{}, fmt.Errorf("get depth: %w", err)
	}

	var depth Depth
	if err := json.Unmarshal(raw, &depth); err != nil {
		return market.Book{}, fmt.Errorf("decode depth: %w", err)
	}
	return market.Book{
		Bids: toLevels(depth.Bids),
		Asks: toLevels(depth.Asks),
	}, nil
}

func toLevels(in []PriceLevel) []market.Level {
	out := make([]market.Level, 0, len(in))
	for _, l := range in {
		level := market.Level{
			Price:    commondecimal.Parse(l.Price),
			Quantity: commondecimal.Parse(l.Qty),
		}
		if !level.Quantity.IsPositive() {
			continue
		}
		out = append(out, level)
	}
	return out
}

// Defaults 预言机无数据时的交易对默认值
type Defaults struct {
	FairPrice   decimal.Decimal
	MaxLeverage decimal.Decimal
}

// DefaultsFunc 按交易对返回默认值
type DefaultsFunc func(pair string) Defaults

// RedisOracle 从 Redis 读取公允价和最大杠杆
type RedisOracle struct {
	client   redis.Cmdable
	keys     Keys
	defaults DefaultsFunc
}

// NewRedisOracle 创建预言机读取器
func NewRedisOracle(client redis.Cmdable, keys Keys, defaults DefaultsFunc) *RedisOracle {
	if defaults == nil {
		defaults = func(string) Defaults {
			return Defaults{FairPrice: market.DefaultFairPrice, MaxLeverage: market.DefaultMaxLeverage}
		}
	}
	return &RedisOracle{client: client, keys: keys.withDefaults(), defaults: defaults}
}

// FairPrice 公允价
func (o *RedisOracle) FairPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	return o.read(ctx, o.keys.FairPrice+pair, o.defaults(pair).FairPrice)
}

// MaxLeverage 最大杠杆
func (o *RedisOracle) MaxLeverage(ctx context.Context, pair string) (decimal.Decimal, error) {
	return o.read(ctx, o.keys.MaxLeverage+pair, o.defaults(pair).MaxLeverage)
}

func (o *RedisOracle) read(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, err := o.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return fallback, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get %s: %w", key, err)
	}
	v := commondecimal.Parse(raw)
	if !v.IsPositive() {
		return fallback, nil
	}
	return v, nil
}
