// Package market 行情与账户快照
package market

import "github.com/shopspring/decimal"

// Level 订单簿档位
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Equal 比较两个档位
func (l Level) Equal(o Level) bool {
	return l.Price.Equal(o.Price) && l.Quantity.Equal(o.Quantity)
}

// Book 订单簿，Bids/Asks 均按优先级排列
type Book struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// MaxBid 最高买价
func (b Book) MaxBid() (decimal.Decimal, bool) { return extreme(b.Bids, true) }

// MinBid 最低买价
func (b Book) MinBid() (decimal.Decimal, bool) { return extreme(b.Bids, false) }

// MaxAsk 最高卖价
func (b Book) MaxAsk() (decimal.Decimal, bool) { return extreme(b.Asks, true) }

// MinAsk 最低卖价
func (b Book) MinAsk() (decimal.Decimal, bool) { return extreme(b.Asks, false) }

func extreme(levels []Level, max bool) (decimal.Decimal, bool) {
	if len(levels) == 0 {
		return decimal.Zero, false
	}
	out := levels[0].Price
	for _, l := range levels[1:] {
		if max && l.Price.GreaterThan(out) || !max && l.Price.LessThan(out) {
			out = l.Price
		}
	}
	return out, true
}

// Account 账户身份
type Account struct {
	ID        string `json:"id"`
	Connected bool   `json:"connected"`
}

// Balance 当前交易对下的仓位与保证金
type Balance struct {
	Base         decimal.Decimal `json:"base"`
	Quote        decimal.Decimal `json:"quote"`
	TotalMargin  decimal.Decimal `json:"totalMargin"`
	Leverage     decimal.Decimal `json:"leverage"`
	TokenBalance decimal.Decimal `json:"tokenBalance"`
}

// Equal 比较两个余额
func (b Balance) Equal(o Balance) bool {
	return b.Base.Equal(o.Base) &&
		b.Quote.Equal(o.Quote) &&
		b.TotalMargin.Equal(o.TotalMargin) &&
		b.Leverage.Equal(o.Leverage) &&
		b.TokenBalance.Equal(o.TokenBalance)
}

// Snapshot 一次派发期间读取的外部状态
type Snapshot struct {
	Account     Account         `json:"account"`
	Balance     Balance         `json:"balance"`
	FairPrice   decimal.Decimal `json:"fairPrice"`
	MaxLeverage decimal.Decimal `json:"maxLeverage"`
	Book        Book            `json:"book"`
}

var (
	// DefaultFairPrice 预言机无数据时的公允价
	DefaultFairPrice = decimal.NewFromInt(1)
	// DefaultMaxLeverage 无配置时的最大杠杆
	DefaultMaxLeverage = decimal.NewFromInt(25)
)

// PriceOrDefault 返回公允价，非正值时使用默认值
func (s Snapshot) PriceOrDefault() decimal.Decimal {
	if s.FairPrice.IsPositive() {
		return s.FairPrice
	}
	return DefaultFairPrice
}

// LeverageCapOrDefault 返回最大杠杆，非正值时使用默认值
func (s Snapshot) LeverageCapOrDefault() decimal.Decimal {
	if s.MaxLeverage.IsPositive() {
		return s.MaxLeverage
	}
	return DefaultMaxLeverage
}

// EqualLevels 比较两组档位（顺序敏感）
func EqualLevels(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneLevels 复制档位切片
func CloneLevels(levels []Level) []Level {
	if len(levels) == 0 {
		return nil
	}
	out := make([]Level, len(levels))
	copy(out, levels)
	return out
}
