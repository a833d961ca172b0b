// Package calc 下单推导规则：仓位投影、保证金、杠杆与敞口换算、滑点
//
// 所有函数均为纯函数，金额使用 decimal 计算。
package calc

import (
	"math"

	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/shopspring/decimal"
)

// Position 方向
type Position int

const (
	Long Position = iota
	Short
)

func (p Position) String() string {
	if p == Short {
		return "SHORT"
	}
	return "LONG"
}

// Inverse 反方向
func (p Position) Inverse() Position {
	if p == Short {
		return Long
	}
	return Short
}

// Balance 投影后的仓位
type Balance struct {
	Base  decimal.Decimal `json:"base"`
	Quote decimal.Decimal `json:"quote"`
}

// Equal 数值比较
func (b Balance) Equal(o Balance) bool {
	return b.Base.Equal(o.Base) && b.Quote.Equal(o.Quote)
}

var hundred = decimal.NewFromInt(100)

// Project 计算成交后的仓位
// SHORT: base 减少 added，quote 增加 added*price；LONG 反之
func Project(added, price decimal.Decimal, pos Position, base, quote decimal.Decimal) Balance {
	cost := added.Mul(price)
	if pos == Short {
		return Balance{Base: base.Sub(added), Quote: quote.Add(cost)}
	}
	return Balance{Base: base.Add(added), Quote: quote.Sub(cost)}
}

// TotalMargin 总保证金 = quote + base*price
func TotalMargin(quote, base, price decimal.Decimal) decimal.Decimal {
	return quote.Add(base.Mul(price))
}

// MinimumMargin 最低保证金 = |base|*price / maxLeverage
// maxLeverage 非正时视为不加杠杆
func MinimumMargin(_ decimal.Decimal, base, price, maxLeverage decimal.Decimal) decimal.Decimal {
	notional := base.Abs().Mul(price)
	if notional.IsZero() || !maxLeverage.IsPositive() {
		return notional
	}
	return notional.Div(maxLeverage)
}

// ExposureFromLeverage 由目标杠杆（带符号，负数为空）推导下单敞口和方向
//
// 持有空仓且目标杠杆大于当前空头杠杆时为减仓，方向为 LONG；持有多仓对称处理。
// 无仓位时由目标杠杆的符号决定方向，0 时保持 fallback。
// 公允价非正时无法推导敞口，ok 为 false，只返回方向。
func ExposureFromLeverage(target decimal.Decimal, cur market.Balance, fairPrice decimal.Decimal, fallback Position) (exposure decimal.Decimal, pos Position, ok bool) {
	base := cur.Base
	deleverage := false
	switch {
	case base.IsNegative():
		if target.GreaterThan(cur.Leverage.Neg()) {
			pos, deleverage = Long, true
		} else {
			pos = Short
		}
	case base.IsPositive():
		if target.LessThan(cur.Leverage) {
			pos, deleverage = Short, true
		} else {
			pos = Long
		}
	default:
		pos = signPosition(target, fallback)
	}

	if !fairPrice.IsPositive() {
		return decimal.Zero, pos, false
	}

	notional := cur.TotalMargin.Mul(target.Abs())
	targetExposure := notional.Div(fairPrice)
	exposure = targetExposure.Sub(base.Abs()).Abs()

	// 穿越零点：先平掉原仓位再开反向仓位
	crossing := base.IsPositive() && target.IsNegative() || base.IsNegative() && target.IsPositive()
	if deleverage && crossing {
		exposure = targetExposure.Add(base.Abs())
	}
	return exposure, pos, true
}

// LeverageFromExposure 由下单敞口反推杠杆和方向
// amount 为 NaN 时返回带符号的当前杠杆
func LeverageFromExposure(amount float64, cur market.Balance, fairPrice decimal.Decimal, fallback Position) (decimal.Decimal, Position) {
	base := cur.Base
	if math.IsNaN(amount) {
		if base.IsNegative() {
			return cur.Leverage.Neg(), fallback
		}
		return cur.Leverage, fallback
	}

	targetLeverage := decimal.Zero
	if !cur.TotalMargin.IsZero() {
		targetLeverage = commondecimal.FromFloat(amount).Mul(fairPrice).Div(cur.TotalMargin)
	}

	switch {
	case base.IsNegative():
		pos := Short
		if targetLeverage.GreaterThan(cur.Leverage) {
			pos = Long
		}
		return targetLeverage.Sub(cur.Leverage), pos
	case base.IsPositive():
		pos := Long
		if targetLeverage.LessThan(cur.Leverage) {
			pos = Short
		}
		return cur.Leverage.Sub(targetLeverage), pos
	default:
		if fallback == Short {
			return targetLeverage.Neg(), fallback
		}
		return targetLeverage, fallback
	}
}

// Slippage 按优先级逐档吃单，返回滑点百分比和成交均价
// 空盘口或成交量为 0 时返回 (0, 0)
func Slippage(exposure, scaling decimal.Decimal, levels []market.Level) (slippage, tradePrice decimal.Decimal) {
	remaining := exposure.Mul(scaling)
	if len(levels) == 0 || !remaining.IsPositive() {
		return decimal.Zero, decimal.Zero
	}

	filled := decimal.Zero
	cost := decimal.Zero
	for _, l := range levels {
		if !remaining.IsPositive() {
			break
		}
		if !l.Quantity.IsPositive() {
			continue
		}
		fill := decimal.Min(remaining, l.Quantity)
		cost = cost.Add(fill.Mul(l.Price))
		filled = filled.Add(fill)
		remaining = remaining.Sub(fill)
	}
	if filled.IsZero() {
		return decimal.Zero, decimal.Zero
	}

	tradePrice = cost.Div(filled)
	best := levels[0].Price
	if best.IsZero() {
		return decimal.Zero, tradePrice
	}
	slippage = tradePrice.Sub(best).Abs().Div(best).Mul(hundred)
	return slippage, tradePrice
}

// OppositeSide 对手盘：LONG 吃卖盘，SHORT 吃买盘
func OppositeSide(book market.Book, pos Position) []market.Level {
	if pos == Short {
		return book.Bids
	}
	return book.Asks
}

// BestPrice 最优对手价：LONG 取最低卖价，SHORT 取最高买价
func BestPrice(book market.Book, pos Position) (decimal.Decimal, bool) {
	if pos == Short {
		return book.MaxBid()
	}
	return book.MinAsk()
}

// PositionText 仓位描述
func PositionText(base decimal.Decimal) string {
	switch {
	case base.IsZero():
		return "NONE"
	case base.IsNegative():
		return "SHORT"
	default:
		return "LONG"
	}
}

func signPosition(v decimal.Decimal, fallback Position) Position {
	switch {
	case v.IsNegative():
		return Short
	case v.IsPositive():
		return Long
	default:
		return fallback
	}
}
