package order

import (
	"context"
	"math"

	"github.com/exchange/ordercalc/internal/calc"
	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/shopspring/decimal"
)

// PairSelector 交易对选择器，市场或保证金币种变化时回写
type PairSelector interface {
	SelectPair(ctx context.Context, pair string) error
}

// validationMemo 上次校验时的外部输入
type validationMemo struct {
	done        bool
	balance     market.Balance
	account     market.Account
	fairPrice   decimal.Decimal
	maxLeverage decimal.Decimal
}

func (v validationMemo) stale(snap market.Snapshot) bool {
	return !v.done ||
		v.account != snap.Account ||
		!v.balance.Equal(snap.Balance) ||
		!v.fairPrice.Equal(snap.FairPrice) ||
		!v.maxLeverage.Equal(snap.MaxLeverage)
}

// reconcile 按固定顺序执行联动重算
// prev 为本次派发前的状态，每个阶段只读取上游已稳定的字段
func (m *Machine) reconcile(ctx context.Context, prev, s State, snap market.Snapshot) State {
	s = refreshOppositeOrders(prev, s, snap)
	s = refreshMarketPrice(prev, s, snap)
	s = projectClose(prev, s, snap)
	s = m.refreshSlippage(prev, s)
	s = m.syncPair(ctx, prev, s)
	s = projectNextPosition(s, snap)
	s = m.validate(prev, s, snap)
	return s
}

// refreshOppositeOrders 方向变化或盘口变化时刷新对手盘，市价单同步最优价
func refreshOppositeOrders(prev, s State, snap market.Snapshot) State {
	side := calc.OppositeSide(snap.Book, s.Position)
	if s.Position == prev.Position && market.EqualLevels(side, s.OppositeOrders) {
		return s
	}
	s.OppositeOrders = market.CloneLevels(side)
	if s.OrderType == Market {
		s.Price = bestPriceOrNaN(snap.Book, s.Position)
	}
	return s
}

// refreshMarketPrice 方向或订单类型变化时，市价单取最优价，限价单清空价格
func refreshMarketPrice(prev, s State, snap market.Snapshot) State {
	if s.Position == prev.Position && s.OrderType == prev.OrderType {
		return s
	}
	if s.OrderType == Market {
		s.Price = bestPriceOrNaN(snap.Book, s.Position)
	} else {
		s.Price = math.NaN()
	}
	return s
}

// projectClose 切换到平仓时方向取反、敞口取全部持仓
func projectClose(prev, s State, snap market.Snapshot) State {
	if s.AdjustType != Close || prev.AdjustType == Close {
		return s
	}
	base := snap.Balance.Base
	s.Position = closingPosition(base, s.Position)
	setExposure(&s, base.Abs().InexactFloat64())
	return s
}

func (m *Machine) refreshSlippage(prev, s State) State {
	if s.ExposureBN.Equal(prev.ExposureBN) &&
		s.OrderType == prev.OrderType &&
		market.EqualLevels(s.OppositeOrders, prev.OppositeOrders) {
		return s
	}
	if s.OrderType != Market || len(s.OppositeOrders) == 0 {
		s.Slippage = 0
		s.MarketTradePrice = decimal.Zero
		return s
	}
	slippage, tradePrice := calc.Slippage(s.ExposureBN, m.scaling, s.OppositeOrders)
	s.Slippage = slippage.InexactFloat64()
	s.MarketTradePrice = tradePrice
	return s
}

// syncPair 市场或保证金币种变化时回写交易对，被拒绝则保留原交易对
func (m *Machine) syncPair(ctx context.Context, prev, s State) State {
	if s.Market == prev.Market && s.Collateral == prev.Collateral {
		return s
	}
	_, _, err := SplitPair(s.Pair())
	if err == nil && m.selector != nil {
		err = m.selector.SelectPair(ctx, s.Pair())
	}
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warnf("select pair rejected", map[string]interface{}{
			"pair": s.Pair(),
			"kept": prev.Pair(),
		})
		s.Market, s.Collateral = prev.Market, prev.Collateral
	}
	return s
}

// projectNextPosition 每次都重算，仅在结果变化时写入
func projectNextPosition(s State, snap market.Snapshot) State {
	next := nextPosition(s, snap.Balance)
	if !next.Equal(s.NextPosition) {
		s.NextPosition = next
	}
	return s
}

func nextPosition(s State, bal market.Balance) calc.Balance {
	price := s.MarketTradePrice
	if s.OrderType == Limit {
		if !isSet(s.Price) {
			price = decimal.Zero
		} else {
			price = commondecimal.FromFloat(s.Price)
		}
	}
	// 没有可用成交价时不做预估，直接沿用当前余额（不按敞口单独调整 base）
	if price.IsZero() {
		return calc.Balance{Base: bal.Base, Quote: bal.Quote}
	}
	return calc.Project(s.ExposureBN, price, s.Position, bal.Base, bal.Quote)
}

func (m *Machine) validate(prev, s State, snap market.Snapshot) State {
	changed := !s.NextPosition.Equal(prev.NextPosition) ||
		!market.EqualLevels(s.OppositeOrders, prev.OppositeOrders) ||
		s.OrderType != prev.OrderType ||
		!s.ExposureBN.Equal(prev.ExposureBN) ||
		!samePrice(s.Price, prev.Price) ||
		s.Wallet != prev.Wallet ||
		s.Advanced != prev.Advanced
	if !changed && !m.memo.stale(snap) {
		return s
	}
	m.memo = validationMemo{
		done:        true,
		balance:     snap.Balance,
		account:     snap.Account,
		fairPrice:   snap.FairPrice,
		maxLeverage: snap.MaxLeverage,
	}
	if key := Classify(s, snap); key != s.Error {
		s.Error = key
	}
	return s
}

func bestPriceOrNaN(book market.Book, pos Position) float64 {
	if best, ok := calc.BestPrice(book, pos); ok {
		return best.InexactFloat64()
	}
	return math.NaN()
}

func samePrice(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return a == b
}
