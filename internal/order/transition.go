package order

import (
	"fmt"
	"math"

	"github.com/exchange/ordercalc/internal/calc"
	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/shopspring/decimal"
)

// MaxExposureFunc 计算最大可下单敞口
type MaxExposureFunc func(s State, snap market.Snapshot) decimal.Decimal

// PlaceholderMaxExposure 固定返回 1
// TODO: 接入 AMM 流动性后按对手盘深度计算最大可成交量
func PlaceholderMaxExposure(State, market.Snapshot) decimal.Decimal {
	return decimal.NewFromInt(1)
}

type rules struct {
	maxExposure MaxExposureFunc
}

var defaultRules = rules{maxExposure: PlaceholderMaxExposure}

// Transition 对状态应用单个动作，不执行联动重算
// 未知动作属于编程错误，直接 panic
func Transition(s State, snap market.Snapshot, a Action) State {
	return defaultRules.apply(s, snap, a)
}

func (r rules) apply(s State, snap market.Snapshot, a Action) State {
	s = s.Clone()
	switch a := a.(type) {
	case SetMarket:
		s.Market = a.Value
	case SetCollateral:
		s.Collateral = a.Value
	case SetAmountToPay:
		s.AmountToPay = a.Value
	case SetExposure:
		setExposure(&s, a.Value)
	case SetLeverage:
		s.Leverage = a.Value
	case SetPosition:
		s.Position = a.Value
	case SetPrice:
		s.Price = a.Value
	case SetOrderType:
		s.OrderType = a.Value
	case SetAdjustType:
		s.AdjustType = a.Value
		if a.Value == Close {
			s.Position = closingPosition(snap.Balance.Base, s.Position)
		}
	case SetWallet:
		s.Wallet = a.Value
	case SetAdvanced:
		s.Advanced = a.Value
	case SetSlippage:
		s.Slippage = a.Value
	case SetMarketTradePrice:
		s.MarketTradePrice = a.Value
	case SetOppositeOrders:
		s.OppositeOrders = market.CloneLevels(a.Orders)
	case SetNextPosition:
		s.NextPosition = a.Value
	case SetError:
		s.Error = a.Value
	case SetExposureFromLeverage:
		target := commondecimal.FromFloat(a.Leverage)
		exposure, pos, ok := calc.ExposureFromLeverage(target, snap.Balance, snap.PriceOrDefault(), s.Position)
		s.Position = pos
		s.Leverage = a.Leverage
		if ok {
			setExposure(&s, exposure.InexactFloat64())
		}
	case SetLeverageFromExposure:
		lev, pos := calc.LeverageFromExposure(a.Amount, snap.Balance, snap.PriceOrDefault(), s.Position)
		s.Leverage = lev.InexactFloat64()
		s.Position = pos
		setExposure(&s, a.Amount)
	case SetMaxExposure:
		max := r.maxExposure
		if max == nil {
			max = PlaceholderMaxExposure
		}
		setExposure(&s, max(s, snap).InexactFloat64())
	case SetMaxClosure:
		setExposure(&s, snap.Balance.Base.Abs().InexactFloat64())
	case SetBestPrice:
		if best, ok := calc.BestPrice(snap.Book, s.Position); ok {
			s.Price = best.InexactFloat64()
		} else {
			s.Error = NoOrders
		}
	default:
		panic(fmt.Sprintf("order: unexpected action %T", a))
	}
	return s
}

func setExposure(s *State, v float64) {
	s.Exposure = v
	if math.IsNaN(v) {
		s.ExposureBN = decimal.Zero
		return
	}
	s.ExposureBN = commondecimal.FromFloat(v)
}

// closingPosition 平仓方向：空仓转 LONG，多仓转 SHORT，无仓位不变
func closingPosition(base decimal.Decimal, current Position) Position {
	switch {
	case base.IsNegative():
		return Long
	case base.IsPositive():
		return Short
	default:
		return current
	}
}
