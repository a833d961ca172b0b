package order

import (
	"github.com/exchange/ordercalc/internal/calc"
	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/shopspring/decimal"
)

// Classify 按优先级返回第一个命中的校验错误
func Classify(s State, snap market.Snapshot) ErrorKey {
	bal := snap.Balance
	basic := !s.Advanced

	switch {
	case !snap.Account.Connected:
		return AccountDisconnected
	case s.OrderType == Market && basic && isSet(s.Exposure) && len(s.OppositeOrders) == 0:
		return NoOrders
	case s.OrderType == Market && basic && bal.Base.IsZero():
		// 市价单需要已有仓位
		return NoPosition
	case basic && walletBalance(s.Wallet, bal).IsZero():
		return NoWalletBalance
	case bal.Quote.IsZero() && isSet(s.Exposure) && isSet(s.Price):
		return NoMarginBalance
	}

	price := snap.PriceOrDefault()
	if s.OrderType == Limit && isSet(s.Price) {
		price = commondecimal.FromFloat(s.Price)
	}
	next := s.NextPosition
	total := calc.TotalMargin(next.Quote, next.Base, price)
	minimum := calc.MinimumMargin(next.Quote, next.Base, price, snap.LeverageCapOrDefault())
	if total.LessThan(minimum) {
		return InvalidOrder
	}
	return NoError
}

func walletBalance(w Wallet, bal market.Balance) decimal.Decimal {
	if w == Margin {
		return bal.Quote
	}
	return bal.TokenBalance
}
