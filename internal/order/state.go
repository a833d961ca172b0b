// Package order 下单状态机
package order

import (
	"fmt"
	"math"
	"strings"

	"github.com/exchange/ordercalc/internal/calc"
	"github.com/exchange/ordercalc/internal/market"
	"github.com/shopspring/decimal"
)

// Position 方向，与推导规则共用
type Position = calc.Position

const (
	Long  = calc.Long
	Short = calc.Short
)

// OrderType 订单类型
type OrderType int

const (
	Market OrderType = iota
	Limit
)

func (t OrderType) String() string {
	if t == Limit {
		return "LIMIT"
	}
	return "MARKET"
}

// AdjustType 调仓或平仓
type AdjustType int

const (
	Adjust AdjustType = iota
	Close
)

func (t AdjustType) String() string {
	if t == Close {
		return "CLOSE"
	}
	return "ADJUST"
}

// Wallet 校验使用的资金池
type Wallet int

const (
	Web3 Wallet = iota
	Margin
)

func (w Wallet) String() string {
	if w == Margin {
		return "MARGIN"
	}
	return "WEB3"
}

// ErrorKey 校验结果
type ErrorKey string

const (
	NoError             ErrorKey = "NO_ERROR"
	AccountDisconnected ErrorKey = "ACCOUNT_DISCONNECTED"
	NoOrders            ErrorKey = "NO_ORDERS"
	NoPosition          ErrorKey = "NO_POSITION"
	NoWalletBalance     ErrorKey = "NO_WALLET_BALANCE"
	NoMarginBalance     ErrorKey = "NO_MARGIN_BALANCE"
	InvalidOrder        ErrorKey = "INVALID_ORDER"
)

const (
	DefaultMarket     = "Market"
	DefaultCollateral = "USD"
)

// State 下单表单的完整状态
//
// Exposure/Price/Leverage/AmountToPay 为 NaN 时表示未设置。
// ExposureBN 始终等于 Exposure 的 decimal 表示，未设置时为 0。
type State struct {
	Market           string
	Collateral       string
	AmountToPay      float64
	Exposure         float64
	ExposureBN       decimal.Decimal
	Leverage         float64
	Position         Position
	Price            float64
	OrderType        OrderType
	AdjustType       AdjustType
	NextPosition     calc.Balance
	OppositeOrders   []market.Level
	Error            ErrorKey
	Wallet           Wallet
	Slippage         float64
	MarketTradePrice decimal.Decimal
	Advanced         bool
}

// Defaults 默认状态
func Defaults() State {
	return State{
		Market:           DefaultMarket,
		Collateral:       DefaultCollateral,
		AmountToPay:      math.NaN(),
		Exposure:         math.NaN(),
		ExposureBN:       decimal.Zero,
		Leverage:         math.NaN(),
		Position:         Long,
		Price:            math.NaN(),
		OrderType:        Market,
		AdjustType:       Adjust,
		NextPosition:     calc.Balance{Base: decimal.Zero, Quote: decimal.Zero},
		Error:            NoError,
		Wallet:           Web3,
		MarketTradePrice: decimal.Zero,
	}
}

// Clone 深拷贝
func (s State) Clone() State {
	s.OppositeOrders = market.CloneLevels(s.OppositeOrders)
	return s
}

// CanSubmit 仅在无校验错误时允许提交
func (s State) CanSubmit() bool {
	return s.Error == NoError
}

// Pair 交易对标识 MARKET/COLLATERAL
func (s State) Pair() string {
	return s.Market + "/" + s.Collateral
}

// SplitPair 拆分交易对标识
func SplitPair(pair string) (string, string, error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 || ValidateSymbol(parts[0]) != nil || ValidateSymbol(parts[1]) != nil {
		return "", "", fmt.Errorf("invalid pair %q", pair)
	}
	return parts[0], parts[1], nil
}

// ValidateSymbol 市场或保证金币种不能为空，也不能包含分隔符
func ValidateSymbol(sym string) error {
	if strings.TrimSpace(sym) == "" || strings.Contains(sym, "/") {
		return fmt.Errorf("invalid symbol %q", sym)
	}
	return nil
}

func isSet(v float64) bool {
	return !math.IsNaN(v) && v != 0
}

// ParsePosition 解析方向
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(s) {
	case "LONG":
		return Long, nil
	case "SHORT":
		return Short, nil
	}
	return Long, fmt.Errorf("unknown position %q", s)
}

// ParseOrderType 解析订单类型
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(s) {
	case "MARKET":
		return Market, nil
	case "LIMIT":
		return Limit, nil
	}
	return Market, fmt.Errorf("unknown order type %q", s)
}

// ParseAdjustType 解析调仓类型
func ParseAdjustType(s string) (AdjustType, error) {
	switch strings.ToUpper(s) {
	case "ADJUST":
		return Adjust, nil
	case "CLOSE":
		return Close, nil
	}
	return Adjust, fmt.Errorf("unknown adjust type %q", s)
}

// ParseWallet 解析资金池
func ParseWallet(s string) (Wallet, error) {
	switch strings.ToUpper(s) {
	case "WEB3":
		return Web3, nil
	case "MARGIN":
		return Margin, nil
	}
	return Web3, fmt.Errorf("unknown wallet %q", s)
}
