package order

import (
	"math"

	"github.com/exchange/ordercalc/internal/calc"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
)

// View 状态的 JSON 表示，数值均为十进制字符串，未设置时为 null
type View struct {
	Market           string      `json:"market"`
	Collateral       string      `json:"collateral"`
	AmountToPay      *string     `json:"amountToPay"`
	Exposure         *string     `json:"exposure"`
	ExposureWei      string      `json:"exposureWei"`
	Leverage         *string     `json:"leverage"`
	Position         string      `json:"position"`
	Price            *string     `json:"price"`
	OrderType        string      `json:"orderType"`
	AdjustType       string      `json:"adjustType"`
	NextPosition     NextView    `json:"nextPosition"`
	OppositeOrders   []LevelView `json:"oppositeOrders"`
	Error            ErrorKey    `json:"error"`
	Wallet           string      `json:"wallet"`
	Slippage         float64     `json:"slippage"`
	SlippagePercent  string      `json:"slippagePercent"`
	MarketTradePrice string      `json:"marketTradePrice"`
	Advanced         bool        `json:"advanced"`
	CanSubmit        bool        `json:"canSubmit"`
}

// NextView 成交后仓位
type NextView struct {
	Base         string `json:"base"`
	Quote        string `json:"quote"`
	PositionText string `json:"positionText"`
}

// LevelView 对手盘档位
type LevelView struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// NewView 生成状态视图
func NewView(s State) View {
	levels := make([]LevelView, 0, len(s.OppositeOrders))
	for _, l := range s.OppositeOrders {
		levels = append(levels, LevelView{Price: l.Price.String(), Quantity: l.Quantity.String()})
	}
	return View{
		Market:      s.Market,
		Collateral:  s.Collateral,
		AmountToPay: optional(s.AmountToPay),
		Exposure:    optional(s.Exposure),
		ExposureWei: commondecimal.ToWei(s.ExposureBN),
		Leverage:    optional(s.Leverage),
		Position:    s.Position.String(),
		Price:       optional(s.Price),
		OrderType:   s.OrderType.String(),
		AdjustType:  s.AdjustType.String(),
		NextPosition: NextView{
			Base:         s.NextPosition.Base.String(),
			Quote:        s.NextPosition.Quote.String(),
			PositionText: calc.PositionText(s.NextPosition.Base),
		},
		OppositeOrders:   levels,
		Error:            s.Error,
		Wallet:           s.Wallet.String(),
		Slippage:         s.Slippage,
		SlippagePercent:  commondecimal.Percent(s.Slippage),
		MarketTradePrice: s.MarketTradePrice.String(),
		Advanced:         s.Advanced,
		CanSubmit:        s.CanSubmit(),
	}
}

func optional(v float64) *string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	out := commondecimal.FromFloat(v).String()
	return &out
}
