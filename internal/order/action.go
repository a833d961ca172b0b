package order

import (
	"github.com/exchange/ordercalc/internal/calc"
	"github.com/exchange/ordercalc/internal/market"
	"github.com/shopspring/decimal"
)

// Action 状态机可处理的动作
type Action interface {
	Name() string
}

// 字段设置

type SetMarket struct{ Value string }
type SetCollateral struct{ Value string }
type SetAmountToPay struct{ Value float64 }

// SetExposure 同时写入 ExposureBN
type SetExposure struct{ Value float64 }
type SetLeverage struct{ Value float64 }
type SetPosition struct{ Value Position }
type SetPrice struct{ Value float64 }
type SetOrderType struct{ Value OrderType }

// SetAdjustType 切换到 CLOSE 时方向取持仓反方向
type SetAdjustType struct{ Value AdjustType }
type SetWallet struct{ Value Wallet }
type SetAdvanced struct{ Value bool }
type SetSlippage struct{ Value float64 }
type SetMarketTradePrice struct{ Value decimal.Decimal }

// 内部记账动作，由重算流程写入，不对外开放

type SetOppositeOrders struct{ Orders []market.Level }
type SetNextPosition struct{ Value calc.Balance }
type SetError struct{ Value ErrorKey }

// 推导动作

// SetExposureFromLeverage 由目标杠杆推导敞口和方向，Leverage 为负表示做空
type SetExposureFromLeverage struct{ Leverage float64 }

// SetLeverageFromExposure 由敞口反推杠杆和方向，Amount 为 NaN 时恢复当前杠杆
type SetLeverageFromExposure struct{ Amount float64 }

// SetMaxExposure 敞口取最大可成交量
type SetMaxExposure struct{}

// SetMaxClosure 敞口取全部持仓
type SetMaxClosure struct{}

// SetBestPrice 价格取最优对手价，无对手盘时置 NO_ORDERS
type SetBestPrice struct{}

func (SetMarket) Name() string               { return "setMarket" }
func (SetCollateral) Name() string           { return "setCollateral" }
func (SetAmountToPay) Name() string          { return "setAmountToPay" }
func (SetExposure) Name() string             { return "setExposure" }
func (SetLeverage) Name() string             { return "setLeverage" }
func (SetPosition) Name() string             { return "setPosition" }
func (SetPrice) Name() string                { return "setPrice" }
func (SetOrderType) Name() string            { return "setOrderType" }
func (SetAdjustType) Name() string           { return "setAdjustType" }
func (SetWallet) Name() string               { return "setWallet" }
func (SetAdvanced) Name() string             { return "setAdvanced" }
func (SetSlippage) Name() string             { return "setSlippage" }
func (SetMarketTradePrice) Name() string     { return "setMarketTradePrice" }
func (SetOppositeOrders) Name() string       { return "setOppositeOrders" }
func (SetNextPosition) Name() string         { return "setNextPosition" }
func (SetError) Name() string                { return "setError" }
func (SetExposureFromLeverage) Name() string { return "setExposureFromLeverage" }
func (SetLeverageFromExposure) Name() string { return "setLeverageFromExposure" }
func (SetMaxExposure) Name() string          { return "setMaxExposure" }
func (SetMaxClosure) Name() string           { return "setMaxClosure" }
func (SetBestPrice) Name() string            { return "setBestPrice" }

// IsInternal 内部记账动作不接受外部派发
func IsInternal(a Action) bool {
	switch a.(type) {
	case SetOppositeOrders, SetNextPosition, SetError:
		return true
	}
	return false
}
