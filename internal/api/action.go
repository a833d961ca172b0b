package api

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/exchange/ordercalc/internal/order"
	apperrors "github.com/exchange/ordercalc/pkg/errors"
	"github.com/shopspring/decimal"
)

// ActionRequest 动作请求，value 的类型由 type 决定
type ActionRequest struct {
	Type  string          `json:"type" binding:"required"`
	Value json.RawMessage `json:"value"`
}

type actionDecoder func(raw json.RawMessage) (order.Action, error)

var actionDecoders = map[string]actionDecoder{
	"setMarket":      symbolAction(func(v string) order.Action { return order.SetMarket{Value: v} }),
	"setCollateral":  symbolAction(func(v string) order.Action { return order.SetCollateral{Value: v} }),
	"setAmountToPay": numberAction(func(v float64) order.Action { return order.SetAmountToPay{Value: v} }),
	"setExposure":    numberAction(func(v float64) order.Action { return order.SetExposure{Value: v} }),
	"setLeverage":    numberAction(func(v float64) order.Action { return order.SetLeverage{Value: v} }),
	"setPrice":       numberAction(func(v float64) order.Action { return order.SetPrice{Value: v} }),
	"setSlippage":    numberAction(func(v float64) order.Action { return order.SetSlippage{Value: v} }),
	"setExposureFromLeverage": numberAction(func(v float64) order.Action {
		return order.SetExposureFromLeverage{Leverage: v}
	}),
	"setLeverageFromExposure": numberAction(func(v float64) order.Action {
		return order.SetLeverageFromExposure{Amount: v}
	}),
	"setPosition": enumAction(func(v string) (order.Action, error) {
		p, err := order.ParsePosition(v)
		return order.SetPosition{Value: p}, err
	}),
	"setOrderType": enumAction(func(v string) (order.Action, error) {
		t, err := order.ParseOrderType(v)
		return order.SetOrderType{Value: t}, err
	}),
	"setAdjustType": enumAction(func(v string) (order.Action, error) {
		t, err := order.ParseAdjustType(v)
		return order.SetAdjustType{Value: t}, err
	}),
	"setWallet": enumAction(func(v string) (order.Action, error) {
		w, err := order.ParseWallet(v)
		return order.SetWallet{Value: w}, err
	}),
	"setAdvanced":         decodeAdvanced,
	"setMarketTradePrice": decodeMarketTradePrice,
	"setMaxExposure":      fixedAction(order.SetMaxExposure{}),
	"setMaxClosure":       fixedAction(order.SetMaxClosure{}),
	"setBestPrice":        fixedAction(order.SetBestPrice{}),

	// 仅由联动重算写入，解码后统一拒绝
	"setOppositeOrders": fixedAction(order.SetOppositeOrders{}),
	"setNextPosition":   fixedAction(order.SetNextPosition{}),
	"setError":          fixedAction(order.SetError{}),
}

// DecodeAction 将请求转换为状态机动作
func DecodeAction(req ActionRequest) (order.Action, *apperrors.Error) {
	decode, ok := actionDecoders[req.Type]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeInvalidAction, "unknown action %q", req.Type)
	}
	a, err := decode(req.Value)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidValue, "invalid value for %s: %v", req.Type, err)
	}
	if order.IsInternal(a) {
		return nil, apperrors.Newf(apperrors.CodeActionInternal, "action %s is computed internally", req.Type)
	}
	return a, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// numberAction null 或缺省表示清空
func numberAction(build func(float64) order.Action) actionDecoder {
	return func(raw json.RawMessage) (order.Action, error) {
		if isNull(raw) {
			return build(math.NaN()), nil
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return build(v), nil
	}
}

// symbolAction 市场和保证金币种必须能组成合法交易对
func symbolAction(build func(string) order.Action) actionDecoder {
	return func(raw json.RawMessage) (order.Action, error) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		if err := order.ValidateSymbol(v); err != nil {
			return nil, err
		}
		return build(v), nil
	}
}

func enumAction(parse func(string) (order.Action, error)) actionDecoder {
	return func(raw json.RawMessage) (order.Action, error) {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return parse(v)
	}
}

func fixedAction(a order.Action) actionDecoder {
	return func(json.RawMessage) (order.Action, error) {
		return a, nil
	}
}

func decodeAdvanced(raw json.RawMessage) (order.Action, error) {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return order.SetAdvanced{Value: v}, nil
}

func decodeMarketTradePrice(raw json.RawMessage) (order.Action, error) {
	if isNull(raw) {
		return order.SetMarketTradePrice{Value: decimal.Zero}, nil
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return order.SetMarketTradePrice{Value: v}, nil
}
