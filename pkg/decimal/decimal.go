// Package decimal 精度转换工具
//
// 转换失败只记录日志并返回零值。
package decimal

import (
	"math"
	"strings"
	"sync/atomic"

	"github.com/exchange/ordercalc/pkg/logger"
	"github.com/shopspring/decimal"
)

// WeiDecimals 链上最小单位精度
const WeiDecimals = 18

var log atomic.Pointer[logger.Logger]

func init() {
	log.Store(logger.Nop())
}

// SetLogger 设置转换失败时使用的日志
func SetLogger(l *logger.Logger) {
	if l == nil {
		l = logger.Nop()
	}
	log.Store(l)
}

// Parse 解析十进制字符串，失败返回零
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Load().WithError(err).Warnf("decimal parse failed", map[string]interface{}{"value": s})
		return decimal.Zero
	}
	return d
}

// FromFloat float64 转十进制，NaN 视为未设置返回零，Inf 记录后返回零
func FromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) {
		return decimal.Zero
	}
	if math.IsInf(f, 0) {
		log.Load().Warnf("decimal from infinite float", map[string]interface{}{"value": f})
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// ToWei 按 18 位精度放大并去掉小数部分
func ToWei(d decimal.Decimal) string {
	return d.Shift(WeiDecimals).Truncate(0).String()
}

// Percent 格式化百分比数值（入参已是百分数）
func Percent(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "0.00%"
	}
	if p < 0.001 {
		return "< 0.001%"
	}
	return decimal.NewFromFloat(p).StringFixed(2) + "%"
}
