package order

import (
	"context"

	"github.com/exchange/ordercalc/internal/market"
	"github.com/exchange/ordercalc/pkg/logger"
	"github.com/shopspring/decimal"
)

// MachineConfig 状态机配置
type MachineConfig struct {
	Logger          *logger.Logger
	Selector        PairSelector
	MaxExposure     MaxExposureFunc
	SlippageScaling decimal.Decimal
}

// Machine 单个会话的下单状态机
//
// 一次派发（动作 + 全部联动重算）完成前不会处理下一个动作，调用方负责串行化。
type Machine struct {
	rules    rules
	state    State
	selector PairSelector
	scaling  decimal.Decimal
	logger   *logger.Logger
	memo     validationMemo
}

// NewMachine 创建状态机，初始为默认状态
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		rules:    rules{maxExposure: cfg.MaxExposure},
		state:    Defaults(),
		selector: cfg.Selector,
		scaling:  cfg.SlippageScaling,
		logger:   cfg.Logger,
	}
	if m.rules.maxExposure == nil {
		m.rules.maxExposure = PlaceholderMaxExposure
	}
	if !m.scaling.IsPositive() {
		m.scaling = decimal.NewFromInt(1)
	}
	if m.logger == nil {
		m.logger = logger.Nop()
	}
	return m
}

// Dispatch 应用动作并执行联动重算
func (m *Machine) Dispatch(ctx context.Context, snap market.Snapshot, a Action) State {
	prev := m.state
	next := m.rules.apply(prev, snap, a)
	m.state = m.reconcile(ctx, prev, next, snap)
	return m.State()
}

// Sync 仅根据最新快照重算，输入未变化时不修改状态
func (m *Machine) Sync(ctx context.Context, snap market.Snapshot) State {
	m.state = m.reconcile(ctx, m.state, m.state, snap)
	return m.State()
}

// Reset 恢复默认状态并清空校验记录
func (m *Machine) Reset() State {
	m.state = Defaults()
	m.memo = validationMemo{}
	return m.State()
}

// Restore 回退到之前的状态，下一次同步重新校验
func (m *Machine) Restore(s State) State {
	m.state = s.Clone()
	m.memo = validationMemo{}
	return m.State()
}

// State 当前状态副本
func (m *Machine) State() State {
	return m.state.Clone()
}
