// Package session 下单会话管理
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/exchange/ordercalc/internal/market"
	"github.com/exchange/ordercalc/internal/order"
	"github.com/exchange/ordercalc/pkg/logger"
	"github.com/exchange/ordercalc/pkg/tracing"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNotFound            = errors.New("session not found")
	ErrInvalidPair         = errors.New("invalid pair")
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
)

// SnapshotSource 读取账户在交易对下的外部状态
type SnapshotSource interface {
	Snapshot(ctx context.Context, account, pair string) (market.Snapshot, error)
}

// Notifier 状态变化通知
type Notifier interface {
	PublishState(ctx context.Context, sessionID string, state order.State) error
}

// Recorder 会话指标
type Recorder interface {
	IncDispatch(action string)
	ObserveDispatchLatency(d time.Duration)
	IncOrderError(key string)
	SetActiveSessions(count int)
}

// Config 会话配置
type Config struct {
	IdleTTL         time.Duration
	SweepSpec       string
	SlippageScaling decimal.Decimal
	MaxExposure     order.MaxExposureFunc
}

// Manager 管理全部会话，每个会话独立串行处理派发
type Manager struct {
	source   SnapshotSource
	notifier Notifier
	recorder Recorder
	logger   *logger.Logger
	cfg      Config
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry

	cron *cron.Cron
}

// NewManager 创建会话管理器，notifier 和 recorder 可为空
func NewManager(source SnapshotSource, notifier Notifier, recorder Recorder, log *logger.Logger, cfg Config) *Manager {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 1m"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		source:   source,
		notifier: notifier,
		recorder: recorder,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Start 启动空闲会话清理任务
func (m *Manager) Start() error {
	schedule, err := cron.ParseStandard(m.cfg.SweepSpec)
	if err != nil {
		return fmt.Errorf("invalid sweep spec: %w", err)
	}
	c := cron.New()
	c.Schedule(schedule, cron.FuncJob(func() {
		if n := m.Sweep(); n > 0 {
			m.logger.Infof("idle sessions evicted", map[string]interface{}{"count": n})
		}
	}))
	c.Start()
	m.cron = c
	return nil
}

// Stop 停止清理任务
func (m *Manager) Stop() {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
}

// Create 创建会话，account 为空表示未连接钱包
func (m *Manager) Create(ctx context.Context, account, pair string) (string, order.State, error) {
	marketSym, collateral, err := order.SplitPair(pair)
	if err != nil {
		return "", order.State{}, fmt.Errorf("%w: %v", ErrInvalidPair, err)
	}

	id := uuid.NewString()
	e := &entry{id: id, account: account, pair: pair, subs: make(map[int]chan order.State)}
	e.machine = m.newMachine(e)

	// 会话尚未注册，无需加锁
	snap, err := m.snapshot(ctx, e)
	if err != nil {
		return "", order.State{}, err
	}
	e.machine.Dispatch(ctx, snap, order.SetMarket{Value: marketSym})
	state := e.machine.Dispatch(ctx, snap, order.SetCollateral{Value: collateral})
	e.lastSeen = m.now()

	m.mu.Lock()
	m.sessions[id] = e
	count := len(m.sessions)
	m.mu.Unlock()
	m.setActive(count)

	m.logger.WithContext(ctx).WithSession(id, account).Infof("session created", map[string]interface{}{"pair": pair})
	return id, state, nil
}

// Get 以最新快照同步后返回状态
func (m *Manager) Get(ctx context.Context, id string) (order.State, error) {
	e, err := m.lookup(id)
	if err != nil {
		return order.State{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := m.snapshot(ctx, e)
	if err != nil {
		return order.State{}, err
	}
	e.lastSeen = m.now()
	return e.machine.Sync(ctx, snap), nil
}

// Dispatch 对会话派发动作
func (m *Manager) Dispatch(ctx context.Context, id string, a order.Action) (order.State, error) {
	ctx, span := tracing.StartSpan(ctx, "session.dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("action", a.Name()), attribute.String("session.id", id))

	start := m.now()
	e, err := m.lookup(id)
	if err != nil {
		tracing.SetError(ctx, err)
		return order.State{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := m.snapshot(ctx, e)
	if err != nil {
		tracing.SetError(ctx, err)
		return order.State{}, err
	}

	prevPair := e.pair
	before := e.machine.State()
	state := e.machine.Dispatch(ctx, snap, a)
	if e.pair != prevPair {
		tracing.AddEvent(ctx, "pair.switch", attribute.String("pair", e.pair))
		if state, err = m.switchPair(ctx, e, state); err != nil {
			// 新交易对快照不可用，整个派发回退
			e.pair = prevPair
			e.machine.Restore(before)
			tracing.SetError(ctx, err)
			return order.State{}, err
		}
	}
	e.lastSeen = m.now()

	m.publish(ctx, e, state)
	if m.recorder != nil {
		m.recorder.IncDispatch(a.Name())
		m.recorder.IncOrderError(string(state.Error))
		m.recorder.ObserveDispatchLatency(m.now().Sub(start))
	}
	m.logger.WithContext(ctx).WithSession(id, e.account).Debugf("action dispatched", map[string]interface{}{
		"action": a.Name(),
		"error":  state.Error,
	})
	return state, nil
}

// Reset 恢复默认状态并保留会话当前交易对
func (m *Manager) Reset(ctx context.Context, id string) (order.State, error) {
	e, err := m.lookup(id)
	if err != nil {
		return order.State{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := m.snapshot(ctx, e)
	if err != nil {
		return order.State{}, err
	}
	marketSym, collateral, _ := order.SplitPair(e.pair)
	e.machine.Reset()
	e.machine.Dispatch(ctx, snap, order.SetMarket{Value: marketSym})
	state := e.machine.Dispatch(ctx, snap, order.SetCollateral{Value: collateral})
	e.lastSeen = m.now()

	m.publish(ctx, e, state)
	return state, nil
}

// Delete 删除会话并关闭订阅
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	m.setActive(count)

	e.mu.Lock()
	e.closeSubscribers()
	e.mu.Unlock()
	return nil
}

// Subscribe 订阅会话状态，返回的函数用于取消订阅
func (m *Manager) Subscribe(id string) (<-chan order.State, func(), error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, ErrNotFound
	}
	key := e.nextSub
	e.nextSub++
	ch := make(chan order.State, 16)
	e.subs[key] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if c, ok := e.subs[key]; ok {
				delete(e.subs, key)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// Sweep 清理空闲超时的会话，返回清理数量
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.RLock()
	var idle []string
	for id, e := range m.sessions {
		if e.idleSince(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	evicted := 0
	for _, id := range idle {
		if err := m.Delete(id); err == nil {
			evicted++
		}
	}
	return evicted
}

// Count 会话数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) newMachine(e *entry) *order.Machine {
	return order.NewMachine(order.MachineConfig{
		Logger:          m.logger.WithField("session_id", e.id),
		Selector:        e,
		MaxExposure:     m.cfg.MaxExposure,
		SlippageScaling: m.cfg.SlippageScaling,
	})
}

// switchPair 交易对变化后重置状态，保留订单类型、资金池和高级模式
func (m *Manager) switchPair(ctx context.Context, e *entry, keep order.State) (order.State, error) {
	snap, err := m.snapshot(ctx, e)
	if err != nil {
		return order.State{}, err
	}
	marketSym, collateral, _ := order.SplitPair(e.pair)

	e.machine.Reset()
	var state order.State
	for _, a := range []order.Action{
		order.SetOrderType{Value: keep.OrderType},
		order.SetWallet{Value: keep.Wallet},
		order.SetAdvanced{Value: keep.Advanced},
		order.SetMarket{Value: marketSym},
		order.SetCollateral{Value: collateral},
	} {
		state = e.machine.Dispatch(ctx, snap, a)
	}
	return state, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *Manager) snapshot(ctx context.Context, e *entry) (market.Snapshot, error) {
	snap, err := m.source.Snapshot(ctx, e.account, e.pair)
	if err != nil {
		m.logger.WithContext(ctx).WithSession(e.id, e.account).WithError(err).Warnf("snapshot failed", map[string]interface{}{
			"pair": e.pair,
		})
		return market.Snapshot{}, fmt.Errorf("%w: %v", ErrSnapshotUnavailable, err)
	}
	return snap, nil
}

func (m *Manager) publish(ctx context.Context, e *entry, state order.State) {
	e.broadcast(state)
	if m.notifier == nil {
		return
	}
	if err := m.notifier.PublishState(ctx, e.id, state); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warnf("publish state failed", map[string]interface{}{
			"session_id": e.id,
		})
	}
}

func (m *Manager) setActive(count int) {
	if m.recorder != nil {
		m.recorder.SetActiveSessions(count)
	}
}
