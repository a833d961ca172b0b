package session

import (
	"context"
	"sync"
	"time"

	"github.com/exchange/ordercalc/internal/order"
)

// entry 单个会话，mu 保护全部字段
type entry struct {
	id      string
	account string

	mu       sync.Mutex
	machine  *order.Machine
	pair     string
	lastSeen time.Time
	subs     map[int]chan order.State
	nextSub  int
	closed   bool
}

// SelectPair 在派发过程中被状态机调用，此时 mu 已由派发方持有
func (e *entry) SelectPair(_ context.Context, pair string) error {
	if _, _, err := order.SplitPair(pair); err != nil {
		return err
	}
	e.pair = pair
	return nil
}

func (e *entry) idleSince(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeen.Before(cutoff)
}

// broadcast 非阻塞推送，订阅方处理不及时则丢弃
func (e *entry) broadcast(state order.State) {
	for _, ch := range e.subs {
		select {
		case ch <- state.Clone():
		default:
		}
	}
}

func (e *entry) closeSubscribers() {
	e.closed = true
	for key, ch := range e.subs {
		delete(e.subs, key)
		close(ch)
	}
}
