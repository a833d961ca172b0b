package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/exchange/ordercalc/internal/market"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BookReader 订单簿读取接口
type BookReader interface {
	Book(ctx context.Context, pair string) (market.Book, error)
}

// OracleReader 公允价与最大杠杆读取接口
type OracleReader interface {
	FairPrice(ctx context.Context, pair string) (decimal.Decimal, error)
	MaxLeverage(ctx context.Context, pair string) (decimal.Decimal, error)
}

// BalanceReader 仓位余额读取接口
type BalanceReader interface {
	GetBalance(ctx context.Context, account, pair string) (market.Balance, error)
}

// ErrorRecorder 记录读取失败
type ErrorRecorder interface {
	IncSnapshotError(source string)
}

// Source 并发读取全部外部状态组成一次快照
type Source struct {
	books    BookReader
	oracle   OracleReader
	balances BalanceReader
	recorder ErrorRecorder
	timeout  time.Duration
}

// NewSource 创建快照源
func NewSource(books BookReader, oracle OracleReader, balances BalanceReader, recorder ErrorRecorder, timeout time.Duration) *Source {
	return &Source{
		books:    books,
		oracle:   oracle,
		balances: balances,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Snapshot 读取账户在交易对下的快照，account 为空时视为未连接
func (s *Source) Snapshot(ctx context.Context, account, pair string) (market.Snapshot, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	snap := market.Snapshot{
		Account: market.Account{ID: account, Connected: account != ""},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		book, err := s.books.Book(gctx, pair)
		if err != nil {
			return s.fail("book", err)
		}
		snap.Book = book
		return nil
	})
	g.Go(func() error {
		price, err := s.oracle.FairPrice(gctx, pair)
		if err != nil {
			return s.fail("fair_price", err)
		}
		snap.FairPrice = price
		return nil
	})
	g.Go(func() error {
		lev, err := s.oracle.MaxLeverage(gctx, pair)
		if err != nil {
			return s.fail("max_leverage", err)
		}
		snap.MaxLeverage = lev
		return nil
	})
	if snap.Account.Connected && s.balances != nil {
		g.Go(func() error {
			bal, err := s.balances.GetBalance(gctx, account, pair)
			if err != nil {
				return s.fail("balance", err)
			}
			snap.Balance = bal
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return market.Snapshot{}, err
	}
	return snap, nil
}

func (s *Source) fail(source string, err error) error {
	if s.recorder != nil {
		s.recorder.IncSnapshotError(source)
	}
	return fmt.Errorf("%s: %w", source, err)
}
