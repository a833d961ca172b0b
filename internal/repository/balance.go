// Package repository 数据访问层
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/exchange/ordercalc/internal/market"
	commondecimal "github.com/exchange/ordercalc/pkg/decimal"
	"github.com/shopspring/decimal"
)

// ErrAccountRequired 查询余额时账户为空
var ErrAccountRequired = errors.New("account required")

// BalanceRepository 仓位余额仓储
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository 创建仓储
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetBalance 获取账户在交易对下的仓位与保证金
// 无记录时返回零余额
func (r *BalanceRepository) GetBalance(ctx context.Context, account, pair string) (market.Balance, error) {
	if account == "" {
		return market.Balance{}, ErrAccountRequired
	}

	query := `
		SELECT base::text, quote::text, total_margin::text, leverage::text, token_balance::text
		FROM ordercalc.account_positions
		WHERE account = $1 AND pair = $2
	`
	var base, quote, totalMargin, leverage, tokenBalance string
	err := r.db.QueryRowContext(ctx, query, account, pair).Scan(
		&base, &quote, &totalMargin, &leverage, &tokenBalance,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// 返回零余额
		return market.Balance{
			Base:         decimal.Zero,
			Quote:        decimal.Zero,
			TotalMargin:  decimal.Zero,
			Leverage:     decimal.Zero,
			TokenBalance: decimal.Zero,
		}, nil
	}
	if err != nil {
		return market.Balance{}, fmt.Errorf("query balance: %w", err)
	}

	return market.Balance{
		Base:         commondecimal.Parse(base),
		Quote:        commondecimal.Parse(quote),
		TotalMargin:  commondecimal.Parse(totalMargin),
		Leverage:     commondecimal.Parse(leverage),
		TokenBalance: commondecimal.Parse(tokenBalance),
	}, nil
}
