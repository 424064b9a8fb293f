package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"evm-sniper-bot/internal/domain"
	"evm-sniper-bot/internal/storage"
)

// TradeJournal implements storage.TradeJournal using PostgreSQL. It keeps
// a durable record of closed positions across restarts; the in-memory
// position store remains authoritative for the running process.
type TradeJournal struct {
	pool *Pool
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(pool *Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Record appends a closed position to the journal. Returns
// ErrDuplicateKey if the position ID was already recorded and
// ErrInvalidInput if the position is not closed.
func (j *TradeJournal) Record(ctx context.Context, p *domain.Position) error {
	if p == nil || p.ID == "" || !p.Status.IsTerminal() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO closed_positions (
			position_id, strategy, token_address, token_symbol,
			entry_price, quantity, invested_usd, target_price, stop_price,
			status, exit_reason, exit_price, pnl_usd,
			opened_at, closed_at, dry_run, entry_tx_hash, exit_tx_hash
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18
		)
	`

	var reason *string
	if p.ExitReason != nil {
		r := string(*p.ExitReason)
		reason = &r
	}

	_, err := j.pool.Exec(ctx, query,
		p.ID, string(p.Strategy), p.TokenAddress, p.TokenSymbol,
		p.EntryPrice, p.Quantity, p.InvestedUSD, p.TargetPrice, p.StopPrice,
		p.Status.String(), reason, p.ExitPrice, p.PnLUSD,
		p.OpenedAt, p.ClosedAt, p.DryRun, p.EntryTxHash, p.ExitTxHash,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("record closed position: %w", err)
	}
	return nil
}

// Recent retrieves the most recently closed positions, newest first.
func (j *TradeJournal) Recent(ctx context.Context, limit int) ([]*domain.Position, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT
			position_id, strategy, token_address, token_symbol,
			entry_price, quantity, invested_usd, target_price, stop_price,
			status, exit_reason, exit_price, pnl_usd,
			opened_at, closed_at, dry_run, entry_tx_hash, exit_tx_hash
		FROM closed_positions
		ORDER BY closed_at DESC
		LIMIT $1
	`

	rows, err := j.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query closed positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate closed positions: %w", err)
	}
	return result, nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p        domain.Position
		strategy string
		status   string
		reason   *string
	)
	err := row.Scan(
		&p.ID, &strategy, &p.TokenAddress, &p.TokenSymbol,
		&p.EntryPrice, &p.Quantity, &p.InvestedUSD, &p.TargetPrice, &p.StopPrice,
		&status, &reason, &p.ExitPrice, &p.PnLUSD,
		&p.OpenedAt, &p.ClosedAt, &p.DryRun, &p.EntryTxHash, &p.ExitTxHash,
	)
	if err != nil {
		return nil, fmt.Errorf("scan closed position: %w", err)
	}
	p.Strategy = domain.StrategyName(strategy)
	p.Status = domain.PositionStatus(status)
	if reason != nil {
		r := domain.ExitReason(*reason)
		p.ExitReason = &r
	}
	return &p, nil
}
