package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"artforge.app/orchestrator/core/db"
	"artforge.app/orchestrator/internal/model"
)

type ledgerStore struct {
	db db.DBTX
}

func newLedgerStore(dbtx db.DBTX) LedgerStore {
	return &ledgerStore{db: dbtx}
}

func (s *ledgerStore) Reserve(ctx context.Context, jobID, userID, amount int64) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("reserve amount must be positive, got %d", amount)
	}

	// Decrement-if-sufficient in one statement. Zero rows means the user
	// either doesn't exist or can't afford the job; both are "insufficient".
	tag, err := s.db.Exec(ctx, `
		UPDATE balances
		SET credits = credits - $2, updated_at = now()
		WHERE user_id = $1 AND credits >= $2`,
		userID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("debiting balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO credit_holds (job_id, user_id, amount, state)
		VALUES ($1, $2, $3, 'held')`,
		jobID, userID, amount,
	)
	if err != nil {
		return false, fmt.Errorf("recording credit hold: %w", err)
	}
	return true, nil
}

func (s *ledgerStore) FinalizeCharge(ctx context.Context, jobID int64) error {
	// The hold was already debited at reservation time, so converting it to
	// a charge touches no balance. The state filter makes a second call,
	// or a call racing a refund, a no-op.
	_, err := s.db.Exec(ctx, `
		UPDATE credit_holds
		SET state = 'charged', settled_at = now()
		WHERE job_id = $1 AND state = 'held'`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("finalizing charge: %w", err)
	}
	return nil
}

func (s *ledgerStore) Refund(ctx context.Context, jobID int64) error {
	// Flip the hold first; only the winner of that conditional update gets
	// to credit the balance back, so a duplicate refund cannot pay twice.
	row := s.db.QueryRow(ctx, `
		UPDATE credit_holds
		SET state = 'refunded', settled_at = now()
		WHERE job_id = $1 AND state = 'held'
		RETURNING user_id, amount`,
		jobID,
	)

	var userID, amount int64
	if err := row.Scan(&userID, &amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("releasing credit hold: %w", err)
	}

	_, err := s.db.Exec(ctx, `
		UPDATE balances
		SET credits = credits + $2, updated_at = now()
		WHERE user_id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("crediting refund: %w", err)
	}
	return nil
}

func (s *ledgerStore) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	var b model.Balance
	err := s.db.QueryRow(ctx, `
		SELECT user_id, credits, updated_at FROM balances WHERE user_id = $1`,
		userID,
	).Scan(&b.UserID, &b.Credits, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *ledgerStore) GetHold(ctx context.Context, jobID int64) (*model.CreditHold, error) {
	var h model.CreditHold
	err := s.db.QueryRow(ctx, `
		SELECT job_id, user_id, amount, state, created_at, settled_at
		FROM credit_holds WHERE job_id = $1`,
		jobID,
	).Scan(&h.JobID, &h.UserID, &h.Amount, &h.State, &h.CreatedAt, &h.SettledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}
