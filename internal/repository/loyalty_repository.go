package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// LoyaltyRepo applies bonus point credits.  Each credit is keyed by the
// ticket it rewards, so replaying a credit after a partial failure never
// double-counts.
type LoyaltyRepo struct {
	db *sql.DB
}

// NewLoyaltyRepo returns a LoyaltyRepo bound to the given database.
func NewLoyaltyRepo(db *sql.DB) *LoyaltyRepo { return &LoyaltyRepo{db: db} }

// Credit records the credit for ticketID and adds points to the user's
// balance in one transaction, returning the new balance.  When the ticket
// was already credited the balance is returned unchanged.
func (r *LoyaltyRepo) Credit(ctx context.Context, userID, ticketID uuid.UUID, points int) (total int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
			return
		}
		err = tx.Commit()
	}()

	const ins = `INSERT INTO loyalty_credits (ticket_id, user_id, points) VALUES (?, ?, ?)`
	_, err = tx.ExecContext(ctx, ins, ticketID, userID, points)
	switch {
	case err == nil:
		if points != 0 {
			_, err = tx.ExecContext(ctx, `UPDATE users SET bonus_points = bonus_points + ? WHERE id = ?`, points, userID)
			if err != nil {
				return 0, err
			}
		}
	case isDuplicateKey(err):
		// already credited
		err = nil
	default:
		return 0, err
	}

	err = tx.QueryRowContext(ctx, `SELECT bonus_points FROM users WHERE id = ?`, userID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}
