package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/cinema-projection-booking/internal/model"
)

// ErrUserNotFound is returned when no user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserRepo reads users.  Bonus points are changed only through LoyaltyRepo.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, user_name, first_name, last_name, password_hash, role, bonus_points`

// GetByUserName fetches a user by trimmed user name.
func (r *UserRepo) GetByUserName(ctx context.Context, userName string) (*model.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE user_name = ? LIMIT 1`,
		strings.TrimSpace(userName))
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.UserName, &u.FirstName, &u.LastName, &u.PasswordHash, &u.Role, &u.BonusPoints,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
