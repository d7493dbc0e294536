package model

import "github.com/google/uuid"

// Role names stored in users.role.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// User represents an application user as stored in the `users` table.
// BonusPoints is only ever changed by the loyalty ledger and is not
// written in the same statement as a ticket.
//
// Fields:
//
//	ID           – primary key identifier.
//	UserName     – unique login name.
//	FirstName    – display first name.
//	LastName     – display last name.
//	PasswordHash – bcrypt hash of the password.
//	Role         – ADMIN or USER.
//	BonusPoints  – loyalty counter.
type User struct {
	ID           uuid.UUID // users.id
	UserName     string    // users.user_name
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	BonusPoints  int       // users.bonus_points
}
