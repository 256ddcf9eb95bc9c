// Package models - user.go defines the User model for portal accounts along
// with the sanitized view returned by the API. The stored password hash, reset
// token, and reset expiry never leave the repository layer.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role values for User.Role
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents a profiles row
type User struct {
	ID                 uuid.UUID      `db:"id"`
	Email              string         `db:"email"`
	Password           sql.NullString `db:"password"` // bcrypt hash; NULL until first credential set
	FullName           string         `db:"full_name"`
	Role               string         `db:"role"`
	MustChangePassword bool           `db:"must_change_password"`
	ResetToken         sql.NullString `db:"reset_token"`
	ResetTokenExpires  sql.NullTime   `db:"reset_token_expires"`
	IsActive           bool           `db:"is_active"`
	LastAccess         sql.NullTime   `db:"last_access"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserView is the sanitized representation returned to clients. It carries no
// credential material of any kind.
type UserView struct {
	ID                 uuid.UUID  `json:"id"`
	Email              string     `json:"email"`
	FullName           string     `json:"full_name"`
	Role               string     `json:"role"`
	MustChangePassword bool       `json:"must_change_password"`
	IsActive           bool       `json:"is_active"`
	LastAccess         *time.Time `json:"last_access,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ToView converts a User to its sanitized API representation
func (u *User) ToView() UserView {
	v := UserView{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
		IsActive:           u.IsActive,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	if u.LastAccess.Valid {
		la := u.LastAccess.Time
		v.LastAccess = &la
	}
	return v
}

// CreateUserInput is the admin payload for creating a user
type CreateUserInput struct {
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role" binding:"omitempty,oneof=admin user"`
}

// UpdateUserInput is the admin payload for updating a user. Pointer fields
// distinguish "not provided" from zero values.
type UpdateUserInput struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin user"`
	IsActive *bool   `json:"is_active"`
}
