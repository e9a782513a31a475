package model

import (
	"errors"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is one of the three staff roles.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleStockist  Role = "STOCKIST"
	RoleAttendant Role = "ATTENDANT"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleStockist, RoleAttendant}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// UserStatus is the account lifecycle state. Accounts are never removed:
// "deleting" a user moves it to StatusInactive.
type UserStatus string

const (
	StatusActive   UserStatus = "ACTIVE"
	StatusInactive UserStatus = "INACTIVE"
)

var (
	ErrSelfDeactivation = errors.New("you cannot deactivate your own account")
	ErrSelfRoleChange   = errors.New("you cannot change your own role")
	ErrAlreadyInactive  = errors.New("user is already inactive")
	ErrAlreadyActive    = errors.New("user is already active")
	ErrInvalidRole      = errors.New("invalid role")
	ErrWeakPassword     = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and a special character")
	ErrImmutable        = errors.New("record is immutable")
)

// User is a staff account.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name         string     `gorm:"size:50;not null"`
	Email        string     `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string     `gorm:"not null"`
	Role         Role       `gorm:"type:varchar(20);not null"`
	Status       UserStatus `gorm:"type:varchar(10);not null;default:'ACTIVE';index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	return nil
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool { return u.Status == StatusActive }

// Deactivate moves the account to StatusInactive on behalf of actorID.
func (u *User) Deactivate(actorID uuid.UUID) error {
	if u.ID == actorID {
		return ErrSelfDeactivation
	}
	if u.Status == StatusInactive {
		return ErrAlreadyInactive
	}
	u.Status = StatusInactive
	return nil
}

// Reactivate moves the account back to StatusActive.
func (u *User) Reactivate() error {
	if u.Status == StatusActive {
		return ErrAlreadyActive
	}
	u.Status = StatusActive
	return nil
}

// ChangeRole assigns role on behalf of actorID. Re-assigning the current role
// is a no-op, even for the actor's own account.
func (u *User) ChangeRole(actorID uuid.UUID, role Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}
	if role == u.Role {
		return nil
	}
	if u.ID == actorID {
		return ErrSelfRoleChange
	}
	u.Role = role
	return nil
}

// StrongPassword enforces the account password rule: at least 8 characters
// with an uppercase letter, a lowercase letter, a digit and a symbol.
func StrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return upper && lower && digit && special
}
