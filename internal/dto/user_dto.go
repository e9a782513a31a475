package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type CreateUserRequest struct {
	Name     string `json:"name"     validate:"required,min=2,max=50"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role"     validate:"required,oneof=ADMIN STOCKIST ATTENDANT"`
}

// UpdateUserRequest is sparse: nil fields are left untouched. An empty
// password is treated as "not supplied".
type UpdateUserRequest struct {
	Name     *string `json:"name"     validate:"omitempty,min=2,max=50"`
	Email    *string `json:"email"    validate:"omitempty,email,max=255"`
	Role     *string `json:"role"     validate:"omitempty,oneof=ADMIN STOCKIST ATTENDANT"`
	Password *string `json:"password" validate:"omitempty,password"`
	IsActive *bool   `json:"isActive"`
}

// IsEmpty reports whether no field was supplied.
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Name == nil && r.Email == nil && r.Role == nil &&
		(r.Password == nil || *r.Password == "") && r.IsActive == nil
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	TokenType    string       `json:"tokenType"`
	ExpiresIn    int          `json:"expiresIn"` // seconds
	User         UserResponse `json:"user"`
}
