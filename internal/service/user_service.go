package service

import (
	"context"
	"errors"
	"strings"

	"farmapos/internal/dto"
	"farmapos/internal/model"
	"farmapos/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// BcryptCost is the work factor for stored password hashes.
const BcryptCost = 12

type UserService interface {
	Create(ctx context.Context, actor Actor, req dto.CreateUserRequest) (*dto.UserResponse, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error)
	Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error
	Reactivate(ctx context.Context, actor Actor, id uuid.UUID) (*dto.UserResponse, error)
	ListActive(ctx context.Context) ([]dto.UserResponse, error)
	ListInactive(ctx context.Context) ([]dto.UserResponse, error)
}

type userService struct {
	repo  repository.UserRepository
	audit AuditService
}

func NewUserService(repo repository.UserRepository, audit AuditService) UserService {
	return &userService{repo: repo, audit: audit}
}

func (s *userService) Create(ctx context.Context, actor Actor, req dto.CreateUserRequest) (*dto.UserResponse, error) {
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"role": "role must be one of ADMIN, STOCKIST, ATTENDANT"}}
	}
	if !model.StrongPassword(req.Password) {
		return nil, weakPassword()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), BcryptCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         role,
		Status:       model.StatusActive,
	}

	var entry *model.AuditLog
	err = runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		taken, err := s.repo.EmailTakenTx(tx, user.Email, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return newError(ErrConflict, "email already in use")
		}
		if err := s.repo.CreateTx(tx, user); err != nil {
			return err
		}
		entry, err = s.audit.RecordTx(tx, actor, model.ActionUserCreated, user.ID.String(), map[string]interface{}{
			"name":  user.Name,
			"email": user.Email,
			"role":  string(user.Role),
		})
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, newError(ErrConflict, "email already in use")
	}
	if err != nil {
		return nil, err
	}
	s.audit.Publish(ctx, entry)
	return toUserResponse(user), nil
}

// Update applies a sparse change set. isActive is routed through the
// lifecycle transitions so self-deactivation is refused like DELETE.
func (s *userService) Update(ctx context.Context, actor Actor, id uuid.UUID, req dto.UpdateUserRequest) (*dto.UserResponse, error) {
	if req.IsEmpty() {
		return nil, &ValidationError{Fields: map[string]string{"body": "no fields to update"}}
	}
	if req.Password != nil && *req.Password != "" && !model.StrongPassword(*req.Password) {
		return nil, weakPassword()
	}

	var user *model.User
	var entry *model.AuditLog
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		u, err := s.repo.FindByIDTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(ErrNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		wasActive := u.IsActive()
		details := map[string]interface{}{}

		if req.Name != nil {
			u.Name = strings.TrimSpace(*req.Name)
			details["name"] = u.Name
		}
		if req.Email != nil {
			email := normalizeEmail(*req.Email)
			if email != u.Email {
				taken, err := s.repo.EmailTakenTx(tx, email, u.ID)
				if err != nil {
					return err
				}
				if taken {
					return newError(ErrConflict, "email already in use")
				}
			}
			u.Email = email
			details["email"] = email
		}
		if req.Role != nil {
			if err := u.ChangeRole(actor.ID, model.Role(*req.Role)); err != nil {
				return lifecycleError(err)
			}
			details["role"] = *req.Role
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), BcryptCost)
			if err != nil {
				return err
			}
			u.PasswordHash = string(hash)
			details["password"] = "changed"
		}

		action := model.ActionUserUpdated
		if req.IsActive != nil && *req.IsActive != wasActive {
			if *req.IsActive {
				err = u.Reactivate()
				action = model.ActionUserReactivated
			} else {
				err = u.Deactivate(actor.ID)
				action = model.ActionUserDeactivated
			}
			if err != nil {
				return lifecycleError(err)
			}
			details["isActive"] = *req.IsActive
		}

		if err := s.repo.SaveTx(tx, u); err != nil {
			return err
		}
		entry, err = s.audit.RecordTx(tx, actor, action, u.ID.String(), details)
		user = u
		return err
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, newError(ErrConflict, "email already in use")
	}
	if err != nil {
		return nil, err
	}
	s.audit.Publish(ctx, entry)
	return toUserResponse(user), nil
}

func (s *userService) Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error {
	_, err := s.transition(ctx, actor, id, model.ActionUserDeactivated, func(u *model.User) error {
		return u.Deactivate(actor.ID)
	})
	return err
}

func (s *userService) Reactivate(ctx context.Context, actor Actor, id uuid.UUID) (*dto.UserResponse, error) {
	return s.transition(ctx, actor, id, model.ActionUserReactivated, func(u *model.User) error {
		return u.Reactivate()
	})
}

func (s *userService) transition(ctx context.Context, actor Actor, id uuid.UUID, action string, apply func(*model.User) error) (*dto.UserResponse, error) {
	var user *model.User
	var entry *model.AuditLog
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		u, err := s.repo.FindByIDTx(tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(ErrNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		if err := apply(u); err != nil {
			return lifecycleError(err)
		}
		if err := s.repo.SaveTx(tx, u); err != nil {
			return err
		}
		entry, err = s.audit.RecordTx(tx, actor, action, u.ID.String(), map[string]interface{}{
			"email":  u.Email,
			"status": string(u.Status),
		})
		user = u
		return err
	})
	if err != nil {
		return nil, err
	}
	s.audit.Publish(ctx, entry)
	return toUserResponse(user), nil
}

func (s *userService) ListActive(ctx context.Context) ([]dto.UserResponse, error) {
	return s.list(ctx, model.StatusActive)
}

func (s *userService) ListInactive(ctx context.Context) ([]dto.UserResponse, error) {
	return s.list(ctx, model.StatusInactive)
}

func (s *userService) list(ctx context.Context, status model.UserStatus) ([]dto.UserResponse, error) {
	users, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	resp := make([]dto.UserResponse, len(users))
	for i := range users {
		resp[i] = *toUserResponse(&users[i])
	}
	return resp, nil
}

// lifecycleError maps entity transition errors onto the service taxonomy.
func lifecycleError(err error) error {
	switch {
	case errors.Is(err, model.ErrSelfDeactivation), errors.Is(err, model.ErrSelfRoleChange):
		return &Error{Kind: ErrForbidden, Msg: err.Error()}
	case errors.Is(err, model.ErrInvalidRole):
		return &ValidationError{Fields: map[string]string{"role": "role must be one of ADMIN, STOCKIST, ATTENDANT"}}
	case errors.Is(err, model.ErrAlreadyActive), errors.Is(err, model.ErrAlreadyInactive):
		return &Error{Kind: ErrInvalidState, Msg: err.Error()}
	default:
		return err
	}
}

func weakPassword() error {
	return &ValidationError{Fields: map[string]string{"password": model.ErrWeakPassword.Error()}}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserResponse(u *model.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    string(u.Status),
		IsActive:  u.IsActive(),
		CreatedAt: u.CreatedAt,
	}
}
