package repository

import (
	"context"
	"strings"

	"farmapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListByStatus(ctx context.Context, status model.UserStatus) ([]model.User, error)

	CreateTx(tx *gorm.DB, u *model.User) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.User, error)
	EmailTakenTx(tx *gorm.DB, email string, exclude uuid.UUID) (bool, error)
	SaveTx(tx *gorm.DB, u *model.User) error

	DB() *gorm.DB
}

type userRepo struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepo{db: db} }

func (r *userRepo) DB() *gorm.DB { return r.db }

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	return &u, err
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *userRepo) ListByStatus(ctx context.Context, status model.UserStatus) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("name ASC").Find(&users).Error
	return users, err
}

func (r *userRepo) CreateTx(tx *gorm.DB, u *model.User) error {
	return tx.Create(u).Error
}

func (r *userRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.User, error) {
	var u model.User
	err := tx.Where("id = ?", id).First(&u).Error
	return &u, err
}

func (r *userRepo) EmailTakenTx(tx *gorm.DB, email string, exclude uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.User{}).
		Where("LOWER(email) = ? AND id <> ?", strings.ToLower(email), exclude).
		Count(&n).Error
	return n > 0, err
}

func (r *userRepo) SaveTx(tx *gorm.DB, u *model.User) error {
	return tx.Save(u).Error
}
