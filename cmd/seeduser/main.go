// cmd/seeduser/main.go creates or refreshes the bootstrap administrator.
// Usage: go run ./cmd/seeduser -email admin@farmapos.local -password 'S3cret!pass'
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"farmapos/internal/config"
	"farmapos/internal/infra"
	"farmapos/internal/model"
	"farmapos/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	name := flag.String("name", envOr("SEED_ADMIN_NAME", "Administrator"), "display name")
	email := flag.String("email", envOr("SEED_ADMIN_EMAIL", "admin@farmapos.local"), "login email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "login password")
	flag.Parse()

	if *password == "" {
		log.Fatal().Msg("a password is required (-password or SEED_ADMIN_PASSWORD)")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBMigrations)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), service.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt error")
	}

	admin := model.User{
		Name:         strings.TrimSpace(*name),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Status:       model.StatusActive,
	}
	err = db.WithContext(context.Background()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "status", "updated_at"}),
	}).Create(&admin).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert failed")
	}
	log.Info().Str("email", admin.Email).Msg("administrator created or updated")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
