package service

import (
	"context"
	"strings"
	"time"

	"farmapos/internal/infra"
	"farmapos/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role model.Role
}

// runTx executes fn inside a GORM transaction.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// publish sends e to the event stream. Failures are logged, never returned:
// the state change it describes is already committed.
func publish(ctx context.Context, p infra.EventPublisher, e infra.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn().Err(err).Str("event", e.Type).Str("key", e.Key).Msg("event publish failed")
	}
}

// parseDateRange parses optional from/to bounds given as RFC 3339 or
// YYYY-MM-DD. A date-only "to" covers the whole day.
func parseDateRange(from, to string) (*time.Time, *time.Time, error) {
	fe := fieldErrors{}
	var f, t *time.Time
	if s := strings.TrimSpace(from); s != "" {
		v, err := parseDate(s, false)
		if err != nil {
			fe.add("from", "from must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		} else {
			f = &v
		}
	}
	if s := strings.TrimSpace(to); s != "" {
		v, err := parseDate(s, true)
		if err != nil {
			fe.add("to", "to must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		} else {
			t = &v
		}
	}
	if f != nil && t != nil && t.Before(*f) {
		fe.add("to", "to must not be before from")
	}
	return f, t, fe.err()
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if v, err := time.Parse(time.RFC3339, s); err == nil {
		return v.UTC(), nil
	}
	v, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		v = v.Add(24*time.Hour - time.Nanosecond)
	}
	return v.UTC(), nil
}
